package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
)

func (s *Server) logQuery(r *http.Request) (service.LogQuery, error) {
	q := r.URL.Query()
	day, err := s.reports.ParseDay(q.Get("date"), time.Now())
	if err != nil {
		return service.LogQuery{}, err
	}
	openOnly, _ := strconv.ParseBool(q.Get("open"))
	return service.LogQuery{Day: day, Search: q.Get("q"), OpenOnly: openOnly}, nil
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q, err := s.logQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	entries, err := s.reports.DayLog(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logEntryViews(entries))
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	day, err := s.reports.ParseDay(r.URL.Query().Get("date"), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	st, err := s.reports.Daily(r.Context(), day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := s.reports.ParseMonth(r.URL.Query().Get("month"), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_month", err.Error())
		return
	}
	rep, err := s.reports.Monthly(r.Context(), month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func csvHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (s *Server) handleExportSessions(w http.ResponseWriter, r *http.Request) {
	q, err := s.logQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	entries, err := s.reports.DayLog(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvHeaders(w, "gate_logs_"+q.Day.Format("20060102")+".csv")
	if err := s.reports.WriteSessionsCSV(w, entries); err != nil {
		s.logger.Error("export sessions", "err", err)
	}
}

func (s *Server) handleExportIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.identities.List(r.Context(), "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvHeaders(w, "identities.csv")
	if err := service.WriteIdentitiesCSV(w, ids); err != nil {
		s.logger.Error("export identities", "err", err)
	}
}

func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	month, err := s.reports.ParseMonth(r.URL.Query().Get("month"), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_month", err.Error())
		return
	}
	rep, err := s.reports.Monthly(r.Context(), month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvHeaders(w, "monthly_report_"+month.Format("200601")+".csv")
	if err := service.WriteMonthlyCSV(w, rep); err != nil {
		s.logger.Error("export monthly", "err", err)
	}
}

package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"

	StatusInside = "Inside"
	StatusLeft   = "Left"
)

// LogEntry is a session joined with the name of its identity. Name is empty
// when the identity has since been deleted.
type LogEntry struct {
	store.Session
	Name string
}

func (e LogEntry) Status() string {
	if e.Open() {
		return StatusInside
	}
	return StatusLeft
}

type LogQuery struct {
	Day      time.Time
	Search   string
	OpenOnly bool
}

// ReportService builds the day log, statistics and exports. Calendar days
// are taken in loc.
type ReportService struct {
	identities store.IdentityStore
	sessions   store.SessionStore
	loc        *time.Location
}

func NewReportService(identities store.IdentityStore, sessions store.SessionStore, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{identities: identities, sessions: sessions, loc: loc}
}

func (s *ReportService) Location() *time.Location { return s.loc }

// ParseDay parses YYYY-MM-DD in the service location. An empty string is
// today.
func (s *ReportService) ParseDay(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return startOfDay(now.In(s.loc)), nil
	}
	t, err := time.ParseInLocation(DayLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want %s", v, DayLayout)
	}
	return t, nil
}

// ParseMonth parses YYYY-MM in the service location. An empty string is the
// current month.
func (s *ReportService) ParseMonth(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		n := now.In(s.loc)
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, s.loc), nil
	}
	t, err := time.ParseInLocation(MonthLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: want %s", v, MonthLayout)
	}
	return t, nil
}

// DayLog lists sessions opened on q.Day, newest first.
func (s *ReportService) DayLog(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	from := startOfDay(q.Day.In(s.loc))
	sessions, err := s.sessions.List(ctx, store.SessionFilter{
		From:     from,
		To:       from.AddDate(0, 0, 1),
		OpenOnly: q.OpenOnly,
	})
	if err != nil {
		return nil, err
	}

	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]LogEntry, 0, len(sessions))
	for _, sess := range sessions {
		e := LogEntry{Session: sess, Name: names[sess.IdentityID]}
		if search != "" && !matchesQuery(e.IdentityID, e.Name, search) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Daily counts entries (sessions opened on day) and exits (those of them
// already closed). Inside is the difference.
func (s *ReportService) Daily(ctx context.Context, day time.Time) (types.DailyStats, error) {
	from := startOfDay(day.In(s.loc))
	sessions, err := s.sessions.List(ctx, store.SessionFilter{From: from, To: from.AddDate(0, 0, 1)})
	if err != nil {
		return types.DailyStats{}, err
	}

	st := types.DailyStats{Date: from.Format(DayLayout), Entries: len(sessions)}
	for _, sess := range sessions {
		if !sess.Open() {
			st.Exits++
		}
	}
	st.Inside = st.Entries - st.Exits
	return st, nil
}

// Monthly reports, for each day of month with at least one entry, the
// number of distinct identities and of entries.
func (s *ReportService) Monthly(ctx context.Context, month time.Time) (types.MonthlyReport, error) {
	m := month.In(s.loc)
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, s.loc)
	sessions, err := s.sessions.List(ctx, store.SessionFilter{From: from, To: from.AddDate(0, 1, 0)})
	if err != nil {
		return types.MonthlyReport{}, err
	}

	type bucket struct {
		entries    int
		identities map[string]struct{}
	}
	days := make(map[string]*bucket)
	for _, sess := range sessions {
		key := sess.OpenedAt.In(s.loc).Format(DayLayout)
		b, ok := days[key]
		if !ok {
			b = &bucket{identities: make(map[string]struct{})}
			days[key] = b
		}
		b.entries++
		b.identities[sess.IdentityID] = struct{}{}
	}

	rep := types.MonthlyReport{Month: from.Format(MonthLayout), Days: make([]types.MonthlyRow, 0, len(days))}
	for key, b := range days {
		rep.Days = append(rep.Days, types.MonthlyRow{Date: key, Identities: len(b.identities), Entries: b.entries})
	}
	sort.Slice(rep.Days, func(i, j int) bool { return rep.Days[i].Date < rep.Days[j].Date })
	return rep, nil
}

func (s *ReportService) names(ctx context.Context) (map[string]string, error) {
	ids, err := s.identities.List(ctx, store.IdentityFilter{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id.IdentityID] = id.DisplayName
	}
	return names, nil
}

// WriteSessionsCSV writes one row per log entry with times in the service
// location.
func (s *ReportService) WriteSessionsCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Identity ID", "Name", "Entry Time", "Exit Time", "Status", "Method", "Exit Method", "Entry Station", "Exit Station"})
	for _, e := range entries {
		exit := ""
		if e.ClosedAt != nil {
			exit = e.ClosedAt.In(s.loc).Format(time.DateTime)
		}
		_ = cw.Write([]string{
			e.IdentityID,
			e.Name,
			e.OpenedAt.In(s.loc).Format(time.DateTime),
			exit,
			e.Status(),
			string(e.Method),
			string(e.CloseMethod),
			e.OpenedBy,
			e.ClosedBy,
		})
	}
	cw.Flush()
	return cw.Error()
}

func WriteIdentitiesCSV(w io.Writer, ids []store.Identity) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Identity ID", "Name", "Department", "Year", "Phone", "Email", "Status", "Face Enrolled"})
	for _, id := range ids {
		_ = cw.Write([]string{
			id.IdentityID,
			id.DisplayName,
			id.Department,
			id.Year,
			id.Phone,
			id.Email,
			id.Status,
			strconv.FormatBool(id.HasDescriptor()),
		})
	}
	cw.Flush()
	return cw.Error()
}

func WriteMonthlyCSV(w io.Writer, rep types.MonthlyReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Date", "Total Identities", "Total Entries"})
	for _, d := range rep.Days {
		_ = cw.Write([]string{d.Date, strconv.Itoa(d.Identities), strconv.Itoa(d.Entries)})
	}
	cw.Flush()
	return cw.Error()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
)

func newTestReports(t *testing.T) (*service.ReportService, *memory.IdentityStore, *memory.SessionStore) {
	t.Helper()
	ids := memory.NewIdentityStore()
	sessions := memory.NewSessionStore()
	mustCreate(t, ids, store.Identity{IdentityID: "S1", DisplayName: "Ada Lovelace"})
	mustCreate(t, ids, store.Identity{IdentityID: "S2", DisplayName: "Alan Turing"})
	return service.NewReportService(ids, sessions, time.UTC), ids, sessions
}

func openAt(t *testing.T, ss store.SessionStore, id string, at time.Time) store.Session {
	t.Helper()
	s, err := ss.Open(context.Background(), store.OpenRequest{IdentityID: id, Method: store.MethodQR, StationID: "gate-1", At: at})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func closeAt(t *testing.T, ss store.SessionStore, s store.Session, at time.Time) {
	t.Helper()
	if _, err := ss.Close(context.Background(), store.CloseRequest{SessionID: s.SessionID, Method: store.MethodFace, StationID: "gate-2", At: at}); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReportService_DayLogAndStats(t *testing.T) {
	reports, _, ss := newTestReports(t)
	ctx := context.Background()

	yesterday := openAt(t, ss, "S1", t0.AddDate(0, 0, -1))
	closeAt(t, ss, yesterday, t0.AddDate(0, 0, -1).Add(time.Hour))

	a := openAt(t, ss, "S1", t0)
	closeAt(t, ss, a, t0.Add(time.Hour))
	openAt(t, ss, "S2", t0.Add(30*time.Minute))
	openAt(t, ss, "S9", t0.Add(2*time.Hour)) // identity since deleted

	day, err := reports.ParseDay("2026-03-02", time.Now())
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}

	log, err := reports.DayLog(ctx, service.LogQuery{Day: day})
	if err != nil {
		t.Fatalf("DayLog: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(log))
	}
	if log[0].IdentityID != "S9" || log[0].Name != "" {
		t.Fatalf("expected newest first, got %+v", log[0])
	}
	if log[2].IdentityID != "S1" || log[2].Status() != service.StatusLeft || log[2].Name != "Ada Lovelace" {
		t.Fatalf("unexpected entry %+v", log[2])
	}
	if log[1].Status() != service.StatusInside {
		t.Fatalf("S2 should be inside, got %s", log[1].Status())
	}

	found, _ := reports.DayLog(ctx, service.LogQuery{Day: day, Search: "turing"})
	if len(found) != 1 || found[0].IdentityID != "S2" {
		t.Fatalf("search by name: %+v", found)
	}
	open, _ := reports.DayLog(ctx, service.LogQuery{Day: day, OpenOnly: true})
	if len(open) != 2 {
		t.Fatalf("open only: got %d, want 2", len(open))
	}

	st, err := reports.Daily(ctx, day)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if st.Date != "2026-03-02" || st.Entries != 3 || st.Exits != 1 || st.Inside != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}

	var buf bytes.Buffer
	if err := reports.WriteSessionsCSV(&buf, log); err != nil {
		t.Fatalf("WriteSessionsCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	last := rows[3]
	if last[0] != "S1" || last[2] != "2026-03-02 08:00:00" || last[3] != "2026-03-02 09:00:00" || last[4] != "Left" {
		t.Fatalf("unexpected row %v", last)
	}
}

func TestReportService_Monthly(t *testing.T) {
	reports, _, ss := newTestReports(t)
	ctx := context.Background()

	s := openAt(t, ss, "S1", t0)
	closeAt(t, ss, s, t0.Add(time.Hour))
	s = openAt(t, ss, "S1", t0.Add(2*time.Hour))
	closeAt(t, ss, s, t0.Add(150*time.Minute))
	s = openAt(t, ss, "S2", t0.Add(3*time.Hour))
	closeAt(t, ss, s, t0.Add(4*time.Hour))
	openAt(t, ss, "S2", t0.AddDate(0, 0, 3))
	openAt(t, ss, "S1", t0.AddDate(0, 1, 0)) // next month

	month, err := reports.ParseMonth("2026-03", time.Now())
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	rep, err := reports.Monthly(ctx, month)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if rep.Month != "2026-03" || len(rep.Days) != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if d := rep.Days[0]; d.Date != "2026-03-02" || d.Identities != 2 || d.Entries != 3 {
		t.Fatalf("day 1 = %+v", d)
	}
	if d := rep.Days[1]; d.Date != "2026-03-05" || d.Identities != 1 || d.Entries != 1 {
		t.Fatalf("day 2 = %+v", d)
	}

	var buf bytes.Buffer
	if err := service.WriteMonthlyCSV(&buf, rep); err != nil {
		t.Fatalf("WriteMonthlyCSV: %v", err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 3 || rows[1][1] != "2" || rows[1][2] != "3" {
		t.Fatalf("unexpected csv %v", rows)
	}
}

func TestReportService_ParseErrors(t *testing.T) {
	reports, _, _ := newTestReports(t)
	if _, err := reports.ParseDay("03/02/2026", time.Now()); err == nil {
		t.Error("expected invalid date error")
	}
	if _, err := reports.ParseMonth("2026-3-1", time.Now()); err == nil {
		t.Error("expected invalid month error")
	}

	now := time.Date(2026, 7, 19, 15, 4, 5, 0, time.UTC)
	day, _ := reports.ParseDay("", now)
	if !day.Equal(time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("empty day = %v", day)
	}
	month, _ := reports.ParseMonth("", now)
	if !month.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("empty month = %v", month)
	}
}

func TestWriteIdentitiesCSV(t *testing.T) {
	var buf bytes.Buffer
	err := service.WriteIdentitiesCSV(&buf, []store.Identity{
		{IdentityID: "S1", DisplayName: "Lovelace, Ada", Status: "Active", Descriptor: []float32{1}},
	})
	if err != nil {
		t.Fatalf("WriteIdentitiesCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "Lovelace, Ada" || rows[1][7] != "true" {
		t.Fatalf("unexpected csv %v", rows)
	}
}

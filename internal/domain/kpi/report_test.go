package kpi

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestPerformanceReportPDF(t *testing.T) {
	store, _ := seedTeam(t)
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	start, due := periodDates()
	created, err := svc.CreatePeriod(ctx, adminActor, "Q1", due, start)
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	scoreAll(t, svc, created, map[string]float64{"u1": 75})

	report, err := svc.PerformanceReport(ctx, managerActor, "u1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.UserName != "Ari" || len(report.Periods) != 1 || *report.Periods[0].FinalScore != 75 {
		t.Fatalf("unexpected report: %+v", report)
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf output, got %q", buf.Bytes()[:8])
	}
}

func TestPerformanceReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := (PerformanceReport{UserName: "nobody"}).WritePDF(&buf); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected output")
	}
}

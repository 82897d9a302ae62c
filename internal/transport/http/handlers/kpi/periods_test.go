package kpihandler

import (
	"context"
	"testing"
	"time"

	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/platform/jobs"
)

type inbox struct {
	notifications.StoreAPI
	recipients []string
}

func (i *inbox) CreateNotification(_ context.Context, _, userID, _, _, _ string) error {
	i.recipients = append(i.recipients, userID)
	return nil
}

type queue struct {
	accept bool
	names  []string
	fns    []jobs.Func
}

func (q *queue) Enqueue(name string, fn jobs.Func) bool {
	if !q.accept {
		return false
	}
	q.names = append(q.names, name)
	q.fns = append(q.fns, fn)
	return true
}

func openedPeriod() kpi.PeriodCreation {
	return kpi.PeriodCreation{
		Period:  kpi.Period{ID: "p1", Label: "Q1", DueDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)},
		Records: []kpi.Record{{UserID: "u1"}, {UserID: "u1"}, {UserID: "u2"}},
	}
}

func TestAnnouncePeriodDefersToWorker(t *testing.T) {
	box := &inbox{}
	q := &queue{accept: true}
	h := &Handler{Notify: notifications.New(box, nil, false, ""), Jobs: q}

	h.announcePeriod(context.Background(), "org-1", openedPeriod())
	if len(box.recipients) != 0 {
		t.Fatalf("expected no delivery in the request, got %v", box.recipients)
	}
	if len(q.fns) != 1 || q.names[0] != jobs.JobPeriodNotify {
		t.Fatalf("expected one %s job, got %v", jobs.JobPeriodNotify, q.names)
	}

	if _, err := q.fns[0](context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if len(box.recipients) != 2 || box.recipients[0] != "u1" || box.recipients[1] != "u2" {
		t.Fatalf("expected one notification per member, got %v", box.recipients)
	}
}

func TestAnnouncePeriodRunsInlineWithoutWorker(t *testing.T) {
	cases := []struct {
		name   string
		runner Enqueuer
	}{
		{name: "no worker", runner: nil},
		{name: "queue full", runner: &queue{}},
		{name: "nil service", runner: (*jobs.Service)(nil)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			box := &inbox{}
			h := &Handler{Notify: notifications.New(box, nil, false, ""), Jobs: tc.runner}
			h.announcePeriod(context.Background(), "org-1", openedPeriod())
			if len(box.recipients) != 2 {
				t.Fatalf("expected inline delivery, got %v", box.recipients)
			}
		})
	}
}

// Package jobs runs periodic housekeeping on a single worker goroutine.
// Every run is recorded in job_runs when a database is attached.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"hrkpi/internal/platform/querier"
)

const (
	JobTokenPurge   = "token_purge"
	JobRunsCleanup  = "job_runs_cleanup"
	JobPeriodNotify = "period_notify"
)

const (
	queueSize        = 32
	runRetentionDays = 30
)

// TokenPurger removes expired denylist entries and reset tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (revoked, resets int64, err error)
}

// Counter receives one event per finished run. *metrics.Collector satisfies it.
type Counter interface {
	Inc(name string)
}

// Func is a job body. Its result is stored as the run details.
type Func func(context.Context) (any, error)

type job struct {
	name string
	fn   Func
}

type schedule struct {
	job
	every time.Duration
}

type Service struct {
	DB     querier.Querier
	Purger TokenPurger
	Events Counter

	queue     chan job
	schedules []schedule
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New wires the token purge every purgeInterval and prunes old job_runs rows
// once a day. A zero interval disables the purge.
func New(db querier.Querier, purger TokenPurger, purgeInterval time.Duration) *Service {
	s := &Service{DB: db, Purger: purger, queue: make(chan job, queueSize)}
	if purger != nil && purgeInterval > 0 {
		s.Every(JobTokenPurge, purgeInterval, s.PurgeTokens)
	}
	if db != nil {
		s.Every(JobRunsCleanup, 24*time.Hour, s.PruneRuns)
	}
	return s
}

// Every registers fn to be enqueued each interval. Call before Start.
func (s *Service) Every(name string, interval time.Duration, fn Func) {
	s.schedules = append(s.schedules, schedule{job: job{name: name, fn: fn}, every: interval})
}

// Start launches the worker and one ticker per schedule. Stop undoes it.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.spawn(func() { s.work(ctx) })
	for _, sc := range s.schedules {
		sc := sc
		s.spawn(func() { s.tick(ctx, sc) })
	}
}

// Stop cancels the scheduler and waits for the running job to return.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Enqueue hands a job to the worker without blocking. It reports false when
// the queue is full or s is nil, and the job was not accepted.
func (s *Service) Enqueue(name string, fn Func) bool {
	if s == nil {
		return false
	}
	select {
	case s.queue <- job{name: name, fn: fn}:
		return true
	default:
		slog.Warn("job queue full", "jobType", name)
		return false
	}
}

// RunNow executes a job on the caller's goroutine.
func (s *Service) RunNow(ctx context.Context, name string, fn Func) (any, error) {
	return s.run(ctx, job{name: name, fn: fn})
}

func (s *Service) PurgeTokens(ctx context.Context) (any, error) {
	revoked, resets, err := s.Purger.PurgeExpired(ctx)
	return map[string]int64{"revokedTokens": revoked, "resetTokens": resets}, err
}

func (s *Service) PruneRuns(ctx context.Context) (any, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM job_runs WHERE started_at < now() - make_interval(days => $1)
  `, runRetentionDays)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"deletedRuns": tag.RowsAffected()}, nil
}

func (s *Service) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.run(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.name, "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, sc schedule) {
	ticker := time.NewTicker(sc.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sc.name, sc.fn)
		}
	}
}

func (s *Service) run(ctx context.Context, j job) (any, error) {
	rec := s.begin(ctx, j.name)
	started := time.Now()
	details, err := j.fn(ctx)
	rec.finish(ctx, details, err)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	if s.Events != nil {
		s.Events.Inc("job_" + j.name + "_" + outcome)
	}
	slog.Debug("job finished", "jobType", j.name, "status", outcome, "duration", time.Since(started))
	return details, err
}

// runRecord tracks one job_runs row. A zero id means nothing is persisted.
type runRecord struct {
	db querier.Querier
	id string
}

func (s *Service) begin(ctx context.Context, name string) runRecord {
	rec := runRecord{db: s.DB}
	if s.DB == nil {
		return rec
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status) VALUES ($1, 'running') RETURNING id
  `, name).Scan(&rec.id)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", name, "err", err)
	}
	return rec
}

func (r runRecord) finish(ctx context.Context, details any, runErr error) {
	if r.id == "" {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "failed"
		details = map[string]any{"result": details, "error": runErr.Error()}
	}
	body, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "runId", r.id, "err", err)
		body = []byte("{}")
	}
	if _, err := r.db.Exec(ctx, `
    UPDATE job_runs SET status = $1, details_json = $2, completed_at = now() WHERE id = $3
  `, status, body, r.id); err != nil {
		slog.Warn("job run update failed", "runId", r.id, "err", err)
	}
}

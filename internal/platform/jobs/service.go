package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"backoffice/internal/domain/reports"
	"backoffice/internal/domain/settlement"
	"backoffice/internal/platform/config"
)

const (
	JobPeriodDigest = "period_digest"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ReportSource is the report side the digest reads from.
type ReportSource interface {
	SalesReport(ctx context.Context, month, year int) (reports.ReportSet, error)
	CafeReport(ctx context.Context, shopID string, month, year int) (reports.ReportSet, error)
	Shops(ctx context.Context) ([]reports.Shop, error)
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, digest reports.Digest) error
}

// RunStore records job runs; job_runs in Postgres by default.
type RunStore interface {
	Begin(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, details []byte) error
	// Delivered reports whether a completed run of jobType already sent a
	// non-empty digest for period.
	Delivered(ctx context.Context, jobType, period string) (bool, error)
}

type Service struct {
	Cfg       config.Config
	runs      RunStore
	reports   ReportSource
	notifiers []Notifier
	queue     chan job
	now       func() time.Time
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunStore, cfg config.Config, source ReportSource, notifiers ...Notifier) *Service {
	return &Service{
		Cfg:       cfg,
		runs:      runs,
		reports:   source,
		notifiers: notifiers,
		queue:     make(chan job, 128),
		now:       time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.DigestInterval > 0 && len(s.notifiers) > 0 {
		go s.scheduleDigest(ctx, s.Cfg.DigestInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.runs != nil {
		id, err := s.runs.Begin(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleDigest(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobPeriodDigest, s.Digest)
		}
	}
}

type DigestResult struct {
	Period    string   `json:"period"`
	Sections  int      `json:"sections"`
	Delivered []string `json:"delivered"`
	Failed    []string `json:"failed,omitempty"`
	Skipped   bool     `json:"skipped,omitempty"`
}

// ScheduledDigest sends the closed period's digest once. A period that a
// completed run already delivered is skipped; a failed run is retried on the
// next tick.
func (s *Service) ScheduledDigest(ctx context.Context) (any, error) {
	period := settlement.ClosedPeriod(s.now()).String()
	if s.runs != nil {
		sent, err := s.runs.Delivered(ctx, JobPeriodDigest, period)
		if err != nil {
			return DigestResult{Period: period}, fmt.Errorf("digest history: %w", err)
		}
		if sent {
			return DigestResult{Period: period, Skipped: true}, nil
		}
	}
	return s.Digest(ctx)
}

// Digest reports the most recently closed period of every pipeline to each
// notifier. A notifier failure does not stop delivery to the others.
func (s *Service) Digest(ctx context.Context) (any, error) {
	period := settlement.ClosedPeriod(s.now())
	month, year := int(period.Start.Month()), period.Start.Year()
	result := DigestResult{Period: period.String()}

	sales, err := s.reports.SalesReport(ctx, month, year)
	if err != nil {
		return result, fmt.Errorf("sales report: %w", err)
	}
	entries := []reports.DigestEntry{{Set: sales}}

	shops, err := s.reports.Shops(ctx)
	if err != nil {
		return result, fmt.Errorf("list shops: %w", err)
	}
	for _, shop := range shops {
		set, err := s.reports.CafeReport(ctx, shop.ID, month, year)
		if err != nil {
			return result, fmt.Errorf("cafe report %s: %w", shop.Name, err)
		}
		entries = append(entries, reports.DigestEntry{Set: set, ShopName: shop.Name})
	}

	digest, err := reports.NewDigest(period, entries)
	if err != nil {
		return result, err
	}
	result.Sections = len(digest.Attachments)
	if digest.Empty() {
		return result, nil
	}

	var errs []error
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, digest); err != nil {
			slog.Warn("digest delivery failed", "notifier", notifier.Name(), "err", err)
			result.Failed = append(result.Failed, notifier.Name())
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		result.Delivered = append(result.Delivered, notifier.Name())
	}
	return result, errors.Join(errs...)
}

// PGRunStore writes job runs to the job_runs table.
type PGRunStore struct {
	DB *pgxpool.Pool
}

func (p PGRunStore) Begin(ctx context.Context, jobType string) (string, error) {
	var runID string
	err := p.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, $2)
    RETURNING id::text
  `, jobType, StatusRunning).Scan(&runID)
	return runID, err
}

func (p PGRunStore) Finish(ctx context.Context, runID, status string, details []byte) error {
	_, err := p.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}

func (p PGRunStore) Delivered(ctx context.Context, jobType, period string) (bool, error) {
	var delivered bool
	err := p.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM job_runs
      WHERE job_type = $1 AND status = $2
        AND details_json->>'period' = $3
        AND COALESCE((details_json->>'sections')::int, 0) > 0
    )
  `, jobType, StatusCompleted, period).Scan(&delivered)
	return delivered, err
}

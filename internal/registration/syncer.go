// Package registration turns spreadsheet registrations into issued and emailed passes.
package registration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"entrypass/internal/ledger"
	"entrypass/internal/metrics"
	"entrypass/internal/pass"
	"entrypass/internal/sheets"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultStartupDelay  = 3 * time.Second
	defaultDispatchDelay = time.Second

	// firstDataRow is the sheet row number of the first registrant, below the header.
	firstDataRow = 2
)

// Generator issues a new pass for an attendee.
type Generator interface {
	Generate(a pass.Attendee) (pass.Issued, error)
}

// Dispatcher emails an issued pass to its attendee.
type Dispatcher interface {
	Dispatch(ctx context.Context, a pass.Attendee, issued pass.Issued) error
}

// Result counts what one sync cycle did with each row.
type Result struct {
	Rows             int
	Sent             int
	Failed           int
	Skipped          int
	AlreadyProcessed int
}

type Syncer struct {
	source        sheets.Source
	generator     Generator
	dispatcher    Dispatcher
	ledger        *ledger.Service
	logger        *slog.Logger
	metrics       *metrics.Metrics
	interval      time.Duration
	startupDelay  time.Duration
	dispatchDelay time.Duration

	// mu serializes cycles so a manual trigger never overlaps the scheduled one.
	mu sync.Mutex
}

type Option func(*Syncer)

func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

func WithStartupDelay(d time.Duration) Option {
	return func(s *Syncer) { s.startupDelay = d }
}

// WithDispatchDelay sets the pause between two dispatch attempts.
func WithDispatchDelay(d time.Duration) Option {
	return func(s *Syncer) { s.dispatchDelay = d }
}

func NewSyncer(source sheets.Source, generator Generator, dispatcher Dispatcher, svc *ledger.Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Syncer {
	s := &Syncer{
		source:        source,
		generator:     generator,
		dispatcher:    dispatcher,
		ledger:        svc,
		logger:        logger,
		metrics:       m,
		interval:      defaultInterval,
		startupDelay:  defaultStartupDelay,
		dispatchDelay: defaultDispatchDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run syncs once after the startup delay and then on every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("Starting registration sync", slog.Duration("interval", s.interval))

	if !sleep(ctx, s.startupDelay) {
		return
	}
	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-ctx.Done():
			s.logger.Info("Registration sync stopping")
			return
		}
	}
}

func (s *Syncer) runLogged(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Registration sync failed", slog.String("error", err.Error()))
	}
}

// SyncOnce issues and emails a pass to every registrant whose email has not
// been processed yet. A failed dispatch leaves the email unprocessed so the
// next cycle retries it.
func (s *Syncer) SyncOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { s.metrics.SyncFinished(time.Since(start)) }()

	rows, err := s.source.Rows(ctx)
	if err != nil {
		return Result{}, NewFailedToFetchRowsError(err)
	}

	res := Result{Rows: len(rows)}
	st := s.ledger.Store()
	attempted := 0

	for i, row := range rows {
		a := sheets.ParseRow(row)
		if a.Email == "" {
			res.Skipped++
			s.logger.Warn("Skipping registration without email", slog.Int("row", firstDataRow+i))
			continue
		}

		processed, err := st.IsProcessed(ctx, a.Email)
		if err != nil {
			return res, NewFailedToStoreError("Failed to read processed emails", err)
		}
		if processed {
			res.AlreadyProcessed++
			continue
		}

		if attempted > 0 && !sleep(ctx, s.dispatchDelay) {
			return res, ctx.Err()
		}
		attempted++

		issued, err := s.issue(ctx, a)
		if err != nil {
			if IsReason(err, REASON_FAILED_TO_STORE) {
				return res, err
			}
			res.Failed++
			s.logger.Warn("Failed to send pass",
				slog.String("email", a.Email),
				slog.Int("row", firstDataRow+i),
				slog.String("error", err.Error()))
			continue
		}

		if err := st.MarkProcessed(ctx, a.Email); err != nil {
			return res, NewFailedToStoreError("Failed to mark email processed", err)
		}
		res.Sent++
		s.logger.Info("Sent pass", slog.String("email", a.Email), slog.String("pass_id", issued.ID))
	}

	s.logger.Info("Registration sync finished",
		slog.Int("rows", res.Rows),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
		slog.Int("already_processed", res.AlreadyProcessed),
		slog.Duration("took", time.Since(start)))

	return res, nil
}

// IssueSingle issues and emails one pass on demand. The email is not marked
// processed, so a later sync may send the attendee a second pass.
func (s *Syncer) IssueSingle(ctx context.Context, a pass.Attendee) (pass.Issued, error) {
	return s.issue(ctx, a)
}

// issue generates a pass, records it in the ledger and dispatches it. The
// pass stays in the ledger when dispatch fails.
func (s *Syncer) issue(ctx context.Context, a pass.Attendee) (pass.Issued, error) {
	issued, err := s.generator.Generate(a)
	if err != nil {
		return pass.Issued{}, NewFailedToGenerateError(err)
	}

	if _, err := s.ledger.Issue(ctx, issued); err != nil {
		return pass.Issued{}, NewFailedToStoreError("Failed to record pass", err)
	}

	if err := s.dispatcher.Dispatch(ctx, a, issued); err != nil {
		s.metrics.EmailFailed()
		return issued, NewFailedToDispatchError(a.Email, err)
	}
	s.metrics.EmailSent()
	return issued, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

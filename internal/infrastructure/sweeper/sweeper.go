// Package sweeper runs the periodic maintenance jobs of the engine.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/vendorpay/internal/usecase"
)

// FailedPaymentRetrier resets recent FAILED disbursements for another attempt.
type FailedPaymentRetrier interface {
	RetryFailedPayments(ctx context.Context) ([]usecase.RetryResult, error)
}

// ReviewTriager resolves pending reviews that clear the triage policy.
type ReviewTriager interface {
	AutoTriagePending(ctx context.Context) (*usecase.TriageResult, error)
}

// Config for Sweeper. A zero interval disables that job.
type Config struct {
	RetryInterval  time.Duration
	TriageInterval time.Duration
}

// Sweeper schedules the failed-payment retry and review triage jobs.
type Sweeper struct {
	retrier FailedPaymentRetrier
	triager ReviewTriager
	cfg     Config
	logger  zerolog.Logger
}

// New creates a Sweeper.
func New(retrier FailedPaymentRetrier, triager ReviewTriager, cfg Config, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		retrier: retrier,
		triager: triager,
		cfg:     cfg,
		logger:  logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.RetryInterval > 0 && s.retrier != nil {
		g.Go(func() error { return s.loop(ctx, "retry_failed", s.cfg.RetryInterval, s.RetryOnce) })
	}
	if s.cfg.TriageInterval > 0 && s.triager != nil {
		g.Go(func() error { return s.loop(ctx, "auto_triage", s.cfg.TriageInterval, s.TriageOnce) })
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Sweeper) loop(ctx context.Context, job string, every time.Duration, run func(context.Context)) error {
	s.logger.Info().Str("job", job).Dur("interval", every).Msg("sweeper job scheduled")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run(ctx)
		}
	}
}

// RetryOnce runs one failed-payment retry sweep.
func (s *Sweeper) RetryOnce(ctx context.Context) {
	results, err := s.retrier.RetryFailedPayments(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("retry sweep failed")
		return
	}

	reset, errs := 0, 0
	for _, r := range results {
		if r.Error != "" {
			errs++
		} else if r.After != r.Before {
			reset++
		}
	}
	s.logger.Info().Int("considered", len(results)).Int("reset", reset).Int("errors", errs).Msg("retry sweep done")
}

// TriageOnce runs one auto-triage sweep.
func (s *Sweeper) TriageOnce(ctx context.Context) {
	res, err := s.triager.AutoTriagePending(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("triage sweep failed")
		return
	}
	s.logger.Info().
		Int("evaluated", res.Evaluated).
		Int("approved", res.Approved).
		Int("rejected", res.Rejected).
		Int("errors", len(res.Errors)).
		Msg("triage sweep done")
}

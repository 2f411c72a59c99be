package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Armin-kho/gheymat-bot/internal/sources"
)

// Warmer refreshes provider caches that have gone stale.
type Warmer interface {
	Warm(ctx context.Context, providers ...sources.Provider) error
}

type Options struct {
	// Schedule is a standard cron spec or a descriptor such as "@every 30s".
	Schedule  string
	Providers []sources.Provider
	// Timeout bounds one run.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Scheduler keeps provider caches warm so chat requests rarely wait on an
// upstream. The aggregator is charged only when its entry is stale, like
// any other caller.
type Scheduler struct {
	cron   *cron.Cron
	warmer Warmer
	opts   Options
	log    zerolog.Logger
}

func New(w Warmer, opts Options) (*Scheduler, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		warmer: w,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "scheduler").Logger(),
	}
	if _, err := s.cron.AddFunc(opts.Schedule, s.runTick); err != nil {
		return nil, fmt.Errorf("register warm task %q: %w", opts.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Str("schedule", s.opts.Schedule).Interface("providers", s.opts.Providers).Msg("scheduler started")
}

// Stop waits for a running warm to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow warms immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.warmer.Warm(ctx, s.opts.Providers...)
}

func (s *Scheduler) runTick() {
	start := time.Now()
	if err := s.RunNow(context.Background()); err != nil {
		s.log.Debug().Err(err).Msg("warm tick finished with errors")
		return
	}
	s.log.Debug().Dur("took", time.Since(start)).Msg("warm tick")
}

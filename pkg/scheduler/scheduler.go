package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// RunFunc executes one export. The scheduler logs its outcome.
type RunFunc func(ctx context.Context) error

// Scheduler triggers exports on a cron schedule.
type Scheduler struct {
	cron *rcron.Cron
	spec string
	run  RunFunc
}

// New creates a scheduler for the given standard cron expression.
func New(spec string, run RunFunc) *Scheduler {
	return &Scheduler{
		cron: rcron.New(),
		spec: spec,
		run:  run,
	}
}

// Start registers the job and starts the cron loop. It returns an error
// when the expression does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		start := time.Now()
		log.Printf("[scheduler] starting scheduled export")
		if err := s.run(ctx); err != nil {
			log.Printf("[scheduler] scheduled export failed: %v", err)
			return
		}
		log.Printf("[scheduler] scheduled export finished in %s", time.Since(start).Round(time.Second))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.Printf("[scheduler] started with schedule %q", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the cron loop without waiting for a running job.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

package export

import (
	"context"
	"errors"
	"sync"

	"github.com/teamexport/slacksnap/pkg/models"
)

// ErrRunInProgress is returned when an export is requested while another
// run is still underway.
var ErrRunInProgress = errors.New("an export run is already in progress")

// Runner runs one full workspace export.
type Runner interface {
	Run(ctx context.Context) (*models.ExportSnapshot, error)
}

// SingleFlight wraps a Runner so that at most one export runs at a time,
// no matter how many triggers (HTTP, scheduler) share it. A second
// trigger gets ErrRunInProgress instead of a queued run.
type SingleFlight struct {
	inner Runner
	mu    sync.Mutex
}

// NewSingleFlight wraps the given runner.
func NewSingleFlight(inner Runner) *SingleFlight {
	return &SingleFlight{inner: inner}
}

// Run executes the inner runner unless one is already in flight.
func (s *SingleFlight) Run(ctx context.Context) (*models.ExportSnapshot, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()
	return s.inner.Run(ctx)
}

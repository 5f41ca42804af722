package service

import (
	"context"
	"time"

	"github.com/socio-dl/socio-go/internal/metrics"
)

// JobSlots bounds how many jobs run at once. It does not serialize them.
type JobSlots struct {
	sem  chan struct{}
	wait time.Duration
}

func NewJobSlots(max int, wait time.Duration) *JobSlots {
	if max < 1 {
		max = 1
	}
	return &JobSlots{sem: make(chan struct{}, max), wait: wait}
}

// Acquire blocks until a slot frees up, the wait elapses, or ctx ends.
// The returned release func must be called exactly once.
func (p *JobSlots) Acquire(ctx context.Context) (func(), error) {
	var timeout <-chan time.Time
	if p.wait > 0 {
		t := time.NewTimer(p.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p.sem <- struct{}{}:
		metrics.JobsInFlight.Inc()
		return func() {
			metrics.JobsInFlight.Dec()
			<-p.sem
		}, nil
	case <-timeout:
		return nil, ErrServerBusy
	case <-ctx.Done():
		return nil, ErrServerBusy
	}
}

// InUse is the number of held slots.
func (p *JobSlots) InUse() int {
	return len(p.sem)
}

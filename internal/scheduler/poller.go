package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

// Poller runs a task immediately and then on a fixed interval until
// stopped. A manual trigger runs it out of band.
type Poller struct {
	name     string
	task     func(ctx context.Context) error
	logger   logger.Logger
	interval time.Duration

	stopCh  chan struct{}
	trigger chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewPoller creates a new poller. Runs of the task never overlap.
func NewPoller(name string, task func(ctx context.Context) error, log logger.Logger, interval time.Duration) *Poller {
	return &Poller{
		name:     name,
		task:     task,
		logger:   log.With(logger.String("poller", name)),
		interval: interval,
		stopCh:   make(chan struct{}),
		trigger:  make(chan struct{}, 1),
	}
}

// Start runs the task once and begins the periodic loop
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.run(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.run(ctx)
			case <-p.trigger:
				p.logger.Debug("manual poll triggered")
				p.run(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger asks for an extra run. Requests made while one is already
// queued are merged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop stops the poller and waits for a run in progress.
// Safe to call more than once.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	select {
	case <-p.stopCh:
		return
	default:
	}
	if err := p.task(ctx); err != nil {
		p.logger.Warn("poll failed", logger.Error(err))
	}
}

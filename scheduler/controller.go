package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/izavyalov-dev/jarforge/internal/observability"
	"github.com/izavyalov-dev/jarforge/orchestrator"
)

// ExitCodeInterrupted is used when a second interrupt forces an exit.
const ExitCodeInterrupted = 130

// Controller turns interrupt signals into a graceful abort. The first
// signal sets the shutdown flag and aborts running containers; the second
// exits immediately.
type Controller struct {
	registry *orchestrator.Registry
	abort    func(context.Context) error
	exit     func(int)
	logger   *slog.Logger

	mu       sync.Mutex
	received int
	aborting sync.WaitGroup
}

// NewController constructs a controller. A nil exit defaults to os.Exit.
func NewController(registry *orchestrator.Registry, abort func(context.Context) error, exit func(int)) *Controller {
	if exit == nil {
		exit = os.Exit
	}
	return &Controller{
		registry: registry,
		abort:    abort,
		exit:     exit,
		logger:   observability.NewLogger("controller"),
	}
}

// Watch handles signals from ch until ctx is done.
func (c *Controller) Watch(ctx context.Context, ch <-chan os.Signal) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				c.Handle(ctx, sig)
			}
		}
	}()
}

// Handle processes one signal delivery.
func (c *Controller) Handle(ctx context.Context, sig os.Signal) {
	c.mu.Lock()
	c.received++
	n := c.received
	c.mu.Unlock()

	if n > 1 {
		c.logger.Warn("second interrupt, exiting", "event", "forced_exit", "signal", sig.String())
		c.exit(ExitCodeInterrupted)
		return
	}

	c.registry.BeginShutdown()
	c.logger.Warn("interrupt received, aborting builds", "event", "shutdown_started", "signal", sig.String())
	c.aborting.Add(1)
	go func() {
		defer c.aborting.Done()
		if err := c.abort(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("abort incomplete", "event", "abort_incomplete", "error", err)
		}
	}()
}

// Wait blocks until a started abort has finished.
func (c *Controller) Wait() {
	c.aborting.Wait()
}

// Interrupted reports whether any signal was received.
func (c *Controller) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received > 0
}

// Package orchestrator wires a node's components into a single lifecycle:
// dependency-ordered start with a deadline, fail-fast plus reverse-order
// stop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Component is one lifecycle-managed piece of the node: a KV store, a
// conduit network, the ingest engine's registration, and so on.
type Component interface {
	// Name identifies the component in logs and error messages.
	Name() string
	// Start blocks until the component is ready to serve, or ctx is done.
	Start(ctx context.Context) error
	// Stop releases the component's resources. Stop must be idempotent.
	Stop() error
}

// Orchestrator starts components in the order given and stops them in
// reverse.
type Orchestrator struct {
	mu         sync.Mutex
	components []Component
	started    []Component
	stopped    bool
}

// New creates an Orchestrator over components, in dependency order
// (earliest first).
func New(components ...Component) *Orchestrator {
	return &Orchestrator{components: components}
}

// Start brings up every component in order. If any component fails to
// become ready before deadline elapses, the whole sequence fails fast and
// every already-started component is stopped in reverse order before
// Start returns its error.
func (o *Orchestrator) Start(deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, c := range o.components {
		if err := startOne(ctx, c); err != nil {
			o.stopStartedLocked()
			return fmt.Errorf("orchestrator: start %s: %w", c.Name(), err)
		}
		o.started = append(o.started, c)
	}
	return nil
}

// startOne runs c.Start under a derived errgroup context so a deadline
// expiring on ctx cancels the component's Start and startOne returns that
// cancellation as the error.
func startOne(ctx context.Context, c Component) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Start(gctx)
	})
	return g.Wait()
}

func (o *Orchestrator) stopStartedLocked() {
	for i := len(o.started) - 1; i >= 0; i-- {
		if err := o.started[i].Stop(); err != nil {
			log.Printf("[orchestrator] stop %s during rollback: %v", o.started[i].Name(), err)
		}
	}
	o.started = nil
}

// Stop shuts down every started component in reverse start order. Stop is
// idempotent: calling it again after a successful or failed stop is a
// no-op.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil
	}
	o.stopped = true

	var errs []error
	for i := len(o.started) - 1; i >= 0; i-- {
		if err := o.started[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.started[i].Name(), err))
		}
	}
	o.started = nil
	if len(errs) > 0 {
		return fmt.Errorf("orchestrator: stop errors: %w", errors.Join(errs...))
	}
	return nil
}

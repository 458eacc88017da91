package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name       string
	startDelay time.Duration
	startErr   error
	stopErr    error

	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(ctx context.Context) error {
	select {
	case <-time.After(f.startDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeComponent) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return f.stopErr
}

func TestStartBringsUpComponentsInOrder(t *testing.T) {
	a := &fakeComponent{name: "a"}
	b := &fakeComponent{name: "b"}
	o := New(a, b)

	require.NoError(t, o.Start(time.Second))
	require.True(t, a.started)
	require.True(t, b.started)
}

func TestFailedStartStopsAlreadyStartedInReverse(t *testing.T) {
	a := &fakeComponent{name: "a"}
	b := &fakeComponent{name: "b", startErr: errors.New("boom")}
	o := New(a, b)

	err := o.Start(time.Second)
	require.Error(t, err)
	require.True(t, a.started)
	require.True(t, a.stopped)
	require.False(t, b.started)
}

func TestStartDeadlineExceededFailsFast(t *testing.T) {
	a := &fakeComponent{name: "a"}
	slow := &fakeComponent{name: "slow", startDelay: time.Second}
	o := New(a, slow)

	err := o.Start(10 * time.Millisecond)
	require.Error(t, err)
	require.True(t, a.started)
	require.True(t, a.stopped)
}

func TestStopIsIdempotent(t *testing.T) {
	a := &fakeComponent{name: "a"}
	o := New(a)
	require.NoError(t, o.Start(time.Second))

	require.NoError(t, o.Stop())
	require.NoError(t, o.Stop())
}

func TestStopRunsInReverseOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	a := &recordingComponent{name: "a", stop: record("a")}
	b := &recordingComponent{name: "b", stop: record("b")}
	o := New(a, b)

	require.NoError(t, o.Start(time.Second))
	require.NoError(t, o.Stop())
	require.Equal(t, []string{"b", "a"}, order)
}

type recordingComponent struct {
	name string
	stop func() error
}

func (r *recordingComponent) Name() string                    { return r.name }
func (r *recordingComponent) Start(ctx context.Context) error { return nil }
func (r *recordingComponent) Stop() error                     { return r.stop() }

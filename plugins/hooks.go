// Package plugins implements the extension points other code hooks into.
//
// A Chain is a filter hook: stages run in registration order, each receiving
// the previous stage's output, and any stage may reject by returning an error.
// A Notifier is an action hook: it is fired detached from the caller, its
// stages observe a payload and their failures are only logged.
package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FilterFunc transforms a payload or rejects it.
type FilterFunc[T any] func(ctx context.Context, payload T) (T, error)

// ActionFunc observes a payload.
type ActionFunc[T any] func(ctx context.Context, payload T) error

// StageError reports which stage of which hook failed.
type StageError struct {
	Hook  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %q: %v", e.Hook, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type stage[F any] struct {
	id   string
	name string
	fn   F
}

type registry[F any] struct {
	mu     sync.RWMutex
	stages []stage[F]
}

func (r *registry[F]) add(name string, fn F) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.stages = append(r.stages, stage[F]{id: id, name: name, fn: fn})
	r.mu.Unlock()
	return id
}

func (r *registry[F]) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.stages {
		if s.id == id {
			r.stages = append(r.stages[:i:i], r.stages[i+1:]...)
			return true
		}
	}
	return false
}

func (r *registry[F]) snapshot() []stage[F] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]stage[F], len(r.stages))
	copy(out, r.stages)
	return out
}

// Chain is an ordered filter hook.
type Chain[T any] struct {
	hook   string
	logger *zap.Logger
	reg    registry[FilterFunc[T]]
}

// NewChain creates an empty filter hook named hook, e.g. "filter:post.create".
func NewChain[T any](hook string, logger *zap.Logger) *Chain[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain[T]{hook: hook, logger: logger}
}

// Name returns the hook name.
func (c *Chain[T]) Name() string { return c.hook }

// Register appends a stage and returns its id.
func (c *Chain[T]) Register(name string, fn FilterFunc[T]) string {
	return c.reg.add(name, fn)
}

// Unregister removes a stage by id.
func (c *Chain[T]) Unregister(id string) bool { return c.reg.remove(id) }

// Len returns the number of registered stages.
func (c *Chain[T]) Len() int { return len(c.reg.snapshot()) }

// Apply runs every stage in registration order. The first error stops the
// chain and is returned as a *StageError.
func (c *Chain[T]) Apply(ctx context.Context, payload T) (T, error) {
	for _, s := range c.reg.snapshot() {
		next, err := c.run(ctx, s, payload)
		if err != nil {
			var zero T
			return zero, &StageError{Hook: c.hook, Stage: s.name, Err: err}
		}
		payload = next
	}
	return payload, nil
}

func (c *Chain[T]) run(ctx context.Context, s stage[FilterFunc[T]], payload T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("filter stage panicked", zap.String("hook", c.hook), zap.String("stage", s.name), zap.Any("panic", r))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, payload)
}

// Notifier is a fire-and-forget action hook.
type Notifier[T any] struct {
	hook     string
	logger   *zap.Logger
	reg      registry[ActionFunc[T]]
	inflight sync.WaitGroup
}

// NewNotifier creates an empty action hook named hook, e.g. "action:post.save".
func NewNotifier[T any](hook string, logger *zap.Logger) *Notifier[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier[T]{hook: hook, logger: logger}
}

// Name returns the hook name.
func (n *Notifier[T]) Name() string { return n.hook }

// Register appends a stage and returns its id.
func (n *Notifier[T]) Register(name string, fn ActionFunc[T]) string {
	return n.reg.add(name, fn)
}

// Unregister removes a stage by id.
func (n *Notifier[T]) Unregister(id string) bool { return n.reg.remove(id) }

// Fire starts the registered stages on their own goroutine and returns
// immediately. The stages see ctx values but not its cancellation.
func (n *Notifier[T]) Fire(ctx context.Context, payload T) {
	stages := n.reg.snapshot()
	if len(stages) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		for _, s := range stages {
			n.run(detached, s, payload)
		}
	}()
}

func (n *Notifier[T]) run(ctx context.Context, s stage[ActionFunc[T]], payload T) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("action stage panicked", zap.String("hook", n.hook), zap.String("stage", s.name), zap.Any("panic", r))
		}
	}()
	if err := s.fn(ctx, payload); err != nil {
		n.logger.Warn("action stage failed", zap.String("hook", n.hook), zap.String("stage", s.name), zap.Error(err))
	}
}

// Wait blocks until every fired action has finished. Used on shutdown and in tests.
func (n *Notifier[T]) Wait() { n.inflight.Wait() }

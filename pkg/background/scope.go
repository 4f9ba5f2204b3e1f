package background

import (
	"context"
	"sync"
)

// Scope - abstract concurrency scope: a group of goroutines sharing one context.
// Errors returned by members are collected and reported by Wait.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	scope     sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewScope - concurrency scope builder.
// The scope context is derived from parent, the returned cancel func cancels it
// and waits until all members are done.
func NewScope(parent context.Context) (scope *Scope, cancel func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelFunc := context.WithCancel(parent)
	s := &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
	}
	return s,
		func() {
			s.ctxCancel()
			s.scope.Wait()
		}
}

// Context - return background context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go - launches f as a member of the scope.
// Non-nil error of f is remembered until Wait is called.
func (s *Scope) Go(f func(ctx context.Context) error) {
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		if err := f(s.ctx); err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
		}
	}()
}

// Wait - blocks until all members are done and returns their errors in order of completion.
// Collected errors are reset, so the scope may be reused for new members.
func (s *Scope) Wait() []error {
	s.scope.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.errs
	s.errs = nil
	return errs
}

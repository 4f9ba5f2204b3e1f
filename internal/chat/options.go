package chat

import (
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
)

// Option - customizes the Supervisor built by NewSupervisor.
type Option func(s *Supervisor) error

func setup(s *Supervisor, options ...Option) error {
	if s == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attach logger, generation components get named children of it.
func WithLogger(logger logr.Logger) Option {
	return func(s *Supervisor) error {
		s.logger = logger
		return nil
	}
}

// WithBackoff - overwrites initial delay between generations. The delay doubles after every restart.
func WithBackoff(delay time.Duration) Option {
	return func(s *Supervisor) error {
		if delay <= 0 {
			return fmt.Errorf("chat.WithBackoff: invalid delay (%v)", delay)
		}
		s.backoff = delay
		return nil
	}
}

// WithEventQueue - overwrites capacity of the event channel between readers and the broker.
// Readers block while the queue is full.
func WithEventQueue(capacity int) Option {
	return func(s *Supervisor) error {
		if capacity < 0 {
			return fmt.Errorf("chat.WithEventQueue: invalid capacity (%d)", capacity)
		}
		s.eventQueue = capacity
		return nil
	}
}

// WithReadTimeout - disconnect clients idle longer than timeout, zero disables it.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) error {
		if timeout < 0 {
			return fmt.Errorf("chat.WithReadTimeout: invalid timeout (%v)", timeout)
		}
		s.readTimeout = timeout
		return nil
	}
}

// WithMaxLineSize - overwrites limit of client line length in bytes.
func WithMaxLineSize(size int) Option {
	return func(s *Supervisor) error {
		if size <= 0 {
			return fmt.Errorf("chat.WithMaxLineSize: invalid size (%d)", size)
		}
		s.maxLineSize = size
		return nil
	}
}

// WithBrokerBuilder - overwrites DefaultBroker().
func WithBrokerBuilder(build BrokerBuilder) Option {
	return func(s *Supervisor) error {
		if build == nil {
			return fmt.Errorf("chat.WithBrokerBuilder: builder is nil")
		}
		s.buildBroker = build
		return nil
	}
}

// WithListenHook - hook is called by every generation when its address is bound.
func WithListenHook(hook func(generation int, addr net.Addr)) Option {
	return func(s *Supervisor) error {
		s.onListen = hook
		return nil
	}
}

// WithClock - overwrites time.After used to wait between generations.
func WithClock(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Supervisor) error {
		if after == nil {
			return fmt.Errorf("chat.WithClock: after func is nil")
		}
		s.after = after
		return nil
	}
}

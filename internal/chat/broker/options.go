package broker

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/wtask/chatrelay/internal/chat/history"
)

// Option - customizes the Broker built by New.
type Option func(b *Broker) error

func setup(b *Broker, options ...Option) error {
	if b == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(b); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attach logger, by default the Broker logs nothing.
func WithLogger(logger logr.Logger) Option {
	return func(b *Broker) error {
		b.logger = logger
		return nil
	}
}

// WithMailboxLimit - overwrites default capacity of per-peer mailboxes.
// Zero means unbounded mailboxes: a slow peer can not block the Broker but may hold any amount of memory.
// With a limit, messages for a peer with full mailbox are dropped and logged.
func WithMailboxLimit(limit int) Option {
	return func(b *Broker) error {
		if limit < 0 {
			return fmt.Errorf("broker.WithMailboxLimit: invalid limit (%d)", limit)
		}
		b.mailboxLimit = limit
		return nil
	}
}

// WithWriteTimeout - overwrites default write timeout of connections, zero disables it.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(b *Broker) error {
		if timeout < 0 {
			return fmt.Errorf("broker.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		b.writeTimeout = timeout
		return nil
	}
}

// WithHistory - newly joined peer receives up to size latest relayed lines, zero disables history.
// History lives as long as the Broker.
func WithHistory(size int) Option {
	return func(b *Broker) error {
		if size < 0 {
			return fmt.Errorf("broker.WithHistory: invalid size (%d)", size)
		}
		if size == 0 {
			b.history = nil
			return nil
		}
		h, err := history.NewStack[string](size)
		if err != nil {
			return err
		}
		b.history = h
		return nil
	}
}

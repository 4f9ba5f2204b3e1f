package chat

import (
	"github.com/go-logr/logr"

	"github.com/wtask/chatrelay/internal/chat/broker"
)

// EventHandler - consumer of relay events, normally *broker.Broker.
// Run must return when the events channel is closed.
type EventHandler interface {
	Run(events <-chan broker.Event) error
}

// BrokerBuilder - builds a fresh event handler for every generation of the relay.
type BrokerBuilder func(logger logr.Logger) (EventHandler, error)

// DefaultBroker - returns builder of broker.Broker with given options.
func DefaultBroker(options ...broker.Option) BrokerBuilder {
	return func(logger logr.Logger) (EventHandler, error) {
		b, err := broker.New(append([]broker.Option{broker.WithLogger(logger)}, options...)...)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

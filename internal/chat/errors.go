package chat

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrPrematureClose - returns by Reader when the client disconnects before announcing its name.
	ErrPrematureClose = errors.New("chat.Reader: connection closed before name")

	// ErrInvalidName - returns by Reader when the announced name can not be used.
	ErrInvalidName = errors.New("chat.Reader: invalid name")

	// ErrBrokerGone - returns by Reader when its event can not be delivered
	// because the generation has been stopped.
	ErrBrokerGone = errors.New("chat.Reader: broker is gone")
)

// BindError - the Listener could not bind its address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("chat.Listener: can't listen %s: %v", e.Addr, e.Err)
}

// Cause - supports errors.Cause.
func (e *BindError) Cause() error { return e.Err }

// Unwrap - supports errors.Is and errors.As.
func (e *BindError) Unwrap() error { return e.Err }

// GenerationError - describes why a generation of the relay has ended.
// Either field may be nil.
type GenerationError struct {
	Generation int
	Broker     error
	Listener   error
}

func (e *GenerationError) Error() string {
	parts := []string{}
	if e.Broker != nil {
		parts = append(parts, "broker: "+e.Broker.Error())
	}
	if e.Listener != nil {
		parts = append(parts, "listener: "+e.Listener.Error())
	}
	if len(parts) == 0 {
		parts = append(parts, "stopped")
	}
	return fmt.Sprintf("chat.Supervisor: generation %d failed: %s", e.Generation, strings.Join(parts, "; "))
}

// Unwrap - returns the listener failure if any, otherwise the broker one.
// The listener failure is preferred to let errors.As find a *BindError.
func (e *GenerationError) Unwrap() error {
	if e.Listener != nil {
		return e.Listener
	}
	return e.Broker
}

// panicError - recovered panic of a generation component.
type panicError struct {
	component string
	value     interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("chat: %s panic: %v", e.component, e.value)
}

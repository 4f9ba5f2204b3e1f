package chat

import (
	"io"
	"net"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// logExit - reports how a connection task has ended.
// Closed connections and premature disconnects are usual for a chat server and go to V(1).
func logExit(l logr.Logger, err error, msg string, keysAndValues ...interface{}) {
	switch {
	case err == nil:
		l.V(1).Info(msg, keysAndValues...)
	case isDisconnect(err):
		l.V(1).Info(msg, append(keysAndValues, "reason", err.Error())...)
	default:
		l.Error(err, msg, keysAndValues...)
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, ErrPrematureClose) ||
		errors.Is(err, ErrBrokerGone)
}

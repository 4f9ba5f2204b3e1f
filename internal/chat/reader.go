package chat

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/wtask/chatrelay/internal/chat/broker"
	"github.com/wtask/chatrelay/internal/chat/message"
)

// noticeTimeout - limits writing of notices sent by Reader itself.
const noticeTimeout = 5 * time.Second

// Reader - reads lines of one client connection and turns them into broker events.
// The first line is the name of the peer, every next one is a message to broadcast.
type Reader struct {
	Conn   *broker.Conn
	Events chan<- broker.Event
	// ReadTimeout - idle period before the client is disconnected, zero disables it.
	ReadTimeout time.Duration
	// MaxLineSize - limit of line length, zero means message.MaxLineSize.
	MaxLineSize int
	Logger      logr.Logger
}

// Run - serves the connection until the client disconnects, reading fails or ctx is done.
// Cancellation of ctx closes the connection. Run releases its Conn reference on exit.
func (r *Reader) Run(ctx context.Context) error {
	defer r.Conn.Release()
	stop := context.AfterFunc(ctx, func() {
		r.Conn.Close()
	})
	defer stop()

	lines := message.NewScanner(r.Conn, r.MaxLineSize)
	if !r.scan(lines) {
		if err := lines.Err(); err != nil {
			return errors.Wrap(err, "chat.Reader: read name")
		}
		return ErrPrematureClose
	}
	name, err := message.Name(message.Clean(lines.Bytes()))
	if err != nil {
		r.notify(message.Notice("invalid name: %v", errors.Cause(err)))
		return errors.Wrap(ErrInvalidName, err.Error())
	}

	peer, leave := context.WithCancel(ctx)
	defer leave()
	join := broker.Join{
		Origin: broker.Origin{Conn: r.Conn, OriginTime: time.Now()},
		Name:   name,
		Cancel: peer.Done(),
	}
	if err := r.send(ctx, join); err != nil {
		return err
	}
	r.Logger.V(1).Info("name announced", "peer", name)

	for r.scan(lines) {
		text := message.Text(lines.Bytes())
		if text == "" {
			continue
		}
		msg := broker.Message{
			Origin: broker.Origin{Conn: r.Conn, OriginTime: time.Now()},
			From:   name,
			Text:   text,
		}
		if err := r.send(ctx, msg); err != nil {
			return err
		}
	}
	if err := lines.Err(); err != nil {
		return errors.Wrapf(err, "chat.Reader: read from %q", name)
	}
	return nil
}

func (r *Reader) scan(lines *bufio.Scanner) bool {
	if r.ReadTimeout > 0 {
		r.Conn.SetReadDeadline(time.Now().Add(r.ReadTimeout))
	}
	return lines.Scan()
}

// send - delivers event to the Broker, gives up when the generation is stopped.
func (r *Reader) send(ctx context.Context, e broker.Event) error {
	select {
	case r.Events <- e:
		return nil
	case <-ctx.Done():
		return ErrBrokerGone
	}
}

func (r *Reader) notify(line string) {
	r.Conn.SetWriteDeadline(time.Now().Add(noticeTimeout))
	if _, err := io.WriteString(r.Conn, line); err != nil {
		r.Logger.V(1).Info("notice is not delivered", "reason", err.Error())
	}
}

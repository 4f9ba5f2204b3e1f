package broker

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// Writer - delivers lines queued for one peer to its connection.
type Writer struct {
	name    string
	conn    *Conn
	cancel  <-chan struct{}
	inbox   *Mailbox
	timeout time.Duration
}

// NewWriter - builds writer of the peer name. Zero timeout disables write deadline.
func NewWriter(name string, conn *Conn, cancel <-chan struct{}, inbox *Mailbox, timeout time.Duration) *Writer {
	return &Writer{
		name:    name,
		conn:    conn,
		cancel:  cancel,
		inbox:   inbox,
		timeout: timeout,
	}
}

// Run - writes queued lines until cancel is closed, the inbox is closed and empty, or a write fails.
// On write failure the connection is closed, so the reader of the same peer stops too.
func (w *Writer) Run() error {
	for {
		select {
		case <-w.cancel:
			return nil
		case <-w.inbox.Ready():
		}
		batch, closed := w.inbox.Take()
		for _, line := range batch {
			select {
			case <-w.cancel:
				return nil
			default:
			}
			if err := w.write(line); err != nil {
				w.conn.Close()
				return err
			}
		}
		if closed {
			return nil
		}
	}
}

func (w *Writer) write(line string) error {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return errors.Wrapf(err, "broker.Writer: set deadline for %q", w.name)
		}
	}
	_, err := io.WriteString(w.conn, line)
	return errors.Wrapf(err, "broker.Writer: write to %q", w.name)
}

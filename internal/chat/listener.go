package chat

import (
	"context"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/wtask/chatrelay/internal/chat/broker"
	"github.com/wtask/chatrelay/pkg/background"
)

const (
	minAcceptPause = 5 * time.Millisecond
	maxAcceptPause = time.Second
)

// Listener - accepts TCP connections and serves every one with its own Reader.
type Listener struct {
	// Address - TCP address to listen, "host:port".
	Address string
	// ReadTimeout and MaxLineSize are passed to every Reader.
	ReadTimeout time.Duration
	MaxLineSize int
	// OnListen - if set, is called with bound address before accepting connections.
	OnListen func(addr net.Addr)
	Logger   logr.Logger

	// listen - binds the address, net.Listen if nil
	listen func(network, address string) (net.Listener, error)
}

// Run - listens Address until ctx is done. Events of all readers are sent into events.
// Run always closes events before return, after every Reader has finished,
// so the consumer of events sees the end of the generation.
// Bind failure is reported as *BindError.
func (l *Listener) Run(ctx context.Context, events chan<- broker.Event) error {
	defer close(events)

	listen := l.listen
	if listen == nil {
		listen = net.Listen
	}
	ln, err := listen("tcp", l.Address)
	if err != nil {
		return &BindError{Addr: l.Address, Err: err}
	}
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()
	l.Logger.Info("listening", "addr", ln.Addr().String())
	if l.OnListen != nil {
		l.OnListen(ln.Addr())
	}

	readers, stopReaders := background.NewScope(ctx)
	defer func() {
		ln.Close()
		stopReaders()
		l.Logger.Info("stopped")
	}()

	pause := time.Duration(0)
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			pause = nextPause(pause)
			l.Logger.Error(err, "accept failed", "pause", pause.String())
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		pause = 0

		conn := broker.NewConn(c)
		log := l.Logger.WithValues("conn", conn.String())
		log.V(1).Info("accepted")
		r := &Reader{
			Conn:        conn,
			Events:      events,
			ReadTimeout: l.ReadTimeout,
			MaxLineSize: l.MaxLineSize,
			Logger:      log,
		}
		readers.Go(func(ctx context.Context) error {
			logExit(log, r.Run(ctx), "reader finished")
			return nil
		})
	}
}

func nextPause(pause time.Duration) time.Duration {
	if pause == 0 {
		return minAcceptPause
	}
	if pause *= 2; pause > maxAcceptPause {
		return maxAcceptPause
	}
	return pause
}

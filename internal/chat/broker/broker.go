package broker

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/wtask/chatrelay/internal/chat/history"
	"github.com/wtask/chatrelay/internal/chat/message"
	"github.com/wtask/chatrelay/pkg/background"
)

// Broker - chat mediator: keeps directory of joined peers, runs their writers
// and routes messages. The directory is touched only by the goroutine executing Run,
// other goroutines talk to the Broker over channels.
type Broker struct {
	logger       logr.Logger
	mailboxLimit int
	writeTimeout time.Duration
	// history - latest relayed lines greeting newcomers, nil if disabled
	history *history.Stack[string]

	launched int32
	peers    *directory
	// finished - receives notifications from exited writers
	finished chan writerExit
	// stopped - is closed when Run returns
	stopped     chan struct{}
	writers     *background.Scope
	stopWriters func()
}

type writerExit struct {
	peer *peer
	err  error
}

// New - builds Broker with needed options.
func New(options ...Option) (*Broker, error) {
	b := &Broker{
		logger:       logr.Discard(),
		writeTimeout: 30 * time.Second,
		peers:        newDirectory(),
		finished:     make(chan writerExit),
		stopped:      make(chan struct{}),
	}

	if err := setup(b, options...); err != nil {
		return nil, err
	}

	return b, nil
}

// Run - consumes events until the channel is closed. Then it closes all mailboxes,
// waits every writer has finished and returns.
func (b *Broker) Run(events <-chan Event) error {
	if !atomic.CompareAndSwapInt32(&b.launched, 0, 1) {
		return ErrBrokerReused
	}
	defer close(b.stopped)
	b.writers, b.stopWriters = background.NewScope(context.Background())

	b.logger.Info("started")
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return b.shutdown()
			}
			b.handle(e)
		case exit := <-b.finished:
			b.purge(exit)
		}
	}
}

func (b *Broker) handle(e Event) {
	switch e := e.(type) {
	case Join:
		b.join(e)
	case Message:
		b.broadcast(e)
	case Roster:
		select {
		case e.Reply <- b.peers.names():
		default:
			b.logger.Info("roster reply is not accepted")
		}
	default:
		b.logger.Info("unknown event is ignored", "type", fmt.Sprintf("%T", e))
	}
}

func (b *Broker) join(e Join) {
	log := b.logger.WithValues("peer", e.Name, "conn", e.Conn.String())
	if _, taken := b.peers.get(e.Name); taken {
		log.Info("name is taken, join rejected")
		b.reject(e)
		return
	}

	p := &peer{
		name:   e.Name,
		conn:   e.Conn,
		inbox:  NewMailbox(b.mailboxLimit),
		joined: e.OriginTime,
	}
	b.peers.add(p)
	if b.history != nil {
		for _, line := range b.history.Tail(b.history.Len()) {
			if err := p.inbox.Put(line); err != nil {
				log.Error(err, "history line is not delivered")
			}
		}
	}
	p.conn.Acquire()
	w := NewWriter(p.name, p.conn, e.Cancel, p.inbox, b.writeTimeout)
	b.writers.Go(func(context.Context) error {
		exit := writerExit{p, w.Run()}
		select {
		case b.finished <- exit:
		case <-b.stopped:
			// nobody will purge the peer
			p.conn.Release()
		}
		return nil
	})
	log.Info("joined", "peers", b.peers.len())
}

// reject - sends notice about busy name directly to the connection and closes it.
func (b *Broker) reject(e Join) {
	conn, name, timeout := e.Conn, e.Name, b.writeTimeout
	b.writers.Go(func(context.Context) error {
		defer conn.Close()
		if timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		if _, err := io.WriteString(conn, message.Rejection(name)); err != nil {
			b.logger.V(1).Info("rejection is not delivered", "conn", conn.String(), "reason", err.Error())
		}
		return nil
	})
}

// broadcast - puts the message into mailbox of every peer except its author.
// A failure for one recipient does not affect the others.
func (b *Broker) broadcast(e Message) {
	sender, ok := b.peers.get(e.From)
	if !ok || sender.conn != e.Conn {
		b.logger.V(1).Info("message of unregistered peer is dropped", "from", e.From, "conn", e.Conn.String())
		return
	}
	line := message.Format(e.From, e.Text)
	if b.history != nil {
		b.history.Push(line)
	}
	b.peers.scan(func(p *peer) {
		if p == sender {
			return
		}
		if err := p.inbox.Put(line); err != nil {
			b.logger.Error(err, "message is not delivered", "from", e.From, "to", p.name)
		}
	})
}

// purge - forgets peer of exited writer and releases writer's resources.
func (b *Broker) purge(exit writerExit) {
	p := exit.peer
	b.peers.remove(p)
	p.inbox.Close()
	log := b.logger.WithValues("peer", p.name, "conn", p.conn.String())
	if n := p.inbox.Drain(); n > 0 {
		log.Info("undelivered messages dropped", "count", n)
	}
	if exit.err != nil {
		log.Error(exit.err, "writer failed")
	}
	p.conn.Release()
	log.Info("left", "peers", b.peers.len(), "online", time.Since(p.joined).Round(time.Millisecond).String())
}

func (b *Broker) shutdown() error {
	b.logger.Info("event channel is closed, stopping", "peers", b.peers.len())
	b.peers.scan(func(p *peer) {
		p.inbox.Close()
	})
	for b.peers.len() > 0 {
		b.purge(<-b.finished)
	}
	b.stopWriters()
	b.logger.Info("stopped")
	return nil
}

package broker

import "time"

// Event - is consumed by the Broker. Implemented by Join, Message and Roster.
type Event interface {
	event()
}

// Origin - base of events related to network connection.
type Origin struct {
	Conn       *Conn
	OriginTime time.Time
}

// Join - occurres when a client has announced its name.
type Join struct {
	Origin
	Name string
	// Cancel - is closed when the peer leaves. Nothing is ever sent over it.
	Cancel <-chan struct{}
}

// Message - occurres when a joined client has sent a line to broadcast.
type Message struct {
	Origin
	From string
	Text string
}

// Roster - asks the Broker for sorted names of currently registered peers.
// Reply must have room for one value, the Broker never blocks on it.
type Roster struct {
	Reply chan<- []string
}

func (Join) event()    {}
func (Message) event() {}
func (Roster) event()  {}

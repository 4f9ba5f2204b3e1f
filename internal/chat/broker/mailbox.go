package broker

import "sync"

// Mailbox - FIFO queue of outbound lines of one peer.
// Put never blocks: an unbounded mailbox grows while its reader is slow,
// a bounded one refuses messages when full.
type Mailbox struct {
	mu     sync.Mutex
	queue  []string
	limit  int
	closed bool
	ready  chan struct{}
}

// NewMailbox - builds mailbox holding at most limit messages, limit <= 0 means unbounded.
func NewMailbox(limit int) *Mailbox {
	if limit < 0 {
		limit = 0
	}
	return &Mailbox{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

func (m *Mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Put - appends message to the queue.
func (m *Mailbox) Put(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMailboxClosed
	}
	if m.limit > 0 && len(m.queue) >= m.limit {
		return ErrMailboxFull
	}
	m.queue = append(m.queue, message)
	m.signal()
	return nil
}

// Ready - returns channel which receives a value after Put or Close.
// The signal may be spurious, Take tells the actual state.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Take - removes and returns all queued messages, closed reports the mailbox is closed.
// Messages queued before Close are still returned.
func (m *Mailbox) Take() (batch []string, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, m.queue = m.queue, nil
	return batch, m.closed
}

// Close - refuses further messages. Repeated calls are ignored.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.signal()
}

// Drain - drops queued messages and returns their number.
func (m *Mailbox) Drain() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	m.queue = nil
	return n
}

// Len - returns number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

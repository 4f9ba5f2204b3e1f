package broker

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/chatrelay/internal/chat/message"
)

// link - both ends of in-memory connection and the cancel channel of the peer.
type link struct {
	clientConn net.Conn
	brokerConn *Conn
	lines      *bufio.Scanner
	cancel     chan struct{}
}

func connect() *link {
	c, s := net.Pipe()
	return &link{
		clientConn: c,
		brokerConn: NewConn(s),
		lines:      bufio.NewScanner(c),
		cancel:     make(chan struct{}),
	}
}

func (l *link) close() {
	l.clientConn.Close()
	l.brokerConn.Close()
}

func (l *link) join(name string) Join {
	return Join{Origin{l.brokerConn, time.Now()}, name, l.cancel}
}

func (l *link) say(from, text string) Message {
	return Message{Origin{l.brokerConn, time.Now()}, from, text}
}

// expectLine - reads next line received by the client.
func (l *link) expectLine(test *testing.T) string {
	test.Helper()
	l.clientConn.SetReadDeadline(time.Now().Add(time.Second))
	if !l.lines.Scan() {
		test.Fatalf("no line received: %v", l.lines.Err())
	}
	return l.lines.Text() + "\n"
}

// expectSilence - ensures the client receives nothing for a while.
func (l *link) expectSilence(test *testing.T) {
	test.Helper()
	l.clientConn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 64)
	n, err := l.clientConn.Read(buf)
	if err == nil {
		test.Fatalf("unexpected data received: %q", buf[:n])
	}
	if netErr, ok := err.(net.Error); !ok || !netErr.Timeout() {
		test.Fatalf("unexpected read error: %v", err)
	}
}

type harness struct {
	events chan Event
	done   chan error
}

func launch(test *testing.T, options ...Option) *harness {
	b, err := New(append([]Option{WithLogger(testr.New(test))}, options...)...)
	require.NoError(test, err)
	h := &harness{
		events: make(chan Event),
		done:   make(chan error, 1),
	}
	go func() {
		h.done <- b.Run(h.events)
	}()
	return h
}

// tryRoster - asks the broker for registered names, ok is false if the broker does not answer in time.
func (h *harness) tryRoster() (names []string, ok bool) {
	reply := make(chan []string, 1)
	select {
	case h.events <- Roster{Reply: reply}:
	case <-time.After(time.Second):
		return nil, false
	}
	select {
	case names = <-reply:
		return names, true
	case <-time.After(time.Second):
		return nil, false
	}
}

func (h *harness) roster(test *testing.T) []string {
	test.Helper()
	names, ok := h.tryRoster()
	if !ok {
		test.Fatal("no roster reply")
	}
	return names
}

// rosterBecomes - waits until the broker reports expected names.
func (h *harness) rosterBecomes(test *testing.T, expected ...string) {
	test.Helper()
	require.Eventually(test, func() bool {
		names, ok := h.tryRoster()
		return ok && assert.ObjectsAreEqual(expected, names)
	}, time.Second, 5*time.Millisecond)
}

func (h *harness) stop(test *testing.T) {
	test.Helper()
	close(h.events)
	select {
	case err := <-h.done:
		assert.NoError(test, err)
	case <-time.After(2 * time.Second):
		test.Fatal("broker did not stop")
	}
}

func Test_New(test *testing.T) {
	b, err := New(
		WithMailboxLimit(10),
		WithWriteTimeout(15*time.Second),
	)
	require.NoError(test, err)
	assert.Equal(test, 10, b.mailboxLimit)
	assert.Equal(test, 15*time.Second, b.writeTimeout)

	_, err = New(WithMailboxLimit(-1))
	assert.Error(test, err)
	_, err = New(WithWriteTimeout(-time.Second))
	assert.Error(test, err)
	_, err = New(WithHistory(-1))
	assert.Error(test, err)
}

func TestBroker_Run_reused(test *testing.T) {
	b, err := New()
	require.NoError(test, err)
	events := make(chan Event)
	close(events)
	assert.NoError(test, b.Run(events))
	assert.Equal(test, ErrBrokerReused, b.Run(events))
}

func TestBroker_fanOut(test *testing.T) {
	h := launch(test)
	defer h.stop(test)

	names := []string{"alice", "bob", "carol", "dave"}
	links := map[string]*link{}
	for _, name := range names {
		l := connect()
		defer l.close()
		links[name] = l
		h.events <- l.join(name)
	}
	assert.Equal(test, names, h.roster(test))

	for _, from := range names {
		h.events <- links[from].say(from, "hello from "+from)
		for _, to := range names {
			if to == from {
				continue
			}
			assert.Equal(test, message.Format(from, "hello from "+from), links[to].expectLine(test))
		}
		links[from].expectSilence(test)
	}
}

func TestBroker_perSenderOrder(test *testing.T) {
	h := launch(test)
	defer h.stop(test)

	alice, bob := connect(), connect()
	defer alice.close()
	defer bob.close()
	h.events <- alice.join("alice")
	h.events <- bob.join("bob")

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		h.events <- alice.say("alice", text)
	}
	for _, text := range texts {
		assert.Equal(test, "alice: "+text+"\n", bob.expectLine(test))
	}
}

func TestBroker_duplicateName(test *testing.T) {
	h := launch(test)
	defer h.stop(test)

	alice, bob, impostor := connect(), connect(), connect()
	defer alice.close()
	defer bob.close()
	defer impostor.close()

	h.events <- alice.join("alice")
	h.events <- bob.join("bob")
	h.events <- impostor.join("alice")

	assert.Equal(test, message.Rejection("alice"), impostor.expectLine(test))
	impostor.clientConn.SetReadDeadline(time.Now().Add(time.Second))
	assert.False(test, impostor.lines.Scan(), "rejected connection must be closed")

	assert.Equal(test, []string{"alice", "bob"}, h.roster(test))

	// lines of the rejected connection are not relayed on behalf of the first registrant
	h.events <- impostor.say("alice", "fake")
	h.events <- alice.say("alice", "genuine")
	assert.Equal(test, "alice: genuine\n", bob.expectLine(test))

	h.events <- bob.say("bob", "hi alice")
	assert.Equal(test, "bob: hi alice\n", alice.expectLine(test))
}

func TestBroker_leave(test *testing.T) {
	h := launch(test)
	defer h.stop(test)

	alice, bob := connect(), connect()
	defer alice.close()
	defer bob.close()
	h.events <- alice.join("alice")
	h.events <- bob.join("bob")
	require.Equal(test, []string{"alice", "bob"}, h.roster(test))

	close(bob.cancel)
	h.rosterBecomes(test, "alice")

	h.events <- alice.say("alice", "anybody?")
	bob.expectSilence(test)

	// the name is free again
	bob2 := connect()
	defer bob2.close()
	h.events <- bob2.join("bob")
	assert.Equal(test, []string{"alice", "bob"}, h.roster(test))
	h.events <- alice.say("alice", "welcome back")
	assert.Equal(test, "alice: welcome back\n", bob2.expectLine(test))
}

func TestBroker_writeFailure(test *testing.T) {
	h := launch(test)
	defer h.stop(test)

	alice, bob := connect(), connect()
	defer alice.close()
	h.events <- alice.join("alice")
	h.events <- bob.join("bob")

	bob.clientConn.Close()
	h.events <- alice.say("alice", "are you there?")

	h.rosterBecomes(test, "alice")
}

func TestBroker_shutdownFlushes(test *testing.T) {
	h := launch(test)

	alice, bob := connect(), connect()
	defer alice.close()
	defer bob.close()
	h.events <- alice.join("alice")
	h.events <- bob.join("bob")
	h.events <- alice.say("alice", "last words")

	received := make(chan string, 1)
	go func() {
		bob.clientConn.SetReadDeadline(time.Now().Add(time.Second))
		if bob.lines.Scan() {
			received <- bob.lines.Text()
		}
		close(received)
	}()
	h.stop(test)
	assert.Equal(test, "alice: last words", <-received)
}

func TestBroker_history(test *testing.T) {
	h := launch(test, WithHistory(2))
	defer h.stop(test)

	alice, bob := connect(), connect()
	defer alice.close()
	defer bob.close()
	h.events <- alice.join("alice")
	for _, text := range []string{"one", "two", "three"} {
		h.events <- alice.say("alice", text)
	}

	h.events <- bob.join("bob")
	assert.Equal(test, "alice: two\n", bob.expectLine(test))
	assert.Equal(test, "alice: three\n", bob.expectLine(test))
	h.events <- alice.say("alice", "four")
	assert.Equal(test, "alice: four\n", bob.expectLine(test))
}

// logSink - collects log lines of the Broker.
type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *logSink) logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lines = append(s.lines, args)
	}, funcr.Options{})
}

func (s *logSink) contains(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range s.lines {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

// drain - reads lines until the client receives nothing for a while.
func (l *link) drain() []string {
	lines := []string{}
	for {
		l.clientConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if !l.lines.Scan() {
			return lines
		}
		lines = append(lines, l.lines.Text()+"\n")
	}
}

func TestBroker_boundedMailbox(test *testing.T) {
	logs := &logSink{}
	h := launch(test, WithMailboxLimit(1), WithLogger(logs.logger()))
	defer h.stop(test)

	alice, stalled, healthy := connect(), connect(), connect()
	defer alice.close()
	defer stalled.close()
	defer healthy.close()
	h.events <- alice.join("alice")
	h.events <- stalled.join("bob")
	h.events <- healthy.join("carol")

	texts := []string{"1", "2", "3", "4", "5"}
	for _, text := range texts {
		h.events <- alice.say("alice", text)
		// the healthy recipient gets everything
		assert.Equal(test, "alice: "+text+"\n", healthy.expectLine(test))
	}
	assert.True(test, logs.contains(ErrMailboxFull.Error()), "dropped message is not logged")

	// the stalled recipient gets the line its writer was blocked on and at most one queued line
	received := stalled.drain()
	require.NotEmpty(test, received)
	assert.LessOrEqual(test, len(received), 2)
	assert.Equal(test, "alice: 1\n", received[0])
}

func TestBroker_historyOverflow(test *testing.T) {
	logs := &logSink{}
	h := launch(test, WithHistory(3), WithMailboxLimit(1), WithLogger(logs.logger()))
	defer h.stop(test)

	alice, bob := connect(), connect()
	defer alice.close()
	defer bob.close()
	h.events <- alice.join("alice")
	for _, text := range []string{"one", "two", "three"} {
		h.events <- alice.say("alice", text)
	}
	h.events <- bob.join("bob")
	h.roster(test)

	assert.Equal(test, []string{"alice: one\n"}, bob.drain())
	assert.True(test, logs.contains("history line is not delivered"))
}

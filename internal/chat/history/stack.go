package history

import (
	"fmt"
)

// Stack - keeps a limited number of the latest items.
// When the stack is full, every push drops the oldest item.
// Stack is not safe for concurrent use, it belongs to one goroutine.
type Stack[T any] struct {
	buf  []T
	head int
}

// NewStack - build history stack holding at most max items.
func NewStack[T any](max int) (*Stack[T], error) {
	if max <= 0 {
		return nil, fmt.Errorf("history.NewStack: max (%d) must be greater than 0", max)
	}
	return &Stack[T]{buf: make([]T, 0, max)}, nil
}

// Len - returns number of currently kept items.
func (s *Stack[T]) Len() int {
	return len(s.buf)
}

// Push - adds item to history.
func (s *Stack[T]) Push(item T) {
	if len(s.buf) < cap(s.buf) {
		s.buf = append(s.buf, item)
		return
	}
	s.buf[s.head] = item
	if s.head++; s.head == cap(s.buf) {
		s.head = 0
	}
}

// Tail - makes copy of last n items into resulting slice.
// The first item in resulting slice is the oldest one.
func (s *Stack[T]) Tail(n int) []T {
	if n < 0 {
		n *= -1
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	tail := make([]T, 0, n)
	for i := len(s.buf) - n; i < len(s.buf); i++ {
		tail = append(tail, s.buf[(s.head+i)%len(s.buf)])
	}
	return tail
}

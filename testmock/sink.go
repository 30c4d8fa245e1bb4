package testmock

import (
	"context"
	"sync"

	"github.com/luno/docstream"
)

// NewSink returns an in-memory sink recording every envelope put to it.
func NewSink(name string) *Sink {
	return &Sink{name: name}
}

// Sink is an in-memory docstream.Sink and docstream.Stopper.
type Sink struct {
	name string

	mu      sync.Mutex
	puts    []docstream.Envelope
	stopped int
	failAt  int
	err     error
}

func (s *Sink) Name() string {
	return s.name
}

// FailAt makes the nth put (1-based, counting from now) fail with err.
// All following puts fail too until FailAt is called again.
func (s *Sink) FailAt(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = len(s.puts) + n
	s.err = err
}

func (s *Sink) Put(_ context.Context, e docstream.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil && len(s.puts)+1 >= s.failAt {
		return s.err
	}

	s.puts = append(s.puts, e)
	return nil
}

func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

// Puts returns the envelopes accepted so far.
func (s *Sink) Puts() []docstream.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]docstream.Envelope(nil), s.puts...)
}

// IDs returns the payload ids accepted so far.
func (s *Sink) IDs() []string {
	var ids []string
	for _, e := range s.Puts() {
		ids = append(ids, e.Payload.ID)
	}
	return ids
}

// Stopped returns the number of times Stop was called.
func (s *Sink) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

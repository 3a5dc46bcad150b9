// Package session identifies one analysis run and numbers the events it emits.
package session

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session carries the process-wide session ID and per-kind event counters.
type Session struct {
	id       string
	tempo    uint64
	interval uint64
}

// New creates a session with a random ID.
func New() *Session {
	return NewWithID(uuid.NewString())
}

// NewWithID creates a session with a caller-chosen ID.
func NewWithID(id string) *Session {
	return &Session{id: id}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// NextTempoID returns the next tempo event ID, e.g. "<session>-bpm-1".
func (s *Session) NextTempoID() string {
	n := atomic.AddUint64(&s.tempo, 1)
	return fmt.Sprintf("%s-bpm-%d", s.id, n)
}

// NextIntervalID returns the next play interval event ID, e.g. "<session>-play-1".
func (s *Session) NextIntervalID() string {
	n := atomic.AddUint64(&s.interval, 1)
	return fmt.Sprintf("%s-play-%d", s.id, n)
}

// Package memory provides an in-process storage slot.
package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// Slot keeps the blob in memory. The zero value is an empty slot.
type Slot struct {
	mu     sync.Mutex
	data   []byte
	set    bool
	writes int
	clears int
}

// NewSlot returns a slot, optionally pre-filled.
func NewSlot(initial []byte) *Slot {
	s := &Slot{}
	if initial != nil {
		s.data = append([]byte(nil), initial...)
		s.set = true
	}
	return s
}

func (s *Slot) Read(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return nil, tasks.ErrSlotEmpty
	}
	return append([]byte(nil), s.data...), nil
}

func (s *Slot) Write(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.set = true
	s.writes++
	return nil
}

func (s *Slot) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.set = false
	s.clears++
	return nil
}

// Writes returns how many times the slot was written.
func (s *Slot) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Clears returns how many times the slot was cleared.
func (s *Slot) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

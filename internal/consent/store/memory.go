package store

import (
	"context"
	"sync"

	"parishnet/internal/consent/models"
)

// InMemory keeps consent flags in a map. Unknown individuals read as
// models.None.
type InMemory struct {
	mu    sync.RWMutex
	flags map[string]models.Flags
}

func NewInMemory() *InMemory {
	return &InMemory{flags: make(map[string]models.Flags)}
}

func (s *InMemory) Get(_ context.Context, individualKey string) (models.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[individualKey], nil
}

func (s *InMemory) GetMany(_ context.Context, individualKeys []string) (map[string]models.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Flags, len(individualKeys))
	for _, key := range individualKeys {
		out[key] = s.flags[key]
	}
	return out, nil
}

// Set overwrites the flags and returns the previous value.
func (s *InMemory) Set(_ context.Context, individualKey string, flags models.Flags) (models.Flags, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.flags[individualKey]
	if flags.IsZero() {
		delete(s.flags, individualKey)
	} else {
		s.flags[individualKey] = flags
	}
	return prev, nil
}

func (s *InMemory) Delete(_ context.Context, individualKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, individualKey)
	return nil
}

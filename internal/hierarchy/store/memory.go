// Package store implements the entity store contract for every backend:
// in-memory, PostgreSQL, SQLite and S3-compatible object storage.
//
// All backends share the same semantics: Get and Delete of an unknown key
// return sentinel.ErrNotFound, ListChildren returns a sorted key set (empty,
// never an error, for an unknown parent), and records are copied on the way in
// and out so callers never alias stored state.
package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"parishnet/internal/hierarchy/models"
	"parishnet/pkg/platform/sentinel"
)

type ref struct {
	kind models.Kind
	key  string
}

// InMemory keeps entities and the parent→children index in maps.
type InMemory struct {
	mu       sync.RWMutex
	entities map[ref]*models.Entity
	children map[ref]map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		entities: make(map[ref]*models.Entity),
		children: make(map[ref]map[string]struct{}),
	}
}

func (s *InMemory) Put(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := ref{entity.Kind, entity.Key}
	if prev, ok := s.entities[r]; ok {
		s.unindex(prev)
	}
	stored := entity.Clone()
	s.entities[r] = stored
	s.index(stored)
	return nil
}

func (s *InMemory) Get(_ context.Context, kind models.Kind, key string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[ref{kind, key}]; ok {
		return e.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) GetMany(_ context.Context, kind models.Kind, keys []string) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entity, 0, len(keys))
	for _, key := range keys {
		if e, ok := s.entities[ref{kind, key}]; ok {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) ListChildren(_ context.Context, parentKind models.Kind, parentKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.children[ref{parentKind, parentKey}]
	if len(set) == 0 {
		return []string{}, nil
	}
	return slices.Sorted(maps.Keys(set)), nil
}

func (s *InMemory) Delete(_ context.Context, kind models.Kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := ref{kind, key}
	prev, ok := s.entities[r]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.unindex(prev)
	delete(s.entities, r)
	return nil
}

func (s *InMemory) index(e *models.Entity) {
	parentKind, parentKey, ok := e.ParentRef()
	if !ok {
		return
	}
	p := ref{parentKind, parentKey}
	if s.children[p] == nil {
		s.children[p] = make(map[string]struct{})
	}
	s.children[p][e.Key] = struct{}{}
}

func (s *InMemory) unindex(e *models.Entity) {
	parentKind, parentKey, ok := e.ParentRef()
	if !ok {
		return
	}
	p := ref{parentKind, parentKey}
	delete(s.children[p], e.Key)
	if len(s.children[p]) == 0 {
		delete(s.children, p)
	}
}

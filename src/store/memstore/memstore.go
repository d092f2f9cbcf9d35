// Package memstore is an in-memory store.Store used by tests and local dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"copyinvest/src/model"
	"copyinvest/src/store"

	"github.com/google/uuid"
)

// Store keeps every table in maps guarded by one mutex. The exported error fields
// make the matching verb fail; the hooks run outside the lock.
type Store struct {
	mu      sync.Mutex
	open    map[uuid.UUID]model.OpenPosition
	closed  map[uuid.UUID]model.ClosedPosition
	metrics map[uuid.UUID]model.UserMetrics
	writes  []model.UserMetrics

	OpenErr    error
	ClosedErr  error
	MetricsErr error
	UpsertErr  error
	InsertErr  error
	DeleteErr  error

	BeforeUpsert func(ctx context.Context, m *model.UserMetrics)
	AfterUpsert  func(ctx context.Context, m *model.UserMetrics)
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		open:    make(map[uuid.UUID]model.OpenPosition),
		closed:  make(map[uuid.UUID]model.ClosedPosition),
		metrics: make(map[uuid.UUID]model.UserMetrics),
	}
}

// Seed loads rows directly, bypassing error injection.
func (s *Store) Seed(open []model.OpenPosition, closed []model.ClosedPosition, metrics []model.UserMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range open {
		s.open[p.ID] = p
	}
	for _, p := range closed {
		s.closed[p.ID] = p
	}
	for _, m := range metrics {
		s.metrics[m.UserID] = m
	}
}

// Writes returns every metrics row passed to UpsertUserMetrics, in commit order.
func (s *Store) Writes() []model.UserMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserMetrics, len(s.writes))
	copy(out, s.writes)
	return out
}

func (s *Store) OpenPositions(_ context.Context, userID uuid.UUID) ([]model.OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	out := make([]model.OpenPosition, 0)
	for _, p := range s.open {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.After(out[j].OpenTime) })
	return out, nil
}

func (s *Store) ClosedPositions(_ context.Context, userID uuid.UUID) ([]model.ClosedPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClosedErr != nil {
		return nil, s.ClosedErr
	}
	out := make([]model.ClosedPosition, 0)
	for _, p := range s.closed {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CloseTime.After(out[j].CloseTime) })
	return out, nil
}

func (s *Store) OpenPosition(_ context.Context, id uuid.UUID) (*model.OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	p, ok := s.open[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) InsertOpenPosition(_ context.Context, p *model.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.open[p.ID] = *p
	return nil
}

func (s *Store) UpdateOpenPosition(_ context.Context, p *model.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if _, ok := s.open[p.ID]; !ok {
		return store.ErrNotFound
	}
	s.open[p.ID] = *p
	return nil
}

func (s *Store) DeleteOpenPosition(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.open[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.open, id)
	return nil
}

func (s *Store) InsertClosedPosition(_ context.Context, p *model.ClosedPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.closed[p.ID] = *p
	return nil
}

func (s *Store) DeleteClosedPosition(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	p, ok := s.closed[id]
	if !ok || p.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.closed, id)
	return nil
}

func (s *Store) UserMetrics(_ context.Context, userID uuid.UUID) (*model.UserMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetricsErr != nil {
		return nil, s.MetricsErr
	}
	m, ok := s.metrics[userID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) UpsertUserMetrics(ctx context.Context, m *model.UserMetrics) error {
	if s.BeforeUpsert != nil {
		s.BeforeUpsert(ctx, m)
	}

	s.mu.Lock()
	if s.UpsertErr != nil {
		s.mu.Unlock()
		return s.UpsertErr
	}
	s.metrics[m.UserID] = *m
	s.writes = append(s.writes, *m)
	s.mu.Unlock()

	if s.AfterUpsert != nil {
		s.AfterUpsert(ctx, m)
	}
	return nil
}

// Package store owns the application state. All changes go through
// Dispatch and the pure Reduce function; the auth slice is written to a
// Persister after every change.
package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"ticketkenya/internal/logger"
	"ticketkenya/internal/models"
)

type Listener func(AppState)

type Store struct {
	mu        sync.RWMutex
	state     AppState
	persister Persister
	policy    Policy
	logger    *logger.Logger

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(opts ...Option) *Store {
	s := &Store{
		persister: NewMemoryPersister(),
		policy:    PolicyWhitelist,
		logger:    logger.Nop(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) State() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Auth() models.AuthState {
	return s.State().Auth
}

func (s *Store) Filters() models.EventFilters {
	return s.State().Filters
}

// Token satisfies api.TokenSource.
func (s *Store) Token() string {
	return s.Auth().Token
}

// Dispatch applies a and persists the auth slice when it changed. The
// in-memory state is updated even when persisting fails.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, a)
	s.state = next
	s.mu.Unlock()

	var err error
	if !reflect.DeepEqual(prev.Auth, next.Auth) {
		err = s.persistAuth(ctx, next.Auth)
	}
	if !reflect.DeepEqual(prev, next) {
		s.emit(next)
	}
	return err
}

func (s *Store) persistAuth(ctx context.Context, a models.AuthState) error {
	if a.Token == "" && a.User == nil {
		if err := s.persister.Remove(ctx, AuthKey); err != nil {
			s.logger.Error("STORE", fmt.Sprintf("Failed to remove %s: %v", AuthKey, err))
			return err
		}
		s.logger.Debug("STORE", fmt.Sprintf("Removed %s", AuthKey))
		return nil
	}
	data, err := encodeAuth(s.policy, a)
	if err != nil {
		return fmt.Errorf("encode auth: %w", err)
	}
	if err := s.persister.Save(ctx, AuthKey, data); err != nil {
		s.logger.Error("STORE", fmt.Sprintf("Failed to persist %s: %v", AuthKey, err))
		return err
	}
	return nil
}

// Rehydrate loads the persisted auth slice into memory. It does not
// validate the token; session.Manager.Restore does that.
func (s *Store) Rehydrate(ctx context.Context) error {
	data, err := s.persister.Load(ctx, AuthKey)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	auth, err := decodeAuth(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Auth = auth
	next := s.state
	s.mu.Unlock()
	s.emit(next)
	return nil
}

// Subscribe registers fn for every state change and returns its
// unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()
	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) emit(state AppState) {
	s.listenerMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

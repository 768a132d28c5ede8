package chatbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/boat-builder/chatbridge/memory"
)

// MemoryFactory builds a live Memory from persisted state, attaching the
// current configuration and completion client.
type MemoryFactory func(state memory.State) (*memory.Memory, error)

type persistRequest struct {
	ctx    context.Context
	result chan error
}

// Store owns every user's Memory and its persistence. Persist requests are
// served by a single writer that snapshots the store at write time, so a
// request never overwrites a newer state with an older one.
type Store struct {
	mu       sync.RWMutex
	memories map[string]*memory.Memory

	storage   Storage
	newMemory MemoryFactory

	requests  chan persistRequest
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
}

func NewStore(storage Storage, factory MemoryFactory) *Store {
	s := &Store{
		memories:  map[string]*memory.Memory{},
		storage:   storage,
		newMemory: factory,
		requests:  make(chan persistRequest),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    slog.Default(),
	}
	go s.writer()
	return s
}

func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Store) Get(userID string) (*memory.Memory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[userID]
	return m, ok
}

// New builds an empty Memory without registering it.
func (s *Store) New() (*memory.Memory, error) {
	return s.newMemory(memory.State{})
}

func (s *Store) GetOrCreate(userID string) (*memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.memories[userID]; ok {
		return m, nil
	}
	m, err := s.newMemory(memory.State{})
	if err != nil {
		return nil, err
	}
	s.memories[userID] = m
	return m, nil
}

func (s *Store) Put(userID string, m *memory.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[userID] = m
}

// Remove deletes the user's memory and reports whether it existed.
func (s *Store) Remove(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.memories[userID]
	delete(s.memories, userID)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories)
}

// Snapshot exports the persisted state of every user.
func (s *Store) Snapshot() map[string]memory.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]memory.State, len(s.memories))
	for userID, m := range s.memories {
		users[userID] = m.State()
	}
	return users
}

// Load replaces the store content with the persisted state. Users whose
// state cannot be restored are logged and skipped.
func (s *Store) Load(ctx context.Context) error {
	users, err := s.storage.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memories: %w", err)
	}
	memories := make(map[string]*memory.Memory, len(users))
	for userID, state := range users {
		m, err := s.newMemory(state)
		if err != nil {
			s.logger.Error("skipping corrupt memory", "userID", userID, "error", err)
			continue
		}
		memories[userID] = m
	}

	s.mu.Lock()
	s.memories = memories
	s.mu.Unlock()
	s.logger.Info("loaded memories", "users", len(memories))
	return nil
}

// Persist writes the whole store and waits for the write that includes the
// current state. Concurrent requests are coalesced into one write.
func (s *Store) Persist(ctx context.Context) error {
	req := persistRequest{ctx: ctx, result: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.quit:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			batch := []persistRequest{req}
		drain:
			for {
				select {
				case next := <-s.requests:
					batch = append(batch, next)
				default:
					break drain
				}
			}
			err := s.write(context.WithoutCancel(req.ctx))
			for _, r := range batch {
				r.result <- err
			}
		}
	}
}

func (s *Store) write(ctx context.Context) error {
	users := s.Snapshot()
	if err := s.storage.SaveAll(ctx, users); err != nil {
		s.logger.Error("failed to persist memories", "users", len(users), "error", err)
		return err
	}
	s.logger.Debug("persisted memories", "users", len(users))
	return nil
}

// Close stops the writer and closes the backend.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		err = s.storage.Close()
	})
	return err
}

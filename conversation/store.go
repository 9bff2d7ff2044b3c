// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists conversations keyed by id. Implementations must be safe for
// concurrent use; appends to one id are serialized, appends to distinct ids
// must not block each other.
type Store interface {
	// Create persists an empty conversation. Returns ErrExists if present.
	Create(ctx context.Context, id string) error

	// Load returns the conversation's turns in append order.
	// Returns ErrNotFound for unknown ids.
	Load(ctx context.Context, id string) ([]Turn, error)

	// Append adds turns to the end of the conversation as one atomic write,
	// creating the conversation if it does not exist yet.
	Append(ctx context.Context, id string, turns ...Turn) error

	// List returns all known conversation ids in ascending order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the conversation. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}

// Record is the persisted form of one conversation.
type Record struct {
	ID        string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// NewID returns a fresh time-ordered conversation id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Validate rejects ids that are empty or could escape the store directory.
func Validate(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Config selects the store backend.
type Config struct {
	// Dir is the directory for conversation files. Empty selects an
	// in-memory store.
	Dir string `yaml:"dir" json:"dir,omitempty"`
}

// Open creates a Store from configuration.
func Open(cfg Config) Store {
	if cfg.Dir == "" {
		return NewMemoryStore()
	}
	return NewFileStore(cfg.Dir)
}

// MemoryStore is a simple in-memory [Store].
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Create(_ context.Context, id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	s.records[id] = &Record{ID: id, CreatedAt: now(), Turns: []Turn{}}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]Turn, error) {
	if err := Validate(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneTurns(rec.Turns), nil
}

// LoadRecord returns a copy of the full record, including its creation time.
func (s *MemoryStore) LoadRecord(_ context.Context, id string) (*Record, error) {
	if err := Validate(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &Record{ID: rec.ID, CreatedAt: rec.CreatedAt, Turns: cloneTurns(rec.Turns)}, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, turns ...Turn) error {
	if err := Validate(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		rec = &Record{ID: id, CreatedAt: now()}
		s.records[id] = rec
	}
	rec.Turns = append(rec.Turns, stamp(turns)...)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

// stamp copies turns, filling zero timestamps.
func stamp(turns []Turn) []Turn {
	out := cloneTurns(turns)
	ts := now()
	for i := range out {
		if out[i].Timestamp.IsZero() {
			out[i].Timestamp = ts
		}
	}
	return out
}

package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
	"github.com/zhouzirui/persona-studio/backend/internal/logging"
	"github.com/zhouzirui/persona-studio/backend/internal/storage"
)

// DefaultCollectionKey is the KV key holding the persona collection.
const DefaultCollectionKey = "personas"

// Store exposes persona management to services and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Create(ctx context.Context, name string, attrs Attributes) (Persona, error)
	Replace(ctx context.Context, id, name string, attrs Attributes) (Persona, error)
	Delete(ctx context.Context, id string) error
}

// PersistentStore keeps the ordered collection in memory and rewrites the
// whole collection to a KV record on every mutation.
type PersistentStore struct {
	mu     sync.RWMutex
	items  []Persona
	kv     storage.KV
	key    string
	logger *zap.Logger
	now    func() time.Time
}

var _ Store = (*PersistentStore)(nil)

// Open loads the collection stored under key. Missing or corrupt data
// yields an empty collection; the failure is only logged.
func Open(ctx context.Context, kv storage.KV, key string, logger *zap.Logger) *PersistentStore {
	if key == "" {
		key = DefaultCollectionKey
	}
	s := &PersistentStore{
		kv:     kv,
		key:    key,
		logger: logging.Or(logger).Named("persona"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.items = s.load(ctx)
	return s
}

func (s *PersistentStore) load(ctx context.Context) []Persona {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("no stored personas, starting empty", zap.String("key", s.key))
		return nil
	}
	if err != nil {
		s.logger.Warn("failed to read personas, starting empty", zap.String("key", s.key), zap.Error(err))
		return nil
	}

	items, skipped, err := Decode(data)
	if err != nil {
		s.logger.Warn("stored personas are corrupt, starting empty", zap.String("key", s.key), zap.Error(err))
		return nil
	}
	for _, reason := range skipped {
		s.logger.Warn("dropping invalid stored persona", zap.String("key", s.key), zap.Error(reason))
	}
	s.logger.Info("loaded personas", zap.String("key", s.key), zap.Int("count", len(items)))
	return items
}

// List returns a snapshot of the collection in insertion order.
func (s *PersistentStore) List() []Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		item.Attributes = item.Attributes.Clone()
		out[i] = item
	}
	return out
}

// FindByID looks up a persona by identifier.
func (s *PersistentStore) FindByID(id string) (Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		item := s.items[i]
		item.Attributes = item.Attributes.Clone()
		return item, true
	}
	return Persona{}, false
}

// Create validates and appends a new persona, then persists the collection.
func (s *PersistentStore) Create(ctx context.Context, name string, attrs Attributes) (Persona, error) {
	if err := Validate(name, attrs); err != nil {
		return Persona{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Persona{}, fmt.Errorf("generate persona id: %w", err)
	}

	item := Persona{
		ID:            id.String(),
		Name:          strings.TrimSpace(name),
		SchemaVersion: SchemaVersion,
		CreatedAt:     s.now(),
		Attributes:    attrs.Clone(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append(make([]Persona, 0, len(s.items)+1), s.items...), item)
	if err := s.persist(ctx, next); err != nil {
		return Persona{}, err
	}
	s.items = next

	s.logger.Info("persona created", zap.String("id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// Replace swaps every field but id and createdAt.
func (s *PersistentStore) Replace(ctx context.Context, id, name string, attrs Attributes) (Persona, error) {
	if err := Validate(name, attrs); err != nil {
		return Persona{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Persona{}, apperr.NotFound("persona", id)
	}

	item := s.items[i]
	item.Name = strings.TrimSpace(name)
	item.SchemaVersion = SchemaVersion
	item.Attributes = attrs.Clone()

	next := append([]Persona(nil), s.items...)
	next[i] = item
	if err := s.persist(ctx, next); err != nil {
		return Persona{}, err
	}
	s.items = next

	s.logger.Info("persona replaced", zap.String("id", id))
	return item, nil
}

// Delete removes the persona with id. Absent ids are a no-op.
func (s *PersistentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil
	}

	next := make([]Persona, 0, len(s.items)-1)
	next = append(next, s.items[:i]...)
	next = append(next, s.items[i+1:]...)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next

	s.logger.Info("persona deleted", zap.String("id", id))
	return nil
}

// Close flushes the collection one last time.
func (s *PersistentStore) Close(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx, s.items)
}

func (s *PersistentStore) persist(ctx context.Context, items []Persona) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist personas: %w", err)
	}
	return nil
}

func (s *PersistentStore) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

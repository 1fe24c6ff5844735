package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// DefaultMemoryStoreSize is the freecache size, in bytes, used for the
// in-process session store.
const DefaultMemoryStoreSize = 10 * 1024 * 1024

var _ SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore keeps sessions in process memory. Sessions do not
// survive a restart and are not shared between instances.
type MemorySessionStore struct {
	cache *freecache.Cache
}

func NewMemorySessionStore(sizeBytes int) *MemorySessionStore {
	if sizeBytes <= 0 {
		sizeBytes = DefaultMemoryStoreSize
	}
	return &MemorySessionStore{
		cache: freecache.NewCache(sizeBytes),
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// freecache expiry has a one second resolution
	expireSeconds := int(ttl / time.Second)
	if ttl > 0 && expireSeconds == 0 {
		expireSeconds = 1
	}

	return s.cache.Set([]byte(session.ID), data, expireSeconds)
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (*Session, error) {
	data, err := s.cache.Get([]byte(id))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.cache.Del([]byte(id))
	return nil
}

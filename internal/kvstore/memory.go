package kvstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process KV for tests and local development without
// Redis. Values are kept as marshaled JSON so round-trip behavior matches
// the Redis backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	lists  map[string][]string
	sets   map[string]map[string]struct{}
}

type memoryValue struct {
	data     []byte
	expireAt time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryValue),
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) GetJSON(_ context.Context, key string, dest any) error {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()

	if !ok || (!v.expireAt.IsZero() && time.Now().After(v.expireAt)) {
		return ErrNotFound
	}
	return json.Unmarshal(v.data, dest)
}

func (s *MemoryStore) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	v := memoryValue{data: data}
	if ttl > 0 {
		v.expireAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
		delete(s.lists, key)
		delete(s.sets, key)
	}
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		if v.expireAt.IsZero() || time.Now().Before(v.expireAt) {
			return true, nil
		}
	}
	if _, ok := s.lists[key]; ok {
		return true, nil
	}
	_, ok := s.sets[key]
	return ok, nil
}

func (s *MemoryStore) LPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.lists[key] = append([]string{v}, s.lists[key]...)
	}
	return nil
}

func (s *MemoryStore) RPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], values...)
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[key]
	n := int64(len(list))

	// Redis index semantics: negative offsets count from the tail.
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}

	return slices.Clone(list[start : stop+1]), nil
}

func (s *MemoryStore) LRem(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[key]
	kept := list[:0]
	for _, v := range list {
		if v != value {
			kept = append(kept, v)
		}
	}
	s.lists[key] = kept
	return nil
}

func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

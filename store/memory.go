package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is the in-process fallback Store. A single mutex guards both tables;
// the access pattern (a handful of matchmaker operations per second) does not
// justify anything finer.
type Memory struct {
	mu   sync.Mutex
	kv   map[string]memoryEntry
	sets map[string]map[string]float64
	now  func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:   make(map[string]memoryEntry),
		sets: make(map[string]map[string]float64),
		now:  time.Now,
	}
}

func (m *Memory) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.kv[key] = entry
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.kv, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.kv, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) ZAdd(_ context.Context, key string, members ...Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]float64)
		m.sets[key] = set
	}
	for _, member := range members {
		set[member.Value] = member.Score
	}
	return nil
}

func (m *Memory) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key]
	ordered := make([]Member, 0, len(set))
	for value, score := range set {
		ordered = append(ordered, Member{Score: score, Value: value})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score < ordered[j].Score
		}
		return ordered[i].Value < ordered[j].Value
	})

	n := int64(len(ordered))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []string{}, nil
	}
	values := make([]string, 0, stop-start+1)
	for _, member := range ordered[start : stop+1] {
		values = append(values, member.Value)
	}
	return values, nil
}

func (m *Memory) ZRem(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key]
	for _, value := range values {
		delete(set, value)
	}
	return nil
}

func (m *Memory) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

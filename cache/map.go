package cache

import (
	"time"

	"github.com/frozenpine/stack4go/errors"
)

const DefaultMapSize = 128

type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
	used       bool
}

// Map fixed capacity key-value cache with optional entry ttl.
// Expired entries are treated as absent on lookup and their slots
// are reclaimed by later inserts, there is no active sweep.
type Map[K comparable, V any] struct {
	slots   []entry[K, V]
	timeout time.Duration
	copy    func(V) V
	now     func() time.Time
}

// NewMap creates map holding at most maxSize entries.
// timeout 0 means entries never expire, copyFn if not nil is applied
// to every value stored by Set.
func NewMap[K comparable, V any](maxSize int, timeout time.Duration, copyFn func(V) V) *Map[K, V] {
	if maxSize <= 0 {
		maxSize = DefaultMapSize
	}

	return &Map[K, V]{
		slots:   make([]entry[K, V], maxSize),
		timeout: timeout,
		copy:    copyFn,
		now:     time.Now,
	}
}

// SetClock replaces time source
func (m *Map[K, V]) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func (m *Map[K, V]) Cap() int {
	return len(m.slots)
}

func (m *Map[K, V]) valid(e *entry[K, V], now time.Time) bool {
	if !e.used {
		return false
	}

	return m.timeout <= 0 || now.Sub(e.insertedAt) < m.timeout
}

func (m *Map[K, V]) find(key K) *entry[K, V] {
	for idx := range m.slots {
		if e := &m.slots[idx]; e.used && e.key == key {
			return e
		}
	}

	return nil
}

// Set upserts key and refreshes its insert time.
func (m *Map[K, V]) Set(key K, value V) error {
	now := m.now()

	slot := m.find(key)

	if slot == nil {
		for idx := range m.slots {
			if e := &m.slots[idx]; !m.valid(e, now) {
				slot = e
				break
			}
		}
	}

	if slot == nil {
		return errors.Wrapf(errors.ErrCacheFull, "%d slots in use", len(m.slots))
	}

	if m.copy != nil {
		value = m.copy(value)
	}

	slot.key = key
	slot.value = value
	slot.insertedAt = now
	slot.used = true

	return nil
}

// Get returns reference to the stored value, which stays valid until
// the entry is deleted or replaced.
func (m *Map[K, V]) Get(key K) (*V, bool) {
	e := m.find(key)

	if e == nil || !m.valid(e, m.now()) {
		return nil, false
	}

	return &e.value, true
}

func (m *Map[K, V]) Delete(key K) {
	if e := m.find(key); e != nil {
		var zero entry[K, V]
		*e = zero
	}
}

// Range visits valid entries in slot order until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V, insertedAt time.Time) bool) {
	now := m.now()

	for idx := range m.slots {
		e := &m.slots[idx]

		if !m.valid(e, now) {
			continue
		}

		if !fn(e.key, e.value, e.insertedAt) {
			return
		}
	}
}

// Len valid entries count
func (m *Map[K, V]) Len() int {
	count := 0

	m.Range(func(K, V, time.Time) bool {
		count++
		return true
	})

	return count
}

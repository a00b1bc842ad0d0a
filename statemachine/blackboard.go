package statemachine

import (
	"maps"
	"slices"
	"sync"
)

// Blackboard is the shared data container passed by pointer through every
// state of an execution tree. The caller owns it; machines only borrow it.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{
		data: make(map[string]any),
	}
}

// NewBlackboardFrom creates a blackboard seeded with a copy of data.
func NewBlackboardFrom(data map[string]any) *Blackboard {
	bb := NewBlackboard()
	maps.Copy(bb.data, data)

	return bb
}

// Get retrieves a value.
func (b *Blackboard) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.data[key]

	return val, ok
}

// Set stores a value.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[key] = value
}

// Has reports whether key is present.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Get(key)

	return ok
}

// Delete removes key.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)
}

// Keys returns the keys in sorted order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Sorted(maps.Keys(b.data))
}

// Len returns the number of stored values.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}

// Snapshot returns a shallow copy of the stored values.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return maps.Clone(b.data)
}

// GetString retrieves a string value.
func (b *Blackboard) GetString(key string) (string, bool) {
	return Value[string](b, key)
}

// GetBool retrieves a boolean value.
func (b *Blackboard) GetBool(key string) (bool, bool) {
	return Value[bool](b, key)
}

// GetInt retrieves an integer value.
func (b *Blackboard) GetInt(key string) (int, bool) {
	return Value[int](b, key)
}

// Value retrieves a value of type T. The second result is false when the key
// is missing or holds a different type.
func Value[T any](b *Blackboard, key string) (T, bool) {
	var zero T

	val, ok := b.Get(key)
	if !ok {
		return zero, false
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

package intent

import (
	"fmt"
	"strconv"
)

// Extras is a read-only view over a key/value bag. Get may fail for a
// single key without affecting the others.
type Extras interface {
	Keys() []string
	Get(key string) (any, error)
}

// Lazy is a value resolved on read. A failing Lazy models an extra that
// cannot be deserialized in the reading process.
type Lazy func() (any, error)

// Bundle is an insertion-ordered key/value bag. It is not safe for
// concurrent mutation.
type Bundle struct {
	keys   []string
	values map[string]any
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{values: make(map[string]any)}
}

// Put stores value under key. Re-putting a key keeps its original position.
func (b *Bundle) Put(key string, value any) {
	if b.values == nil {
		b.values = make(map[string]any)
	}
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

// PutString stores a string value.
func (b *Bundle) PutString(key, value string) { b.Put(key, value) }

// PutInt stores an int value.
func (b *Bundle) PutInt(key string, value int) { b.Put(key, value) }

// Len returns the number of keys.
func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns the keys in insertion order.
func (b *Bundle) Keys() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Has reports whether key is present.
func (b *Bundle) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b.values[key]
	return ok
}

// Get returns the value for key, resolving Lazy values.
func (b *Bundle) Get(key string) (any, error) {
	if b == nil {
		return nil, nil
	}
	v, ok := b.values[key]
	if !ok {
		return nil, nil
	}
	if lazy, ok := v.(Lazy); ok {
		return lazy()
	}
	return v, nil
}

// GetString returns the string stored under key. ok is false when the key
// is absent, unreadable, or not a string.
func (b *Bundle) GetString(key string) (string, bool) {
	v, err := b.Get(key)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns the integer stored under key, or def. Whole-number floats
// and numeric strings are accepted since some transports lose the int type.
func (b *Bundle) GetInt(key string, def int) int {
	v, err := b.Get(key)
	if err != nil || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	case fmt.Stringer:
		if i, err := strconv.Atoi(n.String()); err == nil {
			return i
		}
	}
	return def
}

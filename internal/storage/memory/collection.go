package memory

import (
	"fmt"
	"time"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// Collection is an insertion-ordered keyed record set with named equality
// indexes and timestamp ranges. It is not safe for concurrent use; Store
// serializes access to its collections.
type Collection[T any] struct {
	key     func(*T) string
	clone   func(*T) *T
	indexes map[string]func(*T) string
	ranges  map[string]func(*T) time.Time

	items map[string]*T
	order []string
}

// NewCollection creates an empty collection keyed by key. Records are copied
// with clone on the way in and out.
func NewCollection[T any](key func(*T) string, clone func(*T) *T) *Collection[T] {
	return &Collection[T]{
		key:     key,
		clone:   clone,
		indexes: map[string]func(*T) string{},
		ranges:  map[string]func(*T) time.Time{},
		items:   map[string]*T{},
	}
}

// WithIndex registers an equality index.
func (c *Collection[T]) WithIndex(name string, field func(*T) string) *Collection[T] {
	c.indexes[name] = field
	return c
}

// WithRange registers a timestamp range.
func (c *Collection[T]) WithRange(name string, field func(*T) time.Time) *Collection[T] {
	c.ranges[name] = field
	return c
}

// Add inserts v, failing with ledger.ErrDuplicateKey when its key exists.
func (c *Collection[T]) Add(v *T) error {
	k := c.key(v)
	if _, ok := c.items[k]; ok {
		return fmt.Errorf("add %q: %w", k, ledger.ErrDuplicateKey)
	}
	c.items[k] = c.clone(v)
	c.order = append(c.order, k)
	return nil
}

// Put inserts v or replaces the record with the same key in place.
func (c *Collection[T]) Put(v *T) {
	k := c.key(v)
	if _, ok := c.items[k]; !ok {
		c.order = append(c.order, k)
	}
	c.items[k] = c.clone(v)
}

// Get returns a copy of the record with key k.
func (c *Collection[T]) Get(k string) (*T, bool) {
	v, ok := c.items[k]
	if !ok {
		return nil, false
	}
	return c.clone(v), true
}

// GetAll returns copies of all records in insertion order.
func (c *Collection[T]) GetAll() []T {
	return c.filter(func(*T) bool { return true })
}

// GetAllByIndex returns the records whose index field equals value.
func (c *Collection[T]) GetAllByIndex(index, value string) ([]T, error) {
	field, ok := c.indexes[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}
	return c.filter(func(v *T) bool { return field(v) == value }), nil
}

// GetAllByRange returns the records whose range field lies in [from, to].
func (c *Collection[T]) GetAllByRange(name string, from, to time.Time) ([]T, error) {
	field, ok := c.ranges[name]
	if !ok {
		return nil, fmt.Errorf("unknown range %q", name)
	}
	return c.filter(func(v *T) bool {
		ts := field(v)
		return !ts.Before(from) && !ts.After(to)
	}), nil
}

// Delete removes the record with key k and reports whether it existed.
func (c *Collection[T]) Delete(k string) bool {
	if _, ok := c.items[k]; !ok {
		return false
	}
	delete(c.items, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of records.
func (c *Collection[T]) Len() int { return len(c.items) }

func (c *Collection[T]) filter(keep func(*T) bool) []T {
	var out []T
	for _, k := range c.order {
		v := c.items[k]
		if keep(v) {
			out = append(out, *c.clone(v))
		}
	}
	return out
}

package data

import "fmt"

// DataContext provides fetched values by dependency key.
type DataContext interface {
	Get(key DependencyKey) (any, bool)
}

// MapDataContext is a read-only map-backed DataContext.
type MapDataContext struct {
	data map[DependencyKey]any
}

func NewMapDataContext(data map[DependencyKey]any) *MapDataContext {
	return &MapDataContext{data: data}
}

func (c *MapDataContext) Get(key DependencyKey) (any, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.data[key]
	return val, ok
}

// Len returns the number of values held.
func (c *MapDataContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.data)
}

// Lookup reads key from dc and asserts it to T. A present value of the
// wrong type is an error; absence is (zero, false, nil).
func Lookup[T any](dc DataContext, key DependencyKey) (T, bool, error) {
	var zero T
	if dc == nil {
		return zero, false, nil
	}
	raw, ok := dc.Get(key)
	if !ok || raw == nil {
		return zero, false, nil
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false, fmt.Errorf("dependency %s: unexpected type %T (want %T)", key, raw, zero)
	}
	return v, true, nil
}

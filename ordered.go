package cmpkit

// Ordered is an insertion-ordered map. Declaration order matters for field
// initialization tie-breaks and hook registration, so metadata clusters keep
// their keys in the order they were first declared.
type Ordered[V any] struct {
	keys []string
	m    map[string]V
}

// NewOrdered creates an empty ordered map.
func NewOrdered[V any]() *Ordered[V] {
	return &Ordered[V]{m: make(map[string]V)}
}

// Get returns the value stored under key.
func (o *Ordered[V]) Get(key string) (V, bool) {
	v, ok := o.m[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Ordered[V]) Has(key string) bool {
	_, ok := o.m[key]
	return ok
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (o *Ordered[V]) Set(key string, v V) {
	if _, ok := o.m[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.m[key] = v
}

// Delete removes key.
func (o *Ordered[V]) Delete(key string) {
	if _, ok := o.m[key]; !ok {
		return
	}
	delete(o.m, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in declaration order.
func (o *Ordered[V]) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Ordered[V]) Len() int {
	return len(o.keys)
}

// Each calls fn for every entry in declaration order.
func (o *Ordered[V]) Each(fn func(key string, v V)) {
	for _, k := range o.keys {
		fn(k, o.m[k])
	}
}

// Clone copies the map, passing every value through cp.
func (o *Ordered[V]) Clone(cp func(V) V) *Ordered[V] {
	out := &Ordered[V]{
		keys: make([]string, len(o.keys)),
		m:    make(map[string]V, len(o.m)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.m {
		if cp != nil {
			v = cp(v)
		}
		out.m[k] = v
	}
	return out
}

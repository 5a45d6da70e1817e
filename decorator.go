package cmpkit

import (
	"fmt"
	"reflect"
	"strings"
)

type cluster string

const (
	clusterAny    cluster = ""
	clusterProps  cluster = "props"
	clusterFields cluster = "fields"
	clusterSystem cluster = "systemFields"
)

// storeSuffix names the hidden field behind a protected field.
const storeSuffix = "Store"

// Params is the union of every decorator parameter. Which settings apply
// depends on the member a decorator is attached to. Zero values never
// override values set by an earlier decorator on the same member.
type Params struct {
	// Props, fields and system fields.
	Default   any
	Init      InitFunc
	After     []string
	Watch     []Watcher
	Merge     MergeFunc
	Unique    bool
	Atom      bool
	Protected bool

	// Props.
	Type      reflect.Kind
	Required  bool
	Validator func(any) bool

	// Methods.
	Hook        []HookSpec
	WatchParams WatchOptions

	// Accessors.
	Cache *bool
}

// Decorator is a deferred declaration on a class member.
type Decorator struct {
	cluster cluster
	params  Params
}

// Prop marks a property as an externally supplied prop.
func Prop(p Params) Decorator {
	return Decorator{cluster: clusterProps, params: p}
}

// Field marks a property as a reactive field.
func Field(p Params) Decorator {
	return Decorator{cluster: clusterFields, params: p}
}

// FieldInit marks a property as a field initialized by fn.
func FieldInit(fn InitFunc) Decorator {
	return Field(Params{Init: fn})
}

// System marks a property as a system field, excluded from change
// notification.
func System(p Params) Decorator {
	return Decorator{cluster: clusterSystem, params: p}
}

// SystemInit marks a property as a system field initialized by fn.
func SystemInit(fn InitFunc) Decorator {
	return System(Params{Init: fn})
}

// P is the universal decorator: it keeps the member in its current cluster.
func P(p Params) Decorator {
	return Decorator{params: p}
}

// Watch attaches watchers to a field, or fields to watch to a method.
func Watch(ws ...Watcher) Decorator {
	return Decorator{params: Params{Watch: ws}}
}

// HookOn attaches a method to a lifecycle phase, after the named sibling
// callbacks of that phase.
func HookOn(phase Hook, after ...string) Decorator {
	return Decorator{params: Params{Hook: []HookSpec{{Phase: phase, After: after}}}}
}

// NoCache marks an accessor as uncached.
func NoCache() Decorator {
	f := false
	return Decorator{params: Params{Cache: &f}}
}

func (m *Meta) apply(d pendingDecl) error {
	switch d.kind {
	case memberMethod:
		return m.applyMethod(d)
	case memberAccessor:
		m.applyAccessor(d)
		return nil
	default:
		return m.applyProperty(d.name, d.dec)
	}
}

func (m *Meta) applyProperty(key string, d Decorator) error {
	p := d.params
	m.Methods.Delete(key)

	target := d.cluster
	if target == clusterAny {
		target = clusterFields
		switch {
		case m.Props.Has(key):
			target = clusterProps
		case m.SystemFields.Has(key):
			target = clusterSystem
		}
	}

	storeKey := key
	guarded := false
	if a, ok := m.Computed.Get(key); ok && a.Protected {
		guarded = true
	}

	if target == clusterFields && (p.Protected || guarded) {
		storeKey = key + storeSuffix
		if !guarded {
			m.Accessors.Delete(key)
			m.Computed.Delete(key)
			if prev, ok := m.takeField(key); ok {
				m.Fields.Set(storeKey, prev)
			}
			m.Computed.Set(key, protectedAccessor(key, storeKey))
		}
	} else {
		if guarded {
			m.cancelProtected(key)
		}
		m.Accessors.Delete(key)
		m.Computed.Delete(key)
	}

	el, _ := m.takeField(storeKey)
	merged, err := mergeField(el, p)
	if err != nil {
		return err
	}
	if storeKey != key {
		merged.Protected = true
	}

	switch target {
	case clusterProps:
		m.Props.Set(storeKey, merged)
	case clusterSystem:
		m.SystemFields.Set(storeKey, merged)
	default:
		m.Fields.Set(storeKey, merged)
	}
	return nil
}

// takeField removes key from whichever cluster holds it and returns the entry.
func (m *Meta) takeField(key string) (*FieldDecl, bool) {
	for _, o := range []*Ordered[*FieldDecl]{m.Props, m.Fields, m.SystemFields} {
		if f, ok := o.Get(key); ok {
			o.Delete(key)
			return f, true
		}
	}
	return nil, false
}

// cancelProtected turns a protected field back into a plain one.
func (m *Meta) cancelProtected(key string) {
	a, ok := m.Computed.Get(key)
	if !ok || !a.Protected {
		return
	}
	m.Computed.Delete(key)
	if f, ok := m.takeField(key + storeSuffix); ok {
		f.Protected = false
		m.Fields.Set(key, f)
	}
}

// protectedAccessor exposes a protected field stored under store. Writes are
// deferred while the instance guard semaphore is held.
func protectedAccessor(key, store string) *Accessor {
	return &Accessor{
		Protected: true,
		Get: func(c *Ctx) any {
			return c.Get(store)
		},
		Set: func(c *Ctx, value any) error {
			return c.setProtected(key, store, value)
		},
	}
}

func mergeField(el *FieldDecl, p Params) (*FieldDecl, error) {
	var f *FieldDecl
	if el == nil {
		f = newFieldDecl()
	} else {
		f = el.clone()
	}

	if p.Default != nil {
		f.Default = p.Default
	}
	if p.Init != nil {
		f.Init = p.Init
	}
	if p.Merge != nil {
		f.Merge = p.Merge
	}
	if p.Validator != nil {
		f.Validator = p.Validator
	}
	if p.Type != reflect.Invalid {
		f.Type = p.Type
	}
	f.Unique = f.Unique || p.Unique
	f.Atom = f.Atom || p.Atom
	f.Protected = f.Protected || p.Protected
	f.Required = f.Required || p.Required

	for _, a := range p.After {
		if !contains(f.After, a) {
			f.After = append(f.After, a)
		}
	}

	for _, w := range p.Watch {
		if w.Handler == nil && w.Method == "" {
			return nil, fmt.Errorf("%w: watcher without a handler", ErrInvalidDecl)
		}
		f.Watchers.Set(w.key(), w)
	}
	return f, nil
}

func (m *Meta) applyMethod(d pendingDecl) error {
	key, p := d.name, d.dec.params
	m.cancelProtected(key)
	m.takeField(key)

	el, ok := m.Methods.Get(key)
	if ok {
		el = el.clone()
	} else {
		el = newMethod()
	}
	if d.fn != nil {
		el.Fn = d.fn
	}

	for _, w := range p.Watch {
		field := w.Field
		if field == "" {
			field = w.Method
		}
		if field == "" {
			return fmt.Errorf("%w: method watcher without a field", ErrInvalidDecl)
		}
		el.Watchers.Set(field, WatchOptions{
			Deep:      p.WatchParams.Deep || w.Deep,
			Immediate: p.WatchParams.Immediate || w.Immediate,
		})
	}

	for _, h := range p.Hook {
		if !h.Phase.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownHook, h.Phase)
		}
		el.Hooks.Set(string(h.Phase), HookDecl{
			Name:  key,
			After: append([]string(nil), h.After...),
		})
	}

	m.Methods.Set(key, el)
	return nil
}

func (m *Meta) applyAccessor(d pendingDecl) {
	key, p := d.name, d.dec.params
	m.cancelProtected(key)
	m.takeField(key)
	if p.Cache == nil {
		return
	}

	from, to := m.Accessors, m.Computed
	if !*p.Cache {
		from, to = m.Computed, m.Accessors
	}
	a, ok := from.Get(key)
	if ok {
		from.Delete(key)
	} else if a, ok = to.Get(key); !ok {
		a = &Accessor{}
	}
	a = a.clone()
	a.Cache = *p.Cache
	to.Set(key, a)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// lowerFirst converts an exported Go field name to a component key.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

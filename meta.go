package cmpkit

import (
	"context"
	"fmt"
	"reflect"
)

// Record is a plain data record: the initialized fields of one instance,
// the defaults read from a class prototype, or a props bag.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether key is present, even with a nil value.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Hook is the name of a lifecycle phase.
type Hook string

// Lifecycle phases in the order an instance normally passes through them.
const (
	HookBeforeRuntime    Hook = "beforeRuntime"
	HookBeforeCreate     Hook = "beforeCreate"
	HookBeforeDataCreate Hook = "beforeDataCreate"
	HookCreated          Hook = "created"
	HookBeforeMount      Hook = "beforeMount"
	HookMounted          Hook = "mounted"
	HookBeforeUpdate     Hook = "beforeUpdate"
	HookUpdated          Hook = "updated"
	HookActivated        Hook = "activated"
	HookDeactivated      Hook = "deactivated"
	HookBeforeDestroy    Hook = "beforeDestroy"
	HookDestroyed        Hook = "destroyed"
	HookErrorCaptured    Hook = "errorCaptured"
)

// Hooks lists every known lifecycle phase.
var Hooks = []Hook{
	HookBeforeRuntime,
	HookBeforeCreate,
	HookBeforeDataCreate,
	HookCreated,
	HookBeforeMount,
	HookMounted,
	HookBeforeUpdate,
	HookUpdated,
	HookActivated,
	HookDeactivated,
	HookBeforeDestroy,
	HookDestroyed,
	HookErrorCaptured,
}

// Valid reports whether h is a known lifecycle phase.
func (h Hook) Valid() bool {
	for _, k := range Hooks {
		if k == h {
			return true
		}
	}
	return false
}

// InitFunc computes the initial value of a field. data holds the sibling
// fields that are already settled; every name listed in the field's After set
// is guaranteed to be present. Returning nil falls back to the declared default.
type InitFunc func(ctx context.Context, c *Ctx, data Record) (any, error)

// MethodFunc is a component method. Hook callbacks and method watchers are
// methods too.
type MethodFunc func(ctx context.Context, c *Ctx, args ...any) (any, error)

// WatchFunc observes a change of a watched key.
type WatchFunc func(c *Ctx, value, oldValue any)

// GetterFunc reads an accessor.
type GetterFunc func(c *Ctx) any

// SetterFunc writes an accessor.
type SetterFunc func(c *Ctx, value any) error

// MergeFunc merges a field value inherited from an outer instance with a new one.
type MergeFunc func(c *Ctx, oldValue, newValue any) any

// DefaultFunc is a default-value factory. A Default of this type is invoked
// once per instance instead of being shared.
type DefaultFunc func() any

// Watcher declares a watch on a field or, when attached to a method, the field
// the method watches.
//
// Field watchers name their handler either with Handler or with Method (the
// name of a component method, resolved when the instance wires its watchers).
// Method watchers only set Field.
type Watcher struct {
	Field     string
	Method    string
	Handler   WatchFunc
	ID        string
	Deep      bool
	Immediate bool
}

// key returns the handler identity used to deduplicate registrations.
func (w Watcher) key() string {
	switch {
	case w.ID != "":
		return "id:" + w.ID
	case w.Method != "":
		return "method:" + w.Method
	case w.Handler != nil:
		return fmt.Sprintf("fn:%p", w.Handler)
	default:
		return "field:" + w.Field
	}
}

// WatchOptions are the options of a method watcher.
type WatchOptions struct {
	Deep      bool
	Immediate bool
}

// HookSpec attaches a method to a lifecycle phase, optionally after sibling
// callbacks of the same phase.
type HookSpec struct {
	Phase Hook
	After []string
}

// FieldDecl describes a prop, field or system field.
type FieldDecl struct {
	Default   any
	Init      InitFunc
	After     []string
	Watchers  *Ordered[Watcher]
	Merge     MergeFunc
	Unique    bool
	Atom      bool
	Protected bool

	// Prop-only settings.
	Type      reflect.Kind
	Required  bool
	Validator func(any) bool
}

func newFieldDecl() *FieldDecl {
	return &FieldDecl{Watchers: NewOrdered[Watcher]()}
}

func (f *FieldDecl) clone() *FieldDecl {
	cp := *f
	cp.After = append([]string(nil), f.After...)
	cp.Watchers = f.Watchers.Clone(nil)
	return &cp
}

// DefaultValue evaluates the declared default, invoking factories.
func (f *FieldDecl) DefaultValue() any {
	if fn, ok := f.Default.(DefaultFunc); ok {
		return fn()
	}
	return f.Default
}

// Accessor is a derived property backed by a getter and an optional setter.
type Accessor struct {
	Get       GetterFunc
	Set       SetterFunc
	Cache     bool
	Protected bool
}

func (a *Accessor) clone() *Accessor {
	cp := *a
	return &cp
}

// HookDecl is a method's attachment to one lifecycle phase.
type HookDecl struct {
	Name  string
	After []string
}

// Method is a declared component method with the watchers and hooks attached to it.
type Method struct {
	Fn       MethodFunc
	Watchers *Ordered[WatchOptions]
	Hooks    *Ordered[HookDecl]
}

func newMethod() *Method {
	return &Method{
		Watchers: NewOrdered[WatchOptions](),
		Hooks:    NewOrdered[HookDecl](),
	}
}

func (m *Method) clone() *Method {
	return &Method{
		Fn:       m.Fn,
		Watchers: m.Watchers.Clone(nil),
		Hooks: m.Hooks.Clone(func(h HookDecl) HookDecl {
			h.After = append([]string(nil), h.After...)
			return h
		}),
	}
}

// WatchBinding is one resolved-or-resolvable watcher of a key.
type WatchBinding struct {
	// Handler is set for function watchers.
	Handler WatchFunc
	// MethodFn is set when a decorated method watches the key.
	MethodFn MethodFunc
	// Method names a component method resolved when the instance wires its
	// watchers; an unknown name fails with ErrUnresolvedMethod.
	Method    string
	Deep      bool
	Immediate bool

	key string
}

// HookBinding is one callback registered for a lifecycle phase.
type HookBinding struct {
	// Name identifies the callback within its phase. Unnamed callbacks can
	// never be waited on by siblings.
	Name  string
	Fn    MethodFunc
	After []string
}

// ModelDecl configures two-way binding of a prop through an event.
type ModelDecl struct {
	Prop  string
	Event string
}

// ComponentParams are the component-level instantiation settings.
type ComponentParams struct {
	Functional   bool
	InheritAttrs bool
	Root         bool
	Provide      Record
	Inject       []string
	Model        *ModelDecl
	Mixins       []Record
}

func (p ComponentParams) clone() ComponentParams {
	cp := p
	if p.Provide != nil {
		cp.Provide = p.Provide.Clone()
	}
	cp.Inject = append([]string(nil), p.Inject...)
	if p.Model != nil {
		m := *p.Model
		cp.Model = &m
	}
	cp.Mixins = append([]Record(nil), p.Mixins...)
	return cp
}

// Meta is the compiled metadata record of a component class.
type Meta struct {
	Name   string
	Parent *Meta
	Params ComponentParams

	Props        *Ordered[*FieldDecl]
	Fields       *Ordered[*FieldDecl]
	SystemFields *Ordered[*FieldDecl]
	Accessors    *Ordered[*Accessor]
	Computed     *Ordered[*Accessor]
	Methods      *Ordered[*Method]

	Watchers map[string][]WatchBinding
	Hooks    map[Hook][]HookBinding
	Mods     map[string][]any
}

// NewMeta creates the metadata record of a class. With a parent, every
// mapping is copied structurally: the child sees all of the parent's entries
// and mutating the child never reaches the parent.
func NewMeta(name string, parent *Meta) *Meta {
	if parent == nil {
		m := &Meta{
			Name:         name,
			Params:       ComponentParams{InheritAttrs: true},
			Props:        NewOrdered[*FieldDecl](),
			Fields:       NewOrdered[*FieldDecl](),
			SystemFields: NewOrdered[*FieldDecl](),
			Accessors:    NewOrdered[*Accessor](),
			Computed:     NewOrdered[*Accessor](),
			Methods:      NewOrdered[*Method](),
			Watchers:     make(map[string][]WatchBinding),
			Hooks:        make(map[Hook][]HookBinding, len(Hooks)),
			Mods:         make(map[string][]any),
		}
		for _, h := range Hooks {
			m.Hooks[h] = nil
		}
		return m
	}

	fieldCopy := (*FieldDecl).clone
	accessorCopy := (*Accessor).clone

	m := &Meta{
		Name:         name,
		Parent:       parent,
		Params:       parent.Params.clone(),
		Props:        parent.Props.Clone(fieldCopy),
		Fields:       parent.Fields.Clone(fieldCopy),
		SystemFields: parent.SystemFields.Clone(fieldCopy),
		Accessors:    parent.Accessors.Clone(accessorCopy),
		Computed:     parent.Computed.Clone(accessorCopy),
		Methods:      parent.Methods.Clone((*Method).clone),
		Mods:         make(map[string][]any, len(parent.Mods)),
	}
	m.Watchers, m.Hooks = parent.cloneBindings()
	for k, v := range parent.Mods {
		m.Mods[k] = Clone(v).([]any)
	}
	return m
}

// Fork creates an instance-level view of the metadata. Declarations are
// shared, while watcher and hook lists are independent, so an instance can
// register runtime callbacks without touching its class.
func (m *Meta) Fork() *Meta {
	cp := *m
	cp.Watchers, cp.Hooks = m.cloneBindings()
	return &cp
}

func (m *Meta) cloneBindings() (map[string][]WatchBinding, map[Hook][]HookBinding) {
	watchers := make(map[string][]WatchBinding, len(m.Watchers))
	for k, v := range m.Watchers {
		watchers[k] = append([]WatchBinding(nil), v...)
	}
	hooks := make(map[Hook][]HookBinding, len(m.Hooks))
	for k, v := range m.Hooks {
		hooks[k] = append([]HookBinding(nil), v...)
	}
	for _, h := range Hooks {
		if _, ok := hooks[h]; !ok {
			hooks[h] = nil
		}
	}
	return watchers, hooks
}

// AddHook appends a callback to a phase. A named callback replaces an
// existing one of the same name, so an overriding method takes the place of
// the method it overrides.
func (m *Meta) AddHook(phase Hook, b HookBinding) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownHook, phase)
	}
	list := m.Hooks[phase]
	if b.Name != "" {
		for i := range list {
			if list[i].Name == b.Name {
				list[i] = b
				return nil
			}
		}
	}
	m.Hooks[phase] = append(list, b)
	return nil
}

// AddWatcher appends a watcher to key. A binding with the same handler
// identity replaces the previous one.
func (m *Meta) AddWatcher(key string, b WatchBinding) {
	list := m.Watchers[key]
	if b.key != "" {
		for i := range list {
			if list[i].key == b.key {
				list[i] = b
				return
			}
		}
	}
	m.Watchers[key] = append(list, b)
}

// Field returns the declaration of name from props, fields or system fields.
func (m *Meta) Field(name string) (*FieldDecl, bool) {
	for _, o := range []*Ordered[*FieldDecl]{m.Props, m.Fields, m.SystemFields} {
		if f, ok := o.Get(name); ok {
			return f, true
		}
	}
	return nil, false
}

// accessor returns the accessor or computed property name.
func (m *Meta) accessor(name string) (*Accessor, bool) {
	if a, ok := m.Accessors.Get(name); ok {
		return a, true
	}
	return m.Computed.Get(name)
}

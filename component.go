package cmpkit

import (
	"fmt"
	"sync"
)

type memberKind int

const (
	memberProperty memberKind = iota
	memberMethod
	memberAccessor
)

// member is an own method or accessor of a class, the equivalent of a
// prototype entry.
type member struct {
	kind memberKind
	name string
	fn   MethodFunc
	get  GetterFunc
	set  SetterFunc
}

// pendingDecl is a decorator application that waits for the class metadata.
type pendingDecl struct {
	member
	dec Decorator
}

// Class is a component class: a name, an optional parent class, its own
// members and the decorators applied to them.
//
// Decorators never touch metadata when applied. They are buffered and
// flushed in application order, exactly once, when the class is registered
// or first built:
//
//	var Counter = cmpkit.Define("b-counter", nil).
//	    Decorate("step", cmpkit.Prop(cmpkit.Params{Type: reflect.Int, Default: 1})).
//	    Decorate("count", cmpkit.Field(cmpkit.Params{Default: 0})).
//	    Method("increment", increment, cmpkit.HookOn(cmpkit.HookMounted))
type Class struct {
	name   string
	parent *Class

	mu       sync.Mutex
	params   *ComponentParams
	mods     map[string][]any
	render   RenderFunc
	instance func() any
	members  []member
	pending  []pendingDecl
	meta     *Meta
	err      error
	sealed   bool
	lateDecl bool
}

// Define declares a component class. parent may be nil.
func Define(name string, parent *Class) *Class {
	return &Class{
		name:   name,
		parent: parent,
		mods:   make(map[string][]any),
	}
}

// Name returns the component name.
func (cl *Class) Name() string {
	return cl.name
}

// Parent returns the parent class, or nil.
func (cl *Class) Parent() *Class {
	return cl.parent
}

// Decorate applies decorators to a data property. Without decorators the
// property is declared as a plain field.
func (cl *Class) Decorate(name string, decorators ...Decorator) *Class {
	if len(decorators) == 0 {
		decorators = []Decorator{P(Params{})}
	}
	for _, d := range decorators {
		cl.enqueue(pendingDecl{member: member{kind: memberProperty, name: name}, dec: d})
	}
	return cl
}

// Method declares an own method and applies decorators to it.
func (cl *Class) Method(name string, fn MethodFunc, decorators ...Decorator) *Class {
	m := member{kind: memberMethod, name: name, fn: fn}
	cl.addMember(m)
	for _, d := range decorators {
		cl.enqueue(pendingDecl{member: m, dec: d})
	}
	return cl
}

// Accessor declares an own accessor. Accessors are computed (cached) unless
// a decorator sets Cache to false or the name is already declared as a plain
// accessor.
func (cl *Class) Accessor(name string, get GetterFunc, set SetterFunc, decorators ...Decorator) *Class {
	m := member{kind: memberAccessor, name: name, get: get, set: set}
	cl.addMember(m)
	for _, d := range decorators {
		cl.enqueue(pendingDecl{member: m, dec: d})
	}
	return cl
}

// Mods declares component modifiers. A value wrapped in a []any marks the
// default: Mods("size", "s", []any{"m"}, "l").
func (cl *Class) Mods(name string, values ...any) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.mods[name] = values
	return cl
}

// Params sets the component-level parameters. A class that never calls Params
// inherits them from its parent class.
func (cl *Class) Params(p ComponentParams) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cp := p.clone()
	cl.params = &cp
	return cl
}

// Render sets the render function. A class without one is abstract: it
// builds and can be inherited from, but cannot be mounted.
func (cl *Class) Render(fn RenderFunc) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.render = fn
	return cl
}

// Instance sets the prototype constructor used as a fallback source of
// default values. It is invoked at most once per class. It may return a
// Record or a struct (or pointer to struct) whose fields are read by their
// `cmp` tag or lower-camel field name.
func (cl *Class) Instance(fn func() any) *Class {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.instance = fn
	return cl
}

func (cl *Class) addMember(m member) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.sealed {
		cl.lateDecl = true
		return
	}
	for i := range cl.members {
		if cl.members[i].name == m.name {
			cl.members[i] = m
			return
		}
	}
	cl.members = append(cl.members, m)
}

func (cl *Class) enqueue(d pendingDecl) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.sealed {
		cl.lateDecl = true
		return
	}
	cl.pending = append(cl.pending, d)
}

// Meta compiles and returns the class metadata. The parent class is compiled
// and built first, so the child inherits the complete parent record.
func (cl *Class) Meta() (*Meta, error) {
	if cl.parent != nil {
		if _, err := BuildBase(cl.parent); err != nil {
			return nil, fmt.Errorf("parent %s: %w", cl.parent.name, err)
		}
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.sealed {
		if cl.err == nil && cl.lateDecl {
			return cl.meta, fmt.Errorf("%w: %s was decorated after registration", ErrSealed, cl.name)
		}
		return cl.meta, cl.err
	}
	cl.sealed = true
	cl.meta, cl.err = cl.compile()
	return cl.meta, cl.err
}

// compile flushes the pending declarations into a fresh metadata record.
func (cl *Class) compile() (*Meta, error) {
	var parentMeta *Meta
	if cl.parent != nil {
		parentMeta, _ = cl.parent.Meta()
	}

	meta := NewMeta(cl.name, parentMeta)
	if cl.params != nil {
		meta.Params = cl.params.clone()
	}
	for k, v := range cl.mods {
		meta.Mods[k] = append([]any(nil), v...)
	}

	props := make(map[string]bool)
	for _, d := range cl.pending {
		if d.kind == memberProperty {
			props[d.name] = true
		}
	}
	for _, m := range cl.members {
		if props[m.name] {
			return nil, fmt.Errorf("%w: %s.%s is declared both as a property and as a method or accessor",
				ErrClusterConflict, cl.name, m.name)
		}
	}

	for _, d := range cl.pending {
		if err := meta.apply(d); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", cl.name, d.name, err)
		}
	}
	cl.pending = nil
	return meta, nil
}

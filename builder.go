package cmpkit

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pthm/cmpkit/lib/encoding"
)

// PropSpec is the engine-facing description of a prop.
type PropSpec struct {
	Type      reflect.Kind
	Required  bool
	Validator func(any) bool

	// Default is a shared default value. DefaultFn, when set, produces a
	// fresh default per instance.
	Default   any
	DefaultFn func() any

	// ClonedDefault marks a DefaultFn synthesized by the builder to clone
	// the prototype value, as opposed to a factory supplied by the author.
	ClonedDefault bool
}

// DefaultValue evaluates the prop default.
func (p *PropSpec) DefaultValue() any {
	if p.DefaultFn != nil {
		return p.DefaultFn()
	}
	return p.Default
}

// ComponentSpec is the synthesized native part of a component descriptor.
type ComponentSpec struct {
	Props     *Ordered[*PropSpec]
	Methods   map[string]MethodFunc
	Computed  map[string]*Accessor
	Accessors map[string]*Accessor
	Mods      map[string]string
	Render    RenderFunc
}

// Base is the memoized build result of a class: the default modifiers, the
// native component spec and the prototype defaults.
type Base struct {
	Mods      map[string]string
	Component *ComponentSpec
	Instance  Record
	Meta      *Meta
	Class     *Class
}

var (
	baseComponents sync.Map
	baseBuilds     singleflight.Group
)

// BuildBase builds the base component of a class. The result is cached for
// the life of the process; concurrent callers for the same class share one
// build, so the class prototype is instantiated at most once.
func BuildBase(cl *Class) (*Base, error) {
	if v, ok := baseComponents.Load(cl); ok {
		return v.(*Base), nil
	}

	v, err, _ := baseBuilds.Do(fmt.Sprintf("%p", cl), func() (any, error) {
		if v, ok := baseComponents.Load(cl); ok {
			return v, nil
		}
		b, err := buildBase(cl)
		if err != nil {
			return nil, err
		}
		baseComponents.Store(cl, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Base), nil
}

func buildBase(cl *Class) (*Base, error) {
	meta, err := cl.Meta()
	if err != nil {
		return nil, err
	}

	instance, err := cl.newInstance()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cl.name, err)
	}

	addMethodsToMeta(cl, meta)

	comp := &ComponentSpec{
		Props:     NewOrdered[*PropSpec](),
		Methods:   make(map[string]MethodFunc, meta.Methods.Len()),
		Computed:  make(map[string]*Accessor, meta.Computed.Len()),
		Accessors: make(map[string]*Accessor, meta.Accessors.Len()),
		Mods:      make(map[string]string),
	}
	cl.mu.Lock()
	comp.Render = cl.render
	cl.mu.Unlock()

	var bindErr error
	meta.Methods.Each(func(key string, m *Method) {
		if bindErr != nil {
			return
		}
		if m.Fn == nil {
			bindErr = fmt.Errorf("%w: %s.%s has no implementation", ErrInvalidDecl, cl.name, key)
			return
		}
		comp.Methods[key] = m.Fn

		m.Watchers.Each(func(field string, o WatchOptions) {
			meta.AddWatcher(field, WatchBinding{
				MethodFn:  m.Fn,
				Deep:      o.Deep,
				Immediate: o.Immediate,
				key:       "method:" + key,
			})
		})

		m.Hooks.Each(func(phase string, h HookDecl) {
			if err := meta.AddHook(Hook(phase), HookBinding{Name: h.Name, Fn: m.Fn, After: h.After}); err != nil && bindErr == nil {
				bindErr = err
			}
		})
	})
	if bindErr != nil {
		return nil, bindErr
	}
	if err := checkGraphs(meta); err != nil {
		return nil, fmt.Errorf("%s: %w", cl.name, err)
	}

	meta.Computed.Each(func(key string, a *Accessor) {
		comp.Computed[key] = a
	})
	meta.Accessors.Each(func(key string, a *Accessor) {
		comp.Accessors[key] = a
	})

	meta.Props.Each(func(key string, p *FieldDecl) {
		comp.Props.Set(key, propSpec(p, instance, key))
		bindFieldWatchers(meta, key, p)
	})
	meta.Fields.Each(func(key string, f *FieldDecl) {
		bindFieldWatchers(meta, key, f)
	})

	for key, values := range meta.Mods {
		if def, ok := modDefault(values); ok {
			comp.Mods[key] = def
		}
	}

	return &Base{
		Mods:      comp.Mods,
		Component: comp,
		Instance:  instance,
		Meta:      meta,
		Class:     cl,
	}, nil
}

// checkGraphs rejects field and hook dependencies that could never be
// satisfied at runtime.
func checkGraphs(meta *Meta) error {
	for _, fields := range []*Ordered[*FieldDecl]{meta.SystemFields, meta.Fields} {
		g, err := fieldGraph(fields, fields.Keys(), Record{})
		if err != nil {
			return err
		}
		if err := g.detectCycles(); err != nil {
			return err
		}
	}
	for _, phase := range Hooks {
		cbs := meta.Hooks[phase]
		if len(cbs) == 0 {
			continue
		}
		g, err := hookGraph(phase, cbs)
		if err != nil {
			return err
		}
		if err := g.detectCycles(); err != nil {
			return fmt.Errorf("hook %s: %w", phase, err)
		}
	}
	return nil
}

// addMethodsToMeta walks the own members of a class. Inherited members are
// already present through the parent metadata.
func addMethodsToMeta(cl *Class, meta *Meta) {
	cl.mu.Lock()
	members := append([]member(nil), cl.members...)
	cl.mu.Unlock()

	for _, mb := range members {
		switch mb.kind {
		case memberMethod:
			el := newMethod()
			if prev, ok := meta.Methods.Get(mb.name); ok {
				el = prev.clone()
			}
			el.Fn = mb.fn
			meta.Methods.Set(mb.name, el)

		case memberAccessor:
			target := meta.Computed
			if meta.Accessors.Has(mb.name) {
				target = meta.Accessors
			}

			a := &Accessor{Cache: target == meta.Computed}
			if old, ok := target.Get(mb.name); ok {
				a = old.clone()
			}
			if mb.get != nil {
				a.Get = mb.get
			}
			if mb.set != nil {
				a.Set = mb.set
			}
			target.Set(mb.name, a)

			if a.Set != nil {
				setter := a.Set
				setSyntheticMethod(meta, mb.name+"Setter", func(_ context.Context, c *Ctx, args ...any) (any, error) {
					var v any
					if len(args) > 0 {
						v = args[0]
					}
					return nil, setter(c, v)
				})
			}
			if a.Get != nil {
				getter := a.Get
				setSyntheticMethod(meta, mb.name+"Getter", func(_ context.Context, c *Ctx, _ ...any) (any, error) {
					return getter(c), nil
				})
			}
		}
	}
}

func setSyntheticMethod(meta *Meta, name string, fn MethodFunc) {
	el := newMethod()
	if prev, ok := meta.Methods.Get(name); ok {
		el = prev.clone()
	}
	el.Fn = fn
	meta.Methods.Set(name, el)
}

func propSpec(p *FieldDecl, instance Record, key string) *PropSpec {
	spec := &PropSpec{
		Type:      p.Type,
		Required:  p.Required,
		Validator: p.Validator,
	}

	switch {
	case p.Default != nil:
		if fn, ok := p.Default.(DefaultFunc); ok {
			spec.DefaultFn = fn
		} else {
			spec.Default = p.Default
		}

	case p.Type == reflect.Func:
		spec.Default = instance[key]

	default:
		if def, ok := instance[key]; ok && def != nil {
			spec.DefaultFn = func() any { return encoding.Clone(def) }
			spec.ClonedDefault = true
		}
	}
	return spec
}

func bindFieldWatchers(meta *Meta, key string, f *FieldDecl) {
	f.Watchers.Each(func(id string, w Watcher) {
		meta.AddWatcher(key, WatchBinding{
			Handler:   w.Handler,
			Method:    w.Method,
			Deep:      w.Deep,
			Immediate: w.Immediate,
			key:       id,
		})
	})
}

// modDefault returns the default of a modifier declaration: the first value
// wrapped in a []any.
func modDefault(values []any) (string, bool) {
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			if len(arr) == 0 {
				return "", false
			}
			return fmt.Sprint(arr[0]), true
		}
	}
	return "", false
}

func (cl *Class) newInstance() (Record, error) {
	rec := Record{}
	if cl.parent != nil {
		pb, err := BuildBase(cl.parent)
		if err != nil {
			return nil, err
		}
		rec = pb.Instance.Clone()
	}

	cl.mu.Lock()
	fn := cl.instance
	cl.mu.Unlock()
	if fn == nil {
		return rec, nil
	}

	own, err := readInstance(fn())
	if err != nil {
		return nil, err
	}
	for k, v := range own {
		rec[k] = v
	}
	return rec, nil
}

// readInstance reads the defaults held by a prototype value.
func readInstance(v any) (Record, error) {
	switch t := v.(type) {
	case nil:
		return Record{}, nil
	case Record:
		return t.Clone(), nil
	case map[string]any:
		return Record(t).Clone(), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Record{}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: prototype must be a struct or Record, got %T", ErrInvalidDecl, v)
	}

	rec := Record{}
	readStruct(rv, rec)
	return rec, nil
}

func readStruct(rv reflect.Value, rec Record) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("cmp"), ",")
		if tag == "-" {
			continue
		}
		fv := rv.Field(i)
		if sf.Anonymous && tag == "" {
			for fv.Kind() == reflect.Pointer && !fv.IsNil() {
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				readStruct(fv, rec)
				continue
			}
		}
		name := tag
		if name == "" {
			name = lowerFirst(sf.Name)
		}
		rec[name] = fv.Interface()
	}
}

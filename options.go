package cmpkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/go-logr/logr"
	"github.com/spf13/cast"
)

// LifecycleFunc is a lifecycle binding. It returns only errors that must
// abort instantiation; hook failures go to the instance error handler.
type LifecycleFunc func(ctx context.Context, c *Ctx, args ...any) error

// Options is the native component descriptor synthesized from a class.
type Options struct {
	Name       string
	Functional bool
	Params     ComponentParams

	Props     *Ordered[*PropSpec]
	Methods   map[string]MethodFunc
	Computed  map[string]*Accessor
	Accessors map[string]*Accessor
	Mods      map[string]string
	Render    RenderFunc

	// Meta is the class metadata; Base is the memoized build.
	Meta *Meta
	Base *Base

	// Data initializes the fields of an instance and runs beforeDataCreate.
	Data func(ctx context.Context, c *Ctx) (Record, error)

	// Hooks binds each lifecycle phase except beforeRuntime and
	// beforeDataCreate, which run inside BeforeCreate and Data.
	Hooks map[Hook]LifecycleFunc
}

// InstanceConfig configures NewInstance.
type InstanceConfig struct {
	Engine       Engine
	Parent       *Ctx
	Props        Record
	Listeners    map[string]Listener
	Slots        []Node
	Logger       logr.Logger
	ErrorHandler ErrorHandler
}

// GetComponent synthesizes the component options of a class.
func GetComponent(cl *Class) (*Options, error) {
	base, err := BuildBase(cl)
	if err != nil {
		return nil, err
	}
	meta := base.Meta
	comp := base.Component

	o := &Options{
		Name:       meta.Name,
		Functional: meta.Params.Functional,
		Params:     meta.Params,
		Props:      comp.Props,
		Methods:    comp.Methods,
		Computed:   comp.Computed,
		Accessors:  comp.Accessors,
		Mods:       comp.Mods,
		Render:     comp.Render,
		Meta:       meta,
		Base:       base,
		Hooks:      make(map[Hook]LifecycleFunc, len(Hooks)),
	}

	o.Data = func(ctx context.Context, c *Ctx) (Record, error) {
		data, err := InitFields(ctx, meta.Fields, c, base.Instance, Record{})
		if err != nil {
			return data, err
		}
		c.fail(HookBeforeDataCreate, RunHook(ctx, HookBeforeDataCreate, c.meta, c, data))
		if obs, ok := c.engine.(Observer); ok {
			obs.Observe(c, data)
		}
		return data, nil
	}

	for _, phase := range Hooks {
		switch phase {
		case HookBeforeRuntime, HookBeforeDataCreate:
			continue
		}
		o.Hooks[phase] = o.bind(phase)
	}
	o.Hooks[HookBeforeCreate] = o.beforeCreate
	o.Hooks[HookCreated] = o.created
	o.Hooks[HookDestroyed] = o.destroyed
	return o, nil
}

// FunctionalOptions synthesizes options for a functional (stateless)
// rendering of a class. Author-supplied default factories are dropped; the
// clone factories synthesized from prototype values are kept.
func FunctionalOptions(cl *Class) (*Options, error) {
	o, err := GetComponent(cl)
	if err != nil {
		return nil, err
	}

	fo := *o
	fo.Functional = true
	fo.Props = o.Props.Clone(func(p *PropSpec) *PropSpec {
		cp := *p
		if cp.DefaultFn != nil && !cp.ClonedDefault {
			cp.DefaultFn = nil
		}
		return &cp
	})
	fo.Hooks = make(map[Hook]LifecycleFunc, len(o.Hooks))
	for k, v := range o.Hooks {
		fo.Hooks[k] = v
	}
	return &fo, nil
}

// Run invokes the binding of phase, if any.
func (o *Options) Run(ctx context.Context, phase Hook, c *Ctx, args ...any) error {
	fn, ok := o.Hooks[phase]
	if !ok {
		return nil
	}
	return fn(ctx, c, args...)
}

// bind creates the generic binding of a phase: run the phase, then the
// method named after it.
func (o *Options) bind(phase Hook) LifecycleFunc {
	return func(ctx context.Context, c *Ctx, args ...any) error {
		if err := RunHook(ctx, phase, c.meta, c, args...); err != nil {
			c.fail(phase, err)
			return nil
		}
		c.fail(phase, o.override(ctx, phase, c, args...))
		return nil
	}
}

func (o *Options) override(ctx context.Context, phase Hook, c *Ctx, args ...any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrHookFailed, phase, r)
		}
	}()
	fn, ok := o.Methods[string(phase)]
	if !ok {
		return nil
	}
	if _, err := fn(ctx, c, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHookFailed, phase, err)
	}
	return nil
}

func (o *Options) beforeCreate(ctx context.Context, c *Ctx, args ...any) error {
	c.meta = o.Meta.Fork()
	c.mu.Lock()
	for k, fn := range o.Methods {
		c.methods[k] = fn
	}
	c.mu.Unlock()

	c.fail(HookBeforeRuntime, RunHook(ctx, HookBeforeRuntime, c.meta, c))

	system, err := InitFields(ctx, o.Meta.SystemFields, c, o.Base.Instance, Record{})
	c.mu.Lock()
	for k, v := range system {
		c.system[k] = v
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return o.bind(HookBeforeCreate)(ctx, c, args...)
}

func (o *Options) created(ctx context.Context, c *Ctx, args ...any) error {
	if err := o.wireWatchers(ctx, c); err != nil {
		return err
	}
	return o.bind(HookCreated)(ctx, c, args...)
}

func (o *Options) destroyed(ctx context.Context, c *Ctx, args ...any) error {
	err := o.bind(HookDestroyed)(ctx, c, args...)
	c.destroy()
	return err
}

// wireWatchers resolves the declared watchers to callables and fires the
// immediate ones.
func (o *Options) wireWatchers(ctx context.Context, c *Ctx) error {
	type immediate struct {
		key string
		fn  watchFn
	}
	var fire []immediate

	keys := make([]string, 0, len(c.meta.Watchers))
	for k := range c.meta.Watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, b := range c.meta.Watchers[key] {
			fn, err := c.resolveWatcher(key, b)
			if err != nil {
				return err
			}
			c.addWatcher(key, liveWatcher{fn: fn, deep: b.Deep})
			if b.Immediate {
				fire = append(fire, immediate{key: key, fn: fn})
			}
		}
	}

	for _, im := range fire {
		im.fn(ctx, c, c.Get(im.key), nil)
	}
	return nil
}

func (c *Ctx) resolveWatcher(key string, b WatchBinding) (watchFn, error) {
	switch {
	case b.Handler != nil:
		h := b.Handler
		return func(_ context.Context, c *Ctx, v, old any) { h(c, v, old) }, nil

	case b.MethodFn != nil:
		return c.methodWatcher(key, b.MethodFn), nil

	case b.Method != "":
		fn, ok := c.Method(b.Method)
		if !ok {
			return nil, fmt.Errorf("%w: %s watches %q with undefined method %q",
				ErrUnresolvedMethod, c.name, key, b.Method)
		}
		return c.methodWatcher(key, fn), nil

	default:
		return nil, fmt.Errorf("%w: %s watches %q without a handler", ErrInvalidDecl, c.name, key)
	}
}

func (c *Ctx) methodWatcher(key string, fn MethodFunc) watchFn {
	return func(ctx context.Context, c *Ctx, v, old any) {
		if _, err := fn(ctx, c, v, old); err != nil {
			c.log.Error(err, "watcher failed", "key", key)
		}
	}
}

// NewInstance creates an instance from options: it resolves the props, then
// runs BeforeCreate, Data and Created. Mounting is up to the engine.
func NewInstance(ctx context.Context, o *Options, cfg InstanceConfig) (*Ctx, error) {
	c := newCtx(o, cfg)

	props, attrs, err := o.resolveProps(cfg.Props)
	if err != nil {
		return nil, err
	}
	c.props, c.attrs = props, attrs

	if err := o.Run(ctx, HookBeforeCreate, c); err != nil {
		c.destroy()
		return nil, err
	}

	data, err := o.Data(ctx, c)
	c.mu.Lock()
	for k, v := range data {
		c.data[k] = v
	}
	c.mu.Unlock()
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("%s: %w", o.Name, err)
	}

	if err := o.Run(ctx, HookCreated, c); err != nil {
		c.destroy()
		return nil, err
	}
	return c, nil
}

// resolveProps splits raw into declared props and leftover attributes,
// applies defaults and validates every prop.
func (o *Options) resolveProps(raw Record) (Record, Record, error) {
	props := Record{}
	attrs := Record{}
	for k, v := range raw {
		if o.Props.Has(k) {
			props[k] = v
		} else {
			attrs[k] = v
		}
	}

	var err error
	o.Props.Each(func(key string, p *PropSpec) {
		if err != nil {
			return
		}
		v, ok := props[key]
		if !ok || v == nil {
			if p.Required && !ok {
				err = fmt.Errorf("%w: %s.%s is required", ErrInvalidProp, o.Name, key)
				return
			}
			props[key] = p.DefaultValue()
			return
		}
		if v, err = coerceProp(v, p.Type); err != nil {
			err = fmt.Errorf("%w: %s.%s: %w", ErrInvalidProp, o.Name, key, err)
			return
		}
		if p.Validator != nil && !p.Validator(v) {
			err = fmt.Errorf("%w: %s.%s failed validation", ErrInvalidProp, o.Name, key)
			return
		}
		props[key] = v
	})
	if err != nil {
		return nil, nil, err
	}

	if !o.Params.InheritAttrs {
		attrs = Record{}
	}
	return props, attrs, nil
}

// coerceProp checks v against kind. Strings are parsed into numeric and
// boolean props and numeric values convert between numeric kinds; any other
// mismatch is an error.
func coerceProp(v any, kind reflect.Kind) (any, error) {
	if kind == reflect.Invalid || kind == reflect.Interface {
		return v, nil
	}
	from := reflect.ValueOf(v).Kind()
	if from == kind {
		return v, nil
	}

	to, ok := propCasts[kind]
	if !ok || (from != reflect.String && (kind == reflect.Bool || !isNumeric(from))) {
		return nil, fmt.Errorf("want %s, got %T", kind, v)
	}
	return to(v)
}

var propCasts = map[reflect.Kind]func(any) (any, error){
	reflect.Bool:    castTo(cast.ToBoolE),
	reflect.Int:     castTo(cast.ToIntE),
	reflect.Int8:    castTo(cast.ToInt8E),
	reflect.Int16:   castTo(cast.ToInt16E),
	reflect.Int32:   castTo(cast.ToInt32E),
	reflect.Int64:   castTo(cast.ToInt64E),
	reflect.Uint:    castTo(cast.ToUintE),
	reflect.Uint8:   castTo(cast.ToUint8E),
	reflect.Uint16:  castTo(cast.ToUint16E),
	reflect.Uint32:  castTo(cast.ToUint32E),
	reflect.Uint64:  castTo(cast.ToUint64E),
	reflect.Float32: castTo(cast.ToFloat32E),
	reflect.Float64: castTo(cast.ToFloat64E),
}

func castTo[T any](fn func(any) (T, error)) func(any) (any, error) {
	return func(v any) (any, error) {
		out, err := fn(v)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

package cmpkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

// ErrorHandler receives failures caught at a lifecycle binding.
type ErrorHandler func(c *Ctx, phase Hook, err error)

type watchFn func(ctx context.Context, c *Ctx, value, oldValue any)

type liveWatcher struct {
	fn   watchFn
	deep bool
}

type deferredWrite struct {
	store string
	value any
}

// Ctx is a component instance. It holds props, fields and system fields,
// resolves accessors and methods, and dispatches watchers. It is safe for
// concurrent use; watchers and subscribers run outside its lock.
type Ctx struct {
	uid    uint64
	name   string
	opts   *Options
	engine Engine
	parent *Ctx
	log    logr.Logger
	report ErrorHandler

	// meta is the instance fork of the class metadata. It is set once
	// before the instance is shared.
	meta *Meta

	mu        sync.RWMutex
	hook      Hook
	props     Record
	attrs     Record
	data      Record
	system    Record
	computed  map[string]any
	gen       uint64
	methods   map[string]MethodFunc
	watchers  map[string][]liveWatcher
	listeners map[string][]Listener
	mods      map[string]string
	refs      map[string]any
	children  map[string]*Ctx
	slots     []Node
	subs      map[int]func(key string)
	nextSub   int

	semaphore map[string]struct{}
	deferred  map[string]deferredWrite
	order     []string
	destroyed bool
}

var (
	uidMu   sync.Mutex
	nextUID uint64
)

func newCtx(opts *Options, cfg InstanceConfig) *Ctx {
	uidMu.Lock()
	nextUID++
	uid := nextUID
	uidMu.Unlock()

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	c := &Ctx{
		uid:       uid,
		name:      opts.Name,
		opts:      opts,
		engine:    cfg.Engine,
		parent:    cfg.Parent,
		log:       log.WithName(opts.Name).WithValues("uid", uid),
		report:    cfg.ErrorHandler,
		meta:      opts.Meta,
		props:     Record{},
		attrs:     Record{},
		data:      Record{},
		system:    Record{},
		computed:  make(map[string]any),
		methods:   make(map[string]MethodFunc, len(opts.Methods)),
		watchers:  make(map[string][]liveWatcher),
		listeners: make(map[string][]Listener),
		mods:      make(map[string]string, len(opts.Mods)),
		refs:      make(map[string]any),
		children:  make(map[string]*Ctx),
		subs:      make(map[int]func(string)),
		semaphore: make(map[string]struct{}),
		deferred:  make(map[string]deferredWrite),
	}
	if c.report == nil {
		c.report = func(c *Ctx, phase Hook, err error) {
			c.log.Error(err, "lifecycle hook failed", "hook", phase)
		}
	}
	for k, v := range opts.Mods {
		c.mods[k] = v
	}
	c.slots = append(c.slots, cfg.Slots...)
	for name, l := range cfg.Listeners {
		c.listeners[name] = append(c.listeners[name], l)
	}
	return c
}

// Name returns the component name.
func (c *Ctx) Name() string { return c.name }

// UID returns the process-unique instance id.
func (c *Ctx) UID() uint64 { return c.uid }

// Meta returns the instance metadata.
func (c *Ctx) Meta() *Meta { return c.meta }

// Options returns the component options the instance was created from.
func (c *Ctx) Options() *Options { return c.opts }

// Parent returns the parent instance, or nil for a root.
func (c *Ctx) Parent() *Ctx { return c.parent }

// Engine returns the engine that created the instance.
func (c *Ctx) Engine() Engine { return c.engine }

// Logger returns the instance logger.
func (c *Ctx) Logger() logr.Logger { return c.log }

// Hook returns the lifecycle phase the instance is in.
func (c *Ctx) Hook() Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hook
}

func (c *Ctx) setHook(h Hook) {
	c.mu.Lock()
	c.hook = h
	c.mu.Unlock()
}

// Get returns the value of key: an accessor, a prop, a field or a system
// field, in that order. Unknown keys return nil.
func (c *Ctx) Get(key string) any {
	v, _ := c.Lookup(key)
	return v
}

// Lookup is Get reporting whether key exists.
func (c *Ctx) Lookup(key string) (any, bool) {
	c.mu.RLock()
	a, isAccessor := c.meta.accessor(key)
	if !isAccessor {
		v, ok := c.peekLocked(key)
		c.mu.RUnlock()
		return v, ok
	}
	if a.Cache {
		if v, ok := c.computed[key]; ok {
			c.mu.RUnlock()
			return v, true
		}
	}
	gen := c.gen
	c.mu.RUnlock()

	if a.Get == nil {
		return nil, true
	}
	v := a.Get(c)
	if a.Cache {
		c.mu.Lock()
		if c.gen == gen {
			c.computed[key] = v
		}
		c.mu.Unlock()
	}
	return v, true
}

// peek reads stored state only, skipping accessors.
func (c *Ctx) peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peekLocked(key)
}

func (c *Ctx) peekLocked(key string) (any, bool) {
	if v, ok := c.props[key]; ok {
		return v, true
	}
	if v, ok := c.data[key]; ok {
		return v, true
	}
	v, ok := c.system[key]
	return v, ok
}

// Set writes key. Accessors go through their setter, fields notify their
// watchers when the value changes, system fields are written silently.
// Props are read-only.
func (c *Ctx) Set(key string, value any) error {
	return c.set(key, value, "")
}

// set writes key. A non-empty guard names the protected field the write
// belongs to; the write is deferred while the guard semaphore is held.
func (c *Ctx) set(key string, value any, guard string) error {
	c.mu.RLock()
	destroyed := c.destroyed
	a, isAccessor := c.meta.accessor(key)
	_, isProp := c.props[key]
	_, isField := c.meta.Fields.Get(key)
	_, isData := c.data[key]
	_, isSystem := c.system[key]
	_, isSystemDecl := c.meta.SystemFields.Get(key)
	c.mu.RUnlock()

	switch {
	case destroyed:
		return fmt.Errorf("%w: %s.%s", ErrDestroyed, c.name, key)
	case isAccessor:
		if a.Set == nil {
			return fmt.Errorf("%w: %s.%s has no setter", ErrReadOnly, c.name, key)
		}
		return a.Set(c, value)
	case isProp:
		return fmt.Errorf("%w: %s.%s is a prop", ErrReadOnly, c.name, key)
	case isField || isData:
		return c.writeField(key, value, guard)
	case isSystem || isSystemDecl:
		c.mu.Lock()
		c.system[key] = value
		c.gen++
		clear(c.computed)
		c.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: %s.%s", ErrNotFound, c.name, key)
	}
}

func (c *Ctx) writeField(key string, value any, guard string) error {
	watched := c.watchedAccessors()
	before := make(map[string]any, len(watched))
	for _, k := range watched {
		before[k] = c.Get(k)
	}

	c.mu.Lock()
	if guard != "" && len(c.semaphore) > 0 {
		if _, ok := c.deferred[guard]; !ok {
			c.order = append(c.order, guard)
		}
		c.deferred[guard] = deferredWrite{store: key, value: value}
		c.mu.Unlock()
		c.log.V(1).Info("deferred protected write", "field", guard)
		return nil
	}
	old := c.data[key]
	c.data[key] = value
	c.gen++
	clear(c.computed)
	c.mu.Unlock()

	if reflect.DeepEqual(old, value) {
		return nil
	}
	c.notify(key, value, old, false)
	for _, k := range watched {
		if nv := c.Get(k); !reflect.DeepEqual(before[k], nv) {
			c.notify(k, nv, before[k], false)
		}
	}
	return nil
}

// Touch signals an in-place mutation of a field value. Only deep watchers
// fire.
func (c *Ctx) Touch(key string) {
	v := c.Get(key)
	c.mu.Lock()
	c.gen++
	clear(c.computed)
	c.mu.Unlock()
	c.notify(key, v, v, true)
}

// UpdateProps replaces props supplied by a parent and notifies the watchers
// of the ones that changed.
func (c *Ctx) UpdateProps(props Record) error {
	next, attrs, err := c.opts.resolveProps(props)
	if err != nil {
		return err
	}

	c.mu.Lock()
	prev := c.props
	c.props = next
	c.attrs = attrs
	c.gen++
	clear(c.computed)
	c.mu.Unlock()

	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reflect.DeepEqual(prev[k], next[k]) {
			c.notify(k, next[k], prev[k], false)
		}
	}
	return nil
}

func (c *Ctx) watchedAccessors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for k := range c.watchers {
		if _, ok := c.meta.accessor(k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// notify runs the watchers of key and the change subscribers.
func (c *Ctx) notify(key string, value, old any, deepOnly bool) {
	c.mu.RLock()
	ws := append([]liveWatcher(nil), c.watchers[key]...)
	subs := make([]func(string), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.RUnlock()

	for _, w := range ws {
		if deepOnly && !w.deep {
			continue
		}
		w.fn(context.Background(), c, value, old)
	}
	for _, fn := range subs {
		fn(key)
	}
}

// Watch registers a runtime watcher on key.
func (c *Ctx) Watch(key string, fn WatchFunc, opts WatchOptions) {
	c.addWatcher(key, liveWatcher{
		fn:   func(_ context.Context, c *Ctx, v, old any) { fn(c, v, old) },
		deep: opts.Deep,
	})
	if opts.Immediate {
		fn(c, c.Get(key), nil)
	}
}

func (c *Ctx) addWatcher(key string, w liveWatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers[key] = append(c.watchers[key], w)
}

// Subscribe registers fn to be called with the key of every change. The
// returned function cancels the subscription.
func (c *Ctx) Subscribe(fn func(key string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Call invokes the method name.
func (c *Ctx) Call(ctx context.Context, name string, args ...any) (any, error) {
	c.mu.RLock()
	fn, ok := c.methods[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnresolvedMethod, c.name, name)
	}
	return fn(ctx, c, args...)
}

// Method returns the method name.
func (c *Ctx) Method(name string) (MethodFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.methods[name]
	return fn, ok
}

// OnHook registers a runtime callback for phase on this instance only.
func (c *Ctx) OnHook(phase Hook, name string, fn MethodFunc, after ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.AddHook(phase, HookBinding{Name: name, Fn: fn, After: after})
}

func (c *Ctx) hookBindings(phase Hook) []HookBinding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]HookBinding(nil), c.meta.Hooks[phase]...)
}

// On registers an event listener.
func (c *Ctx) On(event string, l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[event] = append(c.listeners[event], l)
}

// Emit calls the listeners of event.
func (c *Ctx) Emit(event string, args ...any) {
	c.mu.RLock()
	ls := append([]Listener(nil), c.listeners[event]...)
	c.mu.RUnlock()
	c.log.V(1).Info("emit", "event", event)
	for _, l := range ls {
		l(args...)
	}
}

// Mod returns the value of a modifier.
func (c *Ctx) Mod(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.mods[name]
	return v, ok
}

// Mods returns a copy of the modifiers.
func (c *Ctx) Mods() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.mods))
	for k, v := range c.mods {
		out[k] = v
	}
	return out
}

// SetMod sets a modifier. Values are stringified.
func (c *Ctx) SetMod(name string, value any) {
	v := fmt.Sprint(value)
	c.mu.Lock()
	prev, ok := c.mods[name]
	c.mods[name] = v
	c.mu.Unlock()
	if !ok || prev != v {
		c.notify("mods."+name, v, prev, false)
	}
}

// RemoveMod removes a modifier.
func (c *Ctx) RemoveMod(name string) {
	c.mu.Lock()
	prev, ok := c.mods[name]
	delete(c.mods, name)
	c.mu.Unlock()
	if ok {
		c.notify("mods."+name, nil, prev, false)
	}
}

// Inject returns the value provided for key by the nearest ancestor.
func (c *Ctx) Inject(key string) (any, bool) {
	for p := c.parent; p != nil; p = p.parent {
		if v, ok := p.opts.Params.Provide[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Ref returns a child instance or element registered under name.
func (c *Ctx) Ref(name string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refs[name]
}

// SetRef registers a child under name.
func (c *Ctx) SetRef(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[name] = v
}

// Child returns the child instance registered under key by an engine.
func (c *Ctx) Child(key string) (*Ctx, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.children[key]
	return ch, ok
}

// AdoptChild registers a child instance under key.
func (c *Ctx) AdoptChild(key string, ch *Ctx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[key] = ch
}

// Children returns the child instances sorted by key.
func (c *Ctx) Children() []*Ctx {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.children))
	for k := range c.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Ctx, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.children[k])
	}
	return out
}

// Slots returns the child nodes passed to the instance by its parent.
func (c *Ctx) Slots() []Node {
	return c.slots
}

// Props returns a copy of the resolved props.
func (c *Ctx) Props() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.props.Clone()
}

// Attrs returns the attributes that did not match a declared prop.
func (c *Ctx) Attrs() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs.Clone()
}

// Data returns a copy of the fields.
func (c *Ctx) Data() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// System returns a copy of the system fields.
func (c *Ctx) System() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system.Clone()
}

// Destroyed reports whether the instance was destroyed.
func (c *Ctx) Destroyed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destroyed
}

// fail forwards a lifecycle failure to the error handler.
func (c *Ctx) fail(phase Hook, err error) {
	if err != nil {
		c.report(c, phase, err)
	}
}

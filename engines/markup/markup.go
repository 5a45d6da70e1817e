// Package markup is the templ-backed engine. Elements are templ components,
// so render functions can mix created elements with any templ.Component.
//
// Unlike the headless engine it supports functional components, reactive
// re-rendering of mounted views, kept-alive activation and optional signed
// state snapshots for client hydration.
package markup

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"github.com/go-logr/logr"

	"github.com/pthm/cmpkit"
	"github.com/pthm/cmpkit/internal/html"
)

// Engine is the templ-backed engine.
type Engine struct {
	mu         sync.RWMutex
	factories  map[string]cmpkit.Factory
	options    map[string]*cmpkit.Options
	directives map[string]*cmpkit.Directive
	filters    map[string]cmpkit.FilterFunc
	mounted    map[uint64]bool
	log        logr.Logger
	onError    cmpkit.ErrorHandler

	encoder   *cmpkit.Encoder
	sensitive bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logr.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithErrorHandler sets the handler of lifecycle failures.
func WithErrorHandler(h cmpkit.ErrorHandler) Option {
	return func(e *Engine) {
		e.onError = h
	}
}

// WithStateEncoder enables state snapshots. Root components write their
// fields after their markup, signed or, when sensitive, encrypted.
func WithStateEncoder(enc *cmpkit.Encoder, sensitive bool) Option {
	return func(e *Engine) {
		e.encoder = enc
		e.sensitive = sensitive
	}
}

// New creates a markup engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		factories:  make(map[string]cmpkit.Factory),
		options:    make(map[string]*cmpkit.Options),
		directives: make(map[string]*cmpkit.Directive),
		filters:    make(map[string]cmpkit.FilterFunc),
		mounted:    make(map[uint64]bool),
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithName("markup")
	return e
}

// Supports reports engine features.
func (e *Engine) Supports(f cmpkit.Feature) bool {
	switch f {
	case cmpkit.FeatureFunctional, cmpkit.FeatureReactive, cmpkit.FeatureKeepAlive:
		return true
	}
	return false
}

// Component registers a component factory.
func (e *Engine) Component(id string, factory cmpkit.Factory) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.factories[id]; exists {
		return fmt.Errorf("component %q already registered", id)
	}
	e.factories[id] = factory
	return nil
}

// Directive registers def under id, or returns the registered directive when
// def is nil. Directive hooks receive the *cmpkit.VNodeData of the element
// and may change it before it is written.
func (e *Engine) Directive(id string, def any) (*cmpkit.Directive, error) {
	if def == nil {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return e.directives[id], nil
	}
	d, err := cmpkit.NormalizeDirective(def)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.directives[id] = d
	return d, nil
}

// Filter registers fn under id, or returns the registered filter when fn is
// nil. Unknown filters are the identity.
func (e *Engine) Filter(id string, fn cmpkit.FilterFunc) cmpkit.FilterFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn != nil {
		e.filters[id] = fn
		return fn
	}
	return cmpkit.NormalizeFilter(e.filters[id])
}

// Observe subscribes the engine to the changes of an instance.
func (e *Engine) Observe(c *cmpkit.Ctx, _ cmpkit.Record) {
	c.Subscribe(func(key string) {
		e.log.V(1).Info("change", "component", c.Name(), "uid", c.UID(), "key", key)
	})
}

var (
	_ cmpkit.Engine            = (*Engine)(nil)
	_ cmpkit.DirectiveRegistry = (*Engine)(nil)
	_ cmpkit.FilterRegistry    = (*Engine)(nil)
	_ cmpkit.Observer          = (*Engine)(nil)
	_ cmpkit.FeatureSupporter  = (*Engine)(nil)
)

func (e *Engine) resolve(ctx context.Context, id string) (*cmpkit.Options, error) {
	e.mu.RLock()
	o, ok := e.options[id]
	factory, registered := e.factories[id]
	e.mu.RUnlock()
	if ok {
		return o, nil
	}
	if !registered {
		return nil, fmt.Errorf("%w: %s", cmpkit.ErrNotFound, id)
	}

	o, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.options[id] = o
	e.mu.Unlock()
	return o, nil
}

func (e *Engine) isComponent(tag string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.factories[tag]
	return ok
}

func (e *Engine) isMounted(c *cmpkit.Ctx) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mounted[c.UID()]
}

func (e *Engine) setMounted(c *cmpkit.Ctx, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.mounted[c.UID()] = true
	} else {
		delete(e.mounted, c.UID())
	}
}

// CreateElement creates an element node. A tag naming a registered component
// creates a component node.
func (e *Engine) CreateElement(tag string, data *cmpkit.VNodeData, children ...cmpkit.Node) cmpkit.Node {
	if data == nil {
		data = &cmpkit.VNodeData{}
	}
	if e.isComponent(tag) {
		return e.componentNode(tag, data, children)
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e.runDirectives(ctx, data)

		if err := html.OpenTag(w, tag, html.Attributes(data.Attrs, data.Class, data.Style)); err != nil {
			return err
		}
		if html.IsVoid(tag) {
			return nil
		}
		set, err := html.Content(w, data.DomProps)
		if err != nil {
			return err
		}
		if !set {
			for _, ch := range children {
				if ch == nil {
					continue
				}
				if err := ch.Render(ctx, w); err != nil {
					return err
				}
			}
		}
		if err := html.CloseTag(w, tag); err != nil {
			return err
		}
		if c := cmpkit.FromContext(ctx); c != nil && data.Ref != "" {
			c.SetRef(data.Ref, data)
		}
		return nil
	})
}

// runDirectives calls bind on the first render of the owning instance and
// update on later ones.
func (e *Engine) runDirectives(ctx context.Context, data *cmpkit.VNodeData) {
	if len(data.Directives) == 0 {
		return
	}
	owner := cmpkit.FromContext(ctx)
	update := owner != nil && e.isMounted(owner)
	for _, b := range data.Directives {
		d, _ := e.Directive(b.Name, nil)
		if d == nil {
			e.log.V(1).Info("unknown directive", "directive", b.Name)
			continue
		}
		fn := d.Bind
		if update {
			fn = d.Update
		}
		if fn != nil {
			fn(data, b)
		}
	}
}

type slotCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

type counterKey struct{}

func (s *slotCounter) next(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counts[tag]
	s.counts[tag] = n + 1
	return n
}

func withCounter(ctx context.Context) context.Context {
	return context.WithValue(ctx, counterKey{}, &slotCounter{counts: make(map[string]int)})
}

func childKey(ctx context.Context, tag string, data *cmpkit.VNodeData) string {
	switch {
	case data.Key != "":
		return data.Key
	case data.Ref != "":
		return data.Ref
	}
	n := 0
	if s, ok := ctx.Value(counterKey{}).(*slotCounter); ok {
		n = s.next(tag)
	}
	return tag + "#" + strconv.Itoa(n)
}

func (e *Engine) componentNode(tag string, data *cmpkit.VNodeData, children []cmpkit.Node) cmpkit.Node {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parent := cmpkit.FromContext(ctx)
		o, err := e.resolve(ctx, tag)
		if err != nil {
			return err
		}

		if o.Functional {
			c, err := e.instantiate(ctx, o, parent, data, children)
			if err != nil {
				return err
			}
			return e.write(ctx, c, w)
		}

		key := childKey(ctx, tag, data)
		if parent != nil {
			if c, ok := parent.Child(key); ok && !c.Destroyed() {
				if err := c.UpdateProps(cmpkit.Record(data.Attrs)); err != nil {
					return err
				}
				return e.update(ctx, c, w)
			}
		}

		c, err := e.instantiate(ctx, o, parent, data, children)
		if err != nil {
			if parent != nil {
				cmpkit.CaptureError(ctx, parent, err)
			}
			return err
		}
		if parent != nil {
			parent.AdoptChild(key, c)
			if data.Ref != "" {
				parent.SetRef(data.Ref, c)
			}
		}
		return e.mount(ctx, c, w)
	})
}

func (e *Engine) instantiate(ctx context.Context, o *cmpkit.Options, parent *cmpkit.Ctx, data *cmpkit.VNodeData, slots []cmpkit.Node) (*cmpkit.Ctx, error) {
	return cmpkit.NewInstance(ctx, o, cmpkit.InstanceConfig{
		Engine:       e,
		Parent:       parent,
		Props:        cmpkit.Record(data.Attrs),
		Listeners:    data.On,
		Slots:        slots,
		Logger:       e.log,
		ErrorHandler: e.onError,
	})
}

// write renders c without running lifecycle phases.
func (e *Engine) write(ctx context.Context, c *cmpkit.Ctx, w io.Writer) error {
	n, err := c.Render()
	if err != nil {
		return err
	}
	return n.Render(withCounter(cmpkit.WithCtx(ctx, c)), w)
}

func (e *Engine) mount(ctx context.Context, c *cmpkit.Ctx, w io.Writer) error {
	if err := c.Options().Run(ctx, cmpkit.HookBeforeMount, c); err != nil {
		return err
	}
	if err := e.write(ctx, c, w); err != nil {
		return err
	}
	e.setMounted(c, true)
	return c.Options().Run(ctx, cmpkit.HookMounted, c)
}

func (e *Engine) update(ctx context.Context, c *cmpkit.Ctx, w io.Writer) error {
	if c.Destroyed() {
		return fmt.Errorf("%w: %s", cmpkit.ErrDestroyed, c.Name())
	}
	if err := c.Options().Run(ctx, cmpkit.HookBeforeUpdate, c); err != nil {
		return err
	}
	if err := e.write(ctx, c, w); err != nil {
		return err
	}
	return c.Options().Run(ctx, cmpkit.HookUpdated, c)
}

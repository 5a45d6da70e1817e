// Package zero is a minimal headless engine. It builds a plain element tree
// and writes it as HTML. It has no reactivity and no functional components:
// every instance renders once.
package zero

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"

	"github.com/pthm/cmpkit"
	"github.com/pthm/cmpkit/internal/html"
)

// Engine is the headless engine.
type Engine struct {
	mu         sync.RWMutex
	factories  map[string]cmpkit.Factory
	options    map[string]*cmpkit.Options
	directives map[string]*cmpkit.Directive
	filters    map[string]cmpkit.FilterFunc
	log        logr.Logger
	onError    cmpkit.ErrorHandler
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

// New creates a headless engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		factories:  make(map[string]cmpkit.Factory),
		options:    make(map[string]*cmpkit.Options),
		directives: make(map[string]*cmpkit.Directive),
		filters:    make(map[string]cmpkit.FilterFunc),
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithName("zero")
	return e
}

// Supports reports engine features. The headless engine has none.
func (e *Engine) Supports(cmpkit.Feature) bool {
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
// def is nil.
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

func (e *Engine) isComponent(tag string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.factories[tag]
	return ok
}

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

// CreateElement creates an element. A tag naming a registered component
// creates a component element that instantiates and mounts the component
// when it is rendered.
func (e *Engine) CreateElement(tag string, data *cmpkit.VNodeData, children ...cmpkit.Node) cmpkit.Node {
	if data == nil {
		data = &cmpkit.VNodeData{}
	}
	el := &Element{
		Tag:      tag,
		Data:     data,
		Children: children,
		engine:   e,
	}
	if e.isComponent(tag) {
		el.component = true
		return el
	}

	for _, b := range data.Directives {
		d, _ := e.Directive(b.Name, nil)
		if d == nil {
			e.log.V(1).Info("unknown directive", "directive", b.Name, "tag", tag)
			continue
		}
		if d.Bind != nil {
			d.Bind(el, b)
		}
	}
	return el
}

// Instantiate creates an instance of a registered component.
func (e *Engine) Instantiate(ctx context.Context, id string, parent *cmpkit.Ctx, props cmpkit.Record) (*cmpkit.Ctx, error) {
	return e.instantiate(ctx, id, parent, props, nil, nil)
}

func (e *Engine) instantiate(ctx context.Context, id string, parent *cmpkit.Ctx, props cmpkit.Record, on map[string]cmpkit.Listener, slots []cmpkit.Node) (*cmpkit.Ctx, error) {
	o, err := e.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return cmpkit.NewInstance(ctx, o, cmpkit.InstanceConfig{
		Engine:       e,
		Parent:       parent,
		Props:        props,
		Listeners:    on,
		Slots:        slots,
		Logger:       e.log,
		ErrorHandler: e.onError,
	})
}

// Mount instantiates a registered component and writes its markup to w.
func (e *Engine) Mount(ctx context.Context, id string, props cmpkit.Record, w io.Writer) (*cmpkit.Ctx, error) {
	c, err := e.Instantiate(ctx, id, nil, props)
	if err != nil {
		return nil, err
	}
	if err := cmpkit.Mount(ctx, c, w); err != nil {
		return c, err
	}
	return c, nil
}

// RenderString mounts a component and returns its markup.
func (e *Engine) RenderString(ctx context.Context, id string, props cmpkit.Record) (string, *cmpkit.Ctx, error) {
	var buf bytes.Buffer
	c, err := e.Mount(ctx, id, props, &buf)
	return buf.String(), c, err
}

// Destroy destroys a mounted instance.
func (e *Engine) Destroy(ctx context.Context, c *cmpkit.Ctx) error {
	return cmpkit.Destroy(ctx, c)
}

var (
	_ cmpkit.Engine            = (*Engine)(nil)
	_ cmpkit.DirectiveRegistry = (*Engine)(nil)
	_ cmpkit.FilterRegistry    = (*Engine)(nil)
	_ cmpkit.FeatureSupporter  = (*Engine)(nil)
)

// Element is a node of the headless tree.
type Element struct {
	Tag      string
	Data     *cmpkit.VNodeData
	Children []cmpkit.Node

	// Instance is the component instance of a component element, set once
	// the element is rendered.
	Instance *cmpkit.Ctx

	engine    *Engine
	component bool
}

// IsComponent reports whether the element stands for a component.
func (el *Element) IsComponent() bool {
	return el.component
}

// Render writes the element as HTML. It implements templ.Component.
func (el *Element) Render(ctx context.Context, w io.Writer) error {
	if el.component {
		return el.renderComponent(ctx, w)
	}

	attrs := html.Attributes(el.Data.Attrs, el.Data.Class, el.Data.Style)
	if err := html.OpenTag(w, el.Tag, attrs); err != nil {
		return err
	}
	if html.IsVoid(el.Tag) {
		return nil
	}

	set, err := html.Content(w, el.Data.DomProps)
	if err != nil {
		return err
	}
	if !set {
		for _, ch := range el.Children {
			if ch == nil {
				continue
			}
			if err := ch.Render(ctx, w); err != nil {
				return err
			}
		}
	}
	if err := html.CloseTag(w, el.Tag); err != nil {
		return err
	}

	if parent := cmpkit.FromContext(ctx); parent != nil && el.Data.Ref != "" {
		parent.SetRef(el.Data.Ref, el)
	}
	return nil
}

func (el *Element) renderComponent(ctx context.Context, w io.Writer) error {
	parent := cmpkit.FromContext(ctx)
	c, err := el.engine.instantiate(ctx, el.Tag, parent, el.Data.Attrs, el.Data.On, el.Children)
	if err != nil {
		if parent != nil {
			cmpkit.CaptureError(ctx, parent, err)
		}
		return err
	}
	el.Instance = c

	if parent != nil {
		key := el.Data.Ref
		if key == "" {
			key = fmt.Sprintf("%s#%d", el.Tag, c.UID())
		}
		parent.AdoptChild(key, c)
		if el.Data.Ref != "" {
			parent.SetRef(el.Data.Ref, c)
		}
	}
	return cmpkit.Mount(ctx, c, w)
}

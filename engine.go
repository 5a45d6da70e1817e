package cmpkit

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Node is an opaque rendered node. Engines decide what a node is; every node
// can render itself as markup.
type Node = templ.Component

// DirectiveBinding is one directive attached to an element.
type DirectiveBinding struct {
	Name      string
	Value     any
	OldValue  any
	Arg       string
	Modifiers map[string]bool
}

// VNodeData holds the options of a created element.
type VNodeData struct {
	Attrs      map[string]any
	Class      []string
	Style      map[string]string
	DomProps   map[string]any
	On         map[string]Listener
	Directives []DirectiveBinding
	Ref        string
	Slot       string
	Key        string
}

// Listener handles an event emitted by a component.
type Listener func(args ...any)

// CreateElementFunc creates an element or a child component node.
type CreateElementFunc func(tag string, data *VNodeData, children ...Node) Node

// RenderFunc renders an instance.
type RenderFunc func(c *Ctx, h CreateElementFunc) Node

// Factory produces the options of a registered component. It is called when
// the component is first needed.
type Factory func(ctx context.Context) (*Options, error)

// Engine is the rendering engine contract. Element creation and component
// registration are the only mandatory capabilities; the rest are discovered
// with type assertions, so a minimal engine works unchanged.
type Engine interface {
	CreateElement(tag string, data *VNodeData, children ...Node) Node
	Component(id string, factory Factory) error
}

// DirectiveFunc is a directive hook. el is the engine element.
type DirectiveFunc func(el any, binding DirectiveBinding)

// Directive is a normalized directive definition.
type Directive struct {
	Bind             DirectiveFunc
	Inserted         DirectiveFunc
	Update           DirectiveFunc
	ComponentUpdated DirectiveFunc
	Unbind           DirectiveFunc
}

// FilterFunc transforms a value in a render function.
type FilterFunc func(value any, args ...any) any

// DirectiveRegistry is implemented by engines that support directives.
type DirectiveRegistry interface {
	// Directive registers def under id when def is not nil and returns the
	// registered definition.
	Directive(id string, def any) (*Directive, error)
}

// FilterRegistry is implemented by engines that support filters.
type FilterRegistry interface {
	Filter(id string, fn FilterFunc) FilterFunc
}

// Observer is implemented by engines that make instance data reactive.
type Observer interface {
	Observe(c *Ctx, data Record)
}

// Feature names an optional engine capability.
type Feature string

const (
	FeatureFunctional Feature = "functional"
	FeatureReactive   Feature = "reactive"
	FeatureKeepAlive  Feature = "keepAlive"
)

// FeatureSupporter is implemented by engines that report optional features.
type FeatureSupporter interface {
	Supports(f Feature) bool
}

// Supports reports whether e declares feature f.
func Supports(e Engine, f Feature) bool {
	if s, ok := e.(FeatureSupporter); ok {
		return s.Supports(f)
	}
	return false
}

// NormalizeDirective converts a directive definition to its full form. A bare
// function is bound to both bind and update.
func NormalizeDirective(def any) (*Directive, error) {
	switch d := def.(type) {
	case nil:
		return &Directive{}, nil
	case *Directive:
		return d, nil
	case Directive:
		return &d, nil
	case DirectiveFunc:
		return &Directive{Bind: d, Update: d}, nil
	case func(el any, binding DirectiveBinding):
		return &Directive{Bind: d, Update: d}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported directive definition %T", ErrInvalidDecl, def)
	}
}

// NormalizeFilter returns fn, or the identity filter when fn is nil.
func NormalizeFilter(fn FilterFunc) FilterFunc {
	if fn == nil {
		return func(value any, _ ...any) any { return value }
	}
	return fn
}

type ctxKey struct{}

// WithCtx returns a context carrying the instance that is being rendered.
func WithCtx(ctx context.Context, c *Ctx) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the instance being rendered, or nil.
func FromContext(ctx context.Context) *Ctx {
	c, _ := ctx.Value(ctxKey{}).(*Ctx)
	return c
}

// Text returns an escaped text node.
func Text(s string) Node {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

// Textf formats an escaped text node.
func Textf(format string, args ...any) Node {
	return Text(fmt.Sprintf(format, args...))
}

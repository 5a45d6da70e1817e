package cmpkit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/pthm/cmpkit/internal/html"
)

// TestEngine is an in-memory engine for tests. Plain elements are written
// as HTML; component elements are written as an empty tag carrying their
// attrs and are not instantiated.
type TestEngine struct {
	mu        sync.Mutex
	factories map[string]Factory
	created   []string
}

// NewTestEngine creates an empty TestEngine.
func NewTestEngine() *TestEngine {
	return &TestEngine{factories: make(map[string]Factory)}
}

// Component registers a component factory.
func (e *TestEngine) Component(id string, factory Factory) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.factories[id]; exists {
		return fmt.Errorf("component %q already registered", id)
	}
	e.factories[id] = factory
	return nil
}

// Components returns the registered ids, sorted.
func (e *TestEngine) Components() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.factories))
	for id := range e.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Created returns the tags passed to CreateElement in call order.
func (e *TestEngine) Created() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.created...)
}

// CreateElement creates a node that writes tag with its attributes, DOM
// content and children.
func (e *TestEngine) CreateElement(tag string, data *VNodeData, children ...Node) Node {
	e.mu.Lock()
	e.created = append(e.created, tag)
	e.mu.Unlock()

	if data == nil {
		data = &VNodeData{}
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := html.OpenTag(w, tag, html.Attributes(data.Attrs, data.Class, data.Style)); err != nil {
			return err
		}
		if html.IsVoid(tag) {
			return nil
		}
		wrote, err := html.Content(w, data.DomProps)
		if err != nil {
			return err
		}
		if !wrote {
			for _, child := range children {
				if child == nil {
					continue
				}
				if err := child.Render(ctx, w); err != nil {
					return err
				}
			}
		}
		return html.CloseTag(w, tag)
	})
}

// Instantiate creates an instance of a registered component.
func (e *TestEngine) Instantiate(ctx context.Context, id string, props Record) (*Ctx, error) {
	e.mu.Lock()
	factory, ok := e.factories[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	return NewInstance(ctx, o, InstanceConfig{Engine: e, Props: props})
}

// TestResult holds the result of mounting a component for testing.
type TestResult struct {
	HTML     string
	Instance *Ctx
}

// TestRender registers cl with a fresh TestEngine, instantiates it with
// props and mounts it.
//
//	result, err := cmpkit.TestRender(ctx, Counter, cmpkit.Record{"step": 2})
//	if !result.HTMLContains("b-counter") {
//	    t.Fatal("missing block class")
//	}
func TestRender(ctx context.Context, cl *Class, props Record) (*TestResult, error) {
	e := NewTestEngine()
	if err := NewRegistry(e).Register(cl); err != nil {
		return nil, err
	}
	c, err := e.Instantiate(ctx, cl.Name(), props)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := Mount(ctx, c, &buf); err != nil {
		return &TestResult{Instance: c}, err
	}
	return &TestResult{HTML: buf.String(), Instance: c}, nil
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

package cmpkit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Registry manages component registration with an engine.
type Registry struct {
	mu      sync.RWMutex
	engine  Engine
	log     logr.Logger
	classes map[string]*Class
	options map[string]*Options
	subs    []func(name string)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log logr.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry creates a registry that registers components with engine.
func NewRegistry(engine Engine, opts ...RegistryOption) *Registry {
	reg := &Registry{
		engine:  engine,
		log:     logr.Discard(),
		classes: make(map[string]*Class),
		options: make(map[string]*Options),
	}
	for _, opt := range opts {
		opt(reg)
	}
	reg.log = reg.log.WithName("registry")
	return reg
}

// Engine returns the registry's engine.
func (reg *Registry) Engine() Engine {
	return reg.engine
}

// Add registers classes. Panics on a configuration error or a name
// collision.
func (reg *Registry) Add(classes ...*Class) {
	if err := reg.Register(classes...); err != nil {
		panic(fmt.Sprintf("cmpkit: %v", err))
	}
}

// Register flushes the pending declarations of each class, builds it and
// registers it with the engine. Subscribers added with OnComponent are
// notified once per registered class. Every class is attempted; the errors
// are combined.
func (reg *Registry) Register(classes ...*Class) error {
	var errs error
	for _, cl := range classes {
		if err := reg.register(cl); err != nil {
			reg.log.Error(err, "register component", "component", cl.Name())
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (reg *Registry) register(cl *Class) error {
	name := cl.Name()

	reg.mu.Lock()
	if prev, exists := reg.classes[name]; exists {
		reg.mu.Unlock()
		if prev == cl {
			return nil
		}
		return fmt.Errorf("%w: name collision for %q", ErrInvalidDecl, name)
	}
	reg.mu.Unlock()

	if _, err := BuildBase(cl); err != nil {
		return err
	}
	if _, err := cl.Meta(); err != nil {
		return err
	}

	reg.mu.Lock()
	if _, exists := reg.classes[name]; exists {
		reg.mu.Unlock()
		return fmt.Errorf("%w: name collision for %q", ErrInvalidDecl, name)
	}
	reg.classes[name] = cl
	subs := slices.Clone(reg.subs)
	reg.mu.Unlock()

	if err := reg.engine.Component(name, func(ctx context.Context) (*Options, error) {
		return reg.Options(name)
	}); err != nil {
		reg.mu.Lock()
		delete(reg.classes, name)
		reg.mu.Unlock()
		return fmt.Errorf("engine: %w", err)
	}

	reg.log.V(1).Info("registered component", "component", name)
	for _, fn := range subs {
		fn(name)
	}
	return nil
}

// OnComponent subscribes fn to registrations.
func (reg *Registry) OnComponent(fn func(name string)) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.subs = append(reg.subs, fn)
}

// Get returns the class registered under name.
func (reg *Registry) Get(name string) (*Class, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	cl, ok := reg.classes[name]
	return cl, ok
}

// Names returns the registered names in sorted order.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.classes))
	for name := range reg.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns the component options of name. Functional classes get
// functional options when the engine supports them.
func (reg *Registry) Options(name string) (*Options, error) {
	reg.mu.RLock()
	o, ok := reg.options[name]
	cl, registered := reg.classes[name]
	reg.mu.RUnlock()
	if ok {
		return o, nil
	}
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	meta, err := cl.Meta()
	if err != nil {
		return nil, err
	}
	if meta.Params.Functional && Supports(reg.engine, FeatureFunctional) {
		o, err = FunctionalOptions(cl)
	} else {
		o, err = GetComponent(cl)
	}
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if prev, ok := reg.options[name]; ok {
		return prev, nil
	}
	reg.options[name] = o
	return o, nil
}

// Warm builds the options of every registered component concurrently.
func (reg *Registry) Warm(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, name := range reg.Names() {
		g.Go(func() error {
			_, err := reg.Options(name)
			return err
		})
	}
	return g.Wait()
}

package cmpkit

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type functionalEngine struct {
	*TestEngine
}

func (functionalEngine) Supports(f Feature) bool {
	return f == FeatureFunctional
}

func TestRegistry_Register(t *testing.T) {
	e := NewTestEngine()
	reg := NewRegistry(e)

	var notified []string
	reg.OnComponent(func(name string) { notified = append(notified, name) })

	a := Define("b-a", nil)
	b := Define("b-b", a)
	if err := reg.Register(b, a); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(a); err != nil {
		t.Errorf("registering the same class again: %v", err)
	}

	if got, want := reg.Names(), []string{"b-a", "b-b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if got, want := e.Components(), []string{"b-a", "b-b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("engine components = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(notified, []string{"b-b", "b-a"}) {
		t.Errorf("notified = %v", notified)
	}
	if cl, ok := reg.Get("b-b"); !ok || cl != b {
		t.Error("Get(b-b) did not return the class")
	}
}

func TestRegistry_Collision(t *testing.T) {
	reg := NewRegistry(NewTestEngine())
	if err := reg.Register(Define("b-dup", nil)); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(Define("b-dup", nil), Define("b-other", nil))
	if !errors.Is(err, ErrInvalidDecl) {
		t.Errorf("Register() error = %v, want ErrInvalidDecl", err)
	}
	if _, ok := reg.Get("b-other"); !ok {
		t.Error("a failing class does not stop the others")
	}
}

func TestRegistry_ConfigError(t *testing.T) {
	reg := NewRegistry(NewTestEngine())
	bad := Define("b-bad", nil).Method("load", noop, HookOn("loaded"))
	if err := reg.Register(bad); !errors.Is(err, ErrUnknownHook) {
		t.Errorf("Register() error = %v, want ErrUnknownHook", err)
	}
	if len(reg.Names()) != 0 {
		t.Error("a failing class is not registered")
	}

	defer func() {
		if recover() == nil {
			t.Error("Add did not panic")
		}
	}()
	reg.Add(bad)
}

func TestRegistry_GraphErrors(t *testing.T) {
	tests := []struct {
		name string
		cl   *Class
		want error
	}{
		{
			name: "field cycle",
			cl: Define("b-field-cycle", nil).
				Decorate("a", Field(Params{After: []string{"b"}})).
				Decorate("b", Field(Params{After: []string{"a"}})),
			want: ErrDependencyCycle,
		},
		{
			name: "missing field dependency",
			cl:   Define("b-field-missing", nil).Decorate("a", Field(Params{After: []string{"nope"}})),
			want: ErrMissingDependency,
		},
		{
			name: "system field cycle",
			cl:   Define("b-system-cycle", nil).Decorate("a", System(Params{After: []string{"a"}})),
			want: ErrDependencyCycle,
		},
		{
			name: "missing hook dependency",
			cl:   Define("b-hook-missing", nil).Method("save", noop, HookOn(HookCreated, "load")),
			want: ErrMissingDependency,
		},
		{
			name: "hook cycle",
			cl: Define("b-hook-cycle", nil).
				Method("load", noop, HookOn(HookMounted, "save")).
				Method("save", noop, HookOn(HookMounted, "load")),
			want: ErrDependencyCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(NewTestEngine())
			if err := reg.Register(tt.cl); !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
			if len(reg.Names()) != 0 {
				t.Errorf("Names() = %v, want none", reg.Names())
			}
			if _, err := BuildBase(tt.cl); !errors.Is(err, tt.want) {
				t.Errorf("BuildBase() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry_Options(t *testing.T) {
	reg := NewRegistry(NewTestEngine())
	reg.Add(Define("b-opts", nil))

	first, err := reg.Options("b-opts")
	if err != nil {
		t.Fatal(err)
	}
	second, err := reg.Options("b-opts")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("options are built once per component")
	}
	if _, err := reg.Options("b-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Options(b-missing) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Functional(t *testing.T) {
	cl := Define("b-func", nil).Params(ComponentParams{Functional: true, InheritAttrs: true})

	tests := []struct {
		name   string
		engine Engine
		want   bool
	}{
		{name: "supported", engine: functionalEngine{NewTestEngine()}, want: true},
		{name: "fallback", engine: NewTestEngine(), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(tt.engine)
			reg.Add(cl)
			o, err := reg.Options("b-func")
			if err != nil {
				t.Fatal(err)
			}
			if o.Functional != tt.want {
				t.Errorf("Functional = %v, want %v", o.Functional, tt.want)
			}
		})
	}
}

func TestRegistry_Warm(t *testing.T) {
	reg := NewRegistry(NewTestEngine())
	for _, name := range []string{"b-w1", "b-w2", "b-w3"} {
		reg.Add(Define(name, nil))
	}
	if err := reg.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, name := range reg.Names() {
		reg.mu.RLock()
		_, ok := reg.options[name]
		reg.mu.RUnlock()
		if !ok {
			t.Errorf("%s was not warmed", name)
		}
	}
}

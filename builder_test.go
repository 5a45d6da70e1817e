package cmpkit

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

type listProto struct {
	Items  []string `cmp:"items"`
	Format func(string) string
	Hidden string `cmp:"-"`
	secret string
	BaseProto
}

type BaseProto struct {
	Limit int
}

func TestBuildBase_SharedBuild(t *testing.T) {
	var calls atomic.Int32
	cl := Define("b-shared", nil).
		Instance(func() any {
			calls.Add(1)
			return Record{"items": []string{"a"}}
		}).
		Decorate("items", Prop(Params{}))

	const n = 32
	bases := make([]*Base, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := BuildBase(cl)
			if err != nil {
				t.Error(err)
				return
			}
			bases[i] = b
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if bases[i] != bases[0] {
			t.Fatal("BuildBase returned different results for one class")
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("prototype constructed %d times, want 1", got)
	}
}

func TestBuildBase_PropDefaults(t *testing.T) {
	format := func(s string) string { return "[" + s + "]" }
	factory := DefaultFunc(func() any { return map[string]int{} })

	cl := Define("b-defaults", nil).
		Instance(func() any {
			return &listProto{Items: []string{"a", "b"}, Format: format, Hidden: "h", secret: "s"}
		}).
		Decorate("items", Prop(Params{})).
		Decorate("format", Prop(Params{Type: reflect.Func})).
		Decorate("counts", Prop(Params{Default: factory})).
		Decorate("label", Prop(Params{Default: "x"}))

	base, err := BuildBase(cl)
	if err != nil {
		t.Fatal(err)
	}
	props := base.Component.Props

	items, _ := props.Get("items")
	if !items.ClonedDefault || items.DefaultFn == nil {
		t.Fatal("prototype defaults are cloned per instance")
	}
	first := items.DefaultValue().([]string)
	first[0] = "changed"
	if got := items.DefaultValue().([]string); got[0] != "a" {
		t.Errorf("cloned default shares storage: %v", got)
	}

	fmtSpec, _ := props.Get("format")
	fn, ok := fmtSpec.Default.(func(string) string)
	if !ok || fn("x") != "[x]" || fmtSpec.DefaultFn != nil {
		t.Errorf("function props use the prototype value as is: %#v", fmtSpec)
	}

	counts, _ := props.Get("counts")
	if counts.DefaultFn == nil || counts.ClonedDefault {
		t.Errorf("a DefaultFunc becomes the prop factory: %#v", counts)
	}

	label, _ := props.Get("label")
	if label.Default != "x" || label.DefaultFn != nil {
		t.Errorf("label spec = %#v", label)
	}

	if got, want := props.Keys(), []string{"items", "format", "counts", "label"}; !reflect.DeepEqual(got, want) {
		t.Errorf("prop order = %v, want %v", got, want)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cl := Define("b-functional", nil).
		Params(ComponentParams{Functional: true, InheritAttrs: true}).
		Instance(func() any { return Record{"items": []string{"a"}} }).
		Decorate("items", Prop(Params{})).
		Decorate("counts", Prop(Params{Default: DefaultFunc(func() any { return 1 })}))

	o, err := FunctionalOptions(cl)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Functional {
		t.Error("Functional = false")
	}
	counts, _ := o.Props.Get("counts")
	if counts.DefaultFn != nil {
		t.Error("author default factories are dropped")
	}
	items, _ := o.Props.Get("items")
	if items.DefaultFn == nil {
		t.Error("cloned prototype defaults are kept")
	}

	regular, err := GetComponent(cl)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := regular.Props.Get("counts"); c.DefaultFn == nil {
		t.Error("FunctionalOptions modified the shared prop specs")
	}
}

func TestReadInstance(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Record
		wantErr bool
	}{
		{name: "nil", in: nil, want: Record{}},
		{name: "record", in: Record{"a": 1}, want: Record{"a": 1}},
		{name: "map", in: map[string]any{"a": 1}, want: Record{"a": 1}},
		{name: "nil pointer", in: (*listProto)(nil), want: Record{}},
		{
			name: "struct",
			in:   listProto{Items: []string{"a"}, Hidden: "h", secret: "s", BaseProto: BaseProto{Limit: 3}},
			want: Record{"items": []string{"a"}, "format": (func(string) string)(nil), "limit": 3},
		},
		{name: "scalar", in: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInstance(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDecl) {
					t.Errorf("readInstance() error = %v, want ErrInvalidDecl", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("readInstance() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if reflect.ValueOf(v).Kind() == reflect.Func {
					continue
				}
				if !reflect.DeepEqual(got[k], v) {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestGetComponent(t *testing.T) {
	cl := Define("b-options", nil).
		Mods("theme", []any{"dark"}, "light").
		Decorate("value", Field(Params{Default: 0})).
		Accessor("doubled",
			func(c *Ctx) any { return c.Get("value").(int) * 2 },
			func(c *Ctx, v any) error { return c.Set("value", v.(int)/2) }).
		Method("reset", noop)

	o, err := GetComponent(cl)
	if err != nil {
		t.Fatal(err)
	}
	if o.Name != "b-options" || o.Mods["theme"] != "dark" {
		t.Errorf("options = %s %v", o.Name, o.Mods)
	}
	for _, name := range []string{"reset", "doubledGetter", "doubledSetter"} {
		if _, ok := o.Methods[name]; !ok {
			t.Errorf("missing method %s", name)
		}
	}
	if _, ok := o.Computed["doubled"]; !ok {
		t.Error("accessors are computed by default")
	}
	for _, phase := range []Hook{HookBeforeCreate, HookCreated, HookMounted, HookDestroyed} {
		if _, ok := o.Hooks[phase]; !ok {
			t.Errorf("missing binding for %s", phase)
		}
	}
	for _, phase := range []Hook{HookBeforeRuntime, HookBeforeDataCreate} {
		if _, ok := o.Hooks[phase]; ok {
			t.Errorf("%s runs inside another binding", phase)
		}
	}
}

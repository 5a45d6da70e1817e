package cmpkit

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

type orderLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *orderLog) add(step string) {
	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()
}

func (l *orderLog) fn(step string) MethodFunc {
	return func(context.Context, *Ctx, ...any) (any, error) {
		l.add(step)
		return nil, nil
	}
}

func (l *orderLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

func TestLifecycle_PhaseOrder(t *testing.T) {
	var log orderLog
	cl := Define("b-phases", nil).
		Decorate("x", Field(Params{Init: func(context.Context, *Ctx, Record) (any, error) {
			log.add("init")
			return 1, nil
		}})).
		Method("onRuntime", log.fn("beforeRuntime"), HookOn(HookBeforeRuntime)).
		Method("onBeforeCreate", log.fn("beforeCreate"), HookOn(HookBeforeCreate)).
		Method("onBeforeDataCreate", log.fn("beforeDataCreate"), HookOn(HookBeforeDataCreate)).
		Method("onCreated", log.fn("created"), HookOn(HookCreated)).
		Method("onBeforeMount", log.fn("beforeMount"), HookOn(HookBeforeMount)).
		Method("onMounted", log.fn("mounted"), HookOn(HookMounted)).
		Method("mounted", log.fn("mounted method")).
		Render(func(c *Ctx, h CreateElementFunc) Node {
			log.add("render")
			return h("div", &VNodeData{Class: []string{"b-phases"}}, Text("hi"))
		})

	result, err := TestRender(context.Background(), cl, nil)
	if err != nil {
		t.Fatalf("TestRender() error = %v", err)
	}

	want := []string{
		"beforeRuntime", "beforeCreate", "init", "beforeDataCreate", "created",
		"beforeMount", "render", "mounted", "mounted method",
	}
	if got := log.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("phases = %v, want %v", got, want)
	}
	if result.HTML != `<div class="b-phases">hi</div>` {
		t.Errorf("HTML = %q", result.HTML)
	}
	if result.Instance.Hook() != HookMounted {
		t.Errorf("Hook() = %s, want mounted", result.Instance.Hook())
	}
}

func TestLifecycle_Props(t *testing.T) {
	cl := Define("b-props", nil).
		Params(ComponentParams{InheritAttrs: true}).
		Decorate("step", Prop(Params{Type: reflect.Int, Default: 1, Validator: func(v any) bool { return v.(int) > 0 }})).
		Decorate("title", Prop(Params{Type: reflect.String, Required: true})).
		Decorate("flag", Prop(Params{Type: reflect.Bool}))

	tests := []struct {
		name    string
		props   Record
		want    Record
		wantErr error
	}{
		{
			name:  "defaults",
			props: Record{"title": "t"},
			want:  Record{"step": 1, "title": "t", "flag": nil},
		},
		{
			name:  "coerced strings",
			props: Record{"title": "t", "step": "3", "flag": "true"},
			want:  Record{"step": 3, "title": "t", "flag": true},
		},
		{
			name:  "converted numbers",
			props: Record{"title": "t", "step": int64(2)},
			want:  Record{"step": 2, "title": "t", "flag": nil},
		},
		{name: "missing required", props: Record{}, wantErr: ErrInvalidProp},
		{name: "validator", props: Record{"title": "t", "step": 0}, wantErr: ErrInvalidProp},
		{name: "wrong kind", props: Record{"title": 5}, wantErr: ErrInvalidProp},
	}

	e := NewTestEngine()
	if err := NewRegistry(e).Register(cl); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := e.Instantiate(context.Background(), "b-props", tt.props)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Instantiate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := c.Props(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Props() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLifecycle_Attrs(t *testing.T) {
	inherit := Define("b-attrs", nil).Decorate("a", Prop(Params{}))
	isolated := Define("b-no-attrs", nil).
		Params(ComponentParams{InheritAttrs: false}).
		Decorate("a", Prop(Params{}))

	c := newTestInstance(t, inherit, Record{"a": 1, "id": "x"})
	if got := c.Attrs(); !reflect.DeepEqual(got, Record{"id": "x"}) {
		t.Errorf("Attrs() = %v", got)
	}
	c = newTestInstance(t, isolated, Record{"a": 1, "id": "x"})
	if got := c.Attrs(); len(got) != 0 {
		t.Errorf("Attrs() = %v, want none", got)
	}
}

func TestLifecycle_Watchers(t *testing.T) {
	var mu sync.Mutex
	var seen [][2]any
	record := func(_ context.Context, _ *Ctx, args ...any) (any, error) {
		mu.Lock()
		seen = append(seen, [2]any{args[0], args[1]})
		mu.Unlock()
		return nil, nil
	}

	cl := Define("b-watch", nil).
		Decorate("x", Field(Params{Default: 1, Watch: []Watcher{{Method: "onX", Immediate: true}}})).
		Decorate("items", Field(Params{Default: DefaultFunc(func() any { return []int{} })})).
		Method("onX", record).
		Method("onItems", record, Watch(Watcher{Field: "items", Deep: true}))

	c := newTestInstance(t, cl, nil)
	if err := c.Set("x", 2); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("x", 2); err != nil {
		t.Fatal(err)
	}
	c.Touch("items")

	want := [][2]any{{1, nil}, {2, 1}, {[]int{}, []int{}}}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("watcher calls = %v, want %v", seen, want)
	}
}

func TestLifecycle_UnresolvedWatcher(t *testing.T) {
	cl := Define("b-unresolved", nil).
		Decorate("x", Field(Params{Watch: []Watcher{{Method: "missing"}}}))

	e := NewTestEngine()
	if err := NewRegistry(e).Register(cl); err != nil {
		t.Fatal(err)
	}
	_, err := e.Instantiate(context.Background(), "b-unresolved", nil)
	if !errors.Is(err, ErrUnresolvedMethod) {
		t.Errorf("Instantiate() error = %v, want ErrUnresolvedMethod", err)
	}
}

func TestLifecycle_SetAndGet(t *testing.T) {
	var computed int
	cl := Define("b-access", nil).
		Decorate("p", Prop(Params{Default: "prop"})).
		Decorate("f", Field(Params{Default: 1})).
		Decorate("s", System(Params{Default: "sys"})).
		Accessor("double", func(c *Ctx) any {
			computed++
			return c.Get("f").(int) * 2
		}, nil)

	c := newTestInstance(t, cl, nil)
	var changes []string
	c.Subscribe(func(key string) { changes = append(changes, key) })

	tests := []struct {
		key  string
		want error
	}{
		{"p", ErrReadOnly},
		{"double", ErrReadOnly},
		{"missing", ErrNotFound},
		{"s", nil},
		{"f", nil},
	}
	for _, tt := range tests {
		if err := c.Set(tt.key, 5); !errors.Is(err, tt.want) {
			t.Errorf("Set(%s) error = %v, want %v", tt.key, err, tt.want)
		}
	}

	if c.Get("p") != "prop" || c.Get("s") != 5 || c.Get("f") != 5 {
		t.Errorf("values: p=%v s=%v f=%v", c.Get("p"), c.Get("s"), c.Get("f"))
	}
	if !reflect.DeepEqual(changes, []string{"f"}) {
		t.Errorf("changes = %v, system fields are not reactive", changes)
	}

	if c.Get("double") != 10 || c.Get("double") != 10 {
		t.Error("double = f*2")
	}
	if computed != 1 {
		t.Errorf("getter ran %d times, computed values are cached", computed)
	}
	_ = c.Set("f", 6)
	if c.Get("double") != 12 || computed != 2 {
		t.Errorf("cache is invalidated by writes, double = %v", c.Get("double"))
	}

	if _, ok := c.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported a value")
	}
	if _, err := c.Call(context.Background(), "doubleGetter"); err != nil {
		t.Errorf("accessors expose a getter method: %v", err)
	}
	if _, err := c.Call(context.Background(), "nope"); !errors.Is(err, ErrUnresolvedMethod) {
		t.Errorf("Call(nope) error = %v", err)
	}
}

func TestLifecycle_Mods(t *testing.T) {
	cl := Define("b-mods", nil).
		Mods("size", "s", []any{"m"}, "l").
		Mods("hidden", true, false)

	c := newTestInstance(t, cl, nil)
	if v, ok := c.Mod("size"); !ok || v != "m" {
		t.Errorf("Mod(size) = %q, %v", v, ok)
	}
	if _, ok := c.Mod("hidden"); ok {
		t.Error("mods without a default are unset")
	}

	var changes []string
	c.Subscribe(func(key string) { changes = append(changes, key) })
	c.SetMod("size", "l")
	c.SetMod("size", "l")
	c.RemoveMod("size")

	if !reflect.DeepEqual(changes, []string{"mods.size", "mods.size"}) {
		t.Errorf("changes = %v", changes)
	}
}

func TestLifecycle_TreeAndErrors(t *testing.T) {
	var captured []error
	var destroyed []string
	var mu sync.Mutex

	parent := Define("b-parent", nil).
		Params(ComponentParams{InheritAttrs: true, Provide: Record{"theme": "dark"}}).
		Method("onError", func(_ context.Context, _ *Ctx, args ...any) (any, error) {
			mu.Lock()
			captured = append(captured, args[0].(error))
			mu.Unlock()
			return nil, nil
		}, HookOn(HookErrorCaptured)).
		Method("onDestroyed", func(_ context.Context, c *Ctx, _ ...any) (any, error) {
			mu.Lock()
			destroyed = append(destroyed, c.Name())
			mu.Unlock()
			return nil, nil
		}, HookOn(HookDestroyed))
	child := Define("b-child", parent).Params(ComponentParams{})

	e := NewTestEngine()
	if err := NewRegistry(e).Register(parent, child); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	p, err := e.Instantiate(ctx, "b-parent", nil)
	if err != nil {
		t.Fatal(err)
	}
	o, err := e.factories["b-child"](ctx)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewInstance(ctx, o, InstanceConfig{Engine: e, Parent: p})
	if err != nil {
		t.Fatal(err)
	}
	p.AdoptChild("c", c)

	if v, ok := c.Inject("theme"); !ok || v != "dark" {
		t.Errorf("Inject(theme) = %v, %v", v, ok)
	}
	if _, ok := p.Inject("theme"); ok {
		t.Error("an instance does not inject its own provide")
	}

	boom := errors.New("boom")
	CaptureError(ctx, c, boom)
	if len(captured) != 2 || !errors.Is(captured[0], boom) {
		t.Errorf("captured = %v, want the error at the child and the parent", captured)
	}

	if err := Destroy(ctx, p); err != nil {
		t.Fatal(err)
	}
	if !c.Destroyed() || !p.Destroyed() {
		t.Error("Destroy reaches children")
	}
	if !reflect.DeepEqual(destroyed, []string{"b-child", "b-parent"}) {
		t.Errorf("destroyed = %v", destroyed)
	}
	if err := Update(ctx, p, &bytes.Buffer{}); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Update() error = %v, want ErrDestroyed", err)
	}
}

func TestLifecycle_HookFailureIsReported(t *testing.T) {
	var reported []error
	var overridden bool
	cl := Define("b-failing", nil).
		Method("load", func(context.Context, *Ctx, ...any) (any, error) {
			return nil, errors.New("load failed")
		}, HookOn(HookCreated)).
		Method("created", func(context.Context, *Ctx, ...any) (any, error) {
			overridden = true
			return nil, nil
		})

	e := NewTestEngine()
	if err := NewRegistry(e).Register(cl); err != nil {
		t.Fatal(err)
	}
	o, err := e.factories["b-failing"](context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstance(context.Background(), o, InstanceConfig{
		Engine: e,
		ErrorHandler: func(_ *Ctx, phase Hook, err error) {
			if phase == HookCreated {
				reported = append(reported, err)
			}
		},
	})
	if err != nil {
		t.Fatalf("hook failures do not abort instantiation: %v", err)
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrHookFailed) {
		t.Errorf("reported = %v", reported)
	}
	if overridden {
		t.Error("the phase method is skipped when the phase failed")
	}
}

func TestLifecycle_NoRenderer(t *testing.T) {
	_, err := TestRender(context.Background(), Define("i-abstract", nil), nil)
	if !errors.Is(err, ErrNoRenderer) {
		t.Errorf("TestRender() error = %v, want ErrNoRenderer", err)
	}
}

func TestLifecycle_RenderContext(t *testing.T) {
	cl := Define("b-context", nil).
		Decorate("name", Prop(Params{Default: "<b>"})).
		Render(func(c *Ctx, h CreateElementFunc) Node {
			return h("p", nil, Textf("hello %s", c.Get("name")))
		})

	result, err := TestRender(context.Background(), cl, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HTMLContains("hello &lt;b&gt;") {
		t.Errorf("HTML = %q, text is escaped", result.HTML)
	}
	if !strings.HasPrefix(result.HTML, "<p>") {
		t.Errorf("HTML = %q", result.HTML)
	}
}

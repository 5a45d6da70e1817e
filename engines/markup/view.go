package markup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/a-h/templ"

	"github.com/pthm/cmpkit"
)

// View is a mounted root component. It tracks changes of the instance and
// re-renders on Refresh.
type View struct {
	engine *Engine
	c      *cmpkit.Ctx

	mu     sync.Mutex
	dirty  bool
	active bool
	stop   func()
}

// Mount instantiates a registered component and writes it to w.
func (e *Engine) Mount(ctx context.Context, id string, props cmpkit.Record, w io.Writer) (*View, error) {
	return e.mountView(ctx, id, props, nil, w)
}

// Hydrate mounts a component whose fields are restored from a state
// snapshot written by a previous render.
func (e *Engine) Hydrate(ctx context.Context, id string, props cmpkit.Record, state string, w io.Writer) (*View, error) {
	if e.encoder == nil {
		return nil, fmt.Errorf("%w: no state encoder", cmpkit.ErrInvalidFormat)
	}
	snapshot, err := e.encoder.Decode(state, e.sensitive)
	if err != nil {
		return nil, cmpkit.WrapDecodeError(err)
	}
	return e.mountView(ctx, id, props, snapshot, w)
}

func (e *Engine) mountView(ctx context.Context, id string, props cmpkit.Record, snapshot map[string]any, w io.Writer) (*View, error) {
	o, err := e.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := e.instantiate(ctx, o, nil, &cmpkit.VNodeData{Attrs: props}, nil)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		if c.Meta().Fields.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, restored(c.Get(k), snapshot[k])); err != nil {
			return nil, fmt.Errorf("restore %s: %w", k, err)
		}
	}

	v := &View{engine: e, c: c, active: true}
	v.stop = c.Subscribe(func(string) {
		v.mu.Lock()
		v.dirty = true
		v.mu.Unlock()
	})

	if err := e.mount(ctx, c, w); err != nil {
		return v, err
	}
	return v, e.writeState(c, w)
}

// RenderString mounts a component and returns its markup.
func (e *Engine) RenderString(ctx context.Context, id string, props cmpkit.Record) (string, *View, error) {
	var buf bytes.Buffer
	v, err := e.Mount(ctx, id, props, &buf)
	return buf.String(), v, err
}

// writeState writes the field snapshot of c when an encoder is configured.
func (e *Engine) writeState(c *cmpkit.Ctx, w io.Writer) error {
	if e.encoder == nil {
		return nil
	}
	encoded, err := e.encoder.Encode(c.Data(), e.sensitive)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, `<script type="application/x-cmpkit-state" data-component="`+
		templ.EscapeString(c.Name())+`">`+encoded+`</script>`)
	return err
}

// Instance returns the root instance.
func (v *View) Instance() *cmpkit.Ctx {
	return v.c
}

// Dirty reports whether the instance changed since the last render.
func (v *View) Dirty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dirty
}

// Refresh re-renders the view into w when it changed since the last render.
// It reports whether a render happened.
func (v *View) Refresh(ctx context.Context, w io.Writer) (bool, error) {
	v.mu.Lock()
	if !v.dirty || !v.active {
		v.mu.Unlock()
		return false, nil
	}
	v.dirty = false
	v.mu.Unlock()

	if err := v.engine.update(ctx, v.c, w); err != nil {
		return true, err
	}
	return true, v.engine.writeState(v.c, w)
}

// Update re-renders the view into w unconditionally.
func (v *View) Update(ctx context.Context, w io.Writer) error {
	v.mu.Lock()
	v.dirty = false
	v.mu.Unlock()
	if err := v.engine.update(ctx, v.c, w); err != nil {
		return err
	}
	return v.engine.writeState(v.c, w)
}

// Deactivate keeps the instance alive but stops refreshing it.
func (v *View) Deactivate(ctx context.Context) error {
	v.mu.Lock()
	if !v.active {
		v.mu.Unlock()
		return nil
	}
	v.active = false
	v.mu.Unlock()
	return walk(v.c, func(c *cmpkit.Ctx) error { return cmpkit.Deactivate(ctx, c) })
}

// Activate resumes a deactivated view.
func (v *View) Activate(ctx context.Context) error {
	v.mu.Lock()
	if v.active {
		v.mu.Unlock()
		return nil
	}
	v.active = true
	v.mu.Unlock()
	return walk(v.c, func(c *cmpkit.Ctx) error { return cmpkit.Activate(ctx, c) })
}

// Destroy destroys the instance tree.
func (v *View) Destroy(ctx context.Context) error {
	v.stop()
	err := cmpkit.Destroy(ctx, v.c)
	forget(v.engine, v.c)
	return err
}

func walk(c *cmpkit.Ctx, fn func(*cmpkit.Ctx) error) error {
	if err := fn(c); err != nil {
		return err
	}
	for _, ch := range c.Children() {
		if err := walk(ch, fn); err != nil {
			return err
		}
	}
	return nil
}

func forget(e *Engine, c *cmpkit.Ctx) {
	e.setMounted(c, false)
	for _, ch := range c.Children() {
		forget(e, ch)
	}
}

// restored converts a decoded snapshot value to the type of the current
// field value. Values that cannot be converted are kept as decoded.
func restored(cur, v any) any {
	if cur == nil || v == nil {
		return v
	}
	if out, ok := convert(reflect.ValueOf(v), reflect.TypeOf(cur)); ok {
		return out.Interface()
	}
	return v
}

func convert(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(t), true
		}
		v = v.Elem()
	}
	switch {
	case v.Type().AssignableTo(t):
		return v, true
	case v.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			el, ok := convert(v.Index(i), t.Elem())
			if !ok {
				return v, false
			}
			out.Index(i).Set(el)
		}
		return out, true
	case numeric(v.Kind()) && numeric(t.Kind()):
		return v.Convert(t), true
	}
	return v, false
}

func numeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

package demo

import (
	"context"
	"reflect"
	"strconv"

	"github.com/pthm/cmpkit"
)

// Counter keeps a protected count. Writes made while the counter is loading
// are deferred until loading ends.
var Counter = cmpkit.Define("b-counter", Block).
	Decorate("step", cmpkit.Prop(cmpkit.Params{
		Type:      reflect.Int,
		Default:   1,
		Validator: func(v any) bool { n, _ := v.(int); return n > 0 },
	})).
	Decorate("count", cmpkit.Field(cmpkit.Params{Default: 0, Protected: true})).
	Decorate("history", cmpkit.Field(cmpkit.Params{
		After: []string{"countStore"},
		Init: func(_ context.Context, _ *cmpkit.Ctx, data cmpkit.Record) (any, error) {
			n, _ := data["countStore"].(int)
			return []int{n}, nil
		},
	})).
	Decorate("loaded", cmpkit.System(cmpkit.Params{Default: false})).
	Decorate("saved", cmpkit.System(cmpkit.Params{})).
	Method("increment", func(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		n, _ := c.Get("count").(int)
		step, _ := c.Get("step").(int)
		return nil, c.Set("count", n+step)
	}).
	Method("load", func(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		c.Acquire("load")
		defer c.Release("load")
		return nil, c.Set("loaded", true)
	}, cmpkit.HookOn(cmpkit.HookCreated)).
	Method("save", func(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		return nil, c.Set("saved", c.Get("count"))
	}, cmpkit.HookOn(cmpkit.HookCreated, "load")).
	Method("record", func(_ context.Context, c *cmpkit.Ctx, args ...any) (any, error) {
		n, _ := args[0].(int)
		prev, _ := c.Get("history").([]int)
		next := append(append([]int(nil), prev...), n)
		return nil, c.Set("history", next)
	}, cmpkit.Watch(cmpkit.Watcher{Field: "count"})).
	Render(func(c *cmpkit.Ctx, h cmpkit.CreateElementFunc) cmpkit.Node {
		n, _ := c.Get("count").(int)
		return h("div", rootData(c),
			h("span", &cmpkit.VNodeData{
				Class:    []string{elem("b-counter", "count")},
				DomProps: map[string]any{"textContent": strconv.Itoa(n)},
			}))
	})

package demo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pthm/cmpkit"
)

// Progress is a progress bar. valueProp seeds the value; the value accessor
// updates it and emits complete when it reaches 100.
var Progress = cmpkit.Define("b-progress", Block).
	Decorate("valueProp",
		cmpkit.Prop(cmpkit.Params{Type: reflect.Int, Default: 0}),
		cmpkit.Watch(cmpkit.Watcher{Handler: func(c *cmpkit.Ctx, v, _ any) {
			if err := c.Set("value", v); err != nil {
				c.Logger().Error(err, "sync value")
			}
		}})).
	Decorate("valueStore",
		cmpkit.FieldInit(link("valueProp")),
		cmpkit.Watch(cmpkit.Watcher{Method: "syncProgressMod", Immediate: true})).
	Mods("progress").
	Accessor("value",
		func(c *cmpkit.Ctx) any {
			return c.Get("valueStore")
		},
		func(c *cmpkit.Ctx, v any) error {
			if err := c.Set("valueStore", v); err != nil {
				return err
			}
			if n, _ := v.(int); n >= 100 {
				c.Emit("complete")
			}
			return nil
		}).
	Method("syncProgressMod", func(_ context.Context, c *cmpkit.Ctx, args ...any) (any, error) {
		if len(args) > 0 && args[0] != nil {
			c.SetMod("progress", args[0])
		}
		return nil, nil
	}).
	Render(func(c *cmpkit.Ctx, h cmpkit.CreateElementFunc) cmpkit.Node {
		v, _ := c.Get("value").(int)
		return h("div", rootData(c),
			h("div", &cmpkit.VNodeData{
				Class: []string{elem("b-progress", "bar")},
				Style: map[string]string{"width": fmt.Sprintf("%d%%", v)},
			}))
	})

// link initializes a field from a prop.
func link(prop string) cmpkit.InitFunc {
	return func(_ context.Context, c *cmpkit.Ctx, _ cmpkit.Record) (any, error) {
		return c.Get(prop), nil
	}
}

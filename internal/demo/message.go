package demo

import (
	"context"
	"reflect"

	"github.com/pthm/cmpkit"
)

// Message is the abstract base of components that show an information or an
// error message.
var Message = cmpkit.Define("i-message", Block).
	Decorate("infoProp", cmpkit.Prop(cmpkit.Params{Type: reflect.String})).
	Decorate("errorProp", cmpkit.Prop(cmpkit.Params{Type: reflect.String})).
	Decorate("infoMsg",
		cmpkit.FieldInit(link("infoProp")),
		cmpkit.Watch(cmpkit.Watcher{Handler: showMod("showInfo"), Immediate: true})).
	Decorate("errorMsg",
		cmpkit.FieldInit(link("errorProp")),
		cmpkit.Watch(cmpkit.Watcher{Handler: showMod("showError"), Immediate: true})).
	Mods("showInfo", "true", []any{"false"}).
	Mods("showError", "true", []any{"false"}).
	Mods("opened", "true", []any{"false"}).
	Accessor("info",
		func(c *cmpkit.Ctx) any { return c.Get("infoMsg") },
		func(c *cmpkit.Ctx, v any) error { return c.Set("infoMsg", v) }).
	Accessor("error",
		func(c *cmpkit.Ctx) any { return c.Get("errorMsg") },
		func(c *cmpkit.Ctx, v any) error { return c.Set("errorMsg", v) }).
	Method("open", func(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		return setOpened(c, true), nil
	}).
	Method("close", func(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		return setOpened(c, false), nil
	}).
	Method("toggle", func(ctx context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
		if v, _ := c.Mod("opened"); v == "true" {
			return c.Call(ctx, "close")
		}
		return c.Call(ctx, "open")
	})

// setOpened sets the opened modifier and emits open or close when it
// changed.
func setOpened(c *cmpkit.Ctx, opened bool) bool {
	want := "false"
	event := "close"
	if opened {
		want, event = "true", "open"
	}
	if v, _ := c.Mod("opened"); v == want {
		return false
	}
	c.SetMod("opened", want)
	c.Emit(event)
	return true
}

func showMod(mod string) cmpkit.WatchFunc {
	return func(c *cmpkit.Ctx, v, _ any) {
		s, _ := v.(string)
		if s != "" {
			c.SetMod(mod, true)
		} else {
			c.SetMod(mod, false)
		}
	}
}

// Notice renders the messages of Message.
var Notice = cmpkit.Define("b-notice", Message).
	Render(func(c *cmpkit.Ctx, h cmpkit.CreateElementFunc) cmpkit.Node {
		var children []cmpkit.Node
		if info, _ := c.Get("info").(string); info != "" {
			children = append(children, h("div", &cmpkit.VNodeData{
				Class:    []string{elem("b-notice", "info")},
				DomProps: map[string]any{"textContent": info},
			}))
		}
		if msg, _ := c.Get("error").(string); msg != "" {
			children = append(children, h("div", &cmpkit.VNodeData{
				Class:    []string{elem("b-notice", "error")},
				DomProps: map[string]any{"textContent": msg},
			}))
		}
		children = append(children, c.Slots()...)

		data := rootData(c)
		if t := theme(c); t != "" {
			data.Attrs = map[string]any{"data-theme": t}
		}
		return h("div", data, children...)
	})

// theme returns the theme provided by an ancestor.
func theme(c *cmpkit.Ctx) string {
	v, _ := c.Inject("theme")
	s, _ := v.(string)
	return s
}

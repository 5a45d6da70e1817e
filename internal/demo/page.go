package demo

import (
	"reflect"

	"github.com/pthm/cmpkit"
)

// Page composes the other components of the catalog.
var Page = cmpkit.Define("p-index", Block).
	Params(cmpkit.ComponentParams{
		InheritAttrs: true,
		Root:         true,
		Provide:      cmpkit.Record{"theme": "light"},
	}).
	Decorate("title", cmpkit.Prop(cmpkit.Params{Type: reflect.String, Default: "Index"})).
	Decorate("progress", cmpkit.Prop(cmpkit.Params{Type: reflect.Int, Default: 0})).
	Decorate("notice", cmpkit.Prop(cmpkit.Params{Type: reflect.String})).
	Render(func(c *cmpkit.Ctx, h cmpkit.CreateElementFunc) cmpkit.Node {
		title, _ := c.Get("title").(string)
		return h("div", rootData(c),
			h("h1", &cmpkit.VNodeData{DomProps: map[string]any{"textContent": title}}),
			h("b-progress", &cmpkit.VNodeData{
				Ref:   "progress",
				Attrs: map[string]any{"valueProp": c.Get("progress")},
			}),
			h("b-notice", &cmpkit.VNodeData{
				Ref:   "notice",
				Attrs: map[string]any{"infoProp": c.Get("notice")},
			}, cmpkit.Text("Welcome")),
		)
	})

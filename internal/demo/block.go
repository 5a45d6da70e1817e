// Package demo is a small component catalog used by the CLI and tests.
package demo

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pthm/cmpkit"
)

// Block is the abstract root of the catalog. It has no render function.
var Block = cmpkit.Define("i-block", nil).
	Decorate("classes", cmpkit.Prop(cmpkit.Params{Type: reflect.Slice})).
	Decorate("componentId", cmpkit.SystemInit(func(_ context.Context, c *cmpkit.Ctx, _ cmpkit.Record) (any, error) {
		return fmt.Sprintf("%s-%d", c.Name(), c.UID()), nil
	})).
	Method("blockClass", blockClass)

// blockClass returns the BEM classes of the root element: the component name,
// one class per modifier and the extra classes passed by the parent.
func blockClass(_ context.Context, c *cmpkit.Ctx, _ ...any) (any, error) {
	name := c.Name()
	mods := c.Mods()

	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	classes := []string{name}
	for _, k := range keys {
		classes = append(classes, fmt.Sprintf("%s_%s_%s", name, kebab(k), mods[k]))
	}
	if extra, ok := c.Get("classes").([]string); ok {
		classes = append(classes, extra...)
	}
	return classes, nil
}

// rootData returns the element data of a component root.
func rootData(c *cmpkit.Ctx) *cmpkit.VNodeData {
	classes, _ := c.Call(context.Background(), "blockClass")
	cls, _ := classes.([]string)
	return &cmpkit.VNodeData{Class: cls}
}

func elem(name, el string) string {
	return name + "__" + el
}

func kebab(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Classes returns the concrete components of the catalog.
func Classes() []*cmpkit.Class {
	return []*cmpkit.Class{Progress, Notice, Counter, Page}
}

// Register registers the catalog.
func Register(reg *cmpkit.Registry) error {
	return reg.Register(Classes()...)
}

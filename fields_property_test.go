//go:build property
// +build property

package cmpkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// acyclicFields builds n fields where field i may wait only for fields
// declared before it, which keeps the graph acyclic. edges selects the
// dependencies.
func acyclicFields(n int, edges []bool) *Ordered[*FieldDecl] {
	decls := make([]*FieldDecl, n)
	e := 0
	for i := 0; i < n; i++ {
		f := &FieldDecl{}
		for j := 0; j < i; j++ {
			if e < len(edges) && edges[e] {
				f.After = append(f.After, fmt.Sprintf("f%d", j))
			}
			e++
		}
		deps := append([]string(nil), f.After...)
		f.Init = func(_ context.Context, _ *Ctx, data Record) (any, error) {
			for _, d := range deps {
				if !data.Has(d) {
					return nil, fmt.Errorf("dependency %s not settled", d)
				}
			}
			return len(deps), nil
		}
		decls[i] = f
	}

	// Declared in reverse, so declaration order never matches dependency
	// order.
	fields := NewOrdered[*FieldDecl]()
	for i := n - 1; i >= 0; i-- {
		fields.Set(fmt.Sprintf("f%d", i), decls[i])
	}
	return fields
}

func TestInitFieldsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("acyclic graphs settle dependencies first", prop.ForAll(
		func(n int, edges []bool) bool {
			fields := acyclicFields(n, edges)
			got, err := InitFields(context.Background(), fields, nil, nil, nil)
			if err != nil {
				return false
			}
			return len(got) == n
		},
		gen.IntRange(1, 12),
		gen.SliceOfN(66, gen.Bool()),
	))

	properties.Property("a back edge is always a cycle", prop.ForAll(
		func(n int) bool {
			fields := acyclicFields(n, nil)
			for i := 1; i < n; i++ {
				f, _ := fields.Get(fmt.Sprintf("f%d", i))
				f.After = append(f.After, fmt.Sprintf("f%d", i-1))
			}
			first, _ := fields.Get("f0")
			first.After = append(first.After, fmt.Sprintf("f%d", n-1))

			_, err := InitFields(context.Background(), fields, nil, nil, nil)
			return IsConfigError(err)
		},
		gen.IntRange(2, 12),
	))

	properties.TestingRun(t)
}

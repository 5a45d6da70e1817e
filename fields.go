package cmpkit

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

type fieldResult struct {
	idx   int
	value any
	err   error
}

// InitFields initializes fields into target and returns it. Keys already
// present in target are left alone and satisfy dependencies on them.
//
// Every name in a field's After set must be a sibling or present in target,
// and the sibling graph must be acyclic; otherwise InitFields fails with
// ErrMissingDependency or ErrDependencyCycle before running any initializer.
//
// Fields whose dependencies are settled run concurrently, each against a
// snapshot of the record settled so far. Results are committed by the calling
// goroutine only, so an initializer never observes a partially written
// record. A failed initializer leaves its field unset and its dependents are
// not run; the other fields still complete.
func InitFields(ctx context.Context, fields *Ordered[*FieldDecl], c *Ctx, instance Record, target Record) (Record, error) {
	if target == nil {
		target = Record{}
	}

	var names []string
	for _, k := range fields.Keys() {
		if !target.Has(k) {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return target, nil
	}

	g, err := fieldGraph(fields, names, target)
	if err != nil {
		return target, err
	}
	if err := g.detectCycles(); err != nil {
		return target, err
	}

	var (
		waiting    = g.pending()
		dependents = g.dependents()
		results    = make(chan fieldResult, len(names))
		ready      []int
		running    int
		errs       error
		cancelled  bool
	)
	for i, n := range waiting {
		if n == 0 {
			ready = append(ready, i)
		}
	}

	for {
		slices.Sort(ready)
		for _, i := range ready {
			if err := ctx.Err(); err != nil {
				if !cancelled {
					cancelled = true
					errs = multierr.Append(errs, fmt.Errorf("%w: %w", ErrInitFailed, err))
				}
				break
			}

			key := names[i]
			f, _ := fields.Get(key)
			snapshot := target.Clone()
			running++
			go func(i int) {
				v, err := initField(ctx, key, f, c, instance, snapshot)
				results <- fieldResult{idx: i, value: v, err: err}
			}(i)
		}
		ready = ready[:0]

		if running == 0 {
			break
		}

		r := <-results
		running--
		if r.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", ErrInitFailed, names[r.idx], r.err))
			continue
		}

		target[names[r.idx]] = r.value
		for _, d := range dependents[r.idx] {
			waiting[d]--
			if waiting[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	return target, errs
}

func fieldGraph(fields *Ordered[*FieldDecl], names []string, target Record) (*depGraph, error) {
	index := make(map[string]int, len(names))
	for i, k := range names {
		index[k] = i
	}

	g := &depGraph{names: names, deps: make([][]int, len(names))}
	for i, k := range names {
		f, _ := fields.Get(k)
		for _, dep := range f.After {
			if j, ok := index[dep]; ok {
				g.deps[i] = append(g.deps[i], j)
				continue
			}
			if !target.Has(dep) {
				return nil, fmt.Errorf("%w: field %q waits for %q", ErrMissingDependency, k, dep)
			}
		}
	}
	return g, nil
}

// initField computes the value of one field: the initializer result, then the
// declared default, then a copy of the prototype default, then the value the
// instance already holds.
func initField(ctx context.Context, key string, f *FieldDecl, c *Ctx, instance Record, data Record) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if f.Init != nil {
		v, err = f.Init(ctx, c, data)
		if err != nil {
			return nil, err
		}
	}
	if v == nil {
		v = f.DefaultValue()
	}
	if v == nil {
		if def, ok := instance[key]; ok {
			v = Clone(def)
		}
	}
	if v == nil && c != nil {
		v, _ = c.peek(key)
	}
	return v, nil
}

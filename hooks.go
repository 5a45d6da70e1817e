package cmpkit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// RunHook runs every callback registered for phase and waits for all of
// them to settle.
//
// Callbacks without After constraints start at once and run concurrently. A
// callback that lists sibling names in After starts exactly once, after each
// of those siblings has completed successfully. Callbacks without a name
// cannot be waited on. A failing or panicking callback is reported in the
// returned error and its dependents never start; unrelated callbacks still
// run to completion.
func RunHook(ctx context.Context, phase Hook, meta *Meta, c *Ctx, args ...any) error {
	if c != nil {
		c.setHook(phase)
	}

	var cbs []HookBinding
	if c != nil && c.meta == meta {
		cbs = c.hookBindings(phase)
	} else {
		cbs = append(cbs, meta.Hooks[phase]...)
	}
	if len(cbs) == 0 {
		return nil
	}

	g, err := hookGraph(phase, cbs)
	if err != nil {
		return err
	}
	if err := g.detectCycles(); err != nil {
		return fmt.Errorf("hook %s: %w", phase, err)
	}

	r := &hookRun{
		ctx:       ctx,
		phase:     phase,
		c:         c,
		args:      args,
		cbs:       cbs,
		labels:    g.names,
		remaining: make([]map[string]struct{}, len(cbs)),
		started:   make([]bool, len(cbs)),
		waiters:   make(map[string][]int),
	}
	for i, cb := range cbs {
		if len(cb.After) == 0 {
			continue
		}
		r.remaining[i] = make(map[string]struct{}, len(cb.After))
		for _, dep := range cb.After {
			if _, ok := r.remaining[i][dep]; ok {
				continue
			}
			r.remaining[i][dep] = struct{}{}
			r.waiters[dep] = append(r.waiters[dep], i)
		}
	}

	r.mu.Lock()
	for i, cb := range cbs {
		if len(cb.After) == 0 {
			r.launch(i)
		}
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.errs
}

func hookGraph(phase Hook, cbs []HookBinding) (*depGraph, error) {
	byName := make(map[string][]int, len(cbs))
	labels := make([]string, len(cbs))
	for i, cb := range cbs {
		labels[i] = cb.Name
		if cb.Name == "" {
			labels[i] = fmt.Sprintf("#%d", i)
			continue
		}
		byName[cb.Name] = append(byName[cb.Name], i)
	}

	g := &depGraph{names: labels, deps: make([][]int, len(cbs))}
	for i, cb := range cbs {
		for _, dep := range cb.After {
			idx, ok := byName[dep]
			if !ok {
				return nil, fmt.Errorf("%w: hook %s callback %q waits for %q", ErrMissingDependency, phase, labels[i], dep)
			}
			g.deps[i] = append(g.deps[i], idx...)
		}
	}
	return g, nil
}

// hookRun is the transient state of one RunHook call.
type hookRun struct {
	ctx   context.Context
	phase Hook
	c     *Ctx
	args  []any
	cbs   []HookBinding

	labels []string

	mu        sync.Mutex
	wg        sync.WaitGroup
	remaining []map[string]struct{}
	started   []bool
	waiters   map[string][]int
	errs      error
	cancelled bool
}

// launch starts callback i. r.mu must be held.
func (r *hookRun) launch(i int) {
	r.started[i] = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.settle(i, r.call(i))
	}()
}

func (r *hookRun) call(i int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	fn := r.cbs[i].Fn
	if fn == nil {
		return nil
	}
	_, err = fn(r.ctx, r.c, r.args...)
	return err
}

func (r *hookRun) settle(i int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.errs = multierr.Append(r.errs, fmt.Errorf("%w: %s/%s: %w", ErrHookFailed, r.phase, r.labels[i], err))
		return
	}

	name := r.cbs[i].Name
	if name == "" {
		return
	}

	for _, w := range r.waiters[name] {
		delete(r.remaining[w], name)
		if len(r.remaining[w]) > 0 || r.started[w] {
			continue
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			if !r.cancelled {
				r.cancelled = true
				r.errs = multierr.Append(r.errs, fmt.Errorf("%w: %s: %w", ErrHookFailed, r.phase, ctxErr))
			}
			continue
		}
		r.launch(w)
	}
}

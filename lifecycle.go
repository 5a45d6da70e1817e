package cmpkit

import (
	"context"
	"fmt"
	"io"
)

// Render calls the render function of the instance with the element
// constructor of its engine.
func (c *Ctx) Render() (n Node, err error) {
	if c.opts.Render == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRenderer, c.name)
	}
	if c.engine == nil {
		return nil, fmt.Errorf("%w: %s has no engine", ErrNoRenderer, c.name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render %s: panic: %v", c.name, r)
		}
	}()
	return c.opts.Render(c, c.engine.CreateElement), nil
}

// Mount renders the instance into w between the beforeMount and mounted
// phases. Child components mount while the parent's nodes are written.
func Mount(ctx context.Context, c *Ctx, w io.Writer) error {
	if err := c.opts.Run(ctx, HookBeforeMount, c); err != nil {
		return err
	}
	if err := write(ctx, c, w); err != nil {
		return err
	}
	return c.opts.Run(ctx, HookMounted, c)
}

// Update re-renders a mounted instance between the beforeUpdate and updated
// phases.
func Update(ctx context.Context, c *Ctx, w io.Writer) error {
	if c.Destroyed() {
		return fmt.Errorf("%w: %s", ErrDestroyed, c.name)
	}
	if err := c.opts.Run(ctx, HookBeforeUpdate, c); err != nil {
		return err
	}
	if err := write(ctx, c, w); err != nil {
		return err
	}
	return c.opts.Run(ctx, HookUpdated, c)
}

// Destroy runs the destruction phases of c and its children. Pending
// protected writes are dropped.
func Destroy(ctx context.Context, c *Ctx) error {
	if c.Destroyed() {
		return nil
	}
	if err := c.opts.Run(ctx, HookBeforeDestroy, c); err != nil {
		return err
	}
	for _, ch := range c.Children() {
		if err := Destroy(ctx, ch); err != nil {
			return err
		}
	}
	return c.opts.Run(ctx, HookDestroyed, c)
}

// Activate runs the activated phase of a kept-alive instance.
func Activate(ctx context.Context, c *Ctx) error {
	return c.opts.Run(ctx, HookActivated, c)
}

// Deactivate runs the deactivated phase of a kept-alive instance.
func Deactivate(ctx context.Context, c *Ctx) error {
	return c.opts.Run(ctx, HookDeactivated, c)
}

// CaptureError forwards err to the errorCaptured phase of c and each of its
// ancestors.
func CaptureError(ctx context.Context, c *Ctx, err error) {
	for p := c; p != nil; p = p.parent {
		if rerr := p.opts.Run(ctx, HookErrorCaptured, p, err); rerr != nil {
			p.fail(HookErrorCaptured, rerr)
		}
	}
}

func write(ctx context.Context, c *Ctx, w io.Writer) error {
	n, err := c.Render()
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	return n.Render(WithCtx(ctx, c), w)
}

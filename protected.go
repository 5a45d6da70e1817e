package cmpkit

// EventStateSemaphoreFree is the change key emitted when the last guard label
// is released.
const EventStateSemaphoreFree = "stateSemaphoreFree"

// Acquire adds label to the guard semaphore. While any label is held, writes
// to protected fields are deferred.
func (c *Ctx) Acquire(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.semaphore[label] = struct{}{}
}

// Release removes label from the guard semaphore. Releasing the last label
// replays the deferred protected writes, the most recent write of each field
// exactly once, in the order the fields were first deferred.
func (c *Ctx) Release(label string) {
	c.mu.Lock()
	if _, ok := c.semaphore[label]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.semaphore, label)
	if len(c.semaphore) > 0 || c.destroyed {
		c.mu.Unlock()
		return
	}
	order, writes := c.order, c.deferred
	c.order, c.deferred = nil, make(map[string]deferredWrite)
	c.mu.Unlock()

	c.notify(EventStateSemaphoreFree, nil, nil, false)
	for _, field := range order {
		w := writes[field]
		if err := c.writeField(w.store, w.value, field); err != nil {
			c.log.Error(err, "replay protected write", "field", field)
		}
	}
}

// Guarded reports whether the guard semaphore is held.
func (c *Ctx) Guarded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.semaphore) > 0
}

// setProtected writes a protected field through its store.
func (c *Ctx) setProtected(key, store string, value any) error {
	return c.set(store, value, key)
}

// destroy marks the instance destroyed and drops the deferred writes.
func (c *Ctx) destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	dropped := c.order
	c.order, c.deferred = nil, make(map[string]deferredWrite)
	children := make([]*Ctx, 0, len(c.children))
	for _, ch := range c.children {
		children = append(children, ch)
	}
	c.mu.Unlock()

	if len(dropped) > 0 {
		c.log.V(1).Info("dropped deferred protected writes", "fields", dropped)
	}
	for _, ch := range children {
		ch.destroy()
	}
}

package main

import (
	"sync"
	"time"
)

// keySink receives synthesized key events.
type keySink interface {
	KeyDown(key string) error
	KeyUp(key string) error
}

// windowChorder turns a stream of key presses into press/release pairs.
// Terminals report no key-up, so every chord key pressed within window of the
// previous one is held together, and all of them are released when the
// window closes.
type windowChorder struct {
	window time.Duration
	sink   keySink

	mu    sync.Mutex
	held  []string
	timer *time.Timer
	gen   uint64
}

func newWindowChorder(window time.Duration, sink keySink) *windowChorder {
	return &windowChorder{window: window, sink: sink}
}

// Press holds key and restarts the window.
func (c *windowChorder) Press(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.held {
		if k == key {
			c.restart()
			return
		}
	}
	c.held = append(c.held, key)
	c.sink.KeyDown(key)
	c.restart()
}

// Flush releases the held keys now, completing the chord before a control
// key is applied.
func (c *windowChorder) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.releaseLocked()
}

func (c *windowChorder) restart() {
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, func() { c.expire(gen) })
}

// expire releases the held keys if no key was pressed since timer gen was
// armed. A timer that fired while Press held the lock finds a newer gen.
func (c *windowChorder) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.timer = nil
	c.releaseLocked()
}

func (c *windowChorder) releaseLocked() {
	for _, k := range c.held {
		c.sink.KeyUp(k)
	}
	c.held = nil
}

package workspace

import "time"

// defaultFlushWindow bounds how often high-frequency stream chunks are written
// through to a document field.
const defaultFlushWindow = 200 * time.Millisecond

// coalescer batches high-frequency writes into a bounded window. Add stages a
// value and writes it through at most once per window; Final writes the staged
// value unconditionally so the trailing chunk of a stream is never lost. A
// timer alone cannot give that guarantee, which is why the terminal-event path
// is explicit.
type coalescer struct {
	window    time.Duration
	write     func(string)
	now       func() time.Time
	lastFlush time.Time
	pending   string
	dirty     bool
}

func newCoalescer(window time.Duration, write func(string)) *coalescer {
	if window <= 0 {
		window = defaultFlushWindow
	}
	return &coalescer{
		window: window,
		write:  write,
		now:    time.Now,
	}
}

// Add stages the latest full value and flushes it when the window has elapsed.
func (c *coalescer) Add(value string) {
	c.pending = value
	c.dirty = true
	if c.lastFlush.IsZero() || c.now().Sub(c.lastFlush) >= c.window {
		c.flush()
	}
}

// Final writes any staged value regardless of the window. Called on stream
// completion, cancellation, and failure.
func (c *coalescer) Final() {
	if c.dirty {
		c.flush()
	}
}

func (c *coalescer) flush() {
	c.write(c.pending)
	c.dirty = false
	c.lastFlush = c.now()
}

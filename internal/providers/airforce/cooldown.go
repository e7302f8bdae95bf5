package airforce

import (
	"context"
	"sync"
	"time"
)

// CooldownSeconds is the provider's shared per-key window between successful
// generations.
const CooldownSeconds = 60

// Cooldown tracks the seconds remaining until the provider's informational
// cooldown expires. The window is global for one API key, so every successful
// generation from any model restarts the same timer. It never gates or queues
// a generation; callers only read it to render a label.
//
// State is process-local and starts idle; it is never persisted.
type Cooldown struct {
	mu        sync.Mutex
	remaining int
}

func NewCooldown() *Cooldown {
	return &Cooldown{}
}

// Start resets the window to the full 60 seconds. Starting mid-countdown
// restarts the window, it never stacks.
func (c *Cooldown) Start() {
	c.mu.Lock()
	c.remaining = CooldownSeconds
	c.mu.Unlock()
}

// Tick decrements the countdown by one second, clamping at zero. It is meant
// to be driven by a scheduler at roughly one-second granularity and never
// blocks beyond the mutex.
func (c *Cooldown) Tick() {
	c.mu.Lock()
	if c.remaining > 0 {
		c.remaining--
	}
	c.mu.Unlock()
}

// Remaining returns the seconds left, zero when idle.
func (c *Cooldown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Run ticks the cooldown once per second until ctx is done. It is a
// convenience for the process wiring; tests drive Tick directly.
func (c *Cooldown) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-ctx.Done():
			return
		}
	}
}

package engine

import (
	"sync"
	"time"

	"chatguard/internal/model"
)

// Cooldown tracks the last time an alert type fired for each origin. A
// pair is "cool" when nothing fired within the window and "suppressed"
// otherwise; suppression lifts purely by time elapsing. The read-decide-
// write step is atomic per key, so two concurrent messages from one origin
// can never both observe cool.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{last: make(map[string]time.Time)}
}

// Allow reports whether the (origin, alertType) pair may fire at now, and
// if so records the firing. window <= 0 disables suppression.
func (c *Cooldown) Allow(originID string, alertType model.AlertType, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return true
	}
	key := originID + "|" + string(alertType)
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.last[key]; ok {
		if now.Sub(ts) < window {
			return false
		}
	}
	c.last[key] = now
	if len(c.last) > 10000 {
		c.compact(now, window)
	}
	return true
}

// compact drops entries whose window elapsed long enough ago that they can
// never suppress again. Called under c.mu.
func (c *Cooldown) compact(now time.Time, window time.Duration) {
	cutoff := 2 * window
	for k, ts := range c.last {
		if now.Sub(ts) > cutoff {
			delete(c.last, k)
		}
	}
}

func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

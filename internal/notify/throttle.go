package notify

import (
	"sync"
	"time"
)

// throttle suppresses repeats of the same alert key within a cooldown
// window. It is safe for concurrent use.
type throttle struct {
	seen     map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

func newThrottle(cooldown time.Duration) *throttle {
	return &throttle{
		seen:     make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// allow records key and reports whether it was not seen within the cooldown.
// Expired keys are swept on every call so the map stays bounded by the
// number of distinct keys per window.
func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, ts := range t.seen {
		if now.Sub(ts) >= t.cooldown {
			delete(t.seen, k)
		}
	}
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = now
	return true
}

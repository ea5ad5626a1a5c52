package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ipThrottle is an in-memory sliding-window counter keyed by client IP.
// State is per process; a horizontally scaled deployment throttles per
// instance, which is acceptable for a first line of defense.
type ipThrottle struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

func newIPThrottle(limit int, window time.Duration) *ipThrottle {
	return &ipThrottle{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// allow records a hit for ip and reports whether it is within limits.
func (t *ipThrottle) allow(ip string, now time.Time) bool {
	if t == nil || t.limit <= 0 || ip == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cut := now.Add(-t.window)
	kept := t.hits[ip][:0]
	for _, ts := range t.hits[ip] {
		if ts.After(cut) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= t.limit {
		t.hits[ip] = kept
		return false
	}
	t.hits[ip] = append(kept, now)
	return true
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

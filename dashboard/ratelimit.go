package dashboard

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a per-key sliding one-minute window.
type RateLimiter struct {
	mu             sync.Mutex
	requestsPerMin int
	windows        map[string][]time.Time
	now            func() time.Time
}

func NewRateLimiter(requestsPerMin int) *RateLimiter {
	return &RateLimiter{
		requestsPerMin: requestsPerMin,
		windows:        make(map[string][]time.Time),
		now:            time.Now,
	}
}

// Allow records a request for key. When the window is full it returns false
// and the number of seconds until the oldest request leaves the window.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-time.Minute)

	valid := rl.windows[key][:0]
	for _, ts := range rl.windows[key] {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.requestsPerMin {
		rl.windows[key] = valid
		retryAfter := int(valid[0].Add(time.Minute).Sub(now).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	rl.windows[key] = append(valid, now)
	return true, 0
}

func WriteRateLimitExceeded(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
}

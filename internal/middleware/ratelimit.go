package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit allows limit requests per window for each caller, with bursts up
// to limit. Callers are keyed by owner id when authenticated, else by IP.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	every := rate.Every(per / time.Duration(limit))
	var mu sync.Mutex
	visitors := make(map[string]*visitor)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := OwnerIDFromContext(r.Context())
			if key == "" {
				key = "ip:" + ClientIP(r)
			}
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > per {
				for k, v := range visitors {
					if now.Sub(v.lastSeen) > per {
						delete(visitors, k)
					}
				}
				lastSweep = now
			}
			v, ok := visitors[key]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(every, limit)}
				visitors[key] = v
			}
			v.lastSeen = now
			reservation := v.limiter.ReserveN(now, 1)
			delay := reservation.DelayFrom(now)
			if delay > 0 {
				reservation.CancelAt(now)
			}
			mu.Unlock()

			if delay > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

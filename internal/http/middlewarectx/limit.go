package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
)

// idleLimiterTTL через столько неиспользуемый лимитер клиента удаляется.
const idleLimiterTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitors struct {
	mu    sync.Mutex
	items map[string]*visitor
	rps   rate.Limit
	burst int
	now   func() time.Time
}

func (v *visitors) get(key string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if it, ok := v.items[key]; ok {
		it.lastSeen = now
		return it.limiter
	}
	for k, it := range v.items {
		if now.Sub(it.lastSeen) > idleLimiterTTL {
			delete(v.items, k)
		}
	}
	l := rate.NewLimiter(v.rps, v.burst)
	v.items[key] = &visitor{limiter: l, lastSeen: now}
	return l
}

// RateLimitMiddleware ограничивает частоту запросов с одного IP-адреса.
// Ожидает, что RemoteAddr уже исправлен middleware.RealIP.
func RateLimitMiddleware(log *slog.Logger, cfg config.RateLimit) func(http.Handler) http.Handler {
	v := &visitors{
		items: make(map[string]*visitor),
		rps:   rate.Limit(cfg.RPS),
		burst: cfg.Burst,
		now:   time.Now,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !v.get(key).Allow() {
				log.Warn("too many requests", slog.String("client", key))
				response.WriteStatus(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures Limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
	// KeyFunc returns the bucket for a request. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Methods limits which request methods are counted. Empty counts all.
	Methods []string
}

// Decision is the result of Limiter.Allow.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	prev, curr float64
	start      time.Time
}

// Limiter is a sliding-window counter keyed by client. The previous window's
// count is weighted by how much of it still overlaps the sliding window.
type Limiter struct {
	cfg     RateLimitConfig
	methods map[string]struct{}

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a Limiter.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}
	if len(cfg.Methods) > 0 {
		l.methods = make(map[string]struct{}, len(cfg.Methods))
		for _, m := range cfg.Methods {
			l.methods[strings.ToUpper(m)] = struct{}{}
		}
	}
	return l
}

// Allow records a request for key at now.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.cfg.Window
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{start: now.Truncate(w)}
		l.buckets[key] = b
	}
	switch elapsed := now.Sub(b.start); {
	case elapsed >= 2*w:
		b.prev, b.curr, b.start = 0, 0, now.Truncate(w)
	case elapsed >= w:
		b.prev, b.curr, b.start = b.curr, 0, b.start.Add(w)
	}

	weight := 1 - now.Sub(b.start).Seconds()/w.Seconds()
	used := b.prev*math.Max(weight, 0) + b.curr
	d := Decision{ResetAt: b.start.Add(w)}
	if used >= float64(l.cfg.Max) {
		return d
	}
	b.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(l.cfg.Max)-used-1), 0)
	return d
}

// Sweep drops buckets idle for two windows.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

// Run sweeps periodically until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

func (l *Limiter) counts(r *http.Request) bool {
	if l.methods == nil {
		return true
	}
	_, ok := l.methods[r.Method]
	return ok
}

// RateLimit rejects requests over the limit with 429 and a JSON body. Counted
// responses carry X-RateLimit-* headers.
func RateLimit(l *Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.counts(r) {
				next.ServeHTTP(w, r)
				return
			}
			d := l.Allow(l.cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := max(time.Until(d.ResetAt), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
				e.Field("message", func(e *jx.Encoder) { e.Str("Bạn thao tác quá nhanh, vui lòng thử lại sau.") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// ClientIP returns the host of the connection's remote address. Forwarding
// headers are ignored since any client can set them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the last X-Forwarded-For hop, which is the one appended
// by the fronting proxy, then X-Real-IP, then ClientIP. Use it only when every
// request passes through a trusted proxy.
func ForwardedIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return ClientIP(r)
}

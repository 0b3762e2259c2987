// Package ratelimit throttles requests per client IP with a token bucket.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/patric-chuzhbe/vidlib/internal/ipchecker"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

const tooManyRequestsMessage = "Too many requests, please try later!"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one bucket per client IP. Buckets idle for longer than
// idleTimeout are dropped on the next request.
type Limiter struct {
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

type Option func(*Limiter)

func WithIdleTimeout(timeout time.Duration) Option {
	return func(l *Limiter) {
		l.idleTimeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New returns a limiter allowing perSecond requests per client with bursts
// of up to burst. A non-positive perSecond disables limiting.
func New(perSecond float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		idleTimeout: 10 * time.Minute,
		now:         time.Now,
		visitors:    map[string]*visitor{},
	}
	if perSecond <= 0 {
		l.limit = rate.Inf
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastGC = l.now()

	return l
}

// Allow consumes one token of the client's bucket.
func (l *Limiter) Allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastGC) > l.idleTimeout {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idleTimeout {
				delete(l.visitors, key)
			}
		}
		l.lastGC = now
	}
	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[client] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Middleware answers 429 once the client's bucket is empty.
func (l *Limiter) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		client := request.RemoteAddr
		if ip, err := ipchecker.ClientIP(request); err == nil {
			client = ip.String()
		}

		if !l.Allow(client) {
			logger.Log.Infoln("rate limit exceeded", "client", client, "uri", request.RequestURI)
			response.Header().Set("Content-Type", "application/json")
			response.Header().Set("Retry-After", "1")
			response.WriteHeader(http.StatusTooManyRequests)
			err := json.NewEncoder(response).Encode(models.MessageResponse{Message: tooManyRequestsMessage})
			if err != nil {
				logger.Log.Debugln("Error encoding the rate limit response: ", zap.Error(err))
			}
			return
		}

		h.ServeHTTP(response, request)
	})
}

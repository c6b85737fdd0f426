package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterSweep = 5 * time.Minute
	limiterIdle  = 10 * time.Minute
)

// GetRealIP attempts to determine the client's real IP address, trusting
// headers like CF-Connecting-IP or X-Forwarded-For if configured to do so.
func GetRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
			return cf
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// RateLimitMiddleware applies a per-IP token bucket. Requests over the limit
// get "429 Too Many Requests". A zero count disables the limit.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	if s.hardLimitCount <= 0 || s.hardLimitWin <= 0 {
		return next
	}

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
		limit   = rate.Limit(float64(s.hardLimitCount) / s.hardLimitWin.Seconds())
	)

	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()

		for {
			select {
			case <-s.shutdown:
				return
			case now := <-ticker.C:
				mu.Lock()
				for ip, c := range clients {
					if now.Sub(c.lastSeen) > limiterIdle {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetRealIP(r, s.trustProxy)

		mu.Lock()
		cli, found := clients[ip]
		if !found {
			cli = &client{limiter: rate.NewLimiter(limit, s.hardLimitCount)}
			clients[ip] = cli
		}
		cli.lastSeen = time.Now()
		limiter := cli.limiter
		mu.Unlock()

		if !limiter.Allow() {
			log.Debug().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit hit")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs the method, path, status, IP and duration of each request.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Str("ip", GetRealIP(r, s.trustProxy)).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// AdminAuthMiddleware protects endpoints by requiring a valid Bearer token in the Authorization header.
func AdminAuthMiddleware(token string, next http.Handler) http.Handler {
	expected := []byte("Bearer " + token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Package middleware provides HTTP middleware components for the web
// frontend, following the Chain of Responsibility pattern
package middleware

import (
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/andybalholm/brotli"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Middleware provides all middleware functions
type Middleware struct {
	config   *config.Config
	logger   *zap.Logger
	limiters *ipLimiters
	drafts   *ipLimiters
}

// New creates a new middleware instance
func New(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		config: cfg,
		logger: logger.Named("http"),
		limiters: newIPLimiters(
			rate.Limit(float64(cfg.RateLimit.RequestsPerMin)/60),
			cfg.RateLimit.BurstSize,
		),
		drafts: newIPLimiters(
			rate.Limit(float64(cfg.RateLimit.DraftRequestsPerMin)/60),
			cfg.RateLimit.DraftBurstSize,
		),
	}
}

// Logger logs every request with its status and latency
func (m *Middleware) Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			}

			switch {
			case status >= 500:
				m.logger.Error("HTTP request", fields...)
			case status >= 400:
				m.logger.Warn("HTTP request", fields...)
			default:
				m.logger.Info("HTTP request", fields...)
			}
		})
	}
}

// Recovery turns panics into 500 responses
func (m *Middleware) Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					m.logger.Error("Panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.String("stack", string(debug.Stack())),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Security adds security headers suited to an HTMX frontend
func (m *Middleware) Security() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			csp := "default-src 'self'; " +
				"script-src 'self' 'unsafe-inline' https://unpkg.com; " +
				"style-src 'self' 'unsafe-inline'; " +
				"img-src 'self' data: https:; " +
				"connect-src 'self'; " +
				"frame-ancestors 'none'; " +
				"base-uri 'self'"

			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			if isStaticResource(r.URL.Path) {
				h.Set("Cache-Control", "public, max-age=31536000, immutable")
			} else {
				h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HTMX marks HTMX responses as uncacheable and varies on the HX-Request header
func (m *Middleware) HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "HX-Request")
			if IsHTMX(r) {
				w.Header().Set("Cache-Control", "no-cache")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Tracing wraps the handler in an OpenTelemetry server span
func (m *Middleware) Tracing() func(http.Handler) http.Handler {
	if !m.config.Monitoring.EnableTracing {
		return passthrough
	}
	return otelhttp.NewMiddleware(m.config.App.Name)
}

// Compression compresses responses with brotli when accepted, gzip or
// deflate otherwise
func (m *Middleware) Compression() func(http.Handler) http.Handler {
	if !m.config.Server.EnableCompression {
		return passthrough
	}

	compressor := chimw.NewCompressor(5, "text/html", "text/css", "text/plain", "application/json", "application/javascript")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return compressor.Handler
}

// RateLimit limits each client IP to the configured request rate
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.limiters, "requests")
}

// DraftRateLimit limits draft autosaves per client IP. Drafts are sent while
// the user types, so they draw from their own larger bucket and never use up
// the requests that post or delete.
func (m *Middleware) DraftRateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.drafts, "drafts")
}

func (m *Middleware) rateLimit(limiters *ipLimiters, bucket string) func(http.Handler) http.Handler {
	if !m.config.RateLimit.Enable {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiters.get(ip).Allow() {
				m.logger.Warn("Rate limit exceeded",
					zap.String("ip", ip),
					zap.String("bucket", bucket),
				)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CleanupLimiters drops limiters of clients not seen within idle
func (m *Middleware) CleanupLimiters(idle time.Duration) int {
	return m.limiters.cleanup(idle) + m.drafts.cleanup(idle)
}

// IsHTMX reports whether the request was issued by htmx
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func passthrough(next http.Handler) http.Handler { return next }

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiters struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func newIPLimiters(limit rate.Limit, burst int) *ipLimiters {
	return &ipLimiters{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (l *ipLimiters) cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, v := range l.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isStaticResource checks if the path is a static resource
func isStaticResource(path string) bool {
	for _, prefix := range []string{"/static/", "/favicon.ico", "/robots.txt"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

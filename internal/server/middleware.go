package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/at-ishikawa/mindbank/internal/auth"
	"github.com/at-ishikawa/mindbank/internal/config"
)

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
			w.Header().Set("Access-Control-Expose-Headers", "Grpc-Status, Grpc-Message, Retry-After")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger writes one structured line per request. The level follows
// the status code.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http_request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", float64(time.Since(start).Microseconds())/1000,
			)
		})
	}
}

// authInterceptor verifies the bearer token of every procedure except the
// public ones and puts the identity into the context.
type authInterceptor struct {
	issuer *auth.Issuer
	public map[string]bool
}

func newAuthInterceptor(issuer *auth.Issuer, publicProcedures ...string) *authInterceptor {
	public := make(map[string]bool, len(publicProcedures))
	for _, p := range publicProcedures {
		public[p] = true
	}
	return &authInterceptor{issuer: issuer, public: public}
}

func (a *authInterceptor) authenticate(ctx context.Context, header http.Header) (context.Context, error) {
	identity, err := a.issuer.VerifyHeader(header.Get("Authorization"))
	if err != nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	return auth.WithIdentity(ctx, identity), nil
}

func (a *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if a.public[req.Spec().Procedure] {
			return next(ctx, req)
		}
		ctx, err := a.authenticate(ctx, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if a.public[conn.Spec().Procedure] {
			return next(ctx, conn)
		}
		ctx, err := a.authenticate(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits, per user, the procedures that call paid AI endpoints.
// Limiters idle for two cleanup intervals are dropped.
type RateLimiter struct {
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	procedures      map[string]bool

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(cfg config.RateLimitConfig, cleanupInterval time.Duration, procedures ...string) *RateLimiter {
	limited := make(map[string]bool, len(procedures))
	for _, p := range procedures {
		limited[p] = true
	}
	rl := &RateLimiter{
		limit:           rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:           cfg.Burst,
		cleanupInterval: cleanupInterval,
		procedures:      limited,
		limiters:        make(map[string]*userLimiter),
		stopCh:          make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(userID string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = now
	return ul.limiter
}

func (rl *RateLimiter) retryAfter() string {
	seconds := 1
	if rl.limit > 0 {
		seconds = max(1, int(math.Ceil(1/float64(rl.limit))))
	}
	return strconv.Itoa(seconds)
}

func (rl *RateLimiter) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		procedure := req.Spec().Procedure
		if !rl.procedures[procedure] {
			return next(ctx, req)
		}
		identity, ok := auth.FromContext(ctx)
		if !ok {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
		}

		if !rl.limiter(identity.UserID, time.Now()).Allow() {
			slog.Default().Warn("rate limit exceeded",
				"user_id", identity.UserID,
				"procedure", procedure)
			connectErr := connect.NewError(connect.CodeResourceExhausted, fmt.Errorf("too many requests to %s", procedure))
			connectErr.Meta().Set("Retry-After", rl.retryAfter())
			return nil, connectErr
		}
		return next(ctx, req)
	}
}

func (rl *RateLimiter) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (rl *RateLimiter) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, userID)
		}
	}
}

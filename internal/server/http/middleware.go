package http

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or has another scheme.
func bearerToken(c *fiber.Ctx) string {
	h := c.Get(common.AuthorizationHeaderName)
	if !strings.HasPrefix(h, common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

// RequireAuth rejects requests whose bearer token does not authenticate and
// stores the *auth.Session in Locals otherwise.
func RequireAuth(svc AuthService, logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.Authenticate(c.UserContext(), bearerToken(c))
		if err != nil {
			return writeError(c.UserContext(), c, logger, err)
		}
		c.Locals(localsSession, s)
		return c.Next()
	}
}

// RequestLogger logs method, path, status and latency of each request.
func RequestLogger(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start).String(),
		)
		return err
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterRegistry keeps one token bucket per client key and forgets keys
// idle for longer than idleTTL.
type limiterRegistry struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterRegistry(perMinute int) *limiterRegistry {
	return &limiterRegistry{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

func (r *limiterRegistry) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) > r.idleTTL {
		for k, v := range r.visitors {
			if now.Sub(v.lastSeen) > r.idleTTL {
				delete(r.visitors, k)
			}
		}
		r.lastSweep = now
	}

	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit allows perMinute requests per client IP with an equal burst.
// A non-positive perMinute disables limiting.
func RateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	reg := newLimiterRegistry(perMinute)

	return func(c *fiber.Ctx) error {
		l := reg.get(c.IP())
		if !l.AllowN(reg.now(), 1) {
			retry := time.Minute / time.Duration(perMinute)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Seconds()+0.999)))
			return message(c, fiber.StatusTooManyRequests, MsgTooManyRequests)
		}
		return c.Next()
	}
}

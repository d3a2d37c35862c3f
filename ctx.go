package study

import (
	"github.com/gofiber/fiber/v2"
)

// Locals keys for the per-request state bag. Private so downstream code
// goes through the typed accessors.
const (
	sessionLocalsKey     = "study_session_state"
	permissionsLocalsKey = "study_permission_cache"
	nowLocalsKey         = "study_nowfn"
	anonymousLocalsKey   = "study_allow_anonymous"
)

func setSession(c *fiber.Ctx, state *SessionState) {
	c.Locals(sessionLocalsKey, state)
}

// SessionFromCtx returns the resolved session state, or nil when the
// resolver middleware has not run.
func SessionFromCtx(c *fiber.Ctx) *SessionState {
	state, _ := c.Locals(sessionLocalsKey).(*SessionState)
	return state
}

// WithClock installs a NowFunc for the request chain. Tests use it to pin
// time; production leaves it unset and gets UTCNow.
func WithClock(nowfn NowFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(nowLocalsKey, nowfn)
		return c.Next()
	}
}

// NowFromCtx resolves the request clock, defaulting to UTCNow.
func NowFromCtx(c *fiber.Ctx) NowFunc {
	if nowfn, ok := c.Locals(nowLocalsKey).(NowFunc); ok && nowfn != nil {
		return nowfn
	}
	return UTCNow
}

// AllowAnonymous marks the request as reachable without an authenticated
// principal, for routes that opt into the anonymous bypass of the
// permission gate.
func AllowAnonymous() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(anonymousLocalsKey, true)
		return c.Next()
	}
}

func anonymousAllowed(c *fiber.Ctx) bool {
	allowed, _ := c.Locals(anonymousLocalsKey).(bool)
	return allowed
}

// permissionCache returns the request-scoped expression result cache,
// creating it on first use. Owned exclusively by the request, so no
// locking.
func permissionCache(c *fiber.Ctx) map[string]bool {
	if cache, ok := c.Locals(permissionsLocalsKey).(map[string]bool); ok {
		return cache
	}
	cache := map[string]bool{}
	c.Locals(permissionsLocalsKey, cache)
	return cache
}

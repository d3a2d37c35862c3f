package study

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Expression is a boolean predicate over the request's resolved session
// state. Expressions are built once at route-registration time and
// evaluated per request; Test bodies may perform I/O, so evaluation goes
// through the request-scoped cache keyed by String().
type Expression interface {
	Test(c *fiber.Ctx) (bool, error)
	fmt.Stringer
}

// TestWithCache evaluates expr at most once per request per canonical
// form. A leaf appearing in several branches of a larger tree only runs
// its predicate a single time.
func TestWithCache(c *fiber.Ctx, expr Expression) (bool, error) {
	cache := permissionCache(c)
	key := expr.String()
	if result, ok := cache[key]; ok {
		return result, nil
	}

	result, err := expr.Test(c)
	if err != nil {
		return false, err
	}

	cache[key] = result
	return result, nil
}

// AndExpr is true when every child is true. No children means true.
type AndExpr struct {
	args []Expression
}

func And(args ...Expression) *AndExpr {
	return &AndExpr{args: args}
}

func (e *AndExpr) Test(c *fiber.Ctx) (bool, error) {
	for _, arg := range e.args {
		ok, err := TestWithCache(c, arg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *AndExpr) String() string {
	return "And(" + joinExpressions(e.args) + ")"
}

// OrExpr is true when any child is true. No children means false.
type OrExpr struct {
	args []Expression
}

func Or(args ...Expression) *OrExpr {
	return &OrExpr{args: args}
}

func (e *OrExpr) Test(c *fiber.Ctx) (bool, error) {
	for _, arg := range e.args {
		ok, err := TestWithCache(c, arg)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *OrExpr) String() string {
	return "Or(" + joinExpressions(e.args) + ")"
}

// NotExpr negates its child.
type NotExpr struct {
	arg Expression
}

func Not(arg Expression) *NotExpr {
	return &NotExpr{arg: arg}
}

func (e *NotExpr) Test(c *fiber.Ctx) (bool, error) {
	ok, err := TestWithCache(c, e.arg)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (e *NotExpr) String() string {
	return fmt.Sprintf("Not(%s)", e.arg)
}

// LoggedIn passes when the session resolved to a valid instructor.
type LoggedIn struct{}

func (LoggedIn) Test(c *fiber.Ctx) (bool, error) {
	state := SessionFromCtx(c)
	return state != nil && state.Status == SessionValid, nil
}

func (LoggedIn) String() string {
	return "LoggedIn()"
}

// Require gates a route on expr. The request must already carry a resolved
// principal (a decoded session token) or the anonymous-allowed flag;
// otherwise the rejection cites the current session status. Predicate
// errors never escape: they become authorization rejections.
func Require(expr Expression) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := SessionFromCtx(c)
		if (state == nil || state.Token == nil) && !anonymousAllowed(c) {
			return fiber.NewError(fiber.StatusForbidden, "Missing valid session token: "+statusLabel(state))
		}
		return evaluateGate(c, expr)
	}
}

// RequireValid is the study variant: session status must be exactly valid,
// with no anonymous bypass.
func RequireValid(expr Expression) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := SessionFromCtx(c)
		if state == nil || state.Status != SessionValid {
			return fiber.NewError(fiber.StatusForbidden, "Missing valid session token: "+statusLabel(state))
		}
		return evaluateGate(c, expr)
	}
}

func evaluateGate(c *fiber.Ctx, expr Expression) error {
	ok, err := TestWithCache(c, expr)
	if err != nil {
		return fiber.NewError(fiber.StatusForbidden, ErrAuthorizationDenied.Message)
	}
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, ErrAuthorizationDenied.Message)
	}
	return c.Next()
}

func statusLabel(state *SessionState) string {
	if state == nil {
		return string(SessionMissing)
	}
	return string(state.Status)
}

func joinExpressions(args []Expression) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, ", ")
}

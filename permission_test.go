package study

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExpr counts how often its predicate actually runs.
type countingExpr struct {
	name   string
	result bool
	calls  *int
}

func (e countingExpr) Test(c *fiber.Ctx) (bool, error) {
	*e.calls++
	return e.result, nil
}

func (e countingExpr) String() string {
	return e.name + "()"
}

func withSession(state *SessionState) fiber.Handler {
	return func(c *fiber.Ctx) error {
		setSession(c, state)
		return c.Next()
	}
}

func validState() *SessionState {
	return &SessionState{
		Status: SessionValid,
		Token:  &SessionToken{Sub: "rec123"},
	}
}

func performRequest(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	res, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return res
}

func TestExpressionStrings(t *testing.T) {
	calls := 0
	a := countingExpr{name: "A", calls: &calls}
	b := countingExpr{name: "B", calls: &calls}

	assert.Equal(t, "And(A(), B())", And(a, b).String())
	assert.Equal(t, "Or(A(), And())", Or(a, And()).String())
	assert.Equal(t, "Not(A())", Not(a).String())
	assert.Equal(t, "LoggedIn()", LoggedIn{}.String())
}

func TestMemoizationEvaluatesSharedLeafOnce(t *testing.T) {
	aCalls, bCalls := 0, 0
	a := countingExpr{name: "A", result: false, calls: &aCalls}
	b := countingExpr{name: "B", result: true, calls: &bCalls}

	// A appears in both branches; the second occurrence must come from
	// the request cache.
	expr := Or(a, And(a, b))

	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		ok, err := TestWithCache(c, expr)
		require.NoError(t, err)
		return c.JSON(fiber.Map{"ok": ok})
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, aCalls)
	// And(A, B) short-circuits on A=false, so B never runs.
	assert.Equal(t, 0, bCalls)
}

func TestMemoizationIsPerRequest(t *testing.T) {
	calls := 0
	a := countingExpr{name: "A", result: true, calls: &calls}

	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		_, err := TestWithCache(c, a)
		require.NoError(t, err)
		_, err = TestWithCache(c, a)
		require.NoError(t, err)
		return c.SendStatus(http.StatusOK)
	})

	performRequest(t, app, "/t")
	assert.Equal(t, 1, calls)

	performRequest(t, app, "/t")
	assert.Equal(t, 2, calls)
}

func TestVacuousCombinators(t *testing.T) {
	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		andOK, err := And().Test(c)
		require.NoError(t, err)
		orOK, err := Or().Test(c)
		require.NoError(t, err)
		return c.JSON(fiber.Map{"and": andOK, "or": orOK})
	})

	res := performRequest(t, app, "/t")
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"and": true, "or": false}`, string(body))
}

func TestRequireValidRejectsNonValidStatuses(t *testing.T) {
	for _, status := range []SessionStatus{SessionMissing, SessionInvalid, SessionError, SessionAnonymous} {
		app := fiber.New()
		app.Use(withSession(&SessionState{Status: status}))
		app.Get("/t", RequireValid(LoggedIn{}), func(c *fiber.Ctx) error {
			return c.SendStatus(http.StatusOK)
		})

		res := performRequest(t, app, "/t")
		assert.Equal(t, http.StatusForbidden, res.StatusCode, "status %s", status)

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Missing valid session token: "+string(status))
	}
}

func TestRequireValidWithoutResolverCitesMissing(t *testing.T) {
	app := fiber.New()
	app.Get("/t", RequireValid(LoggedIn{}), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Missing valid session token: missing")
}

func TestRequireValidPassesValidSession(t *testing.T) {
	app := fiber.New()
	app.Use(withSession(validState()))
	app.Get("/t", RequireValid(LoggedIn{}), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequireValidRejectsFalseExpression(t *testing.T) {
	calls := 0
	denied := countingExpr{name: "Denied", result: false, calls: &calls}

	app := fiber.New()
	app.Use(withSession(validState()))
	app.Get("/t", RequireValid(denied), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Missing required role")
}

func TestRequireAllowsAnonymousBypass(t *testing.T) {
	app := fiber.New()
	app.Get("/t", AllowAnonymous(), Require(And()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequireRejectsWithoutPrincipal(t *testing.T) {
	app := fiber.New()
	app.Use(withSession(&SessionState{Status: SessionInvalid}))
	app.Get("/t", Require(And()), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	res := performRequest(t, app, "/t")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Missing valid session token: invalid")
}

func TestNotInvertsChild(t *testing.T) {
	calls := 0
	truthy := countingExpr{name: "Truthy", result: true, calls: &calls}

	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		ok, err := Not(truthy).Test(c)
		require.NoError(t, err)
		return c.JSON(fiber.Map{"ok": ok})
	})

	res := performRequest(t, app, "/t")
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": false}`, string(body))
}

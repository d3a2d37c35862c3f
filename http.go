package study

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AppOptions wires the study API together.
type AppOptions struct {
	Config     *Config
	Resolver   *Resolver
	Controller *Controller
	Metrics    *Metrics
	Logger     Logger
	// Clock overrides the request clock; tests use it to pin time.
	Clock NowFunc
}

// NewApp builds the fiber application: generic error boundary, health
// endpoint, and the study API mounted under /api/study with metrics and
// session resolution running before every handler.
func NewApp(opts AppOptions) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = defLogger{}
	}

	app := fiber.New(fiber.Config{
		AppName:               "study",
		DisableStartupMessage: !developmentMode(opts.Config),
		ErrorHandler:          newErrorHandler(logger),
	})

	if opts.Clock != nil {
		app.Use(WithClock(opts.Clock))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(okStatus)
	})

	api := app.Group("/api/study")
	if opts.Metrics != nil {
		api.Use(opts.Metrics.Middleware())
	}
	api.Use(opts.Resolver.Middleware())
	opts.Controller.RegisterRoutes(api)

	return app
}

func developmentMode(cfg *Config) bool {
	return cfg != nil && cfg.Development
}

// newErrorHandler is the terminal boundary. Deliberate rejections keep
// their status and detail; anything unexpected becomes a bare 500 with no
// internal detail leaked.
func newErrorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"detail": fiberErr.Message})
		}

		var richErr *errors.Error
		if errors.As(err, &richErr) {
			logger.Error(
				"request error (%s): %s %s",
				richErr.Category,
				richErr.Message,
				print.MaybePrettyJSON(richErr.Metadata),
			)

			switch richErr.Category {
			case errors.CategoryAuth:
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": richErr.Message})
			case errors.CategoryAuthz:
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"detail": richErr.Message})
			case errors.CategoryNotFound:
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": richErr.Message})
			case errors.CategoryBadInput, errors.CategoryValidation:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": richErr.Message})
			}
		} else {
			logger.Error("unhandled request error: %v", err)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Internal server error.",
		})
	}
}

package httpserver

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/health"
)

const healthTimeout = 2 * time.Second

func registerHealthRoutes(app *fiber.App, checks []health.Check) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()

		results := make(map[string]fiber.Map, len(checks))
		overall := "ok"
		for _, check := range checks {
			start := time.Now()
			err := check.Run(ctx)
			result := fiber.Map{
				"status":     "ok",
				"latency_ms": time.Since(start).Milliseconds(),
			}
			if err != nil {
				result["status"] = "error"
				result["error"] = err.Error()
				overall = "degraded"
			}
			results[check.Name] = result
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": overall,
			"checks": results,
		})
	})
}

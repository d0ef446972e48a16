package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DependencyCheck pings one backing service for the readiness endpoint.
type DependencyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler answers the liveness and readiness endpoints.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []DependencyCheck
	timeout     time.Duration
}

func NewHealthHandler(serviceName, version string, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready runs every dependency check under a shared deadline. A single
// failing check turns the whole response into 503.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[check.Name] = err.Error()
			healthy = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": results,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": results})
}

package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	version string
	probes  map[string]Pinger
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(version string, probes map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, probes: probes}
}

// Live always succeeds while the process is running.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": h.version})
}

// Ready checks every backing store and fails if any is unreachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if err := probe.Ping(c.UserContext()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := fiber.StatusOK
	state := "ready"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}

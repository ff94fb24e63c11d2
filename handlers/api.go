package handlers

import (
	"errors"
	"log"

	"github.com/andesco/mirror/pkg/gateway"
	"github.com/gofiber/fiber/v2"
)

// APIProxy is a Fiber handler that fetches the absolute URL given in the "url"
// query parameter through an open-mode gateway.
func APIProxy(g *gateway.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target := c.Query("url")

		resp, err := g.Resolve(c.UserContext(), target)
		switch {
		case errors.Is(err, gateway.ErrMissingParameter):
			return c.Status(fiber.StatusBadRequest).SendString("Missing url")
		case errors.Is(err, gateway.ErrInvalidTarget):
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		case err != nil:
			log.Printf("ERROR: Failed to process request for %s: %v", target, err)
			return sendError(c, fiber.StatusBadGateway, "Failed to load resource", err.Error())
		}

		return send(c, resp)
	}
}

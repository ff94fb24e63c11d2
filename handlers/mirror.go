package handlers

import (
	"errors"
	"log"

	"github.com/andesco/mirror/pkg/gateway"
	"github.com/gofiber/fiber/v2"
)

// MirrorRoot is a Fiber handler that serves the mirrored site's root document.
// Failures are reported as a 500 error page: without its root document the
// proxy itself is broken.
func MirrorRoot(g *gateway.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := g.Resolve(c.UserContext(), c.OriginalURL())
		if err != nil {
			if errors.Is(err, gateway.ErrNotMirrored) {
				return NotFound(c)
			}
			log.Printf("ERROR: Failed to load %s: %v", c.OriginalURL(), err)
			return sendError(c, fiber.StatusInternalServerError, "Failed to load resource", err.Error())
		}

		return send(c, resp)
	}
}

// MirrorAsset is a Fiber handler that serves resources beneath the mirrored
// site's root. Failures are reported as 404: from the browser's point of view
// the asset does not exist.
func MirrorAsset(g *gateway.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := g.Resolve(c.UserContext(), c.OriginalURL())
		if err != nil {
			if !errors.Is(err, gateway.ErrNotMirrored) {
				log.Printf("WARN: Asset %s unavailable: %v", c.OriginalURL(), err)
			}
			return c.Status(fiber.StatusNotFound).SendString("Asset not found")
		}

		return send(c, resp)
	}
}

// Purge is a Fiber handler that empties the gateway's cache.
func Purge(g *gateway.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.Purge(c.UserContext()); err != nil {
			log.Printf("ERROR: Failed to purge cache: %v", err)
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}

		log.Printf("INFO: Cache purged")
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func send(c *fiber.Ctx, resp *gateway.Response) error {
	c.Set(fiber.HeaderContentType, resp.ContentType)
	return c.Status(resp.Status).Send(resp.Body)
}

package handlers

import (
	"github.com/andesco/mirror/pkg/gateway"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Routes describes what Register mounts.
type Routes struct {
	// Mirror serves GET <prefix> and GET <prefix>/*.
	Mirror *gateway.Gateway

	// API serves GET <prefix>?url=... when set.
	API *gateway.Gateway

	// StaticDir is served beneath /static when set.
	StaticDir string

	// CloakTitle enables the landing page at / when set.
	CloakTitle string

	// AllowPurge mounts DELETE <prefix> to empty the mirror cache.
	AllowPurge bool
}

// Register mounts the proxy routes on app, followed by a catch-all 404.
func Register(app *fiber.App, r Routes) {
	app.Use(cors.New())

	if r.StaticDir != "" {
		app.Static("/static", r.StaticDir)
	}

	if r.Mirror != nil {
		prefix := r.Mirror.Options().ProxyPrefix

		if r.CloakTitle != "" {
			app.Get("/", Cloak(r.CloakTitle, prefix))
		}

		app.Get(prefix, MirrorRoot(r.Mirror))
		app.Get(prefix+"/*", MirrorAsset(r.Mirror))

		if r.AllowPurge {
			app.Delete(prefix, Purge(r.Mirror))
		}
	}

	if r.API != nil {
		app.Get(r.API.Options().ProxyPrefix, APIProxy(r.API))
	}

	app.Use(NotFound)
}

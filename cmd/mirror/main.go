package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/andesco/mirror/cmd"
	"github.com/andesco/mirror/handlers"
	"github.com/andesco/mirror/pkg/cache"
	"github.com/andesco/mirror/pkg/gateway"
	"github.com/andesco/mirror/pkg/ruleset"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/term"
)

func main() {
	config := cmd.GetConfigFromEnvironment()
	if err := config.ParseFlags(os.Args); err != nil {
		fmt.Print(err)
		os.Exit(1)
	}

	rules, err := ruleset.Load(config.Ruleset)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if config.Ruleset == "" {
		log.Printf("WARN: No ruleset specified. Set the `RULESET` environment variable to load one.")
	}

	store, err := newStore(config)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	mirror, err := gateway.New(gateway.Options{
		UpstreamOrigin: config.UpstreamOrigin,
		ProxyPrefix:    config.ProxyPrefix,
		CacheEnabled:   config.CacheEnabled,
		TTL:            config.CacheTTL,
		UserAgent:      config.UserAgent,
		Timeout:        config.HTTPTimeout,
		Rules:          rules,
		LogURLs:        config.LogURLs,
	}, store, nil)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	routes := handlers.Routes{
		Mirror:     mirror,
		StaticDir:  config.StaticDir,
		CloakTitle: config.CloakTitle,
		AllowPurge: config.CachePurge,
	}

	if config.APIProxy {
		routes.API, err = gateway.New(gateway.Options{
			ProxyPrefix: config.APIPrefix,
			UserAgent:   config.UserAgent,
			Timeout:     config.HTTPTimeout,
			Rules:       rules,
			LogURLs:     config.LogURLs,
		}, nil, nil)
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "mirror",
		DisableStartupMessage: !term.IsTerminal(int(os.Stdout.Fd())),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	handlers.Register(app, routes)

	log.Printf("INFO: Mirroring %s at %s (cache: %v, ttl: %s)", config.UpstreamOrigin, config.ProxyPrefix, config.CacheEnabled, config.CacheTTL)
	log.Fatal(app.Listen(":" + config.Port))
}

// newStore returns a Redis-backed store when REDIS_ADDR is set, otherwise an
// in-memory store.
func newStore(config *cmd.Config) (cache.Store, error) {
	if config.Redis.Address == "" {
		return cache.NewMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Address,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis at %s: %w", config.Redis.Address, err)
	}

	log.Printf("INFO: Caching in redis at %s", config.Redis.Address)
	return &cache.Redis{Client: client, Prefix: config.Redis.Prefix}, nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akamensky/argparse"
)

// Config holds configuration values for commands.
type Config struct {
	Port           string
	UpstreamOrigin string
	ProxyPrefix    string
	APIProxy       bool
	APIPrefix      string
	CacheEnabled   bool
	CacheTTL       time.Duration
	CachePurge     bool
	UserAgent      string
	HTTPTimeout    time.Duration
	Ruleset        string
	Redis          redisConfig
	StaticDir      string
	CloakTitle     string
	LogURLs        bool
}

type redisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// GetConfigFromEnvironment creates Config object based on the shell environment.
func GetConfigFromEnvironment() *Config {
	return &Config{
		Port:           env("PORT", "8080"),
		UpstreamOrigin: env("UPSTREAM_ORIGIN", "https://v2.rhythm-plus.com"),
		ProxyPrefix:    env("PROXY_PREFIX", "/proxy"),
		APIProxy:       envBool("API_PROXY", true),
		APIPrefix:      env("API_PREFIX", "/api-proxy"),
		CacheEnabled:   envBool("CACHE_ENABLED", true),
		CacheTTL:       envDuration("CACHE_TTL", 30*24*time.Hour),
		CachePurge:     envBool("CACHE_PURGE", false),
		UserAgent:      env("USER_AGENT", "Mozilla/5.0"),
		HTTPTimeout:    envDuration("HTTP_TIMEOUT", 0),
		Ruleset:        env("RULESET", ""),
		Redis: redisConfig{
			Address:  env("REDIS_ADDR", ""),
			Password: env("REDIS_PASSWORD", ""),
			DB:       int(envInt("REDIS_DB", 0)),
			Prefix:   env("REDIS_PREFIX", "mirror:"),
		},
		StaticDir:  env("STATIC_DIR", "static"),
		CloakTitle: env("CLOAK_TITLE", "Google"),
		LogURLs:    envBool("LOG_URLS", false),
	}
}

// ParseFlags overrides c with the command-line flags in args, which starts
// with the program name.
func (c *Config) ParseFlags(args []string) error {
	parser := argparse.NewParser("mirror", "Caching proxy that mirrors a single site and rewrites its links")

	port := parser.String("p", "port", &argparse.Options{
		Default: c.Port,
		Help:    "Port to listen on. Env: PORT",
	})
	upstream := parser.String("u", "upstream", &argparse.Options{
		Default: c.UpstreamOrigin,
		Help:    "Origin of the mirrored site. Env: UPSTREAM_ORIGIN",
	})
	rules := parser.String("r", "ruleset", &argparse.Options{
		Default: c.Ruleset,
		Help:    "Ruleset files or directories, separated by ';'. Env: RULESET",
	})
	noCache := parser.Flag("n", "no-cache", &argparse.Options{
		Help: "Always fetch from the upstream. Env: CACHE_ENABLED=false",
	})
	ttl := parser.String("t", "cache-ttl", &argparse.Options{
		Default: c.CacheTTL.String(),
		Help:    "How long fetched content is served from cache. Env: CACHE_TTL",
	})
	redisAddr := parser.String("s", "redis", &argparse.Options{
		Default: c.Redis.Address,
		Help:    "Redis address for a shared cache; memory when empty. Env: REDIS_ADDR",
	})

	if err := parser.Parse(args); err != nil {
		return errors.New(parser.Usage(err))
	}

	cacheTTL, err := parseDuration(*ttl)
	if err != nil || cacheTTL <= 0 {
		return fmt.Errorf("invalid cache TTL %q", *ttl)
	}

	c.Port = *port
	c.UpstreamOrigin = *upstream
	c.Ruleset = *rules
	c.CacheTTL = cacheTTL
	c.Redis.Address = *redisAddr
	if *noCache {
		c.CacheEnabled = false
	}

	return nil
}

func env(key string, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return def
}

func envInt(key string, def int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		i, _ := strconv.ParseInt(value, 10, 64)
		return i
	}

	return def
}

func envBool(key string, def bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return def
		}
		return b
	}

	return def
}

// envDuration accepts Go durations ("720h") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := parseDuration(value)
		if err != nil {
			return def
		}
		return d
	}

	return def
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/textfilter/cache"
	"github.com/joeychilson/textfilter/config"
	"github.com/joeychilson/textfilter/logger"
	"github.com/joeychilson/textfilter/normalizer"
	"github.com/joeychilson/textfilter/retry"
	"github.com/joeychilson/textfilter/server"
)

const (
	defaultAddr       = ":8080"
	defaultConfigFile = "./config.yaml"
	defaultLogLevel   = "info"
)

func main() {
	addr := getEnv("ADDR", defaultAddr)
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)
	apiKey := getEnv("API_KEY", "")

	level, err := logger.ParseLevel(logLevel)
	log := logger.NewJSON(os.Stderr, level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", logLevel)
	}

	log.Info("starting textfilter API server", "log_level", level.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.New()
	if _, statErr := os.Stat(configFile); statErr == nil {
		log.Info("loading config from file", "file", configFile)
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			log.Error("failed to load config from file", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("using default configuration (config file not found)", "checked", configFile)
	}

	n, err := normalizer.New(cfg)
	if err != nil {
		log.Error("failed to create normalizer", "error", err)
		os.Exit(1)
	}
	n = n.WithLogger(log)
	defer n.Close()

	srvCfg := server.ConfigFrom(cfg)
	srvCfg.APIKey = apiKey
	srvCfg.LogLevel = level.Slog()

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		log.Info("redis connection established")

		srvCfg.RedisClient = redisClient
		if cfg.Cache.IsEnabled() {
			var c cache.Cache = cache.NewRedisCacheWithClient(redisClient, cfg.Cache.GetPrefix(), cache.Config{TTL: cfg.Cache.TTL})
			if cfg.Cache.Retry.IsEnabled() {
				c = cache.WithRetry(c, retry.New(cfg.Cache.Retry))
			}
			n = n.WithCache(c)
			log.Info("redis cache enabled", "prefix", cfg.Cache.GetPrefix(), "max_retries", cfg.Cache.Retry.GetMaxRetries())
		}
	} else if cfg.Cache.IsEnabled() {
		log.Info("in-memory cache enabled")
	}

	if apiKey == "" {
		log.Warn("API_KEY not set, /v1 routes are unauthenticated")
	}

	log.Info("pipelines loaded", "pipelines", n.Pipelines())

	srv, err := server.New(n, log, srvCfg)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.StartWithShutdown(ctx, addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"matricare/internal/app"
	"matricare/internal/config"
	"matricare/internal/server"
	"matricare/internal/util"
	"matricare/pkg/ai"
	"matricare/pkg/ml"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	proxyTrust, err := util.ParseProxyTrust(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var classifier ml.RiskClassifier
	if cfg.ClassifierURL != "" {
		classifier = ml.NewHTTPClassifier(cfg.ClassifierURL, config.ParseDurationOr(cfg.ClassifierTimeout, 10*time.Second))
	}
	var generator ai.TextGenerator
	if cfg.GenerationBaseURL != "" {
		generator = ai.NewOpenAICompatGenerator(
			cfg.GenerationBaseURL,
			cfg.GenerationAPIKey,
			cfg.GenerationModel,
			config.ParseDurationOr(cfg.GenerationTimeout, 60*time.Second),
		)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    config.ParseDurationOr(cfg.TokenTTL, 24*time.Hour),
		Classifier:  classifier,
		Generator:   generator,
		AdminEmails: config.AdminEmailSet(cfg),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		ProxyTrust:                 proxyTrust,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("matricare server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

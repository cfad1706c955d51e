// Package config collects the environment-level options the server
// recognizes. Secrets are resolved through the secret package so production
// can keep them in SSM Parameter Store while development uses plain env vars.
package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ebeckert/letterwell/internal/secret"
)

// Config is the fully resolved server configuration.
type Config struct {
	Port         string
	DatabasePath string

	// ClientURL is where OAuth redirects land (the SPA).
	ClientURL string
	// AllowedOrigins drive the CORS headers.
	AllowedOrigins []string

	JWTSecret       string
	TokenTTL        time.Duration
	ProfileTokenTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// KMSKeyID selects the key used to encrypt stored OAuth tokens. Empty in
	// dev mode, where the mock encryptor runs instead.
	KMSKeyID string

	DevMode bool
}

// Load reads configuration from the environment, resolving secrets through
// the given resolver.
func Load(ctx context.Context, resolver secret.Resolver) (*Config, error) {
	cfg := &Config{
		Port:            envOr("PORT", "8080"),
		DatabasePath:    envOr("DATABASE_PATH", "letterwell.db"),
		ClientURL:       envOr("CLIENT_URL", "http://localhost:3000"),
		TokenTTL:        durationOr("TOKEN_TTL", 24*time.Hour),
		ProfileTokenTTL: durationOr("PROFILE_TOKEN_TTL", 24*time.Hour),
		GoogleClientID:  os.Getenv("GOOGLE_CLIENT_ID"),
		KMSKeyID:        os.Getenv("KMS_KEY_ID"),
		DevMode:         os.Getenv("DEV_MODE") == "true",
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, strings.TrimSpace(o))
		}
	} else {
		cfg.AllowedOrigins = []string{cfg.ClientURL}
	}

	jwtSecret, err := resolver.GetSecret(ctx, envOr("JWT_SECRET_PARAM", "/letterwell/jwt-secret"))
	if err != nil {
		if !cfg.DevMode {
			return nil, fmt.Errorf("resolve jwt secret: %w", err)
		}
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}
	cfg.JWTSecret = jwtSecret

	googleSecret, err := resolver.GetSecret(ctx, envOr("GOOGLE_CLIENT_SECRET_PARAM", "/letterwell/google-client-secret"))
	if err != nil {
		// Google integration is optional; password auth still works without it.
		log.Printf("WARNING: failed to resolve GOOGLE_CLIENT_SECRET: %v", err)
	}
	cfg.GoogleClientSecret = googleSecret

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		serverURL := envOr("SERVER_URL", "http://localhost:"+cfg.Port)
		cfg.GoogleRedirectURL = serverURL + "/api/auth/google/callback"
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
port: "5000"
logLevel: "info"
databaseURL: "postgres://localhost:5432/matricare"
jwtSecret: "file-secret"
redisAddr: "localhost:6379"
registerRateLimitPerMinute: 10
loginRateLimitPerMinute: 20
classifierURL: "http://localhost:8500"
generationModel: "llama-3.3-70b-versatile"
`

func TestLoadReadsYAML(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Fatalf("jwtSecret = %q", cfg.JWTSecret)
	}
	if cfg.RegisterRateLimitPerMinute != 10 || cfg.LoginRateLimitPerMinute != 20 {
		t.Fatalf("rate limits = %d/%d", cfg.RegisterRateLimitPerMinute, cfg.LoginRateLimitPerMinute)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("LOGIN_RATE_LIMIT_PER_MINUTE", "3")
	t.Setenv("TRUSTED_PROXY_CIDRS", "10.0.0.0/8, 192.168.1.1")

	cfg, err := Load(writeConfigFile(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("jwtSecret = %q, want env override", cfg.JWTSecret)
	}
	if cfg.LoginRateLimitPerMinute != 3 {
		t.Fatalf("loginRateLimitPerMinute = %d", cfg.LoginRateLimitPerMinute)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 {
		t.Fatalf("trustedProxyCidrs = %v", cfg.TrustedProxyCIDRs)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing port", `
logLevel: "info"
databaseURL: "postgres://localhost/db"
jwtSecret: "s"
redisAddr: "localhost:6379"
`},
		{"missing jwt secret", `
port: "5000"
databaseURL: "postgres://localhost/db"
redisAddr: "localhost:6379"
`},
		{"missing redis addr", `
port: "5000"
databaseURL: "postgres://localhost/db"
jwtSecret: "s"
`},
		{"bad duration", `
port: "5000"
databaseURL: "postgres://localhost/db"
jwtSecret: "s"
redisAddr: "localhost:6379"
tokenTTL: "not-a-duration"
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationOr(t *testing.T) {
	if got := ParseDurationOr("45s", time.Minute); got != 45*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := ParseDurationOr("", time.Minute); got != time.Minute {
		t.Fatalf("got %v", got)
	}
	if got := ParseDurationOr("garbage", time.Minute); got != time.Minute {
		t.Fatalf("got %v", got)
	}
}

func TestAdminEmailSet(t *testing.T) {
	cfg := FileConfig{AdminEmails: "Root@Example.com, ops@example.com"}
	set := AdminEmailSet(cfg)
	if _, ok := set["root@example.com"]; !ok {
		t.Fatal("expected lowercased root@example.com")
	}
	if len(set) != 2 {
		t.Fatalf("set size = %d", len(set))
	}
}

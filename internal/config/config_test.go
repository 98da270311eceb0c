package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
jwt:
  secret: dev
grading:
  allow_resubmission: false
cors:
  allowed_origins: [http://a.test, http://b.test]
`)
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.Mode != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.JWT.ExpireTime != 24*time.Hour {
		t.Errorf("jwt expire = %v", cfg.JWT.ExpireTime)
	}
	if cfg.Attempt.MaxConflictRetries != 3 || cfg.Catalog.CacheTTLSeconds != 300 {
		t.Errorf("attempt/catalog defaults = %+v %+v", cfg.Attempt, cfg.Catalog)
	}
	if cfg.Grading.AllowResubmission {
		t.Error("grading.allow_resubmission should come from the file")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.Storage.Type != "local" {
		t.Errorf("cors/storage = %+v %+v", cfg.CORS, cfg.Storage)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"debug accepts short secret", func(c *Config) { c.JWT.Secret = "x" }, ""},
		{"release requires long secret", func(c *Config) {
			c.Server.Mode = "release"
			c.JWT.Secret = "short"
		}, "JWT secret is too short"},
		{"negative retries", func(c *Config) { c.Attempt.MaxConflictRetries = -1 }, "max_conflict_retries"},
		{"minio needs endpoint", func(c *Config) { c.Storage.Type = "minio" }, "minio_endpoint"},
		{"minio configured", func(c *Config) {
			c.Storage.Type = "minio"
			c.Storage.MinioEndpoint = "minio:9000"
			c.Storage.MinioBucket = "media"
		}, ""},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }, "unsupported storage"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{}
			c.Server.Mode = "debug"
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

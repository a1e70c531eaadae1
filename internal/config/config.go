package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env          string `mapstructure:"CG_ENV"`
	HTTPAddr     string `mapstructure:"CG_HTTP_ADDR"`
	PublicOrigin string `mapstructure:"CG_PUBLIC_ORIGIN"`

	Database   DBConfig         `mapstructure:",squash"`
	Cache      CacheConfig      `mapstructure:",squash"`
	Generation GenerationConfig `mapstructure:",squash"`
	Drafts     DraftConfig      `mapstructure:",squash"`
	Security   SecurityConfig   `mapstructure:",squash"`
}

type DBConfig struct {
	// Backend selects the record store implementation: "memory" or "postgres".
	Backend     string `mapstructure:"CG_DB_BACKEND"`
	PostgresDSN string `mapstructure:"CG_POSTGRES_DSN"`
}

type CacheConfig struct {
	// Backend selects the kv store used for blobs and caching: "memory" or "redis".
	Backend  string `mapstructure:"CG_KV_BACKEND"`
	RedisURL string `mapstructure:"CG_REDIS_URL"`
}

type GenerationConfig struct {
	HookURL  string        `mapstructure:"CG_GENERATION_HOOK_URL"`
	ImageURL string        `mapstructure:"CG_GENERATION_IMAGE_URL"`
	Timeout  time.Duration `mapstructure:"CG_GENERATION_TIMEOUT"`
}

type DraftConfig struct {
	// SessionTTL is how long an idle draft session survives before the
	// janitor evicts it.
	SessionTTL time.Duration `mapstructure:"CG_DRAFT_SESSION_TTL"`
	// ScheduleOffset is applied when a schedule request carries no
	// explicit timestamp.
	ScheduleOffset time.Duration `mapstructure:"CG_SCHEDULE_OFFSET"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"CG_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"CG_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("backend", ".env"),
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if !filepath.IsAbs(path) {
			if resolved, err := filepath.Abs(path); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("CG_ENV", "dev")
	viper.SetDefault("CG_HTTP_ADDR", ":8080")
	viper.SetDefault("CG_PUBLIC_ORIGIN", "http://localhost:3000")
	viper.SetDefault("CG_DB_BACKEND", "memory")
	viper.SetDefault("CG_POSTGRES_DSN", "")
	viper.SetDefault("CG_KV_BACKEND", "memory")
	viper.SetDefault("CG_REDIS_URL", "redis://127.0.0.1:6379/0")
	viper.SetDefault("CG_GENERATION_HOOK_URL", "")
	viper.SetDefault("CG_GENERATION_IMAGE_URL", "")
	viper.SetDefault("CG_GENERATION_TIMEOUT", "30s")
	viper.SetDefault("CG_DRAFT_SESSION_TTL", "2h")
	viper.SetDefault("CG_SCHEDULE_OFFSET", "24h")
	viper.SetDefault("CG_RATE_LIMIT_RPM", 120)
	viper.SetDefault("CG_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Comma-separated list handling for origins
	if origins := viper.GetString("CG_CORS_ALLOWED_ORIGINS"); origins != "" {
		viper.Set("CG_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("CG_POSTGRES_DSN is required when CG_DB_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("invalid CG_DB_BACKEND %q (must be memory or postgres)", c.Database.Backend)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("CG_REDIS_URL is required when CG_KV_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid CG_KV_BACKEND %q (must be memory or redis)", c.Cache.Backend)
	}

	if c.Generation.HookURL == "" {
		return fmt.Errorf("CG_GENERATION_HOOK_URL is required")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("CG_GENERATION_TIMEOUT must be positive")
	}
	if c.Drafts.SessionTTL <= 0 {
		return fmt.Errorf("CG_DRAFT_SESSION_TTL must be positive")
	}
	if c.Drafts.ScheduleOffset <= 0 {
		return fmt.Errorf("CG_SCHEDULE_OFFSET must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool  { return c.Env == "dev" }
func (c *Config) IsProd() bool { return c.Env == "prod" }

// AllowedOrigins is the browser origin allowlist for CORS and
// websocket upgrades. The public frontend origin is always included
// even when the CORS list omits it.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.Security.CORSAllowedOrigins)+1)
	seen := make(map[string]struct{})
	for _, o := range append([]string{c.PublicOrigin}, c.Security.CORSAllowedOrigins...) {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		origins = append(origins, o)
	}
	return origins
}

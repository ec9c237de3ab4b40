// Package config loads coderover's runtime configuration from environment
// variables.
//
// Every option lives in one struct, parsed once at startup by
// github.com/caarlos0/env. Nothing else in the codebase reads os.Getenv;
// values are passed explicitly to the components that need them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSecretLength is the shortest signing secret accepted. HS256 uses a
// 256-bit key, so anything shorter than 32 bytes weakens the MAC.
const MinSecretLength = 32

// Config holds all coderover settings.
type Config struct {
	Port     int    `env:"PORT"      envDefault:"8080"`
	DBPath   string `env:"DB_PATH"   envDefault:"data/coderover.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Credential (JWT) settings.
	JWTSecret    string        `env:"JWT_SECRET,required"`
	JWTTTL       time.Duration `env:"JWT_TTL"       envDefault:"1h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	// GitHub OAuth app + REST API.
	GitHubClientID     string   `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string   `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string   `env:"GITHUB_CALLBACK_URL"`
	GitHubScopes       []string `env:"GITHUB_SCOPES"  envSeparator:"," envDefault:"read:user,user:email,repo"`
	GitHubAPIURL       string   `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`

	FrontendRedirectURL string `env:"FRONTEND_REDIRECT_URL" envDefault:"/"`
	DefaultAvatarURL    string `env:"DEFAULT_AVATAR_URL"    envDefault:"https://avatars.githubusercontent.com/u/0"`

	// RepoLanguage is the language filter applied to the user's repo list.
	RepoLanguage string `env:"REPO_LANGUAGE" envDefault:"Java"`

	// DebugEndpoints mounts GET /auth/token. Keep off in production.
	DebugEndpoints bool `env:"DEBUG_ENDPOINTS" envDefault:"false"`

	// OTelEndpoint enables tracing when non-empty.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment (all keys prefixed CODEROVER_) and validates
// the result.
func Load() (Config, error) {
	return parse(env.Options{Prefix: "CODEROVER_"})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	cfg.GitHubAPIURL = strings.TrimRight(cfg.GitHubAPIURL, "/")
	return cfg, nil
}

// Validate checks invariants env tags cannot express.
func (c Config) Validate() error {
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", MinSecretLength)
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	return nil
}

// OAuthEnabled reports whether the GitHub login routes can be mounted.
func (c Config) OAuthEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// SlogLevel maps LogLevel onto slog levels, defaulting to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

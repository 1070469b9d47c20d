package sessionguard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard/authclient"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/tokenstore"
)

// Config is the full session configuration. Build it with DefaultConfig or
// LoadConfig and treat it as immutable once handed to a Builder.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	Token   TokenConfig   `toml:"token"`
	Store   StoreConfig   `toml:"store"`
	Session SessionConfig `toml:"session"`
	Guard   GuardConfig   `toml:"guard"`
	Audit   AuditConfig   `toml:"audit"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

/*
====================================
AUTH ENDPOINT CONFIG
====================================
*/

// AuthConfig points at the credential endpoint.
type AuthConfig struct {
	BaseURL   string        `toml:"base_url"`
	TokenPath string        `toml:"token_path"`
	Timeout   time.Duration `toml:"timeout"`
	UserAgent string        `toml:"user_agent"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls how tokens are decoded. SigningMethod "none" trusts the
// payload without checking the signature.
type TokenConfig struct {
	SigningMethod string        `toml:"signing_method"` // "none" (default), "hs256", "ed25519"
	Secret        string        `toml:"secret"`
	PublicKeyPEM  string        `toml:"public_key_pem"`
	Issuer        string        `toml:"issuer"`
	Audience      string        `toml:"audience"`
	Leeway        time.Duration `toml:"leeway"`
	RequireExpiry bool          `toml:"require_expiry"`
}

/*
====================================
STORE CONFIG
====================================
*/

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// StoreConfig selects where the raw token is persisted.
type StoreConfig struct {
	Backend     string        `toml:"backend"`
	Key         string        `toml:"key"`
	FilePath    string        `toml:"file_path"`
	RedisAddr   string        `toml:"redis_addr"`
	RedisPrefix string        `toml:"redis_prefix"`
	RedisTTL    time.Duration `toml:"redis_ttl"`
}

/*
====================================
SESSION / GUARD CONFIG
====================================
*/

// SessionConfig tunes the session holder.
type SessionConfig struct {
	// ExpireOnNavigate re-decodes an expired identity before every guard check.
	ExpireOnNavigate bool `toml:"expire_on_navigate"`
}

const (
	MissingIdentityHome  = "home"
	MissingIdentityLogin = "login"
)

// GuardConfig carries the redirect targets used by package guard.
type GuardConfig struct {
	LoginPath               string `toml:"login_path"`
	HomePath                string `toml:"home_path"`
	MissingIdentityRedirect string `toml:"missing_identity_redirect"`
	MaxRedirects            int    `toml:"max_redirects"`
}

/*
====================================
AUDIT / METRICS / LOGGING CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `toml:"enabled"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
	// FlushTimeout bounds how long Session.Close waits for queued events.
	// Zero waits until the sink has taken every event.
	FlushTimeout time.Duration `toml:"flush_timeout"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"enable_latency_histograms"`
}

// LoggingConfig is consumed by internal/logging.
type LoggingConfig struct {
	Level    string `toml:"level"`
	File     string `toml:"file"`
	ToStdout bool   `toml:"to_stdout"`
	JSON     bool   `toml:"json"`
}

// DefaultConfig returns the configuration used by the timesheet front end
// against a local backend.
func DefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			BaseURL:   "http://127.0.0.1:8003",
			TokenPath: authclient.DefaultTokenPath,
			Timeout:   authclient.DefaultTimeout,
		},
		Token: TokenConfig{
			SigningMethod: string(jwt.MethodNone),
			Leeway:        30 * time.Second,
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			Key:         "token",
			RedisPrefix: tokenstore.DefaultRedisPrefix,
		},
		Session: SessionConfig{
			ExpireOnNavigate: true,
		},
		Guard: GuardConfig{
			LoginPath:               "/login",
			HomePath:                "/",
			MissingIdentityRedirect: MissingIdentityHome,
			MaxRedirects:            5,
		},
		Audit: AuditConfig{
			BufferSize:   64,
			DropIfFull:   true,
			FlushTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			ToStdout: true,
		},
	}
}

// Validate checks the configuration. Every failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	base, err := url.Parse(c.Auth.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("auth.base_url %q must be an absolute http(s) URL", c.Auth.BaseURL)
	}
	if !strings.HasPrefix(c.Auth.TokenPath, "/") {
		return fmt.Errorf("auth.token_path %q must start with /", c.Auth.TokenPath)
	}
	if c.Auth.Timeout <= 0 {
		return fmt.Errorf("auth.timeout must be > 0")
	}

	switch jwt.SigningMethod(c.Token.SigningMethod) {
	case jwt.MethodNone:
	case jwt.MethodHS256:
		if c.Token.Secret == "" {
			return fmt.Errorf("token.secret required for hs256")
		}
	case jwt.MethodEd25519:
		if c.Token.PublicKeyPEM == "" {
			return fmt.Errorf("token.public_key_pem required for ed25519")
		}
	default:
		return fmt.Errorf("token.signing_method %q unsupported", c.Token.SigningMethod)
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 5*time.Minute {
		return fmt.Errorf("token.leeway must be between 0 and 5m")
	}

	if strings.TrimSpace(c.Store.Key) == "" {
		return fmt.Errorf("store.key must not be empty")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if strings.TrimSpace(c.Store.FilePath) == "" {
			return fmt.Errorf("store.file_path required for file backend")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return fmt.Errorf("store.redis_addr required for redis backend")
		}
		if c.Store.RedisTTL < 0 {
			return fmt.Errorf("store.redis_ttl must be >= 0")
		}
	default:
		return fmt.Errorf("store.backend %q unsupported", c.Store.Backend)
	}

	if !strings.HasPrefix(c.Guard.LoginPath, "/") || !strings.HasPrefix(c.Guard.HomePath, "/") {
		return fmt.Errorf("guard paths must start with /")
	}
	if c.Guard.LoginPath == c.Guard.HomePath {
		return fmt.Errorf("guard.login_path and guard.home_path must differ")
	}
	if c.Guard.MissingIdentityRedirect != MissingIdentityHome && c.Guard.MissingIdentityRedirect != MissingIdentityLogin {
		return fmt.Errorf("guard.missing_identity_redirect must be %q or %q", MissingIdentityHome, MissingIdentityLogin)
	}
	if c.Guard.MaxRedirects < 1 {
		return fmt.Errorf("guard.max_redirects must be >= 1")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit.buffer_size must be > 0 when audit is enabled")
	}
	if c.Audit.FlushTimeout < 0 {
		return fmt.Errorf("audit.flush_timeout must be >= 0")
	}

	return nil
}

// JWT converts the token section into a decoder configuration.
func (t TokenConfig) JWT() jwt.Config {
	cfg := jwt.Config{
		SigningMethod: jwt.SigningMethod(t.SigningMethod),
		Issuer:        t.Issuer,
		Audience:      t.Audience,
		Leeway:        t.Leeway,
		RequireExpiry: t.RequireExpiry,
	}
	if t.Secret != "" {
		cfg.Secret = []byte(t.Secret)
	}
	if t.PublicKeyPEM != "" {
		cfg.PublicKey = []byte(t.PublicKeyPEM)
	}
	return cfg
}

// Client converts the auth section into an authclient configuration.
func (a AuthConfig) Client() authclient.Config {
	return authclient.Config{
		BaseURL:   a.BaseURL,
		TokenPath: a.TokenPath,
		Timeout:   a.Timeout,
		UserAgent: a.UserAgent,
	}
}

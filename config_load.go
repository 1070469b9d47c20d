package sessionguard

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment variables that override file values.
const (
	EnvTokenSecret = "SESSIONGUARD_TOKEN_SECRET"
	EnvAuthBaseURL = "SESSIONGUARD_AUTH_BASE_URL"
)

// TomlFile mirrors a config file with one table per environment. Keys absent
// from a table keep their DefaultConfig value.
type TomlFile struct {
	Development Config `toml:"development"`
	Production  Config `toml:"production"`

	meta toml.MetaData
}

// Get returns the table for env ("dev", "development", "prod", "production").
func (t *TomlFile) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		if !t.meta.IsDefined("development") {
			return nil, fmt.Errorf("%w: no [development] table", ErrInvalidConfig)
		}
		return &t.Development, nil
	case "prod", "production":
		if !t.meta.IsDefined("production") {
			return nil, fmt.Errorf("%w: no [production] table", ErrInvalidConfig)
		}
		return &t.Production, nil
	default:
		return nil, fmt.Errorf("%w: unknown env: %s", ErrInvalidConfig, env)
	}
}

// LoadConfig reads path, selects the env table, applies environment
// overrides and validates the result.
func LoadConfig(env, path string) (*Config, error) {
	file := &TomlFile{
		Development: DefaultConfig(),
		Production:  DefaultConfig(),
	}

	meta, err := toml.DecodeFile(path, file)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	file.meta = meta

	cfg, err := file.Get(env)
	if err != nil {
		return nil, err
	}

	if secret := os.Getenv(EnvTokenSecret); secret != "" {
		cfg.Token.Secret = secret
	}
	if base := os.Getenv(EnvAuthBaseURL); base != "" {
		cfg.Auth.BaseURL = base
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

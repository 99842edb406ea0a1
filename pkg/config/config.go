package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// CurrentV is the only config.toml layout this build reads.
	CurrentV = 0
)

// Configer reads and writes config.toml inside the resolved .forum/ directory.
type Configer struct {
	targetPath string
}

// NewConfiger resolves config.toml inside the .forum/ directory (override
// first, then ./.forum, then ~/.forum). The file need not exist yet.
func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().File(override, configFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns every supported key in config.toml section order.
func ValidConfigKeys() []string {
	return append([]string(nil), keyOrder...)
}

// IsValidConfigKey reports whether key can be used with get and set.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// GetTarget returns the config.toml path.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig reads config.toml and fills unset fields from
// NewDefaultConfig. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if errors.Is(err, os.ErrNotExist) {
		return NewDefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields. A nil origin list takes the default;
// an explicit empty list stays empty.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	orDefault(&cfg.LLM.Provider, d.LLM.Provider)
	orDefault(&cfg.LLM.Endpoint, d.LLM.Endpoint)
	orDefault(&cfg.LLM.Model, d.LLM.Model)
	orDefault(&cfg.LLM.Timeout, d.LLM.Timeout)

	orDefault(&cfg.API.Listen, d.API.Listen)
	orDefault(&cfg.API.Name, d.API.Name)
	if cfg.API.AllowedOrigins == nil {
		cfg.API.AllowedOrigins = d.API.AllowedOrigins
	}

	if cfg.Mailer.Port == 0 {
		cfg.Mailer.Port = d.Mailer.Port
	}
	orDefault(&cfg.Mailer.FromName, d.Mailer.FromName)
	orDefault(&cfg.Mailer.ReplyTo, d.Mailer.ReplyTo)

	orDefault(&cfg.Events.Topic, d.Events.Topic)
}

func orDefault(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// SaveConfig writes cfg to config.toml with owner-only permissions.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save config: empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and persists it.
func (c *Configer) SetConfigValue(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

// ParseConfigTOML decodes raw config.toml bytes, rejecting versions other
// than CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}

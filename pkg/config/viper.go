package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. FORUM_LLM_ENDPOINT.
const EnvPrefix = "FORUM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the FORUM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FORUM_LLM_ENDPOINT, FORUM_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: FORUM_LLM_MODEL, FORUM_EVENTS_BROKERS, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the resolved configuration.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		LLM: LLMConfig{
			Provider: v.GetString("llm.provider"),
			Endpoint: v.GetString("llm.endpoint"),
			Model:    v.GetString("llm.model"),
			Timeout:  v.GetString("llm.timeout"),
		},
		API: APIConfig{
			Listen:         v.GetString("api.listen"),
			Name:           v.GetString("api.name"),
			AllowedOrigins: getList(v, "api.allowed_origins"),
			LogFile:        v.GetString("api.log_file"),
		},
		Mailer: MailerConfig{
			Host:        v.GetString("mailer.host"),
			Port:        v.GetInt("mailer.port"),
			Username:    v.GetString("mailer.username"),
			From:        v.GetString("mailer.from"),
			FromName:    v.GetString("mailer.from_name"),
			ReplyTo:     v.GetString("mailer.reply_to"),
			AdminEmails: getList(v, "mailer.admin_emails"),
		},
		Events: EventsConfig{
			Brokers: getList(v, "events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
	}
}

// getList reads a list key. Values coming from the environment or a flag
// are plain strings and are split on commas.
func getList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return SplitList(s)
	}
	return v.GetStringSlice(key)
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.name", d.API.Name)
	v.SetDefault("api.allowed_origins", d.API.AllowedOrigins)
	v.SetDefault("api.log_file", d.API.LogFile)

	// Mailer
	v.SetDefault("mailer.host", d.Mailer.Host)
	v.SetDefault("mailer.port", d.Mailer.Port)
	v.SetDefault("mailer.username", d.Mailer.Username)
	v.SetDefault("mailer.from", d.Mailer.From)
	v.SetDefault("mailer.from_name", d.Mailer.FromName)
	v.SetDefault("mailer.reply_to", d.Mailer.ReplyTo)
	v.SetDefault("mailer.admin_emails", d.Mailer.AdminEmails)

	// Events
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

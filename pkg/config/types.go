package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent forum configuration stored as config.toml
// in the .forum/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	LLM     LLMConfig    `toml:"llm"`
	API     APIConfig    `toml:"api"`
	Mailer  MailerConfig `toml:"mailer"`
	Events  EventsConfig `toml:"events"`
}

// LLMConfig holds the chat completion service settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
	Model    string `toml:"model,omitempty"`

	// Timeout is a Go duration string (e.g. "20m", "90s") bounding a
	// single streamed answer.
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout. An empty value yields zero, which the
// streamer rejects as a configuration error.
func (c LLMConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Name prefixes admin error email subjects.
	Name string `toml:"name,omitempty"`

	// AllowedOrigins are the browser origins accepted by the CORS policy.
	// Requests without an Origin header are always accepted.
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`

	// LogFile receives JSON service logs in addition to stdout.
	LogFile string `toml:"log_file,omitempty"`
}

// MailerConfig holds SMTP settings for answer and error notifications.
// The SMTP password lives in credentials.toml. An empty Host disables mail.
type MailerConfig struct {
	Host        string   `toml:"host,omitempty"`
	Port        int      `toml:"port,omitempty"`
	Username    string   `toml:"username,omitempty"`
	From        string   `toml:"from,omitempty"`
	FromName    string   `toml:"from_name,omitempty"`
	ReplyTo     string   `toml:"reply_to,omitempty"`
	AdminEmails []string `toml:"admin_emails,omitempty"`
}

// EventsConfig holds answer telemetry settings. Empty Brokers disables
// publishing.
type EventsConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure. List values
// are read and written as comma separated strings.
// keyOrder lists configKeys in config.toml section order.
var keyOrder = []string{
	"llm.provider",
	"llm.endpoint",
	"llm.model",
	"llm.timeout",
	"api.listen",
	"api.name",
	"api.allowed_origins",
	"api.log_file",
	"mailer.host",
	"mailer.port",
	"mailer.username",
	"mailer.from",
	"mailer.from_name",
	"mailer.reply_to",
	"mailer.admin_emails",
	"events.brokers",
	"events.topic",
}

var configKeys = map[string]configKeyInfo{
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.endpoint": {
		get: func(c *Config) string { return c.LLM.Endpoint },
		set: func(c *Config, v string) error { c.LLM.Endpoint = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.timeout": {
		get: func(c *Config) string { return c.LLM.Timeout },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for llm.timeout: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for llm.timeout: must be positive, got %s", d)
			}
			c.LLM.Timeout = v
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.name": {
		get: func(c *Config) string { return c.API.Name },
		set: func(c *Config, v string) error { c.API.Name = v; return nil },
	},
	"api.allowed_origins": {
		get: func(c *Config) string { return strings.Join(c.API.AllowedOrigins, ",") },
		set: func(c *Config, v string) error { c.API.AllowedOrigins = SplitList(v); return nil },
	},
	"api.log_file": {
		get: func(c *Config) string { return c.API.LogFile },
		set: func(c *Config, v string) error { c.API.LogFile = v; return nil },
	},
	"mailer.host": {
		get: func(c *Config) string { return c.Mailer.Host },
		set: func(c *Config, v string) error { c.Mailer.Host = v; return nil },
	},
	"mailer.port": {
		get: func(c *Config) string {
			if c.Mailer.Port == 0 {
				return ""
			}
			return strconv.Itoa(c.Mailer.Port)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 16)
			if err != nil {
				return fmt.Errorf("invalid value for mailer.port: %w", err)
			}
			c.Mailer.Port = int(n)
			return nil
		},
	},
	"mailer.username": {
		get: func(c *Config) string { return c.Mailer.Username },
		set: func(c *Config, v string) error { c.Mailer.Username = v; return nil },
	},
	"mailer.from": {
		get: func(c *Config) string { return c.Mailer.From },
		set: func(c *Config, v string) error { c.Mailer.From = v; return nil },
	},
	"mailer.from_name": {
		get: func(c *Config) string { return c.Mailer.FromName },
		set: func(c *Config, v string) error { c.Mailer.FromName = v; return nil },
	},
	"mailer.reply_to": {
		get: func(c *Config) string { return c.Mailer.ReplyTo },
		set: func(c *Config, v string) error { c.Mailer.ReplyTo = v; return nil },
	},
	"mailer.admin_emails": {
		get: func(c *Config) string { return strings.Join(c.Mailer.AdminEmails, ",") },
		set: func(c *Config, v string) error { c.Mailer.AdminEmails = SplitList(v); return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = SplitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

// SplitList splits a comma separated value, trimming blanks and dropping
// empty entries. An empty input yields nil.
func SplitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

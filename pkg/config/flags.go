package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --endpoint
// on both "forum ask" and "forum serve").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags to
// avoid typos or drift from one command to another.
const (
	FlagEndpoint       = "endpoint"
	FlagModel          = "model"
	FlagTimeout        = "timeout"
	FlagProvider       = "provider"
	FlagListen         = "listen"
	FlagLogFile        = "log-file"
	FlagAllowedOrigins = "allowed-origins"
	FlagBrokers        = "kafka-brokers"
	FlagTopic          = "kafka-topic"
)

// Flags is the shared registry used by the forum commands.
var Flags = FlagSet{
	FlagEndpoint:       {Name: "endpoint", Shorthand: "e", ViperKey: "llm.endpoint", Description: "Chat completions endpoint URL"},
	FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Model identifier sent in the body and model header"},
	FlagTimeout:        {Name: "timeout", Shorthand: "t", ViperKey: "llm.timeout", Description: "Overall deadline for one streamed answer (e.g. 90s, 20m)"},
	FlagProvider:       {Name: "provider", Shorthand: "p", ViperKey: "llm.provider", Description: "Wire format of the completion service (openai)"},
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagLogFile:        {Name: "log-file", ViperKey: "api.log_file", Description: "Append JSON service logs to this file"},
	FlagAllowedOrigins: {Name: "allowed-origins", ViperKey: "api.allowed_origins", Description: "Comma separated browser origins accepted by CORS"},
	FlagBrokers:        {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for answer events (empty disables)"},
	FlagTopic:          {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for answer events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default value for a viper key from
// NewDefaultConfig, with lists joined by commas.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	if list, ok := v.Get(viperKey).([]string); ok {
		return strings.Join(list, ",")
	}
	return v.GetString(viperKey)
}

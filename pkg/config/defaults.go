package config

const (
	defaultProvider = "openai"
	defaultEndpoint = "https://botafogo.epfl.ch/llm/chat/completions"
	defaultModel    = "CaLlm-course"
	defaultTimeout  = "20m"

	defaultAPIListen     = ":8080"
	defaultAPIName       = "forum-rest-api"
	defaultAllowedOrigin = "https://botafogo.epfl.ch"

	defaultMailerPort     = 587
	defaultMailerFromName = "Forum Analyse"
	defaultMailerReplyTo  = "support-technique.analyse@groupes.epfl.ch"

	defaultEventsTopic = "forum.answers"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		LLM: LLMConfig{
			Provider: defaultProvider,
			Endpoint: defaultEndpoint,
			Model:    defaultModel,
			Timeout:  defaultTimeout,
		},
		API: APIConfig{
			Listen:         defaultAPIListen,
			Name:           defaultAPIName,
			AllowedOrigins: []string{defaultAllowedOrigin},
		},
		Mailer: MailerConfig{
			Port:     defaultMailerPort,
			FromName: defaultMailerFromName,
			ReplyTo:  defaultMailerReplyTo,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}

// Package servecmder provides the serve command, which runs the forum
// answer API.
package servecmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Jeremmmyyyyy/forum-rest-api/api"
	"github.com/Jeremmmyyyyy/forum-rest-api/api/mcp"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/config"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/credentials"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream/kafka"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream/nop"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/logger"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/notifier"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/origin"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/worker"
)

type ServeCommander struct {
	listen         string
	endpoint       string
	model          string
	timeout        string
	provider       string
	logFile        string
	allowedOrigins string
	brokers        string
	topic          string

	logLevel  string
	noMCP     bool
	rateLimit int
	rateBurst int
	configDir string
	debug     bool

	viper  *viper.Viper
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagEndpoint,
	config.FlagModel,
	config.FlagTimeout,
	config.FlagProvider,
	config.FlagLogFile,
	config.FlagAllowedOrigins,
	config.FlagBrokers,
	config.FlagTopic,
}

const serveLongDesc string = `Run the forum answer API.

The server exposes:
  POST /llm/questions   Answer a forum question
  GET  /ping            Health check
  /mcp                  MCP endpoint with the ask_question tool

Browser requests are limited to api.allowed_origins. Editing that key in
config.toml takes effect without a restart.

New-answer and error emails are sent when mailer.host is set. Answer events
are published to Kafka when events.brokers is set.`

const serveShortDesc string = "Run the forum answer API"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagAllowedOrigins, &cmder.allowedOrigins)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)

	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARNING or ERROR (overrides --debug)")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")
	cmd.Flags().IntVar(&cmder.rateLimit, "rate-limit", 30, "Questions per minute accepted from one client IP (0 disables)")
	cmd.Flags().IntVar(&cmder.rateBurst, "rate-burst", 0, "Burst size for --rate-limit (defaults to the limit)")

	return cmd
}

func (c *ServeCommander) run() error {
	cfg := config.FromViper(c.viper)

	log, closeLog, err := c.newLogger(cfg.API.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	a, err := answerer.FromConfig(cfg, creds, c.logger)
	if err != nil {
		return err
	}
	if err := a.Check(); err != nil {
		return err
	}

	origins := origin.NewAllowList(cfg.API.AllowedOrigins...)
	c.watchOrigins(origins)

	publisher, err := newPublisher(cfg.Events, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	mailer, err := newMailer(cfg, creds, c.logger)
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(&worker.Config{Logger: c.logger})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	apiConfig := api.Config{
		ListenAddr: cfg.API.Listen,
		Asker:      a,
		Origins:    origins,
		Source: eventstream.EventSource{
			Service:  cfg.API.Name,
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
		},
		Mailer:    mailer,
		Publisher: publisher,
		Pool:      pool,
		RateLimit: c.rateLimit,
		RateBurst: c.rateBurst,
		Logger:    c.logger,
	}

	if !c.noMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{Asker: a, Logger: c.logger})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCP = mcpServer.Handler()
	}

	server, err := api.NewServer(apiConfig)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("forum answer API configured",
		"endpoint", cfg.LLM.Endpoint,
		"model", cfg.LLM.Model,
		"timeout", cfg.LLM.Timeout,
		"allowed_origins", origins.List(),
		"mailer", mailer != nil,
		"kafka_brokers", cfg.Events.Brokers,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newLogger writes pretty records to stdout and, when logFile is set, JSON
// records to that file.
func (c *ServeCommander) newLogger(logFile string) (*slog.Logger, func(), error) {
	opts := []logger.Option{logger.WithDebug(c.debug)}
	if c.logLevel != "" {
		level, err := logger.ParseLevel(c.logLevel)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, logger.WithLevel(level))
	}

	stdout := logger.New(append(opts, logger.WithPretty(true))...)
	if logFile == "" {
		return stdout, func() {}, nil
	}

	f, err := logger.OpenFile(logFile)
	if err != nil {
		return nil, nil, err
	}

	file := logger.New(append(opts,
		logger.WithJSON(true),
		logger.WithSource(c.debug),
		logger.WithWriter(f),
	)...)
	return logger.Multi(stdout, file), func() { f.Close() }, nil
}

// watchOrigins reloads the allowed origins when config.toml changes.
func (c *ServeCommander) watchOrigins(origins *origin.AllowList) {
	if c.viper.ConfigFileUsed() == "" {
		return
	}

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		reloaded := config.FromViper(c.viper)
		origins.Set(reloaded.API.AllowedOrigins)
		c.logger.Info("reloaded allowed origins",
			"file", e.Name,
			"allowed_origins", origins.List(),
		)
	})
	c.viper.WatchConfig()
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func newPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	if len(c.Brokers) == 0 {
		log.Debug("no kafka brokers configured, answer events disabled")
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: c.Brokers,
		Topic:   c.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return p, nil
}

// newMailer returns nil when no SMTP host is configured.
func newMailer(cfg *config.Config, creds *credentials.Manager, log *slog.Logger) (*notifier.Mailer, error) {
	if cfg.Mailer.Host == "" {
		log.Debug("no mailer host configured, emails disabled")
		return nil, nil
	}

	password, err := creds.Resolve(credentials.MailerPassword)
	if err != nil {
		return nil, fmt.Errorf("loading mailer password: %w", err)
	}
	if cfg.Mailer.Username != "" && password == "" {
		return nil, errors.New("mailer.username is set but no mailer password is configured")
	}

	smtp, err := notifier.NewSMTP(notifier.SMTPConfig{
		Host:     cfg.Mailer.Host,
		Port:     cfg.Mailer.Port,
		Username: cfg.Mailer.Username,
		Password: password,
		From:     cfg.Mailer.From,
		FromName: cfg.Mailer.FromName,
		ReplyTo:  cfg.Mailer.ReplyTo,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mailer: %w", err)
	}

	return notifier.NewMailer(notifier.MailerConfig{
		Notifier:    smtp,
		APIName:     cfg.API.Name,
		AdminEmails: cfg.Mailer.AdminEmails,
	}), nil
}


package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream/nop"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/worker"
)

// Server is the forum answer API server.
type Server struct {
	config   Config
	logger   *slog.Logger
	app      *fiber.App
	pool     *worker.Pool
	ownsPool bool
}

// NewServer creates a new API server.
// The asker and pool are injected to allow sharing with other components
// (e.g., the MCP server).
func NewServer(config Config) (*Server, error) {
	if config.Asker == nil {
		return nil, errors.New("asker is required")
	}
	if config.Origins == nil {
		return nil, errors.New("origin policy is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Publisher == nil {
		config.Publisher = nop.NewPublisher()
	}

	s := &Server{
		config: config,
		logger: config.Logger,
		pool:   config.Pool,
	}

	if s.pool == nil {
		pool, err := worker.NewPool(&worker.Config{Logger: config.Logger})
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.ownsPool = true
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(s.cors)

	app.Get("/ping", s.handlePing)
	questions := []fiber.Handler{compress.New()}
	if config.RateLimit > 0 {
		questions = append(questions, newRateLimiter(config.RateLimit, config.RateBurst).handler(s))
	}
	app.Post("/llm/questions", append(questions, s.handleQuestion)...)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP))
	}

	s.app = app
	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCP != nil,
		"rate_limit", s.config.RateLimit,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server, then drains the worker
// pool when the server owns it.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if s.ownsPool {
		s.pool.Close()
	}
	return err
}

// Package api provides the HTTP API the forum front end calls to get an
// answer to a student's question.
package api

import (
	"log/slog"
	"net/http"

	"github.com/Jeremmmyyyyy/forum-rest-api/api/mcp"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/notifier"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/origin"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Asker answers questions. Required.
	Asker mcp.Asker

	// Origins decides which browser origins may call the API. Required.
	Origins origin.Policy

	// Source identifies this service in answer events.
	Source eventstream.EventSource

	// Mailer sends new-answer and error emails. Nil disables email.
	Mailer *notifier.Mailer

	// Publisher receives one event per question. Nil disables events.
	Publisher eventstream.Publisher

	// Pool runs email and event jobs off the request path. When nil the
	// server creates and owns one.
	Pool *worker.Pool

	// RateLimit is the number of questions per minute accepted from one
	// client IP. Zero disables the limit.
	RateLimit int

	// RateBurst is the bucket size for RateLimit (defaults to RateLimit).
	RateBurst int

	// MCP is mounted at /mcp when set.
	MCP http.Handler

	// Logger is the configured slog logger
	Logger *slog.Logger
}

// Package mcp provides an MCP (Model Context Protocol) server that lets agents
// ask the forum's completion service a question.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/utils"
)

// Asker answers a forum question.
type Asker interface {
	Answer(ctx context.Context, q answerer.Question, opts ...streamer.ExecOption) (*llm.Answer, error)
}

type Config struct {
	// Asker answers ask_question calls
	Asker Asker

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the ask_question tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "forum-rest-api",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Asker == nil {
			return nil, errors.New("asker is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying MCP server, used to attach in-memory
// transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
)

var (
	askToolName    = "ask_question"
	askDescription = "Ask the course assistant a question, as a student would on the forum. Blocks until the full answer has streamed back and returns it as text."
)

// AskInput represents the input arguments for the ask_question tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the question text"`
	QuestionID string `json:"question_id,omitempty" jsonschema:"forum question identifier, forwarded for correlation"`
	PageID     string `json:"page_id,omitempty" jsonschema:"forum page identifier, forwarded for correlation"`
	NotesDivID string `json:"notes_div_id,omitempty" jsonschema:"notes section identifier, forwarded for correlation"`
}

// AskOutput represents the output of the ask_question tool.
type AskOutput struct {
	Answer    string `json:"answer"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// handleAsk processes an ask_question request.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	if strings.TrimSpace(input.Question) == "" {
		return toolError("question is required"), AskOutput{}, nil
	}

	logger.Debug("MCP ask request",
		"question_id", input.QuestionID,
		"page_id", input.PageID,
	)

	ans, err := s.config.Asker.Answer(ctx, answerer.Question{
		PageID:     input.PageID,
		NotesDivID: input.NotesDivID,
		QuestionID: input.QuestionID,
		Text:       input.Question,
	})
	if err != nil {
		logger.Error("MCP ask failed", "question_id", input.QuestionID, "error", err)
		return toolError(fmt.Sprintf("Failed to answer question: %v", err)), AskOutput{}, nil
	}

	output := AskOutput{
		Answer:    ans.Text,
		ElapsedMs: ans.Elapsed.Milliseconds(),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: ans.Text},
		},
	}, output, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

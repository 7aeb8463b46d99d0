package mcpserver

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/gateway"
	"veilmatch/internal/match"
	"veilmatch/internal/profile"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, gateway.ErrMatchNotFound):
		return toolError("match_not_found", err.Error())
	case errors.Is(err, profile.ErrProfileNotFound):
		return toolError("profile_not_found", err.Error())
	case errors.Is(err, gateway.ErrAlreadyMatched):
		return toolError("already_in_match", err.Error())
	case errors.Is(err, gateway.ErrInvalidDecision):
		return toolError("invalid_decision", err.Error())
	case errors.Is(err, match.ErrInvalidState):
		return toolError("invalid_state", err.Error())
	case errors.Is(err, match.ErrDuplicateDecision):
		return toolError("duplicate_decision", err.Error())
	case errors.Is(err, match.ErrNotParticipant):
		return toolError("not_participant", err.Error())
	case errors.Is(err, match.ErrEmptyContent):
		return toolError("empty_content", err.Error())
	case errors.Is(err, matching.ErrNotRevealed):
		return toolError("not_revealed", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}

package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerMatchTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"find_match",
			mcp.WithDescription("Ask the matching engine for a new anonymous match"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
		),
		s.handleFindMatch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_current_match",
			mcp.WithDescription("Get the participant's current unfinished match"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
		),
		s.handleCurrentMatch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_chat",
			mcp.WithDescription("Get the match transcript, with an opener suggestion for young conversations"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
		),
		s.handleChat,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"send_message",
			mcp.WithDescription("Post a chat message to the match partner"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Message content")),
		),
		s.handleSendMessage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_revealed_profile",
			mcp.WithDescription("Get the partner's revealed profile; only valid after the compatibility reveal"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
		),
		s.handleRevealedProfile,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_decision",
			mcp.WithDescription("Submit the post-reveal decision: continue or pass"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
			mcp.WithString("decision", mcp.Required(), mcp.Description("continue|pass")),
		),
		s.handleSubmitDecision,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_match_history",
			mcp.WithDescription("List the participant's past and present matches"),
			mcp.WithString("participant_id", mcp.Required(), mcp.Description("Participant id")),
		),
		s.handleHistory,
	)
}

func (s *Server) handleFindMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.FindMatch(ctx, pid)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCurrentMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.CurrentMatch(ctx, pid)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.Chat(ctx, matchID, pid)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.SendMessage(ctx, matchID, pid, content)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleRevealedProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.RevealedProfile(ctx, matchID, pid)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleSubmitDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.SubmitDecision(ctx, matchID, pid, decision)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, err := request.RequireString("participant_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, svcErr := s.svc.History(ctx, pid)
	if svcErr != nil {
		return mapDomainError(svcErr), nil
	}
	return toolResult(resp), nil
}

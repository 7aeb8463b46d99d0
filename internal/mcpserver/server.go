package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/gateway"
)

// Server exposes the match lifecycle as MCP tools, so agent clients drive the
// same service layer the HTTP API does.
type Server struct {
	svc   *matching.Service
	coord *gateway.Coordinator

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *matching.Service, coord *gateway.Coordinator) *Server {
	mcpSrv := server.NewMCPServer(
		"veilmatch",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		svc:        svc,
		coord:      coord,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerMatchTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"match://{match_id}/summary",
			"match_summary",
			mcp.WithTemplateDescription("Anonymous match summary by match id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "match://") || !strings.HasSuffix(raw, "/summary") {
				return nil, nil
			}
			matchID := strings.TrimSuffix(strings.TrimPrefix(raw, "match://"), "/summary")
			if matchID == "" {
				return nil, nil
			}
			m, err := s.coord.Match(ctx, matchID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(map[string]any{
				"match_id":            m.ID,
				"status":              string(m.Status),
				"compatibility_score": m.CurrentScore,
				"created_at":          m.CreatedAt,
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{mcp.TextResourceContents{
				URI:      raw,
				MIMEType: "application/json",
				Text:     string(payload),
			}}, nil
		},
	)
}

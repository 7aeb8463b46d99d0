package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/config"
	"veilmatch/internal/mcpserver"
	"veilmatch/internal/store"
	"veilmatch/internal/ws"
)

func NewRouter(st *store.Store, cfg config.ServerConfig, svc *matching.Service, wsSrv *ws.Server, mcpSrv *mcpserver.Server) *chi.Mux {
	h := NewHandlers(svc, st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", h.Health())
	r.Get("/debug/vars", expvar.Handler().ServeHTTP)

	// Event frames flow over the channel; chi must not wrap it in the
	// request logger or the hijack fails.
	r.Get("/ws/channel", wsSrv.HandleChannel)

	if mcpSrv != nil && cfg.MCPEnabled {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Post("/matches/find", h.FindMatch())
		r.Get("/matches/current", h.CurrentMatch())
		r.Get("/matches/history", h.History())
		r.Get("/matches/{match_id}/chat", h.Chat())
		r.Post("/matches/{match_id}/messages", h.SendMessage())
		r.Get("/matches/{match_id}/reveal", h.Reveal())
		r.Post("/matches/{match_id}/decision", h.Decide())
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}

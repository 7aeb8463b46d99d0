package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"veilmatch/internal/app/matching"
	"veilmatch/internal/config"
	"veilmatch/internal/dispatch"
	"veilmatch/internal/gateway"
	"veilmatch/internal/logging"
	"veilmatch/internal/matchmaker"
	"veilmatch/internal/mcpserver"
	"veilmatch/internal/profile"
	"veilmatch/internal/score"
	"veilmatch/internal/store"
	httptransport "veilmatch/internal/transport/http"
	"veilmatch/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx := context.Background()

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	rdb, err := profile.Open(ctx, cfg.Server.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rdb.Close()
	profiles := profile.NewProvider(rdb)

	nc, err := score.Connect(cfg.Server.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats init failed")
	}
	defer nc.Close()

	dispatcher := dispatch.NewDispatcher(cfg.Match.EventBufferSize)
	coord := gateway.NewCoordinator(st, dispatcher, cfg.Match)
	coord.StartJanitor(ctx, cfg.Match.JanitorInterval)

	conflator := score.NewConflator(coord, profiles)
	go conflator.Run(ctx)
	consumer := score.NewConsumer(nc, conflator)
	if err := consumer.Start(); err != nil {
		log.Fatal().Err(err).Msg("score consumer failed")
	}
	defer consumer.Stop()

	svc := matching.NewService(coord, st, profiles, matchmaker.NewNATSSource(nc))
	wsSrv := ws.NewServer(coord, cfg.Match.HeartbeatInterval)

	var mcpSrv *mcpserver.Server
	if cfg.Server.MCPEnabled {
		mcpSrv = mcpserver.New(svc, coord)
	}

	r := httptransport.NewRouter(st, cfg.Server, svc, wsSrv, mcpSrv)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

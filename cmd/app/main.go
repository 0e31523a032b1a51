package main

import (
	"flag"
	"log"

	"KlineFeed/internal/handler/api"
	"KlineFeed/internal/repository"
	"KlineFeed/internal/service/binance"
	"KlineFeed/internal/usecase"
	"KlineFeed/pkg/config"
	xhttp "KlineFeed/pkg/http"
	applogger "KlineFeed/pkg/logger"
	"KlineFeed/pkg/metrics"
	"KlineFeed/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	rec := metrics.New()

	ranking, err := repository.NewPostgresRanking(cfg.Ranking.PostgresDSN, cfg.Ranking.QueryTimeout)
	if err != nil {
		log.Fatalf("ranking store init failed: %v", err)
	}

	streams, err := repository.NewRedisStreams(
		cfg.Stream.RedisAddr, cfg.Stream.RedisPassword, cfg.Stream.RedisDB, cfg.Stream.SymbolSetKey)
	if err != nil {
		log.Fatalf("stream store init failed: %v", err)
	}

	dialer := binance.NewDialer(cfg.Binance.WebsocketURL, cfg.Binance.IdleTimeout)

	synchronizer := usecase.NewRankingSynchronizer(
		ranking, cfg.Ranking.TopN, cfg.Ranking.SnapshotPath, rec, l)
	planner := usecase.NewBatchPlanner(l)
	sink := usecase.NewCandleSink(streams, cfg.Stream.MaxLen, rec, l)

	supervisor := usecase.NewFleetSupervisor(
		synchronizer, planner, streams, sink, dialer, rec, l,
		usecase.SupervisorConfig{
			Intervals:                cfg.Intervals(),
			MaxChannelsPerConnection: cfg.Binance.MaxChannelsPerConnection,
			Cooldown:                 cfg.Supervisor.Cooldown,
			ReconnectDelay:           cfg.Binance.ReconnectDelay,
			ReconnectMax:             cfg.Binance.ReconnectMax,
			ReclaimPeriod:            cfg.Reclaimer.Period,
		})

	httpServer := xhttp.NewServer(
		api.NewSymbolsHandler(streams, l), l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)

	app := server.New(cfg, l, supervisor, httpServer, ranking, streams)
	if err := app.Run(); err != nil {
		log.Fatalf("app error: %v", err)
	}
}

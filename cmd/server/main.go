package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insect-cbnu/cardbattle-server/internal/battle"
	"github.com/insect-cbnu/cardbattle-server/internal/config"
	"github.com/insect-cbnu/cardbattle-server/internal/history"
	"github.com/insect-cbnu/cardbattle-server/internal/matchmaking"
	"github.com/insect-cbnu/cardbattle-server/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

// recentResults bounds the in-memory history kept for /stats.
const recentResults = 100

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting card battle server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Match history: always in memory, optionally mirrored to Postgres
	memory := history.NewMemory(recentResults)
	recorders := history.Multi{memory}
	if cfg.Database.URL != "" {
		pg, err := history.NewPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.RecordTimeout, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pg.Close()
		recorders = append(recorders, pg)
		logger.Info("match history persisted to postgres", zap.Int32("max_conns", cfg.Database.MaxConns))
	}

	seed, err := battle.NewSeed()
	if err != nil {
		logger.Fatal("failed to seed roller", zap.Error(err))
	}

	hub := server.NewHub(cfg.Server.WebSocket, logger)
	rules := battle.Rules{
		CritThreshold:  cfg.Game.CritThreshold,
		MissThreshold:  cfg.Game.MissThreshold,
		CritMultiplier: cfg.Game.CritMultiplier,
	}
	engine := battle.NewEngine(hub, hub, battle.NewRoller(seed), rules, cfg.Game.TurnDelay, logger)
	svc := matchmaking.NewService(matchmaking.Config{
		CardPoolSize: cfg.Game.CardPoolSize,
		WinThreshold: cfg.Game.WinThreshold,
	}, hub, engine, recorders, logger)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		hub.Run(ctx, svc)
	}()

	stats := func() any {
		return struct {
			matchmaking.Stats
			Clients       int `json:"clients"`
			MatchesPlayed int `json:"matchesPlayed"`
		}{
			Stats:         svc.Stats(),
			Clients:       hub.ClientCount(),
			MatchesPlayed: memory.Total(),
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           server.NewRouter(hub, stats),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(err))
			sigChan <- syscall.SIGTERM
		}
	}()

	var admin *server.AdminServer
	if cfg.Server.GRPC.Address != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
		if err != nil {
			logger.Fatal("failed to listen", zap.Error(err))
		}
		admin = server.NewAdminServer(logger)
		go func() {
			logger.Info("starting admin gRPC server", zap.String("address", cfg.Server.GRPC.Address))
			if serveErr := admin.Serve(lis); serveErr != nil {
				logger.Error("gRPC server error", zap.Error(serveErr))
			}
		}()
		admin.SetServing(true)
	}

	logger.Info("card battle server initialized",
		zap.Int("card_pool_size", cfg.Game.CardPoolSize),
		zap.Int("win_threshold", cfg.Game.WinThreshold),
		zap.Duration("turn_delay", cfg.Game.TurnDelay),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	if admin != nil {
		admin.SetServing(false)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	cancel()
	<-loopDone

	if admin != nil {
		admin.Stop()
	}

	logger.Info("card battle server stopped", zap.Int("matches_played", memory.Total()))
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

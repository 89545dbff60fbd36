package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/mission-realtime/internal/config"
	"github.com/rickgao/mission-realtime/internal/connection"
	"github.com/rickgao/mission-realtime/internal/credential"
	"github.com/rickgao/mission-realtime/internal/logging"
	"github.com/rickgao/mission-realtime/internal/metrics"
	"github.com/rickgao/mission-realtime/internal/protocol"
	"github.com/rickgao/mission-realtime/internal/router"
	"github.com/rickgao/mission-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting realtime client",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"origin", cfg.Server.Origin,
		"rooms", len(cfg.Rooms),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.New()

	routes := router.New(logger.With("component", "router"), router.WithHooks(collector.RouterHooks()))
	routes.OnAny(func(env protocol.Envelope) {
		logger.Info("message received",
			"type", env.Type,
			"message_id", env.MessageID,
			"room", env.Room,
		)
	})

	creds, tokenFile := credentialSource(cfg.Auth, logger)

	manager := connection.NewManager(managerConfig(cfg), logger.With("component", "connection"),
		connection.WithCredentials(creds),
		connection.WithRouter(routes),
		connection.WithHooks(collector.ConnectionHooks()),
	)
	manager.OnStatus(collector.ObserveStatus)
	manager.OnNotice(func(n connection.Notice) {
		logger.Info("notice",
			"level", n.Level,
			"title", n.Title,
			"message", n.Message,
			"persistent", n.Persistent,
		)
	})
	collector.QueueLength(manager.QueueLen)

	g, gctx := errgroup.WithContext(ctx)

	// Start health server early so connection progress can be watched
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHealthHandler(manager, collector, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	start := func() {
		joinRooms(manager, cfg.Rooms, logger)
		if err := manager.Connect(gctx, ""); err != nil {
			// Dial failures are retried by the manager.
			logger.Warn("initial connect failed", "error", err)
		}
	}

	if tokenFile != nil && cfg.Auth.WatchTokenFile {
		g.Go(func() error {
			return tokenFile.Watch(gctx, onTokenChange(gctx, manager, cfg.Rooms, logger))
		})
	}

	start()

	logger.Info("realtime client running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-gctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := manager.Close(shutdownCtx); err != nil {
		logger.Warn("connection manager did not stop cleanly", "error", err)
	}

	if err := g.Wait(); err != nil {
		logger.Error("client stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("realtime client stopped")
}

// managerConfig maps file configuration onto the connection manager.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.Origin = cfg.Server.Origin
	mc.Path = cfg.Server.Path
	mc.ReconnectEnabled = cfg.Reconnect.IsEnabled()
	mc.ReconnectBaseDelay = cfg.Reconnect.BaseDelay
	mc.ReconnectMaxAttempts = max(cfg.Reconnect.MaxAttempts, 0)
	mc.ReconnectMaxDelay = cfg.Reconnect.MaxDelay
	mc.HeartbeatInterval = cfg.Heartbeat.Interval
	mc.AuthTimeout = max(cfg.Auth.Timeout, 0)
	mc.CredentialTimeout = cfg.Auth.CredentialTimeout
	mc.QueueSize = max(cfg.Queue.MaxSize, 0)

	mc.Client.HandshakeTimeout = cfg.Server.HandshakeTimeout
	mc.Client.WriteTimeout = cfg.Server.WriteTimeout
	mc.Client.PingTimeout = cfg.Server.PingTimeout
	mc.Client.ReadLimit = cfg.Server.ReadLimit
	return mc
}

// credentialSource chains the configured token sources in priority order.
// The file source is returned separately so it can be watched.
func credentialSource(cfg config.AuthConfig, logger *slog.Logger) (credential.Source, *credential.FileSource) {
	var sources []credential.Source
	if cfg.Token != "" {
		sources = append(sources, credential.Static(cfg.Token))
	}
	if cfg.TokenEnv != "" {
		sources = append(sources, credential.Env(cfg.TokenEnv))
	}

	var file *credential.FileSource
	if cfg.TokenFile != "" {
		file = credential.NewFileSource(cfg.TokenFile, logger.With("component", "token_file"))
		sources = append(sources, file)
	}
	if cfg.TokenURL != "" {
		sources = append(sources, credential.NewHTTPSource(cfg.TokenURL,
			credential.WithAPIKey(cfg.TokenURLKey),
			credential.WithRetries(cfg.TokenURLRetries, time.Second),
			credential.WithLogger(logger),
		))
	}

	return credential.Chain(sources...), file
}

// onTokenChange applies token file changes: signing out disconnects, signing
// in re-joins the configured rooms and connects or re-authenticates.
func onTokenChange(ctx context.Context, manager *connection.Manager, rooms []string, logger *slog.Logger) func(string) {
	return func(token string) {
		if token == "" {
			logger.Info("signed out, disconnecting")
		} else {
			logger.Info("signed in, connecting")
			joinRooms(manager, rooms, logger)
		}
		if err := manager.CredentialChanged(ctx, token); err != nil {
			logger.Warn("connect after sign-in failed", "error", err)
		}
	}
}

func joinRooms(manager *connection.Manager, rooms []string, logger *slog.Logger) {
	for _, room := range rooms {
		if err := manager.Join(room); err != nil {
			logger.Warn("cannot join room", "room", room, "error", err)
		}
	}
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(manager *connection.Manager, collector *metrics.Collector, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, collector.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := manager.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Version    string                 `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]interface{}),
		}

		conn := map[string]interface{}{
			"state":         stats.State,
			"authenticated": stats.Authenticated,
			"attempts":      stats.Attempts,
			"sessions":      stats.Sessions,
		}
		if err := manager.LastError(); err != nil {
			conn["last_error"] = err.Error()
		}
		health.Components["connection"] = conn
		health.Components["rooms"] = manager.JoinedRooms()
		health.Components["queue"] = map[string]interface{}{
			"queued":  stats.Queued,
			"dropped": stats.QueueDropped,
		}

		switch stats.State {
		case connection.StateError:
			health.Status = "unhealthy"
		case connection.StateAuthenticated:
		default:
			health.Status = "degraded"
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}

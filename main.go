package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bowarc/Tetris-wasm/config"
	"github.com/Bowarc/Tetris-wasm/hub"
	"github.com/Bowarc/Tetris-wasm/protocol"
	ws "github.com/Bowarc/Tetris-wasm/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default $RELAY_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	broadcaster := hub.New(hub.WithMaxParallelSends(cfg.Relay.MaxParallelSends))
	handler := protocol.NewHandler(broadcaster, protocol.WithPrefix(cfg.Prefix()))

	// cancelling sessionCtx closes every live session
	sessionCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     newMux(cfg, broadcaster, handler),
		BaseContext: func(net.Listener) context.Context { return sessionCtx },
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "admin", cfg.AdminEnabled())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down", "clients", broadcaster.Len())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	// hijacked websocket connections are not tracked by Shutdown
	cancelSessions()
	for broadcaster.Len() > 0 && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	if n := broadcaster.CloseAll(); n > 0 {
		slog.Warn("sessions still open at exit", "clients", n)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newMux(cfg *config.Config, broadcaster *hub.Hub, handler *protocol.Handler) *http.ServeMux {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  cfg.Session.ReadBufferSize,
		WriteBufferSize: cfg.Session.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(upgrader, broadcaster, handler, sessionConfig(cfg)))
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /stats", statsHandler(broadcaster, handler))

	if cfg.AdminEnabled() {
		mux.HandleFunc("GET /broadcast/{content}", broadcastHandler(broadcaster, cfg.Prefix(), cfg.Session.MaxMessageSize))
		mux.HandleFunc("POST /broadcast", broadcastHandler(broadcaster, cfg.Prefix(), cfg.Session.MaxMessageSize))
		mux.HandleFunc("GET /connections", connectionsHandler(broadcaster))
		mux.HandleFunc("DELETE /connections/{id}", disconnectHandler(broadcaster))
	}
	return mux
}

func sessionConfig(cfg *config.Config) ws.Config {
	return ws.Config{
		WriteWait:      cfg.Session.WriteWait,
		PongWait:       cfg.Session.PongWait,
		PingPeriod:     cfg.Session.PingPeriod,
		MaxMessageSize: cfg.Session.MaxMessageSize,
		Retry: ws.RetryPolicy{
			Attempts: cfg.Session.RegisterAttempts,
			Backoff:  cfg.Session.RegisterBackoff,
		},
	}
}

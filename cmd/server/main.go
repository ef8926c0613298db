package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/metrics"
	"github.com/Tyrowin/livechat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	slog.SetDefault(log)

	recorder := metrics.New()
	verifier := auth.NewJWTVerifier([]byte(config.JWTSecret), config.JWTIssuer)
	engine := chat.NewEngine(verifier, config.Engine(),
		chat.WithLogger(log),
		chat.WithObserver(recorder),
	)
	engine.Start()

	chatServer := server.New(config, engine, verifier,
		server.WithLogger(log),
		server.WithMetricsHandler(recorder.Handler()),
	)
	httpServer := server.CreateServer(config.Port, chatServer.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting livechat server", "addr", config.Port)
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			engine.Stop()
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout, log); err != nil {
		log.Error("HTTP shutdown incomplete", "err", err)
	}
	if err := chatServer.Shutdown(config.ShutdownTimeout); err != nil {
		return fmt.Errorf("chat shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/tourney/go/internal/config"
	"github.com/mcdev12/tourney/go/internal/tournament/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	// Load .env file if it exists
	if err := godotenv.Load(f.EnvFile); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

// run binds the socket, wires services and blocks until ctx is cancelled or
// a task fails. Bind failures return before any loop starts.
func run(ctx context.Context, cfg config.Config) error {
	udp, err := server.Listen(server.Config{
		ListenAddr:     cfg.ListenAddr,
		ReadBufferSize: cfg.ReadBufferSize,
		ReadTimeout:    cfg.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("bind udp socket: %w", err)
	}
	defer udp.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := setupServices(ctx, cfg, udp.Transport(), promReg)
	if err != nil {
		return fmt.Errorf("setup services: %w", err)
	}
	defer services.Close()

	httpServer := setupServer(cfg.AdminAddr, services, promReg)

	log.Info().
		Str("udp_addr", udp.LocalAddr().String()).
		Str("admin_addr", cfg.AdminAddr).
		Bool("nats", cfg.NATSEnabled()).
		Dur("liveness_timeout", cfg.Liveness.Timeout).
		Dur("collect_timeout", cfg.Round.CollectTimeout).
		Msg("starting tournament server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return udp.Serve(gctx, services.Dispatcher) })
	g.Go(func() error { return services.Monitor.Run(gctx) })
	g.Go(func() error { return services.Sessions.Run(gctx) })
	g.Go(func() error { return services.Hub.Start(gctx) })
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

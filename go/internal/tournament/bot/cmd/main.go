package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/tourney/go/internal/config"
	"github.com/mcdev12/tourney/go/internal/tournament/bot"
	"github.com/rs/zerolog/log"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	server := flag.String("server", getEnv("TOURNEY_SERVER", "127.0.0.1:8080"), "coordinator UDP address")
	name := flag.String("name", getEnv("TOURNEY_BOT_NAME", fmt.Sprintf("Client_%d", os.Getpid())), "display name, must not contain ':'")
	ping := flag.Duration("ping", 3*time.Second, "heartbeat interval")
	level := flag.String("log-level", getEnv("TOURNEY_LOG_LEVEL", "info"), "zerolog level")
	flag.Parse()

	if err := config.SetupLogging(config.LogConfig{Level: *level, Format: "console"}); err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.Dial(bot.Config{
		ServerAddr:   *server,
		Name:         *name,
		PingInterval: *ping,
	}, bot.NewRandomStrategy(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial server")
	}

	if err := b.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("bot stopped")
}

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
	"github.com/vadimbarashkov/shortlink/internal/app"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/pkg/logger"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the config file (defaults to $CONFIG_PATH)")
		tokenFor   = flag.String("token", "", "print a bearer token for the given owner id and exit")
		tokenTTL   = flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -token")
	)
	flag.Parse()

	_ = godotenv.Load()

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *tokenFor != "" {
		token, err := delivery.NewToken([]byte(cfg.Auth.JWTSecret), *tokenFor, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env == config.EnvDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.Error("application stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

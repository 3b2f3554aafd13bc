package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/open-chat-labs/open-chat-sub005/internal/app"
	"github.com/open-chat-labs/open-chat-sub005/pkg/config"
	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseFlags()
	eff, err := config.LoadEffective(flags)
	if err != nil {
		abort("failed to load config", err)
	}
	if err := eff.Config.Validate(); err != nil {
		abort("invalid configuration", err)
	}
	if flags.Validate {
		fmt.Println("configuration valid")
		return
	}

	logger.InitWithLevel(eff.Config.Logging.Level)
	defer logger.Sync()
	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "db_path", eff.DBPath)

	a, err := app.New(eff, version)
	if err != nil {
		abort("failed to initialize", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("run_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		abort("shutdown failed", err)
	}
}

func abort(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

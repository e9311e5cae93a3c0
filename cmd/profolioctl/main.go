package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/profolio/profolio/internal/ctl"
	"github.com/profolio/profolio/internal/logging"
)

func main() {
	logger := logging.New(logging.Options{Format: "text", Output: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	app := ctl.NewApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error(ctx, "profolioctl failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

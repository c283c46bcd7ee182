package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/uploader"
	"github.com/dmitrijs2005/lakehouse/internal/uploader/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(uploader.ExitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := logging.New(cfg.LogLevel, os.Stderr)
	code := uploader.NewApp(cfg, os.Stdout, logger).Run(ctx)

	stop()
	os.Exit(code)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegis-gateway/aegis/internal/config"
	"github.com/aegis-gateway/aegis/internal/daemon"
	"github.com/aegis-gateway/aegis/internal/logging"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "configs/aegis.json", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aegisd v%s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info(ctx, "starting aegisd", "version", Version, "config", *configPath)

	if err := daemon.Run(ctx, cfg, log); err != nil {
		log.Error(ctx, "aegisd exited with error", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"stardrift/server/internal/app"
	"stardrift/server/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the server config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

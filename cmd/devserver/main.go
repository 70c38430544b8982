package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ticketkenya/internal/config"
	"ticketkenya/internal/devserver"
	"ticketkenya/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	opts := logger.Options{Out: os.Stdout, Prefix: "devserver", Level: logger.ParseLevel(cfg.Log.Level)}
	if cfg.Log.File {
		opts.Dir = filepath.Join(cfg.State.Dir, "logs")
	}
	log, err := logger.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := devserver.Open(cfg.DevServer.DatabaseURL)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	log.Info("DATABASE", "Connection successful")

	srv := devserver.New(&devserver.DB{Bun: bunDB}, cfg.DevServer, log)
	if err := srv.Setup(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Setup failed: %v", err))
	}
	if err := srv.ListenAndServe(ctx, cfg.DevServer.Port); err != nil {
		log.Fatal("APP", fmt.Sprintf("HTTP error: %v", err))
	}
}

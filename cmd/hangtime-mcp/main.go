package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/hangtime/internal/apiclient"
	"github.com/meltforce/hangtime/internal/config"
	hmcp "github.com/meltforce/hangtime/internal/mcp"
	"github.com/meltforce/hangtime/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local database mode)")
	apiURL := flag.String("api-url", os.Getenv("HANGTIME_API_URL"), "hangtime server URL (remote mode)")
	userID := flag.Int("user", 1, "user whose data the tools expose")
	flag.Parse()

	// stdout carries the protocol; log to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := context.Background()
	var ds hmcp.DataSource

	if *apiURL != "" {
		ds = apiclient.New(*apiURL, "")
		log.Info("mcp using remote API", "url", *apiURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		log.Info("mcp using local database")
	}

	s := hmcp.New(ds, Version, log)
	err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return hmcp.WithUserID(ctx, *userID)
	}))
	if err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

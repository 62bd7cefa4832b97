package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meltforce/hangtime/internal/config"
	"github.com/meltforce/hangtime/internal/importer"
	"github.com/meltforce/hangtime/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsDir := flag.String("migrations", "migrations", "directory of SQL migrations")
	dir := flag.String("path", "", "directory of workout files (.yaml, .toml, .json) (required)")
	userID := flag.Int("user", 1, "owner of the imported workouts")
	login := flag.String("login", "", "owner by tailnet login (overrides -user)")
	dryRun := flag.Bool("dry-run", false, "report counts without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: hangtime-import -config config.yaml -path ./workouts [-user 1 | -login name] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Verify the directory exists
	info, err := os.Stat(*dir)
	if err != nil || !info.IsDir() {
		log.Error("path does not exist or is not a directory", "path", *dir)
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, *migrationsDir); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	if *login != "" {
		id, err := db.GetOrCreateUser(ctx, *login, "")
		if err != nil {
			log.Error("failed to resolve owner", "error", err)
			os.Exit(1)
		}
		*userID = id
		log.Info("importing for user", "login", *login, "user_id", id)
	}

	// Run import
	imp := importer.New(db, log, *userID, *dryRun)
	stats, err := imp.Import(ctx, *dir)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_errored", stats.FilesErrored,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_duplicated", stats.WorkoutsDuplicated,
	)
}

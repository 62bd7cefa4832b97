package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/storage"
	"github.com/meltforce/hangtime/internal/workoutfile"
)

// Store is the storage the importer writes to. *storage.DB satisfies it.
type Store interface {
	CreateWorkout(ctx context.Context, w *models.Workout) error
	ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutSummary, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

var _ Store = (*storage.DB)(nil)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesErrored   int

	WorkoutsInserted   int
	WorkoutsDuplicated int
}

// Importer reads workout files from a directory and inserts them into the DB.
type Importer struct {
	db     Store
	log    *slog.Logger
	userID int
	dryRun bool
	stats  Stats
}

// New creates a new Importer writing workouts owned by userID.
func New(db Store, log *slog.Logger, userID int, dryRun bool) *Importer {
	return &Importer{db: db, log: log, userID: userID, dryRun: dryRun}
}

// Import processes every workout file under dir. A workout whose name or id
// already exists for the user is skipped. Unreadable files are counted and
// skipped; storage errors abort the run.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()
	logID := imp.beginLog(ctx, dir)

	err := imp.importDir(ctx, dir)
	imp.finishLog(ctx, logID, dir, start, err)
	return &imp.stats, err
}

func (imp *Importer) importDir(ctx context.Context, dir string) error {
	files, err := workoutfile.Find(dir)
	if err != nil {
		return err
	}

	existing, err := imp.db.ListWorkouts(ctx, imp.userID)
	if err != nil {
		return fmt.Errorf("listing existing workouts: %w", err)
	}
	names := make(map[string]bool, len(existing))
	ids := make(map[uuid.UUID]bool, len(existing))
	for _, w := range existing {
		names[strings.ToLower(w.Name)] = true
		ids[w.ID] = true
	}

	for _, f := range files {
		w, err := workoutfile.Load(f)
		if err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		imp.stats.FilesProcessed++

		key := strings.ToLower(w.Name)
		if names[key] || ids[w.ID] {
			imp.log.Info("skipping duplicate workout", "file", f, "name", w.Name)
			imp.stats.WorkoutsDuplicated++
			continue
		}

		if !imp.dryRun {
			w.UserID = imp.userID
			if err := imp.db.CreateWorkout(ctx, w); err != nil {
				return fmt.Errorf("inserting %s: %w", f, err)
			}
		}
		names[key] = true
		ids[w.ID] = true
		imp.stats.WorkoutsInserted++
		imp.log.Info("imported workout", "file", f, "name", w.Name, "sets", len(w.Sets))
	}
	return nil
}

func (imp *Importer) beginLog(ctx context.Context, dir string) int64 {
	if imp.dryRun {
		return 0
	}
	id, err := imp.db.InsertImportLog(ctx, storage.ImportLog{
		UserID: imp.userID,
		Source: "files:" + dir,
		Status: "running",
	})
	if err != nil {
		imp.log.Error("failed to log import", "error", err)
		return 0
	}
	return id
}

// finishLog records the outcome on the import_logs row created by beginLog.
func (imp *Importer) finishLog(ctx context.Context, id int64, dir string, start time.Time, importErr error) {
	if id == 0 {
		return
	}
	status := "success"
	var errMsg *string
	if importErr != nil {
		status = "error"
		msg := importErr.Error()
		errMsg = &msg
	}
	durationMs := int(time.Since(start).Milliseconds())

	err := imp.db.UpdateImportLog(ctx, id, storage.ImportLog{
		Source:           "files:" + dir,
		Status:           status,
		FilesRead:        imp.stats.FilesProcessed + imp.stats.FilesErrored,
		WorkoutsReceived: imp.stats.WorkoutsInserted + imp.stats.WorkoutsDuplicated,
		WorkoutsInserted: imp.stats.WorkoutsInserted,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	})
	if err != nil {
		imp.log.Error("failed to update import log", "id", id, "error", err)
	}
}

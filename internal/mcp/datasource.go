package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/hangtime/internal/apiclient"
	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and *apiclient.Client (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutSummary, error)
	GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*models.Workout, error)
	QuerySessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionSummary, error)
	GetSession(ctx context.Context, sessionID string, userID int) (*models.Session, error)
	DailyHangTime(ctx context.Context, start, end time.Time, userID int) ([]models.DailyHangTime, error)
	GripUsage(ctx context.Context, start, end time.Time, userID int) ([]models.GripUsage, error)
	GetDataStats(ctx context.Context, userID int) (*models.DataStats, error)
}

// Compile-time checks: both backends satisfy DataSource.
var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*apiclient.Client)(nil)
)

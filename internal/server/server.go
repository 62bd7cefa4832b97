package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meltforce/hangtime/internal/metrics"
	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/storage"
)

// Store is the subset of *storage.DB the handlers use.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	CreateWorkout(ctx context.Context, w *models.Workout) error
	ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutSummary, error)
	GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*models.Workout, error)

	CreateHangboard(ctx context.Context, b *models.Hangboard) error
	ListHangboards(ctx context.Context, userID int) ([]models.Hangboard, error)
	GetHangboard(ctx context.Context, id uuid.UUID, userID int) (*models.Hangboard, error)

	CreateSession(ctx context.Context, userID int, s models.Session) (string, error)
	AddRepetition(ctx context.Context, userID int, sessionID string, rep models.LoggedRep) error
	QuerySessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionSummary, error)
	GetSession(ctx context.Context, sessionID string, userID int) (*models.Session, error)

	GetDataStats(ctx context.Context, userID int) (*models.DataStats, error)
	DailyHangTime(ctx context.Context, start, end time.Time, userID int) ([]models.DailyHangTime, error)
	GripUsage(ctx context.Context, start, end time.Time, userID int) ([]models.GripUsage, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	log      *slog.Logger
	apiKey   string
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	whois    WhoIsClient
	router   chi.Router
}

// New creates a new Server with all routes configured. A nil gatherer
// disables the /metrics endpoint.
func New(db Store, m *metrics.Manager, gatherer prometheus.Gatherer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		log:      log,
		apiKey:   apiKey,
		metrics:  m,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale switches request identity from the dev user to tailnet
// WhoIs lookups.
func (s *Server) SetTailscale(wc WhoIsClient) {
	s.whois = wc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(PanicRecovery(s.metrics, s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/me", s.handleMe)

		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Get("/hangboards", s.handleListHangboards)
		r.Get("/hangboards/{id}", s.handleGetHangboard)
		r.Get("/sessions", s.handleQuerySessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/training-time", s.handleTrainingTime)
		r.Get("/stats/grip-usage", s.handleGripUsage)
		r.Get("/import-logs", s.handleImportLogs)

		// Write endpoints (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/workouts", s.handleCreateWorkout)
			r.Post("/hangboards", s.handleCreateHangboard)
			r.Post("/sessions", s.handleCreateSession)
			r.Post("/sessions/{id}/repetitions", s.handleAddRepetition)
		})
	})
}

// identity resolves the caller per request so SetTailscale can be called
// after New.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.db, s.log)(next).ServeHTTP(w, r)
	})
}

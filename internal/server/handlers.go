package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/storage"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	workouts, err := s.db.ListWorkouts(r.Context(), userIDFromContext(r))
	if err != nil {
		s.internalError(w, "listing workouts", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(workouts))
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	workoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout ID"})
		return
	}

	workout, err := s.db.GetWorkout(r.Context(), workoutID, userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		s.internalError(w, "getting workout", err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	var workout models.Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if workout.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := workout.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	workout.UserID = userIDFromContext(r)

	if err := s.db.CreateWorkout(r.Context(), &workout); err != nil {
		s.internalError(w, "creating workout", err)
		return
	}
	if s.metrics != nil {
		s.metrics.CounterWorkouts.Inc()
	}
	writeJSON(w, http.StatusCreated, workout)
}

func (s *Server) handleListHangboards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.db.ListHangboards(r.Context(), userIDFromContext(r))
	if err != nil {
		s.internalError(w, "listing hangboards", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(boards))
}

func (s *Server) handleGetHangboard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hangboard ID"})
		return
	}

	board, err := s.db.GetHangboard(r.Context(), id, userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "hangboard not found"})
		return
	}
	if err != nil {
		s.internalError(w, "getting hangboard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleCreateHangboard(w http.ResponseWriter, r *http.Request) {
	var board models.Hangboard
	if err := json.NewDecoder(r.Body).Decode(&board); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := board.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	board.UserID = userIDFromContext(r)

	if err := s.db.CreateHangboard(r.Context(), &board); err != nil {
		s.internalError(w, "creating hangboard", err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

// handleCreateSession starts a session log. The body carries the workout id
// and the reps confirmed so far; the response carries the new session id.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var session models.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if session.WorkoutID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workout_id is required"})
		return
	}
	for _, rep := range session.RepLog {
		if msg := checkRep(rep); msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
	}

	id, err := s.db.CreateSession(r.Context(), userIDFromContext(r), session)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		s.internalError(w, "creating session", err)
		return
	}
	if s.metrics != nil {
		s.metrics.CounterSessions.Inc()
		s.metrics.CounterRepetitions.Add(float64(len(session.RepLog)))
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleAddRepetition(w http.ResponseWriter, r *http.Request) {
	var rep models.LoggedRep
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if msg := checkRep(rep); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	err := s.db.AddRepetition(r.Context(), userIDFromContext(r), chi.URLParam(r, "id"), rep)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		s.internalError(w, "adding repetition", err)
		return
	}
	if s.metrics != nil {
		s.metrics.CounterRepetitions.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuerySessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sessions, err := s.db.QuerySessions(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		s.internalError(w, "querying sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.db.GetSession(r.Context(), chi.URLParam(r, "id"), userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		s.internalError(w, "getting session", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetDataStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.internalError(w, "getting stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrainingTime(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	days, err := s.db.DailyHangTime(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		s.internalError(w, "querying training time", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(days))
}

func (s *Server) handleGripUsage(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	usage, err := s.db.GripUsage(r.Context(), start, end, userIDFromContext(r))
	if err != nil {
		s.internalError(w, "querying grip usage", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(usage))
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryImportLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.internalError(w, "querying import logs", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func checkRep(rep models.LoggedRep) string {
	if rep.PercentageCompleted < 0 || rep.PercentageCompleted > 100 {
		return "percentage_completed must be between 0 and 100"
	}
	if rep.SetID == uuid.Nil {
		return "set_id is required"
	}
	if rep.SecondsCompleted < 0 {
		return "seconds_completed must not be negative"
	}
	return ""
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 30 days
		end = time.Now()
		start = end.AddDate(0, 0, -30)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/hangtime/internal/apiclient"
	"github.com/meltforce/hangtime/internal/config"
	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/spool"
)

// clearEnv unsets the trainer variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HANGTIME_API_URL", "HANGTIME_API_KEY", "HANGTIME_SPOOL_PATH", "HANGTIME_MUTE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--env-file", ""}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), err
}

// fakeAPI serves the parts of the hangtime API the trainer uses.
type fakeAPI struct {
	mu       sync.Mutex
	workouts []models.Workout
	sessions []models.Session
	reps     map[string][]models.LoggedRep
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workouts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []models.WorkoutSummary{}
		for _, wk := range f.workouts {
			out = append(out, models.WorkoutSummary{ID: wk.ID, Name: wk.Name, SetCount: len(wk.Sets), CreatedAt: wk.CreatedAt})
		}
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("POST /api/v1/workouts", func(w http.ResponseWriter, r *http.Request) {
		var wk models.Workout
		if err := json.NewDecoder(r.Body).Decode(&wk); err != nil {
			t.Errorf("decode workout: %v", err)
		}
		wk.ID = uuid.New()
		wk.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		f.mu.Lock()
		f.workouts = append(f.workouts, wk)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(wk)
	})
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var s models.Session
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode session: %v", err)
		}
		f.mu.Lock()
		f.sessions = append(f.sessions, s)
		id := "sess-1"
		if f.reps == nil {
			f.reps = map[string][]models.LoggedRep{}
		}
		f.reps[id] = append(f.reps[id], s.RepLog...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"session_id":"` + id + `"}`))
	})
	mux.HandleFunc("POST /api/v1/sessions/{id}/repetitions", func(w http.ResponseWriter, r *http.Request) {
		var rep models.LoggedRep
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			t.Errorf("decode rep: %v", err)
		}
		f.mu.Lock()
		f.reps[r.PathValue("id")] = append(f.reps[r.PathValue("id")], rep)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

const workoutYAML = `
name: Max hangs
sets:
  - hang_time: 10
    rest_time: 0
    rest_before_next_set: 0
    reps: 1
`

func writeWorkout(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "max.yaml")
	require.NoError(t, os.WriteFile(path, []byte(workoutYAML), 0o644))
	return path
}

// TestWorkoutsRequiresServer fails with a hint when no server is configured.
func TestWorkoutsRequiresServer(t *testing.T) {
	clearEnv(t)
	_, err := runCLI(t, "", "workouts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

// TestPushThenList creates a workout from a file and lists it.
func TestPushThenList(t *testing.T) {
	clearEnv(t)
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	out, err := runCLI(t, "", "--api-url", srv.URL, "--api-key", "k", "push", writeWorkout(t))
	require.NoError(t, err)
	assert.Contains(t, out, "created Max hangs")

	out, err = runCLI(t, "", "--api-url", srv.URL, "workouts")
	require.NoError(t, err)
	assert.Contains(t, out, "Max hangs")
	assert.Contains(t, out, "2026-03-01")
}

// TestEnvFileConfiguresServer reads the server URL from a dotenv file.
func TestEnvFileConfiguresServer(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	defer srv.Close()

	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("HANGTIME_API_URL="+srv.URL+"\n"), 0o644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", "", "--env-file", env, "workouts"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no workouts yet")
}

// TestTrainFileQuit runs a file workout, quits before starting and reports
// nothing logged.
func TestTrainFileQuit(t *testing.T) {
	clearEnv(t)
	out, err := runCLI(t, "q\n", "--mute", "train", "--file", writeWorkout(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Max hangs")
	assert.Contains(t, out, "logged 0 reps")
}

// TestTrainNeedsOneSource rejects both or neither of id and --file.
func TestTrainNeedsOneSource(t *testing.T) {
	clearEnv(t)
	_, err := runCLI(t, "", "--mute", "train")
	assert.Error(t, err)
	_, err = runCLI(t, "", "--mute", "train", uuid.NewString(), "--file", "x.yaml")
	assert.Error(t, err)
}

// TestSyncReplaysSpool uploads spooled reps and empties the spool.
func TestSyncReplaysSpool(t *testing.T) {
	clearEnv(t)
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	spoolPath := filepath.Join(t.TempDir(), "spool.db")
	t.Setenv("HANGTIME_SPOOL_PATH", spoolPath)

	sp, err := spool.Open(spoolPath)
	require.NoError(t, err)
	setID := uuid.New()
	reps := []models.LoggedRep{
		{SecondsCompleted: 7, PercentageCompleted: 100, SetID: setID},
		{SecondsCompleted: 3.5, PercentageCompleted: 50, SetID: setID},
	}
	require.NoError(t, sp.Save(uuid.New(), "", time.Now(), reps))
	require.NoError(t, sp.Close())

	out, err := runCLI(t, "", "--api-url", srv.URL, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "sent 2 reps, created 1 sessions, 0 left")

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sessions, 1)
	assert.Len(t, api.reps["sess-1"], 2)
}

// TestEngineStopsSyncOnClientErrors treats rejected uploads as final and
// keeps retrying server errors.
func TestEngineStopsSyncOnClientErrors(t *testing.T) {
	opts := engineOptions(&config.TrainerConfig{Mute: true}, io.Discard, slog.Default())
	require.NotNil(t, opts.Permanent)
	rejected := fmt.Errorf("submitting session: %w", &apiclient.StatusError{Path: "/api/v1/sessions", Code: http.StatusUnprocessableEntity})
	assert.True(t, opts.Permanent(rejected))
	assert.False(t, opts.Permanent(&apiclient.StatusError{Code: http.StatusBadGateway}))
}

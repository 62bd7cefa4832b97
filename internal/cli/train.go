package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meltforce/hangtime/internal/apiclient"
	"github.com/meltforce/hangtime/internal/config"
	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/playback"
	"github.com/meltforce/hangtime/internal/spool"
	"github.com/meltforce/hangtime/internal/trainer"
	"github.com/meltforce/hangtime/internal/workoutfile"
)

const flushTimeout = 10 * time.Second

func newTrainCmd(a *app) *cobra.Command {
	var (
		file  string
		push  bool
		start bool
	)

	cmd := &cobra.Command{
		Use:   "train [workout-id]",
		Short: "Run a workout with countdowns and audio cues",
		Long: "Run a workout fetched from the server by id, or read from a YAML, TOML or JSON file\n" +
			"with --file. Confirmed reps are uploaded as they are logged; reps that cannot be\n" +
			"uploaded are spooled locally for `hangtime-train sync`.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return errors.New("give either a workout id or --file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, sessions, err := a.resolveWorkout(ctx, args, file, push)
			if err != nil {
				return err
			}

			opts := engineOptions(a.cfg, cmd.OutOrStdout(), a.log)
			opts.SessionLog = sessions
			eng, err := trainer.New(w, opts)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %d sets\n", okText.Sprint(w.Name), len(w.Sets))
			if start {
				if err := eng.Start(); err != nil {
					return err
				}
			}

			s := &session{
				eng:     eng,
				updates: eng.Updates(),
				done:    eng.Done(),
				in:      cmd.InOrStdin(),
				out:     out,
			}
			runErr := s.run(ctx)
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}

			if err := a.settle(eng, w.ID, sessions != nil, out); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the workout from a file instead of the server")
	cmd.Flags().BoolVar(&push, "push", false, "with --file, create the workout on the server and log the session there")
	cmd.Flags().BoolVar(&start, "start", false, "start immediately instead of waiting for `s`")
	return cmd
}

// resolveWorkout loads the workout and picks the session log. File
// workouts are only logged when pushed to the server first.
func (a *app) resolveWorkout(ctx context.Context, args []string, file string, push bool) (*models.Workout, trainer.SessionLog, error) {
	if file != "" {
		w, err := workoutfile.Load(file)
		if err != nil {
			return nil, nil, err
		}
		if !push {
			return w, nil, nil
		}
		c, err := a.client()
		if err != nil {
			return nil, nil, err
		}
		if err := c.CreateWorkout(ctx, w); err != nil {
			return nil, nil, fmt.Errorf("pushing workout: %w", err)
		}
		a.log.Info("workout pushed", "id", w.ID, "name", w.Name)
		return w, c, nil
	}

	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	var src trainer.WorkoutSource = c
	w, err := src.FetchWorkout(ctx, args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("fetching workout %s: %w", args[0], err)
	}
	return w, c, nil
}

func engineOptions(cfg *config.TrainerConfig, out io.Writer, log *slog.Logger) trainer.Options {
	opts := trainer.DefaultOptions()
	opts.Logger = log
	opts.CountdownSeconds = cfg.CountdownSeconds
	opts.AnnounceEvery = cfg.AnnounceEvery
	opts.InstructionDelay = cfg.InstructionDelay
	opts.AutoConfirmAfter = cfg.AutoConfirmAfter
	opts.Permanent = apiclient.Permanent

	if cfg.Mute {
		opts.Playback = playback.Nop{}
		return opts
	}
	speech, player := cfg.SpeechCommand, cfg.PlayerCommand
	if speech == "" {
		speech = playback.DefaultSpeechCommand()
	}
	if player == "" {
		player = playback.DefaultPlayerCommand()
	}
	opts.Playback = playback.NewTerminal(out, speech, player, log)
	return opts
}

// settle waits briefly for the upload to catch up, then spools whatever is
// still unsynced.
func (a *app) settle(eng *trainer.Engine, workoutID uuid.UUID, online bool, out io.Writer) error {
	if online {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		err := eng.Flush(ctx)
		cancel()
		if err != nil {
			a.log.Warn("session upload incomplete", "error", err)
		}
	}

	left := eng.Unsynced()
	snap := eng.Snapshot()
	fmt.Fprintf(out, "logged %d reps, synced %d\n", snap.Logged, snap.Synced)
	if !online && snap.Logged > 0 {
		fmt.Fprintln(out, dimText.Sprint("not uploaded: run with --push to log file workouts"))
		return nil
	}
	if len(left) == 0 {
		return nil
	}

	sp, err := spool.Open(a.cfg.SpoolPath)
	if err != nil {
		return err
	}
	defer sp.Close() //nolint:errcheck

	if err := sp.Save(workoutID, eng.SessionID(), time.Now(), left); err != nil {
		return err
	}
	fmt.Fprintln(out, warnText.Sprintf("%d reps spooled to %s; run `hangtime-train sync` to upload", len(left), a.cfg.SpoolPath))
	return nil
}

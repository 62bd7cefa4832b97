package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/spool"
	"github.com/meltforce/hangtime/internal/workoutfile"
)

func newWorkoutsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "workouts",
		Aliases: []string{"ls"},
		Short:   "List workouts on the server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ws, err := c.ListWorkouts(cmd.Context(), 0)
			if err != nil {
				return fmt.Errorf("listing workouts: %w", err)
			}
			return printWorkouts(cmd.OutOrStdout(), ws)
		},
	}
}

func printWorkouts(out io.Writer, ws []models.WorkoutSummary) error {
	if len(ws) == 0 {
		fmt.Fprintln(out, dimText.Sprint("no workouts yet: add one with `hangtime-train push <file>`"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSETS\tCREATED")
	for _, w := range ws {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", w.ID, w.Name, w.SetCount, w.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Create a workout on the server from a YAML, TOML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workoutfile.Load(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.CreateWorkout(cmd.Context(), w); err != nil {
				return fmt.Errorf("creating workout: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", okText.Sprint("created"), w.Name, w.ID)
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload reps spooled by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			sp, err := spool.Open(a.cfg.SpoolPath)
			if err != nil {
				return err
			}
			defer sp.Close() //nolint:errcheck

			res, err := sp.Replay(cmd.Context(), c, a.log)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sent %d reps, created %d sessions, %d left\n", res.Sent, res.Sessions, res.Left)
			if err != nil {
				return fmt.Errorf("sync incomplete: %w", err)
			}
			if res.Left == 0 {
				fmt.Fprintln(out, okText.Sprint("spool empty"))
			}
			return nil
		},
	}
}

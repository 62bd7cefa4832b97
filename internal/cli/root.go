// Package cli implements the hangtime-train command: a terminal hangboard
// trainer that fetches workouts from a hangtime server (or reads them from
// a file), runs them with audio cues and uploads the logged session.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meltforce/hangtime/internal/apiclient"
	"github.com/meltforce/hangtime/internal/config"
)

type globalFlags struct {
	configPath string
	envFile    string
	apiURL     string
	apiKey     string
	mute       bool
	verbose    bool
}

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	flags globalFlags
	cfg   *config.TrainerConfig
	log   *slog.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "hangtime-train",
		Short: "Run hangboard workouts in the terminal and log them to hangtime",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "config.yaml", "path to config file")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "dotenv file loaded before config")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "hangtime server URL (overrides config)")
	pf.StringVar(&a.flags.apiKey, "api-key", "", "API key for uploads (overrides config)")
	pf.BoolVar(&a.flags.mute, "mute", false, "disable tones and speech")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(
		newTrainCmd(a),
		newWorkoutsCmd(a),
		newPushCmd(a),
		newSyncCmd(a),
	)

	return rootCmd
}

func (a *app) load(stderr io.Writer) error {
	if a.flags.envFile != "" {
		if err := godotenv.Load(a.flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", a.flags.envFile, err)
		}
	}

	cfg, err := config.LoadTrainer(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.apiURL != "" {
		cfg.APIURL = a.flags.apiURL
	}
	if a.flags.apiKey != "" {
		cfg.APIKey = a.flags.apiKey
	}
	if a.flags.mute {
		cfg.Mute = true
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// client returns an API client, or an error if no server is configured.
func (a *app) client() (*apiclient.Client, error) {
	if a.cfg.APIURL == "" {
		return nil, errors.New("no server configured: set api_url, HANGTIME_API_URL or --api-url")
	}
	return apiclient.New(a.cfg.APIURL, a.cfg.APIKey), nil
}

// Execute runs the root command and reports errors on stderr.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText.Sprint("error: ")+err.Error())
		return 1
	}
	return 0
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"voxpost/internal/config"
	"voxpost/internal/engine"
	"voxpost/internal/probe"
	"voxpost/internal/profile"
)

var rootCmd = &cobra.Command{
	Use:   "voxpostd",
	Short: "Post-processing daemon for speech transcriptions",
	Long: "voxpostd rewrites raw speech transcriptions through a locally reachable\n" +
		"language model service, selected by profile, and falls back to the raw\n" +
		"text whenever the service misbehaves.",
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the model service is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		p := probe.New(cfg.LLM.Endpoint, &http.Client{})
		p.Timeout = cfg.LLM.ProbeTimeout
		if !p.CheckAvailability(cmd.Context()) {
			return fmt.Errorf("model service unavailable at %s", cfg.LLM.Endpoint)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model service available at %s\n", cfg.LLM.Endpoint)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the model service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		p := probe.New(cfg.LLM.Endpoint, &http.Client{})
		p.Timeout = cfg.LLM.ProbeTimeout
		models := p.ListModels(cmd.Context())
		if len(models) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no models found")
			return nil
		}
		for _, m := range models {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

var processProfileID string

var processCmd = &cobra.Command{
	Use:   "process [text]",
	Short: "Process one transcription and print the result",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogger(cfg.Log.Level)

		text := ""
		if len(args) == 1 {
			text = args[0]
		} else {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = strings.TrimRight(string(raw), "\n")
		}

		var custom []profile.Profile
		if cfg.ProfilesFile != "" {
			custom, err = config.LoadProfilesFile(cfg.ProfilesFile)
			if err != nil {
				return err
			}
		}
		store := profile.NewStore()
		store.ReplaceCustom(custom)

		eng := engine.New(engine.Config{
			Store:  store,
			APIKey: cfg.LLM.APIKey,
			Logger: log.Logger,
		})

		snap := cfg.Snapshot(custom)
		profileID := snap.ActiveProfileID
		if processProfileID != "" {
			profileID = processProfileID
		}

		outcome := eng.Process(cmd.Context(), text, profileID, snap)
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Text)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processProfileID, "profile", "", "profile id to process with (default: active profile)")
	rootCmd.AddCommand(serveCmd, checkCmd, modelsCmd, processCmd)
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

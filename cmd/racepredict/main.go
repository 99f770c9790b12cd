package main

import (
	"os"
	"strings"

	"race-predictor/internal/cfg"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var settings cfg.Settings

var rootCmd = &cobra.Command{
	Use:   "racepredict",
	Short: "Lap-time and car-class predictions from endurance race telemetry",
	Long: "racepredict encodes race observations into the feature layout the trained " +
		"models expect and serves their predictions over HTTP and WebSocket.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := cfg.Load()
		if err != nil {
			return err
		}
		settings = c
		setupLogging(c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(batchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setupLogging configures the global logger from settings
func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

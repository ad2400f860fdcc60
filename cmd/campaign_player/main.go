package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/morea-atlas/campaign-player/internal/config"
)

const appName = "campaign_player"

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	configDir string
	logLevel  string

	app *App
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Headless campaign playback engine with a live map stream",
	Long: `campaign_player plays historical campaigns: units move along their
routes on a timeline, the camera follows the action and narrative events
fire once as time passes them.

Run "serve" to stream playback to browser maps over a websocket, or
"simulate" to step a campaign offline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadErr := config.Load(configDir)
		if cmd.Flags().Changed("log-level") {
			viper.Set("logLevel", logLevel)
		}

		var err error
		app, err = NewApp(cmd.Name(), time.Now())
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		if loadErr != nil {
			app.Logger.Warn("Failed to load config, using defaults", "error", loadErr)
		} else {
			app.Logger.Info("Loaded config", "dir", configDir)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), appName, Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(serveCmd, simulateCmd, importCmd, routesCmd, checkCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

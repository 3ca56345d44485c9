package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openchiplab/chipcapture/internal/config"
	"github.com/openchiplab/chipcapture/internal/device"
	"github.com/openchiplab/chipcapture/internal/device/sim"
	"github.com/openchiplab/chipcapture/internal/service"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "chipcapture",
	Short: "Control program for a hardware audio recorder",
	Long: `ChipCapture drives a streaming hardware encoder chip: it records
compressed audio straight off the chip's FIFO into a file, plays
recordings back through the chip's decoder, and exposes a small web
API for remote control.

Without hardware attached it runs against a built-in simulated encoder.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		path := cfgFile
		if path == "" {
			def := os.ExpandEnv("$HOME/.config/chipcapture.yaml")
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/chipcapture.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// newDevice returns the encoder to drive. Only the simulated encoder is
// wired up here; a hardware bus transport plugs in at this seam.
func newDevice() device.Device {
	return sim.New()
}

func newService() *service.Service {
	return service.New(cfg, newDevice())
}

// setupLogging configures slog based on the verbose level.
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openchiplab/chipcapture/internal/input"
	"github.com/openchiplab/chipcapture/internal/playback"
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Play a recording through the chip's decoder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		svc := newService()

		sig := input.NewSignalPoller()
		defer sig.Close()

		slog.Info("Playing... Press Ctrl+C to stop", "name", name)

		err := svc.Play(name, sig)
		if errors.Is(err, playback.ErrStopped) {
			slog.Info("Playback stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}

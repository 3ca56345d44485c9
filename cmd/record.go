package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openchiplab/chipcapture/internal/capture"
	"github.com/openchiplab/chipcapture/internal/input"
	"github.com/openchiplab/chipcapture/internal/service"
)

var recordCmd = &cobra.Command{
	Use:   "record [name]",
	Short: "Record from the encoder into a file",
	Long: `Record compressed audio from the hardware encoder into the named file.
The name must fit the 8.3 convention of the player's filesystem, e.g.
TAKE01.OGG. Press Ctrl+C or the configured stop character to stop; the
encoder flushes its tail before the file is closed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		svc := newService()

		sig := input.NewSignalPoller()
		defer sig.Close()
		keys := input.NewCommandReader(os.Stdin, cfg.StopByte())

		if err := svc.StartRecording(name, input.Any(sig, keys)); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		slog.Info("Recording... Press Ctrl+C or the stop key to stop",
			"name", name, "stop_key", string(cfg.StopByte()))

		// Advance the elapsed-time display while the session runs.
		doneCh := make(chan struct{})
		go func() {
			defer close(doneCh)
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				status, info := svc.Status()
				if status != service.StatusRecording || info == nil {
					return
				}
				fmt.Printf("\r%s  %s", info.State, info.Elapsed.Truncate(time.Second))
			}
		}()

		res, err := svc.Wait()
		<-doneCh
		fmt.Println()

		if err != nil {
			return fmt.Errorf("recording failed (%s): %w", res.Outcome, err)
		}

		if res.Session.Overflowed {
			slog.Warn("Encoder FIFO overflowed during the session; the file may be missing audio")
		}
		slog.Info("Recording complete",
			"file", res.Session.Filename,
			"bytes", res.Session.BytesWritten,
			"duration", res.Session.Duration.Truncate(time.Millisecond))

		if res.Outcome != capture.OutcomeSuccess {
			return fmt.Errorf("recording ended with outcome: %s", res.Outcome)
		}
		return nil
	},
}

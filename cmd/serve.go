package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openchiplab/chipcapture/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the remote-control web server. Any device on the same network
can start and stop recordings and watch the session status. When mDNS
is enabled in the config, the server announces itself on the LAN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.New(newService(), cfg)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

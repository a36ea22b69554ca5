package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/angelospk/animatch/internal/constants"
	"github.com/angelospk/animatch/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recognition HTTP service",
	Long: `Starts the HTTP service exposing POST /api/recognize and GET /health.

Example:
  animatch serve --addr :8620`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", constants.DefaultListenAddr, "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	srv := server.New(serverConfig(), store, logger)
	return srv.ListenAndServe(serveAddr)
}

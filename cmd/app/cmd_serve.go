package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"LoadCast/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Kafka jobs consumer and the Redis job queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		defer cleanup()

		// blocks until SIGINT or SIGTERM
		return app.Run(cmd.Context())
	},
}

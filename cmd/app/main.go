package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"LoadCast/pkg/config"
)

var configPath string

// rootCmd is the base command of the LoadCast service and CLI.
var rootCmd = &cobra.Command{
	Use:   "loadcast",
	Short: "Load forecasting and consumption anomaly detection",
	Long: `LoadCast forecasts daily regional load with a seasonal-trend model,
blends alternative forecasters into an ensemble, corrects the forecast with a
residual forest and flags anomalous customer consumption.

Run 'loadcast serve' for the HTTP, Kafka and queue service, or one of the
one-shot commands below against the configured ClickHouse.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, forecastCmd, cvCmd, anomaliesCmd, capabilitiesCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

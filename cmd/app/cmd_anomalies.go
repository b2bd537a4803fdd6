package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"LoadCast/internal/di"
	"LoadCast/internal/domain/models"
)

var scanReq models.AnomalyScanRequest

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Scan customer readings and print the anomaly report as JSON",
	Long: `Run the five outlier tests over the largest customers and print the
nested report. The report is also stored and published like a service scan.

Examples:
  loadcast anomalies --sensitivity high --top 50
  loadcast anomalies --days 30 --details`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		core, cleanup, err := di.InitializeCore(cfg)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		defer cleanup()

		rep, err := core.Scanner.Scan(cmd.Context(), scanReq)
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

func init() {
	f := anomaliesCmd.Flags()
	f.StringVar(&scanReq.Sensitivity, "sensitivity", "", "low, medium or high (empty uses anomaly.sensitivity)")
	f.IntVar(&scanReq.TopN, "top", 0, "customers to analyse by total consumption (0 uses anomaly.top_n)")
	f.IntVar(&scanReq.Days, "days", 90, "days of readings")
	f.BoolVar(&scanReq.Details, "details", false, "include per-date flags")
}

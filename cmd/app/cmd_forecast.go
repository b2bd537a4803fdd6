package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"LoadCast/internal/di"
	"LoadCast/internal/domain/models"
)

var (
	fcReq        models.ForecastRequest
	fcNoEnsemble bool
	fcNoCorrect  bool
	cvReq        models.CrossValidateRequest
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Fit the models of one entity and print its forecast as JSON",
	Long: `Fit the seasonal-trend model and the alternative forecasters on the
daily series of one region, blend them and apply the residual correction.

Examples:
  loadcast forecast --entity north --horizon 30
  loadcast forecast --entity north --no-correct --confidence 0.9
  loadcast forecast --entity north --grid-search`,
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

		req := fcReq
		req.Ensemble = !fcNoEnsemble
		req.Correct = !fcNoCorrect
		res, err := core.Pipeline.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Cross-validate every available model of one entity",
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

		rep, err := core.Pipeline.CrossValidate(cmd.Context(), cvReq)
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

func init() {
	f := forecastCmd.Flags()
	f.StringVar(&fcReq.Entity, "entity", "", "region or customer id")
	f.IntVar(&fcReq.Horizon, "horizon", 0, "days to forecast (0 uses forecast.horizon)")
	f.Float64Var(&fcReq.Confidence, "confidence", 0, "prediction interval level (0 uses forecast.confidence)")
	f.IntVar(&fcReq.Lookback, "lookback", 730, "days of history to fit on")
	f.BoolVar(&fcNoEnsemble, "no-ensemble", false, "skip the ensemble forecast")
	f.BoolVar(&fcNoCorrect, "no-correct", false, "skip the residual correction")
	f.BoolVar(&fcReq.GridSearch, "grid-search", false, "tune the residual forest by cross-validation")
	_ = forecastCmd.MarkFlagRequired("entity")

	c := cvCmd.Flags()
	c.StringVar(&cvReq.Entity, "entity", "", "region or customer id")
	c.IntVar(&cvReq.Folds, "k", 5, "number of folds")
	c.IntVar(&cvReq.Lookback, "lookback", 730, "days of history")
	_ = cvCmd.MarkFlagRequired("entity")
}

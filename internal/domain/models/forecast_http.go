package models

// Requests for forecasting and anomaly HTTP endpoints. Defined in domain so the
// Kafka job handler and the CLI reuse them.

type ForecastRequest struct {
	Entity     string  `query:"entity" json:"entity" validate:"required"`
	Horizon    int     `query:"horizon" json:"horizon" default:"30" validate:"gte=1,lte=365"`
	Confidence float64 `query:"confidence" json:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	Lookback   int     `query:"lookback" json:"lookback" default:"730" validate:"gte=30,lte=3650"`
	Ensemble   bool    `query:"ensemble" json:"ensemble" default:"true"`
	Correct    bool    `query:"correct" json:"correct" default:"true"`
	GridSearch bool    `query:"grid_search" json:"grid_search"`
}

type CrossValidateRequest struct {
	Entity   string `query:"entity" json:"entity" validate:"required"`
	Folds    int    `query:"k" json:"k" default:"5" validate:"gte=2,lte=20"`
	Lookback int    `query:"lookback" json:"lookback" default:"730" validate:"gte=30,lte=3650"`
}

type QualityRequest struct {
	Entity   string `query:"entity" json:"entity" validate:"required"`
	Lookback int    `query:"lookback" json:"lookback" default:"730" validate:"gte=1,lte=3650"`
}

type AnomalyScanRequest struct {
	Sensitivity string `query:"sensitivity" json:"sensitivity" default:"medium" validate:"oneof=low medium high"`
	TopN        int    `query:"top" json:"top" default:"20" validate:"gte=1,lte=500"`
	Days        int    `query:"days" json:"days" default:"90" validate:"gte=7,lte=3650"`
	Details     bool   `query:"details" json:"details"`
}

type RealTimeAlertRequest struct {
	Threshold float64 `query:"threshold" json:"threshold" default:"2.0" validate:"gt=0,lte=10"`
	Days      int     `query:"days" json:"days" default:"30" validate:"gte=3,lte=365"`
}

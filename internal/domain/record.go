package domain

// Prediction is the normalized model output for one row. ForecastedDeviation
// is positive when the forecast is over budget.
type Prediction struct {
	Risk                string  `json:"risk"`
	Issues              string  `json:"issues"`
	ForecastedCost      float64 `json:"forecastedCost"`
	ForecastedDeviation float64 `json:"forecastedDeviation"`
	BurnoutRisk         float64 `json:"burnoutRisk"`
}

// RiskRecord is the persisted document for one processed row, keyed by
// (spreadsheetId, rowIndex) and scoped by ownerId when present.
type RiskRecord struct {
	OwnerID           string
	SpreadsheetID     string
	RowIndex          int
	ProjectIdentifier string
	SyncTimestamp     string
	SourceData        map[string]any
	Prediction        Prediction
	LastProcessedAt   string
}

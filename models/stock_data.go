package models

// Risk assessments reported with the per-symbol analysis
const (
	RiskHighMomentum = "High Momentum, Moderate Risk"
	RiskStable       = "Low Volatility, Stable"
)

// DailyStockData is the per-symbol read model: chart series plus analysis
type DailyStockData struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Data       []EnrichedPoint `json:"data"`
	AIAnalysis AIAnalysis      `json:"ai_analysis"`
}

// AIAnalysis summarises the latest point of the series
type AIAnalysis struct {
	LatestPrice    float64           `json:"latest_price"`
	Suggestion     Signal            `json:"suggestion"`
	RiskAssessment string            `json:"risk_assessment"`
	Trend          string            `json:"trend"`
	Indicators     IndicatorSnapshot `json:"indicators"`
}

// IndicatorSnapshot holds display-formatted indicator values
type IndicatorSnapshot struct {
	SMA50  string `json:"SMA50"`
	RSI    string `json:"RSI"`
	MACD   string `json:"MACD"`
	Volume string `json:"Volume"`
}

// RiskAssessment maps the latest MACD onto a risk label
func RiskAssessment(macd float64) string {
	if macd > 0 {
		return RiskHighMomentum
	}
	return RiskStable
}

package models

// PredictionLabel classifies a reorder probability.
type PredictionLabel string

const (
	// LabelLikely marks probabilities above one half.
	LabelLikely PredictionLabel = "likely_reorder"
	// LabelUnlikely marks everything else.
	LabelUnlikely PredictionLabel = "unlikely_reorder"
)

// Prediction is the scorer's output for one validated order.
type Prediction struct {
	OrderID            string          `json:"order_id"`
	ReorderProbability float64         `json:"reorder_probability"`
	Label              PredictionLabel `json:"prediction"`
	Features           FeatureSet      `json:"features_used"`
}

// FeatureSet is the feature breakdown the scorer used for a prediction.
type FeatureSet struct {
	NumItems          int     `json:"num_items"`
	HasElectronics    bool    `json:"has_electronics"`
	StateReorderScore float64 `json:"state_reorder_score"`
	TotalNormalized   float64 `json:"total_normalized"`
	ElectronicsXSpend float64 `json:"electronics_x_spend"`
	AvgItemPrice      float64 `json:"avg_item_price"`
}

// ModelStats summarises the trained scoring model.
type ModelStats struct {
	Accuracy          float64            `json:"accuracy"`
	Coefficients      map[string]float64 `json:"coefficients"`
	Intercept         float64            `json:"intercept"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	TrainingSamples   int                `json:"training_samples"`
	TestSamples       int                `json:"test_samples"`
	StateReorderRates map[string]float64 `json:"state_reorder_rates"`
	Insights          []Insight          `json:"item_followup_insights"`
}

// Insight is a short human-readable finding about the training data.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

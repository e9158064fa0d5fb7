package models

import "time"

// Response is the terminal output of a pipeline run. Failures are responses too.
type Response struct {
	RunID              string              `json:"run_id"`
	Success            bool                `json:"success"`
	Error              string              `json:"error,omitempty"`
	Orders             []Order             `json:"orders"`
	TotalParsed        int                 `json:"total_parsed"`
	TotalMatched       int                 `json:"total_matched"`
	FiltersApplied     FilterCriteria      `json:"filters_applied"`
	ValidationWarnings []ValidationWarning `json:"validation_warnings"`
	Predictions        []Prediction        `json:"predictions"`
	ElapsedMs          int64               `json:"elapsed_ms"`
}

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	TotalParsed  int       `json:"total_parsed"`
	TotalMatched int       `json:"total_matched"`
	Response     Response  `json:"response"`
	CreatedAt    time.Time `json:"created_at"`
}

// HealthStatus reports service liveness, the loaded model's accuracy and recent query latency.
type HealthStatus struct {
	Status          string  `json:"status"`
	ModelAccuracy   float64 `json:"model_accuracy"`
	QueriesObserved int     `json:"queries_observed"`
	LatencyP50Ms    int64   `json:"latency_p50_ms"`
	LatencyP95Ms    int64   `json:"latency_p95_ms"`
	LatencyP99Ms    int64   `json:"latency_p99_ms"`
}

// RawOrder is one unparsed order line as the provider returned it.
type RawOrder struct {
	OrderID  string `json:"order_id"`
	RawOrder string `json:"raw_order"`
}

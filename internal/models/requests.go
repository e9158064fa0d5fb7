package models

import "time"

// QueryRequest is the caller's natural-language query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// ListRunsRequest captures filters for run history.
type ListRunsRequest struct {
	Since     time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	OnlyFails bool      `form:"only_fails"`
	PageSize  int       `form:"page_size" binding:"gte=0,lte=100"`
	PageToken string    `form:"page_token"`
}

// ListRunsResponse contains run history records and pagination state.
type ListRunsResponse struct {
	Runs          []RunRecord `json:"runs"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

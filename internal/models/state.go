package models

// PipelineState is the run-local aggregate threaded through the pipeline stages.
// Stages never mutate it directly; they return a StateDelta that the orchestrator merges.
type PipelineState struct {
	Query       string
	RawText     string
	RawLines    []string
	Candidates  []Order
	Filters     FilterCriteria
	Validated   []Order
	Warnings    []ValidationWarning
	Matched     []Order
	Predictions []Prediction
	Err         error
	Response    *Response
}

// NewPipelineState returns the initial state for a query.
func NewPipelineState(query string) PipelineState {
	return PipelineState{
		Query:       query,
		RawLines:    []string{},
		Candidates:  []Order{},
		Validated:   []Order{},
		Warnings:    []ValidationWarning{},
		Matched:     []Order{},
		Predictions: []Prediction{},
	}
}

// StateDelta carries the fields a stage changed. Nil fields leave the state untouched.
type StateDelta struct {
	RawText     *string
	RawLines    []string
	Candidates  []Order
	Filters     *FilterCriteria
	Validated   []Order
	Warnings    []ValidationWarning
	Matched     []Order
	Predictions []Prediction
	Err         error
	Response    *Response
}

// IsEmpty reports whether the delta changes nothing.
func (d StateDelta) IsEmpty() bool {
	return d.RawText == nil && d.RawLines == nil && d.Candidates == nil && d.Filters == nil &&
		d.Validated == nil && d.Warnings == nil && d.Matched == nil && d.Predictions == nil && d.Err == nil && d.Response == nil
}

// Apply returns a new state with the delta's fields replacing the current ones.
// An error already recorded on the state is never overwritten.
func (s PipelineState) Apply(d StateDelta) PipelineState {
	if d.RawText != nil {
		s.RawText = *d.RawText
	}
	if d.RawLines != nil {
		s.RawLines = append(make([]string, 0, len(d.RawLines)), d.RawLines...)
	}
	if d.Candidates != nil {
		s.Candidates = CloneOrders(d.Candidates)
	}
	if d.Filters != nil {
		s.Filters = *d.Filters
	}
	if d.Validated != nil {
		s.Validated = CloneOrders(d.Validated)
	}
	if d.Warnings != nil {
		s.Warnings = append(make([]ValidationWarning, 0, len(d.Warnings)), d.Warnings...)
	}
	if d.Matched != nil {
		s.Matched = CloneOrders(d.Matched)
	}
	if d.Predictions != nil {
		s.Predictions = append(make([]Prediction, 0, len(d.Predictions)), d.Predictions...)
	}
	if d.Err != nil && s.Err == nil {
		s.Err = d.Err
	}
	if d.Response != nil {
		s.Response = d.Response
	}
	return s
}

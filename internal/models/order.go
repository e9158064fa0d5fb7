package models

import "strings"

// Order is a structured order extracted from raw text. The same shape is used for
// candidates (untrusted extractor output) and validated records; trust is tracked by
// which pipeline field holds the value, not by the type.
type Order struct {
	OrderID string   `json:"order_id"`
	Buyer   string   `json:"buyer"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	Total   float64  `json:"total"`
	Items   []string `json:"items"`
}

// Clone returns a deep copy so stages never share item slices.
func (o Order) Clone() Order {
	o.Items = append([]string(nil), o.Items...)
	return o
}

// CloneOrders deep-copies a slice of orders, preserving nil vs empty.
func CloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// FilterCriteria holds the predicates inferred from the user's query. Nil fields are inactive.
type FilterCriteria struct {
	State       *string  `json:"state,omitempty"`
	MinTotal    *float64 `json:"min_total,omitempty"`
	MaxTotal    *float64 `json:"max_total,omitempty"`
	ItemKeyword *string  `json:"item_keyword,omitempty"`
}

// Normalize drops blank string criteria and upper-cases the state code.
func (f FilterCriteria) Normalize() FilterCriteria {
	out := FilterCriteria{MinTotal: f.MinTotal, MaxTotal: f.MaxTotal}
	if f.State != nil {
		if s := strings.ToUpper(strings.TrimSpace(*f.State)); s != "" {
			out.State = &s
		}
	}
	if f.ItemKeyword != nil {
		if k := strings.TrimSpace(*f.ItemKeyword); k != "" {
			out.ItemKeyword = &k
		}
	}
	return out
}

// IsEmpty reports whether no criterion is active.
func (f FilterCriteria) IsEmpty() bool {
	return f.State == nil && f.MinTotal == nil && f.MaxTotal == nil && f.ItemKeyword == nil
}

// ValidationWarning describes a candidate dropped by the fabrication checks.
type ValidationWarning struct {
	OrderID      string   `json:"order_id"`
	FailedChecks []string `json:"failed_checks"`
	Message      string   `json:"message"`
}

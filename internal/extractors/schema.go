package extractors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/orderstack/order-agent/internal/models"
)

// SchemaName names the structured-output schema sent to the model.
const SchemaName = "parsed_orders"

// ResponseSchema is the JSON schema the extraction call must satisfy.
var ResponseSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["orders", "filter_state", "filter_min_total", "filter_max_total", "filter_item_keyword"],
  "properties": {
    "orders": {
      "type": "array",
      "description": "All orders parsed from the raw text",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["order_id", "buyer", "city", "state", "total", "items"],
        "properties": {
          "order_id": {"type": "string", "description": "The order ID (e.g. '1001')"},
          "buyer": {"type": "string", "description": "The buyer's full name"},
          "city": {"type": "string", "description": "The city from the location"},
          "state": {"type": "string", "description": "The 2-letter state code"},
          "total": {"type": "number", "description": "The order total as a number (no $ sign)"},
          "items": {"type": "array", "items": {"type": "string"}, "description": "List of items in the order"}
        }
      }
    },
    "filter_state": {"type": ["string", "null"], "description": "State filter extracted from the user's query (2-letter code or null)"},
    "filter_min_total": {"type": ["number", "null"], "description": "Minimum total filter extracted from the user's query"},
    "filter_max_total": {"type": ["number", "null"], "description": "Maximum total filter extracted from the user's query"},
    "filter_item_keyword": {"type": ["string", "null"], "description": "Item keyword filter extracted from the user's query (e.g. 'electronics', 'laptop')"}
  }
}`)

// Result is one extraction call's structured output. Skipped lists order entries that
// could not be decoded at all; they are dropped without failing the call.
type Result struct {
	Orders  []models.Order        `json:"orders"`
	Filters models.FilterCriteria `json:"filters"`
	Skipped []string              `json:"skipped,omitempty"`
}

type wireOrder struct {
	OrderID flexString `json:"order_id"`
	Buyer   string     `json:"buyer"`
	City    string     `json:"city"`
	State   string     `json:"state"`
	Total   flexNumber `json:"total"`
	Items   []string   `json:"items"`
}

type wireResult struct {
	Orders            []json.RawMessage `json:"orders"`
	FilterState       *string           `json:"filter_state"`
	FilterMinTotal    *flexNumber       `json:"filter_min_total"`
	FilterMaxTotal    *flexNumber       `json:"filter_max_total"`
	FilterItemKeyword *string           `json:"filter_item_keyword"`
}

// DecodeResult parses the model's reply. Code fences around the JSON are tolerated;
// anything that is not the expected object is an error. Individual orders are decoded
// one at a time: an undecodable entry is skipped, and implausible values such as a
// negative total pass through for the validator to reject.
func DecodeResult(content string) (Result, error) {
	body := stripFences(content)
	if body == "" {
		return Result{}, fmt.Errorf("empty extraction response")
	}

	var wire wireResult
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&wire); err != nil {
		return Result{}, fmt.Errorf("decode extraction response: %w", err)
	}
	if wire.Orders == nil {
		return Result{}, fmt.Errorf("extraction response has no orders field")
	}

	res := Result{Orders: make([]models.Order, 0, len(wire.Orders))}
	for i, raw := range wire.Orders {
		var o wireOrder
		if err := json.Unmarshal(raw, &o); err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("order %d: %v", i, err))
			continue
		}
		items := o.Items
		if items == nil {
			items = []string{}
		}
		res.Orders = append(res.Orders, models.Order{
			OrderID: strings.TrimSpace(string(o.OrderID)),
			Buyer:   strings.TrimSpace(o.Buyer),
			City:    strings.TrimSpace(o.City),
			State:   strings.ToUpper(strings.TrimSpace(o.State)),
			Total:   float64(o.Total),
			Items:   items,
		})
	}

	filters := models.FilterCriteria{State: wire.FilterState, ItemKeyword: wire.FilterItemKeyword}
	if wire.FilterMinTotal != nil {
		v := float64(*wire.FilterMinTotal)
		filters.MinTotal = &v
	}
	if wire.FilterMaxTotal != nil {
		v := float64(*wire.FilterMaxTotal)
		filters.MaxTotal = &v
	}
	res.Filters = filters.Normalize()
	return res, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// flexString accepts JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order_id must be a string or number")
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber accepts JSON numbers or numeric strings such as "$742.10" or "1,299.99".
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q", s)
		}
		*f = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexNumber(v)
	return nil
}

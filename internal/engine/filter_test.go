package engine

import (
	"reflect"
	"testing"

	"github.com/orderstack/order-agent/internal/models"
)

func sampleOrders() []models.Order {
	return []models.Order{
		{OrderID: "1001", State: "OH", Total: 742.10, Items: []string{"laptop", "hdmi cable"}},
		{OrderID: "1002", State: "TX", Total: 156.55, Items: []string{"headphones"}},
		{OrderID: "1003", State: "oh", Total: 1299.99, Items: []string{"gaming pc", "mouse"}},
		{OrderID: "1008", State: "OH", Total: 234.50, Items: []string{"wireless keyboard", "webcam"}},
		{OrderID: "1012", State: "CA", Total: 349.99, Items: []string{"smart watch"}},
	}
}

func strPtr(s string) *string   { return &s }
func numPtr(f float64) *float64 { return &f }

func ids(orders []models.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderID)
	}
	return out
}

func TestFilterStateAndMinTotal(t *testing.T) {
	got := Filter(sampleOrders(), models.FilterCriteria{State: strPtr("OH"), MinTotal: numPtr(500)})
	if len(got) != 2 || !reflect.DeepEqual(ids(got), []string{"1001", "1003"}) {
		t.Fatalf("expected 1001 and 1003, got %v", ids(got))
	}
}

func TestFilterBoundsAreInclusive(t *testing.T) {
	got := Filter(sampleOrders(), models.FilterCriteria{MinTotal: numPtr(156.55), MaxTotal: numPtr(349.99)})
	if !reflect.DeepEqual(ids(got), []string{"1002", "1008", "1012"}) {
		t.Fatalf("unexpected matches: %v", ids(got))
	}
}

func TestFilterKeywordDisjunction(t *testing.T) {
	got := Filter(sampleOrders(), models.FilterCriteria{ItemKeyword: strPtr("Laptop, HEADPHONES")})
	if !reflect.DeepEqual(ids(got), []string{"1001", "1002"}) {
		t.Fatalf("expected laptop or headphones orders, got %v", ids(got))
	}

	got = Filter(sampleOrders(), models.FilterCriteria{ItemKeyword: strPtr("mouse or webcam"), State: strPtr("OH")})
	if !reflect.DeepEqual(ids(got), []string{"1003", "1008"}) {
		t.Fatalf("expected mouse or webcam in OH, got %v", ids(got))
	}
}

func TestFilterEmptyCriteriaKeepsAll(t *testing.T) {
	orders := sampleOrders()
	if got := Filter(orders, models.FilterCriteria{}); len(got) != len(orders) {
		t.Fatalf("empty criteria should keep everything, got %d", len(got))
	}
}

func TestNarrowerCriteriaNeverIncreasesMatches(t *testing.T) {
	orders := sampleOrders()
	base := models.FilterCriteria{State: strPtr("OH")}
	narrower := base
	narrower.MinTotal = numPtr(500)
	narrowest := narrower
	narrowest.ItemKeyword = strPtr("mouse")

	a, b, c := Filter(orders, base), Filter(orders, narrower), Filter(orders, narrowest)
	if !(len(a) >= len(b) && len(b) >= len(c)) {
		t.Fatalf("match counts grew: %d, %d, %d", len(a), len(b), len(c))
	}
	for _, id := range ids(c) {
		found := false
		for _, o := range orders {
			if o.OrderID == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("filter produced an order not in the input: %s", id)
		}
	}
}

func TestSplitKeywords(t *testing.T) {
	got := SplitKeywords(" Laptop,headphones or  Mouse ,, or ")
	if !reflect.DeepEqual(got, []string{"laptop", "headphones", "mouse"}) {
		t.Fatalf("unexpected fragments: %v", got)
	}
}

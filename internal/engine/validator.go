package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/models"
)

// Names of the fabrication checks, in evaluation order.
const (
	CheckOrderID = "order_id"
	CheckBuyer   = "buyer"
	CheckTotal   = "total"
)

// Validator rejects candidate orders whose fields cannot be found in the raw text.
type Validator struct {
	logger *slog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate keeps candidates whose id, buyer and total all appear in rawText
// (case-insensitively) and returns one warning per rejected candidate. The result
// depends only on its inputs.
func (v *Validator) Validate(rawText string, candidates []models.Order) ([]models.Order, []models.ValidationWarning) {
	haystack := strings.ToLower(rawText)
	validated := make([]models.Order, 0, len(candidates))
	warnings := make([]models.ValidationWarning, 0)

	v.logger.Info("validating candidates against raw text", slog.Int("candidates", len(candidates)))

	for _, c := range candidates {
		failed := FailedChecks(haystack, c)
		if len(failed) == 0 {
			validated = append(validated, c.Clone())
			continue
		}
		w := models.ValidationWarning{
			OrderID:      c.OrderID,
			FailedChecks: failed,
			Message: fmt.Sprintf("Order %s: removed (could not verify %s in raw text)",
				c.OrderID, strings.Join(failed, ", ")),
		}
		v.logger.Warn("candidate rejected", slog.String("order_id", c.OrderID), slog.Any("failed_checks", failed))
		warnings = append(warnings, w)
	}

	metrics.ObserveValidationRejections(len(warnings))
	v.logger.Info("validation complete",
		slog.Int("passed", len(validated)),
		slog.Int("candidates", len(candidates)))
	return validated, warnings
}

// FailedChecks returns the names of the checks o fails against haystack, which must
// already be lower-cased.
func FailedChecks(haystack string, o models.Order) []string {
	var failed []string
	if !orderIDPresent(haystack, o.OrderID) {
		failed = append(failed, CheckOrderID)
	}
	if !buyerPresent(haystack, o.Buyer) {
		failed = append(failed, CheckBuyer)
	}
	if !totalPresent(haystack, o.Total) {
		failed = append(failed, CheckTotal)
	}
	return failed
}

// orderIDPresent accepts the literal id or its digits. Plain substring search: an id
// without digits, or an empty one, matches trivially.
func orderIDPresent(haystack, id string) bool {
	return strings.Contains(haystack, strings.ToLower(id)) || strings.Contains(haystack, digitsOnly(id))
}

// buyerPresent is a plain substring search, so an empty buyer matches trivially and a
// name contained in a longer name also matches.
func buyerPresent(haystack, buyer string) bool {
	return strings.Contains(haystack, strings.ToLower(buyer))
}

// totalPresent looks for the shortest decimal rendering of total, bare or dollar-prefixed.
// 742.10 renders as "742.1", which also matches "$742.10" in the text.
func totalPresent(haystack string, total float64) bool {
	bare := strconv.FormatFloat(total, 'f', -1, 64)
	return strings.Contains(haystack, bare) || strings.Contains(haystack, "$"+bare)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package engine

import (
	"fmt"
	"log/slog"

	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

// Scorer is the external reorder-likelihood capability.
type Scorer interface {
	Predict(order models.Order) (models.Prediction, error)
}

// Enricher attaches predictions to matched orders on a best-effort basis.
type Enricher struct {
	scorer Scorer
	logger *slog.Logger
}

// NewEnricher constructs an Enricher. A nil scorer yields no predictions.
func NewEnricher(scorer Scorer, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{scorer: scorer, logger: logger}
}

// Enrich scores each order independently. Orders whose scoring fails are left out
// of the returned predictions; the orders themselves are untouched.
func (e *Enricher) Enrich(orders []models.Order) []models.Prediction {
	predictions := make([]models.Prediction, 0, len(orders))
	if e.scorer == nil {
		return predictions
	}
	for _, o := range orders {
		p, err := e.score(o)
		if err != nil {
			metrics.ObservePrediction(metrics.OutcomeError)
			e.logger.Warn("prediction failed", slog.String("order_id", o.OrderID), slog.Any("error", err))
			continue
		}
		metrics.ObservePrediction(metrics.OutcomeSuccess)
		p.OrderID = o.OrderID
		predictions = append(predictions, p)
	}
	return predictions
}

func (e *Enricher) score(o models.Order) (p models.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", utils.ErrScoring, r)
		}
	}()
	p, err = e.scorer.Predict(o.Clone())
	if err != nil {
		return models.Prediction{}, fmt.Errorf("%w: %v", utils.ErrScoring, err)
	}
	return p, nil
}

package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/orderstack/order-agent/internal/models"
)

// FeatureNames lists model inputs in column order.
var FeatureNames = []string{
	"num_items",
	"has_electronics",
	"state_reorder_score",
	"total_normalized",
	"electronics_x_spend",
	"avg_item_price",
}

const (
	totalFloor    = 50.0
	totalCeiling  = 1500.0
	avgPriceFloor = 8.33
	maxIterations = 50
	tolerance     = 1e-8
)

// Options configures training.
type Options struct {
	TestFraction float64
	Seed         int64
	// L2 is the ridge penalty on coefficients; the intercept is not penalised.
	L2 float64
}

// Model is a logistic regression reorder-likelihood classifier.
type Model struct {
	catalog    *Catalog
	weights    []float64
	intercept  float64
	accuracy   float64
	trainCount int
	testCount  int
	stateRates map[string]float64
}

// Train fits a model on samples, holding out a seeded random test split for accuracy.
func Train(samples []Sample, catalog *Catalog, opts Options, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.L2 <= 0 {
		opts.L2 = 1
	}
	if len(samples) < 10 {
		return nil, fmt.Errorf("need at least 10 samples, got %d", len(samples))
	}

	order := rand.New(rand.NewSource(opts.Seed)).Perm(len(samples))
	testN := int(math.Ceil(float64(len(samples)) * opts.TestFraction))
	test, train := order[:testN], order[testN:]

	x := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, idx := range train {
		s := samples[idx]
		x[i] = featureVector(sampleFeatures(s, catalog))
		if s.WillReorder {
			y[i] = 1
		}
	}

	w, err := fitLogistic(x, y, opts.L2)
	if err != nil {
		return nil, err
	}

	m := &Model{
		catalog:    catalog,
		weights:    w[1:],
		intercept:  w[0],
		trainCount: len(train),
		testCount:  len(test),
		stateRates: stateRates(samples),
	}

	correct := 0
	for _, idx := range test {
		s := samples[idx]
		p := m.probability(featureVector(sampleFeatures(s, catalog)))
		if (p > 0.5) == s.WillReorder {
			correct++
		}
	}
	m.accuracy = float64(correct) / float64(len(test))

	logger.Info("reorder model trained",
		slog.Int("training_samples", m.trainCount),
		slog.Int("test_samples", m.testCount),
		slog.Float64("accuracy", m.accuracy))
	return m, nil
}

// Predict scores one order.
func (m *Model) Predict(order models.Order) (models.Prediction, error) {
	if m == nil || len(m.weights) != len(FeatureNames) {
		return models.Prediction{}, errors.New("reorder model not trained")
	}
	if math.IsNaN(order.Total) || math.IsInf(order.Total, 0) || order.Total < 0 {
		return models.Prediction{}, fmt.Errorf("invalid order total %v", order.Total)
	}

	fs := m.Features(order)
	p := round3(m.probability(featureVector(fs)))
	label := models.LabelUnlikely
	if p > 0.5 {
		label = models.LabelLikely
	}
	return models.Prediction{
		OrderID:            order.OrderID,
		ReorderProbability: p,
		Label:              label,
		Features:           fs,
	}, nil
}

// Features derives the model inputs for an order, rounded for display.
func (m *Model) Features(order models.Order) models.FeatureSet {
	hasElec := m.catalog.HasElectronics(order.Items)
	totalNorm := clamp01((order.Total - totalFloor) / (totalCeiling - totalFloor))
	avg := order.Total / math.Max(float64(len(order.Items)), 1)
	elecXSpend := 0.0
	if hasElec {
		elecXSpend = totalNorm
	}
	return models.FeatureSet{
		NumItems:          len(order.Items),
		HasElectronics:    hasElec,
		StateReorderScore: m.catalog.StateScore(order.State),
		TotalNormalized:   round3(totalNorm),
		ElectronicsXSpend: round3(elecXSpend),
		AvgItemPrice:      round3(normaliseAvgPrice(avg)),
	}
}

// Accuracy is the held-out accuracy in [0,1].
func (m *Model) Accuracy() float64 { return m.accuracy }

// Stats summarises the model for reporting.
func (m *Model) Stats() models.ModelStats {
	coefs := make(map[string]float64, len(FeatureNames))
	importance := make(map[string]float64, len(FeatureNames))
	sum := 0.0
	for i, name := range FeatureNames {
		coefs[name] = m.weights[i]
		sum += math.Abs(m.weights[i])
	}
	for i, name := range FeatureNames {
		if sum > 0 {
			importance[name] = round1(math.Abs(m.weights[i]) / sum * 100)
		}
	}
	rates := make(map[string]float64, len(m.stateRates))
	for k, v := range m.stateRates {
		rates[k] = v
	}
	return models.ModelStats{
		Accuracy:          round1(m.accuracy * 100),
		Coefficients:      coefs,
		Intercept:         m.intercept,
		FeatureImportance: importance,
		TrainingSamples:   m.trainCount,
		TestSamples:       m.testCount,
		StateReorderRates: rates,
		Insights:          defaultInsights(),
	}
}

func (m *Model) probability(x []float64) float64 {
	z := m.intercept
	for i, w := range m.weights {
		z += w * x[i+1]
	}
	return sigmoid(z)
}

func sampleFeatures(s Sample, catalog *Catalog) models.FeatureSet {
	totalNorm := clamp01((s.OrderTotal - totalFloor) / (totalCeiling - totalFloor))
	elecXSpend := 0.0
	if s.HasElectronics {
		elecXSpend = totalNorm
	}
	return models.FeatureSet{
		NumItems:          s.NumItems,
		HasElectronics:    s.HasElectronics,
		StateReorderScore: catalog.StateScore(s.State),
		TotalNormalized:   totalNorm,
		ElectronicsXSpend: elecXSpend,
		AvgItemPrice:      normaliseAvgPrice(s.OrderTotal / math.Max(float64(s.NumItems), 1)),
	}
}

// featureVector returns [1, features...]; the leading 1 carries the intercept.
func featureVector(fs models.FeatureSet) []float64 {
	elec := 0.0
	if fs.HasElectronics {
		elec = 1
	}
	return []float64{1, float64(fs.NumItems), elec, fs.StateReorderScore, fs.TotalNormalized, fs.ElectronicsXSpend, fs.AvgItemPrice}
}

// fitLogistic minimises L2-penalised log loss with Newton-Raphson steps.
// Column 0 of x is the intercept and is not penalised.
func fitLogistic(x [][]float64, y []float64, l2 float64) ([]float64, error) {
	n, d := len(x), len(x[0])
	data := make([]float64, 0, n*d)
	for _, row := range x {
		data = append(data, row...)
	}
	design := mat.NewDense(n, d, data)
	labels := mat.NewVecDense(n, y)
	w := mat.NewVecDense(d, nil)

	for iter := 0; iter < maxIterations; iter++ {
		var z mat.VecDense
		z.MulVec(design, w)
		probs := mat.NewVecDense(n, nil)
		curvature := make([]float64, n)
		for i := 0; i < n; i++ {
			p := sigmoid(z.AtVec(i))
			probs.SetVec(i, p)
			curvature[i] = p * (1 - p)
		}

		var residual, grad mat.VecDense
		residual.SubVec(probs, labels)
		grad.MulVec(design.T(), &residual)

		var weighted, xtwx mat.Dense
		weighted.Apply(func(i, _ int, v float64) float64 { return curvature[i] * v }, design)
		xtwx.Mul(design.T(), &weighted)

		hess := mat.NewSymDense(d, nil)
		for j := 0; j < d; j++ {
			for k := j; k < d; k++ {
				hess.SetSym(j, k, xtwx.At(j, k))
			}
			if j > 0 {
				hess.SetSym(j, j, hess.At(j, j)+l2)
				grad.SetVec(j, grad.AtVec(j)+l2*w.AtVec(j))
			}
		}

		step, err := newtonStep(hess, &grad)
		if err != nil {
			return nil, fmt.Errorf("newton step %d: %w", iter, err)
		}
		w.SubVec(w, step)
		if mat.Norm(step, math.Inf(1)) < tolerance {
			break
		}
	}
	return mat.Col(nil, 0, w), nil
}

// newtonStep solves hess·step = grad. The penalised Hessian is normally positive
// definite; a general solve covers the cases where Cholesky factorisation fails.
func newtonStep(hess *mat.SymDense, grad *mat.VecDense) (*mat.VecDense, error) {
	var step mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(hess) {
		if err := chol.SolveVecTo(&step, grad); err == nil {
			return &step, nil
		}
	}
	if err := step.SolveVec(hess, grad); err != nil {
		return nil, fmt.Errorf("singular system: %w", err)
	}
	return &step, nil
}

func stateRates(samples []Sample) map[string]float64 {
	type tally struct{ n, yes int }
	counts := make(map[string]*tally)
	for _, s := range samples {
		t, ok := counts[s.State]
		if !ok {
			t = &tally{}
			counts[s.State] = t
		}
		t.n++
		if s.WillReorder {
			t.yes++
		}
	}
	rates := make(map[string]float64, len(counts))
	for state, t := range counts {
		rates[state] = round1(float64(t.yes) / float64(t.n) * 100)
	}
	return rates
}

func defaultInsights() []models.Insight {
	return []models.Insight{
		{
			Title:       "Electronics × Spend",
			Description: "Electronics buyers who also spend big are the strongest reorder signal; the interaction term captures the compounding effect.",
			Icon:        "zap",
		},
		{
			Title:       "High Item Count",
			Description: "Orders with 4+ items signal an engaged buyer.",
			Icon:        "package",
		},
		{
			Title:       "State Clustering",
			Description: "OH, TX, CA, IL and FL show consistently higher reorder rates.",
			Icon:        "map-pin",
		},
	}
}

func normaliseAvgPrice(avg float64) float64 {
	return clamp01((avg - avgPriceFloor) / (totalCeiling - avgPriceFloor))
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// Sample is one historic order with its observed reorder outcome.
type Sample struct {
	NumItems       int
	HasElectronics bool
	State          string
	OrderTotal     float64
	WillReorder    bool
}

var csvHeader = []string{"num_items", "has_electronics", "state", "order_total", "avg_item_price", "will_reorder"}

// ReadSamples parses training rows in the num_items,has_electronics,state,order_total,
// avg_item_price,will_reorder layout. avg_item_price is recomputed from the total.
func ReadSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, want := range csvHeader {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("missing column %q", want)
		}
	}

	var samples []Sample
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		s, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, errors.New("no training rows")
	}
	return samples, nil
}

func parseRow(rec []string, cols map[string]int) (Sample, error) {
	numItems, err := strconv.Atoi(rec[cols["num_items"]])
	if err != nil || numItems < 1 {
		return Sample{}, fmt.Errorf("invalid num_items %q", rec[cols["num_items"]])
	}
	total, err := strconv.ParseFloat(rec[cols["order_total"]], 64)
	if err != nil || total < 0 {
		return Sample{}, fmt.Errorf("invalid order_total %q", rec[cols["order_total"]])
	}
	return Sample{
		NumItems:       numItems,
		HasElectronics: rec[cols["has_electronics"]] == "1",
		State:          strings.ToUpper(strings.TrimSpace(rec[cols["state"]])),
		OrderTotal:     total,
		WillReorder:    rec[cols["will_reorder"]] == "1",
	}, nil
}

// LoadSamples reads training rows from a CSV file.
func LoadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSamples(f)
}

// WriteSamples writes samples in the layout ReadSamples accepts.
func WriteSamples(w io.Writer, samples []Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range samples {
		avg := math.Round(s.OrderTotal/float64(s.NumItems)*100) / 100
		if err := writer.Write([]string{
			strconv.Itoa(s.NumItems),
			boolDigit(s.HasElectronics),
			s.State,
			strconv.FormatFloat(s.OrderTotal, 'f', -1, 64),
			strconv.FormatFloat(avg, 'f', -1, 64),
			boolDigit(s.WillReorder),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Synthesize generates n labelled samples from a fixed logit with Gaussian noise.
// The same seed always yields the same rows.
func Synthesize(n int, seed int64, catalog *Catalog) []Sample {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	rng := rand.New(rand.NewSource(seed))
	states := catalog.States()
	samples := make([]Sample, n)
	for i := range samples {
		state := states[rng.Intn(len(states))]
		numItems := 1 + rng.Intn(6)
		hasElec := rng.Float64() < 0.4
		total := math.Round((50+rng.Float64()*1450)*100) / 100
		totalNorm := (total - 50) / 1450

		elec := 0.0
		if hasElec {
			elec = 1
		}
		logit := -1.5 +
			1.4*catalog.StateScore(state) +
			0.6*elec +
			0.12*float64(numItems) +
			0.4*totalNorm +
			0.5*elec*totalNorm +
			rng.NormFloat64()*0.35

		samples[i] = Sample{
			NumItems:       numItems,
			HasElectronics: hasElec,
			State:          state,
			OrderTotal:     total,
			WillReorder:    sigmoid(logit) > 0.5,
		}
	}
	return samples
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

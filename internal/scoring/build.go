package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Config selects the catalog and training data for a model.
type Config struct {
	CatalogPath      string
	TrainingDataPath string
	SyntheticSamples int
	Seed             int64
}

// Build loads the catalog and training data and trains a model. Without a training
// file, deterministic synthetic data is used.
func Build(cfg Config, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SyntheticSamples <= 0 {
		cfg.SyntheticSamples = 5000
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var samples []Sample
	if cfg.TrainingDataPath != "" {
		samples, err = LoadSamples(cfg.TrainingDataPath)
		switch {
		case err == nil:
			logger.Info("loaded training data", slog.String("path", cfg.TrainingDataPath), slog.Int("rows", len(samples)))
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("training data not found, using synthetic samples", slog.String("path", cfg.TrainingDataPath))
		default:
			return nil, fmt.Errorf("load training data: %w", err)
		}
	}
	if len(samples) == 0 {
		samples = Synthesize(cfg.SyntheticSamples, cfg.Seed, catalog)
	}

	return Train(samples, catalog, Options{Seed: cfg.Seed}, logger)
}

package stage1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Ensemble aggregation modes. Mean is the shipped default; vote exists for
// sweep parity with older runs.
const (
	AggMean = "mean"
	AggVote = "vote"
)

// Ensemble combines per-post models trained from different seeds.
type Ensemble struct {
	Agg    string   `json:"agg"`
	Models []*Model `json:"models"`
}

// TrainEnsemble trains one model per seed over the same examples.
func TrainEnsemble(ctx context.Context, cfg Config, seeds []int64, agg string, examples []Example, logger *slog.Logger) (*Ensemble, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no ensemble seeds")
	}
	if agg != AggMean && agg != AggVote {
		return nil, fmt.Errorf("unknown ensemble aggregation: %q", agg)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ens := &Ensemble{Agg: agg}
	for _, seed := range seeds {
		mcfg := cfg
		mcfg.Seed = seed
		m, err := NewModel(mcfg)
		if err != nil {
			return nil, err
		}
		res, err := m.Train(ctx, examples, logger)
		if err != nil {
			return nil, fmt.Errorf("training seed %d: %w", seed, err)
		}
		logger.Info("stage1 member trained", "seed", seed, "epochs", res.Epochs, "loss", res.Loss)
		ens.Models = append(ens.Models, m)
	}
	return ens, nil
}

// Single wraps one member as its own ensemble, for per-seed evaluation.
func (e *Ensemble) Single(m *Model) *Ensemble {
	return &Ensemble{Agg: e.Agg, Models: []*Model{m}}
}

// Predict combines member probabilities. Mean aggregation averages raw
// probabilities. Vote aggregation returns the bot-vote share; an exact tie
// resolves to the human side of 0.5, since the competition score penalizes
// false positives.
func (e *Ensemble) Predict(ids, mask []int, meta []float32) (float64, error) {
	if len(e.Models) == 0 {
		return 0, fmt.Errorf("empty ensemble")
	}
	n := len(e.Models)
	switch e.Agg {
	case AggMean:
		var sum float64
		for _, m := range e.Models {
			p, err := m.Predict(ids, mask, meta)
			if err != nil {
				return 0, err
			}
			sum += p
		}
		return sum / float64(n), nil
	case AggVote:
		votes := 0
		for _, m := range e.Models {
			p, err := m.Predict(ids, mask, meta)
			if err != nil {
				return 0, err
			}
			if p >= 0.5 {
				votes++
			}
		}
		if votes*2 == n {
			return (float64(votes*2) - 1) / float64(2*n), nil
		}
		return float64(votes) / float64(n), nil
	default:
		return 0, fmt.Errorf("unknown ensemble aggregation: %q", e.Agg)
	}
}

// Save writes the ensemble artifact as JSON.
func (e *Ensemble) Save(path string) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding stage1 artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing stage1 artifact: %w", err)
	}
	return nil
}

// LoadEnsemble reads a saved stage-1 artifact. A missing artifact is fatal
// for inference.
func LoadEnsemble(path string) (*Ensemble, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stage1 artifact: %w", err)
	}
	var ens Ensemble
	if err := json.Unmarshal(raw, &ens); err != nil {
		return nil, fmt.Errorf("parsing stage1 artifact %s: %w", path, err)
	}
	if len(ens.Models) == 0 {
		return nil, fmt.Errorf("stage1 artifact %s has no models", path)
	}
	return &ens, nil
}

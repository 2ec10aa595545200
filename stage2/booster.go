// Package stage2 implements the account-level classifier: gradient-boosted
// depth-limited regression trees with logistic loss, trained on account
// feature vectors built from out-of-fold stage-1 scores plus account
// metadata.
package stage2

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/tanagra/botsweep/decision"
)

// TreeNode is one node of a regression tree, stored in a flat array. Interior
// nodes route on x[Feature] < Threshold.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"v"`
}

// Tree is a flat-array regression tree; node 0 is the root.
type Tree []TreeNode

func (tr Tree) eval(x []float64) float64 {
	i := 0
	for !tr[i].Leaf {
		if x[tr[i].Feature] < tr[i].Threshold {
			i = tr[i].Left
		} else {
			i = tr[i].Right
		}
	}
	return tr[i].Value
}

// Booster is the trained second-stage model artifact. It embeds everything
// inference needs: the trees, the feature layout they were trained against,
// the blend weight, and the tuned decision policy.
type Booster struct {
	Profile      string   `json:"profile"`
	FeatureNames []string `json:"feature_names"`
	Base         float64  `json:"base"` // prior log-odds
	LearnRate    float64  `json:"learn_rate"`
	Trees        []Tree   `json:"trees"`

	// Alpha is the booster weight when blending with the stage-1 ensemble
	// aggregate; 1 means booster only.
	Alpha float64 `json:"alpha"`

	Policy decision.Policy `json:"policy"`
}

// PredictMargin returns the raw additive score (log-odds scale).
func (b *Booster) PredictMargin(x []float64) float64 {
	f := b.Base
	for _, tr := range b.Trees {
		f += b.LearnRate * tr.eval(x)
	}
	return f
}

// Predict returns the booster's bot probability, always in [0,1].
func (b *Booster) Predict(x []float64) float64 {
	return sigmoid(b.PredictMargin(x))
}

// PredictBlended mixes the booster probability with the account's stage-1
// ensemble aggregate (its mean per-post score) using the tuned alpha.
func (b *Booster) PredictBlended(x []float64, ensembleMean float64) float64 {
	return b.Alpha*b.Predict(x) + (1-b.Alpha)*ensembleMean
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Save writes the booster artifact as JSON.
func (b *Booster) Save(path string) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stage2 artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing stage2 artifact: %w", err)
	}
	return nil
}

// LoadBooster reads a saved stage-2 artifact. A missing artifact is fatal for
// inference.
func LoadBooster(path string) (*Booster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stage2 artifact: %w", err)
	}
	var b Booster
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parsing stage2 artifact %s: %w", path, err)
	}
	if len(b.Trees) == 0 {
		return nil, fmt.Errorf("stage2 artifact %s has no trees", path)
	}
	if err := b.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("stage2 artifact %s: %w", path, err)
	}
	return &b, nil
}

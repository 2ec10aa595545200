package stage2

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// maxSplitCandidates bounds the thresholds tried per feature at each node.
const maxSplitCandidates = 32

// TrainBooster fits a gradient-boosted tree model with logistic loss. X is
// row-per-account, y is 1 for bot accounts. Deterministic: no subsampling, no
// randomness.
func TrainBooster(ctx context.Context, prof Profile, X [][]float64, y []float64, featureNames []string, logger *slog.Logger) (*Booster, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("no training accounts")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("feature/label length mismatch: %d != %d", len(X), len(y))
	}
	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return nil, fmt.Errorf("ragged feature matrix at row %d", i)
		}
	}
	if featureNames != nil && len(featureNames) != dim {
		return nil, fmt.Errorf("feature names length %d does not match dim %d", len(featureNames), dim)
	}

	// prior log-odds, clamped away from degenerate all-one-class inputs
	var pos float64
	for _, v := range y {
		pos += v
	}
	prior := math.Min(math.Max(pos/float64(len(y)), 1e-4), 1-1e-4)

	b := &Booster{
		Profile:      prof.Name,
		FeatureNames: featureNames,
		Base:         math.Log(prior / (1 - prior)),
		LearnRate:    prof.LearnRate,
		Alpha:        1,
	}

	margins := make([]float64, len(X))
	for i := range margins {
		margins[i] = b.Base
	}
	grad := make([]float64, len(X))
	hess := make([]float64, len(X))
	all := make([]int, len(X))
	for i := range all {
		all[i] = i
	}

	for round := 0; round < prof.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range X {
			p := sigmoid(margins[i])
			grad[i] = y[i] - p
			hess[i] = p * (1 - p)
		}

		builder := treeBuilder{prof: prof, X: X, grad: grad, hess: hess}
		tree := builder.build(all, 0)
		b.Trees = append(b.Trees, tree)

		for i := range X {
			margins[i] += prof.LearnRate * tree.eval(X[i])
		}

		if (round+1)%50 == 0 {
			logger.Debug("stage2 boosting progress", "round", round+1, "loss", logLoss(margins, y))
		}
	}

	logger.Info("stage2 booster trained",
		"profile", prof.Name, "rounds", len(b.Trees), "accounts", len(X), "loss", logLoss(margins, y))
	return b, nil
}

func logLoss(margins, y []float64) float64 {
	var sum float64
	for i, m := range margins {
		p := math.Min(math.Max(sigmoid(m), 1e-7), 1-1e-7)
		sum += -(y[i]*math.Log(p) + (1-y[i])*math.Log(1-p))
	}
	return sum / float64(len(y))
}

type treeBuilder struct {
	prof Profile
	X    [][]float64
	grad []float64
	hess []float64
}

// build grows a tree over the given row indexes, returning the flat node
// array. Leaf values are Newton steps sum(grad)/(sum(hess)+L2).
func (tb *treeBuilder) build(rows []int, depth int) Tree {
	var tree Tree
	tb.grow(&tree, rows, depth)
	return tree
}

func (tb *treeBuilder) grow(tree *Tree, rows []int, depth int) int {
	idx := len(*tree)
	*tree = append(*tree, TreeNode{})

	feature, threshold, ok := tb.bestSplit(rows, depth)
	if !ok {
		(*tree)[idx] = TreeNode{Leaf: true, Value: tb.leafValue(rows)}
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if tb.X[r][feature] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := tb.grow(tree, left, depth+1)
	r := tb.grow(tree, right, depth+1)
	(*tree)[idx] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (tb *treeBuilder) leafValue(rows []int) float64 {
	var g, h float64
	for _, r := range rows {
		g += tb.grad[r]
		h += tb.hess[r]
	}
	return g / (h + tb.prof.L2 + 1e-12)
}

// bestSplit scans features for the split with the highest Newton gain,
// honoring depth, min-leaf, and L2 constraints.
func (tb *treeBuilder) bestSplit(rows []int, depth int) (int, float64, bool) {
	if depth >= tb.prof.Depth || len(rows) < 2*tb.prof.MinLeaf {
		return 0, 0, false
	}

	var gTot, hTot float64
	for _, r := range rows {
		gTot += tb.grad[r]
		hTot += tb.hess[r]
	}
	parent := gTot * gTot / (hTot + tb.prof.L2 + 1e-12)

	bestGain := 1e-9
	bestFeature, bestThreshold := -1, 0.0
	dim := len(tb.X[rows[0]])

	vals := make([]float64, 0, len(rows))
	for f := 0; f < dim; f++ {
		vals = vals[:0]
		for _, r := range rows {
			vals = append(vals, tb.X[r][f])
		}
		sort.Float64s(vals)
		if vals[0] == vals[len(vals)-1] {
			continue
		}

		for _, threshold := range splitCandidates(vals) {
			var gL, hL float64
			nL := 0
			for _, r := range rows {
				if tb.X[r][f] < threshold {
					gL += tb.grad[r]
					hL += tb.hess[r]
					nL++
				}
			}
			nR := len(rows) - nL
			if nL < tb.prof.MinLeaf || nR < tb.prof.MinLeaf {
				continue
			}
			gR := gTot - gL
			hR := hTot - hL
			gain := gL*gL/(hL+tb.prof.L2+1e-12) + gR*gR/(hR+tb.prof.L2+1e-12) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

// splitCandidates returns midpoints between distinct consecutive sorted
// values, thinned to at most maxSplitCandidates.
func splitCandidates(sorted []float64) []float64 {
	var mids []float64
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			mids = append(mids, (sorted[i]+sorted[i-1])/2)
		}
	}
	if len(mids) <= maxSplitCandidates {
		return mids
	}
	out := make([]float64, 0, maxSplitCandidates)
	step := float64(len(mids)) / maxSplitCandidates
	for i := 0; i < maxSplitCandidates; i++ {
		out = append(out, mids[int(float64(i)*step)])
	}
	return out
}

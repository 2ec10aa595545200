package stage1

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

// Example is one labeled training post: a tokenizer encoding, the metadata
// feature vector, and the account's label propagated to the post (1 = bot).
type Example struct {
	IDs   []int
	Mask  []int
	Meta  []float32
	Label float32
}

// TrainResult reports what a training run did.
type TrainResult struct {
	Epochs int
	// Loss is the mean binary cross-entropy over the final epoch.
	Loss float64
}

// grads mirrors the model parameters. Embedding gradients are sparse: only
// rows touched by the current example.
type grads struct {
	embed map[int][]float32
	wxh   [][]float32
	whh   [][]float32
	bh    []float32
	wout  []float32
	bout  float32
}

func newGrads(cfg Config) *grads {
	g := &grads{
		embed: make(map[int][]float32),
		wxh:   make([][]float32, cfg.HiddenDim),
		whh:   make([][]float32, cfg.HiddenDim),
		bh:    make([]float32, cfg.HiddenDim),
		wout:  make([]float32, cfg.HiddenDim+cfg.MetaDim),
	}
	for j := 0; j < cfg.HiddenDim; j++ {
		g.wxh[j] = make([]float32, cfg.EmbedDim)
		g.whh[j] = make([]float32, cfg.HiddenDim)
	}
	return g
}

func (g *grads) reset() {
	g.embed = make(map[int][]float32)
	for j := range g.wxh {
		zero(g.wxh[j])
		zero(g.whh[j])
	}
	zero(g.bh)
	zero(g.wout)
	g.bout = 0
}

func zero(v []float32) {
	for i := range v {
		v[i] = 0
	}
}

// Train runs plain SGD with backprop-through-time and global-norm gradient
// clipping. Deterministic for a given config seed and example order.
func (m *Model) Train(ctx context.Context, examples []Example, logger *slog.Logger) (TrainResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(examples) == 0 {
		return TrainResult{}, fmt.Errorf("no training examples")
	}

	rng := rand.New(rand.NewSource(m.Cfg.Seed))
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	g := newGrads(m.Cfg)
	res := TrainResult{Epochs: m.Cfg.Epochs}

	for epoch := 0; epoch < m.Cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		for _, idx := range order {
			ex := examples[idx]
			cache, err := m.forward(ex.IDs, ex.Mask, ex.Meta)
			if err != nil {
				return res, fmt.Errorf("training example %d: %w", idx, err)
			}
			lossSum += bce(float64(cache.prob), float64(ex.Label))

			g.reset()
			m.backward(cache, ex, g)
			m.apply(g)
		}
		res.Loss = lossSum / float64(len(examples))
		trainEpochs.Inc()
		logger.Debug("stage1 epoch complete", "epoch", epoch, "loss", res.Loss, "seed", m.Cfg.Seed)
	}
	trainLoss.Set(res.Loss)
	return res, nil
}

func bce(p, y float64) float64 {
	const eps = 1e-7
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// backward accumulates gradients for one example into g.
func (m *Model) backward(cache *forwardCache, ex Example, g *grads) {
	H := m.Cfg.HiddenDim

	// output head
	dz := cache.prob - ex.Label
	g.bout += dz
	for j := 0; j < H; j++ {
		g.wout[j] += dz * cache.pool[j]
	}
	for k, v := range ex.Meta {
		g.wout[H+k] += dz * v
	}

	steps := len(cache.hs)
	if steps == 0 {
		return
	}

	// gradient flowing into each pooled hidden state
	dpool := make([]float32, H)
	inv := 1 / float32(steps)
	for j := 0; j < H; j++ {
		dpool[j] = dz * m.Wout[j] * inv
	}

	carry := make([]float32, H)
	da := make([]float32, H)
	for t := steps - 1; t >= 0; t-- {
		h := cache.hs[t]
		for j := 0; j < H; j++ {
			dh := dpool[j] + carry[j]
			da[j] = dh * (1 - h[j]*h[j])
		}

		tok := cache.tokens[t]
		x := m.Embed[tok]
		de, ok := g.embed[tok]
		if !ok {
			de = make([]float32, m.Cfg.EmbedDim)
			g.embed[tok] = de
		}

		var hprev []float32
		if t > 0 {
			hprev = cache.hs[t-1]
		}

		for j := 0; j < H; j++ {
			a := da[j]
			if a == 0 {
				continue
			}
			g.bh[j] += a
			wx := g.wxh[j]
			mwx := m.Wxh[j]
			for k := range x {
				wx[k] += a * x[k]
				de[k] += a * mwx[k]
			}
			if hprev != nil {
				wh := g.whh[j]
				for k := range hprev {
					wh[k] += a * hprev[k]
				}
			}
		}

		for k := 0; k < H; k++ {
			var s float32
			if t > 0 {
				for j := 0; j < H; j++ {
					s += da[j] * m.Whh[j][k]
				}
			}
			carry[k] = s
		}
	}
}

// apply clips the accumulated gradients by global norm and takes one SGD step.
func (m *Model) apply(g *grads) {
	var sq float64
	add := func(v []float32) {
		for _, x := range v {
			sq += float64(x) * float64(x)
		}
	}
	for _, row := range g.wxh {
		add(row)
	}
	for _, row := range g.whh {
		add(row)
	}
	add(g.bh)
	add(g.wout)
	sq += float64(g.bout) * float64(g.bout)
	for _, row := range g.embed {
		add(row)
	}

	scale := m.Cfg.LearnRate
	if norm := float32(math.Sqrt(sq)); m.Cfg.ClipNorm > 0 && norm > m.Cfg.ClipNorm {
		scale *= m.Cfg.ClipNorm / norm
	}

	step := func(param, grad []float32) {
		for i := range param {
			param[i] -= scale * grad[i]
		}
	}
	for j := range m.Wxh {
		step(m.Wxh[j], g.wxh[j])
		step(m.Whh[j], g.whh[j])
	}
	step(m.Bh, g.bh)
	step(m.Wout, g.wout)
	m.Bout -= scale * g.bout
	for tok, grad := range g.embed {
		step(m.Embed[tok], grad)
	}
}

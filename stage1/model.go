// Package stage1 implements the per-post classifier: a small recurrent
// network over learned token embeddings, with the post's metadata feature
// vector concatenated before the output head. Multi-seed ensembles combine
// member probabilities by mean (the shipped aggregation mode) or majority
// vote.
//
// The numeric core is deliberately plain float32 slice math; the model is
// small enough that framework weight is all cost and no benefit, and keeping
// the math local makes the saved artifacts portable JSON.
package stage1

import (
	"fmt"
	"math"
	"math/rand"
)

// Config fixes the model shape and training schedule. Shape fields are part
// of the saved artifact; a model only accepts inputs matching its config.
type Config struct {
	VocabSize int `json:"vocab_size"`
	EmbedDim  int `json:"embed_dim"`
	HiddenDim int `json:"hidden_dim"`
	MetaDim   int `json:"meta_dim"`
	MaxLen    int `json:"max_len"`

	Seed      int64   `json:"seed"`
	LearnRate float32 `json:"learn_rate"`
	Epochs    int     `json:"epochs"`
	ClipNorm  float32 `json:"clip_norm"`
}

// DefaultConfig returns the shipped model shape for a given vocab and
// metadata featurizer.
func DefaultConfig(vocabSize, metaDim, maxLen int) Config {
	return Config{
		VocabSize: vocabSize,
		EmbedDim:  24,
		HiddenDim: 48,
		MetaDim:   metaDim,
		MaxLen:    maxLen,
		Seed:      1,
		LearnRate: 0.05,
		Epochs:    5,
		ClipNorm:  5,
	}
}

func (c Config) validate() error {
	if c.VocabSize <= 0 || c.EmbedDim <= 0 || c.HiddenDim <= 0 || c.MaxLen <= 0 {
		return fmt.Errorf("invalid stage1 config shape: %+v", c)
	}
	if c.MetaDim < 0 {
		return fmt.Errorf("negative meta dim: %d", c.MetaDim)
	}
	return nil
}

// Model is one recurrent per-post classifier. All weight matrices are
// row-major slices of rows.
type Model struct {
	Cfg Config `json:"cfg"`

	Embed [][]float32 `json:"embed"` // VocabSize x EmbedDim
	Wxh   [][]float32 `json:"wxh"`   // HiddenDim x EmbedDim
	Whh   [][]float32 `json:"whh"`   // HiddenDim x HiddenDim
	Bh    []float32   `json:"bh"`    // HiddenDim
	Wout  []float32   `json:"wout"`  // HiddenDim + MetaDim
	Bout  float32     `json:"bout"`
}

// NewModel initializes weights from the config seed. Two models built from
// the same config are identical.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &Model{
		Cfg:   cfg,
		Embed: randMatrix(rng, cfg.VocabSize, cfg.EmbedDim, cfg.EmbedDim),
		Wxh:   randMatrix(rng, cfg.HiddenDim, cfg.EmbedDim, cfg.EmbedDim),
		Whh:   randMatrix(rng, cfg.HiddenDim, cfg.HiddenDim, cfg.HiddenDim),
		Bh:    make([]float32, cfg.HiddenDim),
		Wout:  randRow(rng, cfg.HiddenDim+cfg.MetaDim, cfg.HiddenDim+cfg.MetaDim),
		Bout:  0,
	}
	return m, nil
}

func randMatrix(rng *rand.Rand, rows, cols, fanIn int) [][]float32 {
	out := make([][]float32, rows)
	for i := range out {
		out[i] = randRow(rng, cols, fanIn)
	}
	return out
}

func randRow(rng *rand.Rand, n, fanIn int) []float32 {
	scale := float32(1 / math.Sqrt(float64(fanIn)))
	row := make([]float32, n)
	for i := range row {
		row[i] = (rng.Float32()*2 - 1) * scale
	}
	return row
}

// forwardCache holds per-step activations for backprop.
type forwardCache struct {
	tokens []int       // valid (masked-in) token ids, in order
	hs     [][]float32 // hidden state after each valid step
	pool   []float32   // mean of hs
	prob   float32
}

func (m *Model) forward(ids, mask []int, meta []float32) (*forwardCache, error) {
	if len(ids) != len(mask) {
		return nil, fmt.Errorf("ids/mask length mismatch: %d != %d", len(ids), len(mask))
	}
	if len(meta) != m.Cfg.MetaDim {
		return nil, fmt.Errorf("meta vector has dim %d, model expects %d", len(meta), m.Cfg.MetaDim)
	}

	H := m.Cfg.HiddenDim
	cache := &forwardCache{pool: make([]float32, H)}

	h := make([]float32, H)
	for t := range ids {
		if mask[t] == 0 {
			continue
		}
		tok := ids[t]
		if tok < 0 || tok >= m.Cfg.VocabSize {
			return nil, fmt.Errorf("token id %d outside vocab of size %d", tok, m.Cfg.VocabSize)
		}
		x := m.Embed[tok]
		next := make([]float32, H)
		for j := 0; j < H; j++ {
			a := m.Bh[j]
			wx := m.Wxh[j]
			for k := range x {
				a += wx[k] * x[k]
			}
			wh := m.Whh[j]
			for k := range h {
				a += wh[k] * h[k]
			}
			next[j] = tanh32(a)
		}
		h = next
		cache.tokens = append(cache.tokens, tok)
		cache.hs = append(cache.hs, h)
	}

	steps := len(cache.hs)
	if steps > 0 {
		inv := 1 / float32(steps)
		for _, hv := range cache.hs {
			for j, v := range hv {
				cache.pool[j] += v * inv
			}
		}
	}

	z := m.Bout
	for j := 0; j < H; j++ {
		z += m.Wout[j] * cache.pool[j]
	}
	for k, v := range meta {
		z += m.Wout[H+k] * v
	}
	cache.prob = sigmoid32(z)
	return cache, nil
}

// Predict scores one post. The returned probability is always in [0,1].
func (m *Model) Predict(ids, mask []int, meta []float32) (float64, error) {
	cache, err := m.forward(ids, mask, meta)
	if err != nil {
		return 0, err
	}
	return float64(cache.prob), nil
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

func sigmoid32(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

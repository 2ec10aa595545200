package stage2

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanagra/botsweep/decision"
)

// synthetic accounts: bots have high mean score and high support share.
func syntheticAccounts(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		bot := i%3 == 0
		var mean, share float64
		if bot {
			mean = 0.6 + rng.Float64()*0.4
			share = 0.5 + rng.Float64()*0.5
			y[i] = 1
		} else {
			mean = rng.Float64() * 0.45
			share = rng.Float64() * 0.4
		}
		X[i] = []float64{mean, share, rng.Float64()}
	}
	return X, y
}

func TestTrainBoosterSeparates(t *testing.T) {
	assert := assert.New(t)

	X, y := syntheticAccounts(120, 11)
	prof := LegacyProfile()
	prof.Rounds = 40

	b, err := TrainBooster(context.Background(), prof, X, y, []string{"mean", "share", "noise"}, nil)
	require.NoError(t, err)
	assert.Len(b.Trees, 40)

	correct := 0
	for i := range X {
		p := b.Predict(X[i])
		assert.GreaterOrEqual(p, 0.0)
		assert.LessOrEqual(p, 1.0)
		if (p >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	assert.Greater(float64(correct)/float64(len(X)), 0.9)
}

func TestTrainBoosterProfiles(t *testing.T) {
	assert := assert.New(t)

	X, y := syntheticAccounts(60, 5)
	for _, name := range []string{ProfileLegacy, ProfileRegularized} {
		prof, err := ProfileByName(name)
		require.NoError(t, err)
		prof.Rounds = 10
		b, err := TrainBooster(context.Background(), prof, X, y, nil, nil)
		require.NoError(t, err)
		assert.Equal(name, b.Profile)
	}

	_, err := ProfileByName("mystery")
	assert.Error(err)
}

func TestTrainBoosterValidation(t *testing.T) {
	assert := assert.New(t)

	prof := LegacyProfile()
	_, err := TrainBooster(context.Background(), prof, nil, nil, nil, nil)
	assert.Error(err)

	_, err = TrainBooster(context.Background(), prof, [][]float64{{1}}, []float64{1, 0}, nil, nil)
	assert.Error(err)

	_, err = TrainBooster(context.Background(), prof, [][]float64{{1}, {1, 2}}, []float64{1, 0}, nil, nil)
	assert.Error(err)
}

func TestPredictBlended(t *testing.T) {
	assert := assert.New(t)

	X, y := syntheticAccounts(60, 3)
	prof := LegacyProfile()
	prof.Rounds = 10
	b, err := TrainBooster(context.Background(), prof, X, y, nil, nil)
	require.NoError(t, err)

	// alpha 1 ignores the ensemble aggregate
	b.Alpha = 1
	assert.Equal(b.Predict(X[0]), b.PredictBlended(X[0], 0.9))

	// alpha 0 is the ensemble aggregate alone
	b.Alpha = 0
	assert.Equal(0.9, b.PredictBlended(X[0], 0.9))

	b.Alpha = 0.5
	want := 0.5*b.Predict(X[0]) + 0.5*0.2
	assert.InDelta(want, b.PredictBlended(X[0], 0.2), 1e-12)
}

func TestBoosterSaveLoad(t *testing.T) {
	assert := assert.New(t)

	X, y := syntheticAccounts(60, 9)
	prof := RegularizedProfile()
	prof.Rounds = 8
	b, err := TrainBooster(context.Background(), prof, X, y, []string{"mean", "share", "noise"}, nil)
	require.NoError(t, err)
	b.Policy = decision.Policy{Lang: "en", Threshold: 0.55}
	b.Alpha = 0.8

	path := filepath.Join(t.TempDir(), "stage2.json")
	require.NoError(t, b.Save(path))

	loaded, err := LoadBooster(path)
	require.NoError(t, err)
	assert.Equal(b.Policy, loaded.Policy)
	assert.Equal(b.Alpha, loaded.Alpha)
	assert.InDelta(b.Predict(X[0]), loaded.Predict(X[0]), 1e-12)
}

func TestLoadBoosterRejectsBadPolicy(t *testing.T) {
	assert := assert.New(t)

	X, y := syntheticAccounts(30, 2)
	prof := LegacyProfile()
	prof.Rounds = 2
	b, err := TrainBooster(context.Background(), prof, X, y, nil, nil)
	require.NoError(t, err)
	// no policy set
	path := filepath.Join(t.TempDir(), "stage2.json")
	require.NoError(t, b.Save(path))

	_, err = LoadBooster(path)
	assert.Error(err)
}

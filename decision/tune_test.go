package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfusionScore(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(5, Confusion{TP: 7, FN: 2, FP: 2}.Score())
	assert.Equal(-1, Confusion{TP: 0, FN: 3, FP: 1}.Score())
}

func TestEvaluate(t *testing.T) {
	assert := assert.New(t)

	outcomes := []Outcome{
		{Prob: 0.9, Support: 5, IsBot: true},  // TP
		{Prob: 0.2, Support: 0, IsBot: true},  // FN
		{Prob: 0.8, Support: 4, IsBot: false}, // FP
		{Prob: 0.1, Support: 0, IsBot: false},
	}
	c := Evaluate(Policy{Lang: "en", Threshold: 0.5}, outcomes)
	assert.Equal(Confusion{TP: 1, FN: 1, FP: 1}, c)
}

func TestTuneSeparable(t *testing.T) {
	assert := assert.New(t)

	var outcomes []Outcome
	for i := 0; i < 20; i++ {
		outcomes = append(outcomes,
			Outcome{Prob: 0.8, Support: 10, IsBot: true},
			Outcome{Prob: 0.3, Support: 1, IsBot: false},
		)
	}
	p, c := Tune("en", outcomes, nil)
	assert.Equal(20, c.Score())
	assert.Greater(p.Threshold, 0.3)
	assert.LessOrEqual(p.Threshold, 0.8)
}

func TestTuneGuardrailHelps(t *testing.T) {
	assert := assert.New(t)

	// humans with occasional high probability but no support; bots with both
	var outcomes []Outcome
	for i := 0; i < 10; i++ {
		outcomes = append(outcomes,
			Outcome{Prob: 0.9, Support: 8, IsBot: true},
			Outcome{Prob: 0.9, Support: 1, IsBot: false},
		)
	}
	p, c := Tune("fr", outcomes, []int{0, 2, 3})
	assert.GreaterOrEqual(p.MinSupport, 2)
	assert.Equal(10, c.Score())
}

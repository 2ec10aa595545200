package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideEnglish(t *testing.T) {
	assert := assert.New(t)

	p := Policy{Lang: "en", Threshold: 0.5}
	assert.Equal(LabelBot, p.Decide(0.5, 0))
	assert.Equal(LabelBot, p.Decide(0.9, 0))
	assert.Equal(LabelHuman, p.Decide(0.49, 0))
}

func TestDecideFrenchGuardrail(t *testing.T) {
	assert := assert.New(t)

	p := Policy{Lang: "fr", Threshold: 0.6, MinSupport: 3}

	// probability 0.9 but only 1 bot-flagged post out of 50
	assert.Equal(LabelHuman, p.Decide(0.9, 1))
	assert.Equal(LabelBot, p.Decide(0.9, 3))
	assert.Equal(LabelHuman, p.Decide(0.59, 10))
}

func TestDecideMonotonic(t *testing.T) {
	assert := assert.New(t)

	p := Policy{Lang: "fr", Threshold: 0.6, MinSupport: 2}
	for _, support := range []int{0, 1, 2, 5, 50} {
		prev := LabelHuman
		for prob := 0.0; prob <= 1.0; prob += 0.01 {
			cur := p.Decide(prob, support)
			if prev == LabelBot {
				assert.Equal(LabelBot, cur,
					"label flipped bot->human at prob=%f support=%d", prob, support)
			}
			prev = cur
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Policy{Lang: "en", Threshold: 0.5}.Validate())
	assert.Error(Policy{Threshold: 0.5}.Validate())
	assert.Error(Policy{Lang: "en", Threshold: 0}.Validate())
	assert.Error(Policy{Lang: "en", Threshold: 1.2}.Validate())
	assert.Error(Policy{Lang: "en", Threshold: 0.5, MinSupport: -1}.Validate())
}

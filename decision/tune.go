package decision

// Outcome pairs one account's model output with its ground truth, for offline
// threshold search.
type Outcome struct {
	Prob    float64
	Support int
	IsBot   bool
}

// Confusion holds the account-level confusion components the competition
// scores on.
type Confusion struct {
	TP int `json:"tp"`
	FN int `json:"fn"`
	FP int `json:"fp"`
}

// Score is the competition metric: each caught bot counts for one, each
// falsely flagged human counts against.
func (c Confusion) Score() int { return c.TP - c.FP }

// Evaluate applies a policy to labeled outcomes.
func Evaluate(p Policy, outcomes []Outcome) Confusion {
	var c Confusion
	for _, o := range outcomes {
		got := p.Decide(o.Prob, o.Support)
		switch {
		case o.IsBot && got == LabelBot:
			c.TP++
		case o.IsBot && got == LabelHuman:
			c.FN++
		case !o.IsBot && got == LabelBot:
			c.FP++
		}
	}
	return c
}

// thresholdGrid is the validation search grid. Coarse on purpose: thresholds
// tuned finer than this did not survive resampling in the original runs.
func thresholdGrid() []float64 {
	var out []float64
	for t := 0.05; t <= 0.951; t += 0.01 {
		out = append(out, t)
	}
	return out
}

// Tune line-searches the probability threshold (and, when minSupports has
// entries beyond zero, the support guardrail) maximizing the validation
// score. Ties prefer the stricter policy: higher threshold, then higher
// support, since false positives cost score.
func Tune(lang string, outcomes []Outcome, minSupports []int) (Policy, Confusion) {
	if len(minSupports) == 0 {
		minSupports = []int{0}
	}
	best := Policy{Lang: lang, Threshold: 0.5}
	bestConf := Evaluate(best, outcomes)
	for _, ms := range minSupports {
		for _, th := range thresholdGrid() {
			p := Policy{Lang: lang, Threshold: th, MinSupport: ms}
			c := Evaluate(p, outcomes)
			if c.Score() > bestConf.Score() ||
				(c.Score() == bestConf.Score() && (th > best.Threshold ||
					(th == best.Threshold && ms > best.MinSupport))) {
				best = p
				bestConf = c
			}
		}
	}
	return best, bestConf
}

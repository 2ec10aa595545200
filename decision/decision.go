// Package decision applies tuned thresholds to account probabilities and
// emits the final bot/human labels.
//
// Thresholds and the French support guardrail are configuration tuned offline
// by validation search; nothing here recomputes them at runtime.
package decision

import "fmt"

// Label is the final binary classification of one account.
type Label string

const (
	LabelBot   Label = "bot"
	LabelHuman Label = "human"
)

// Policy is one language pipeline's decision configuration.
//
// English ships MinSupport=0, which disables the guardrail. The French
// pipeline requires at least MinSupport bot-flagged posts before an account
// can be labeled bot, suppressing false positives on accounts whose high
// probability rests on a sliver of their activity.
type Policy struct {
	Lang       string  `json:"lang"`
	Threshold  float64 `json:"threshold"`
	MinSupport int     `json:"min_support"`
}

// Validate rejects policies that could never flag anything or that flag
// everything.
func (p Policy) Validate() error {
	if p.Lang == "" {
		return fmt.Errorf("decision policy has no lang")
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return fmt.Errorf("decision threshold out of range: %f", p.Threshold)
	}
	if p.MinSupport < 0 {
		return fmt.Errorf("negative min support: %d", p.MinSupport)
	}
	return nil
}

// Decision is the final output row for one account.
type Decision struct {
	AuthorID string
	Label    Label
	// Probability is the stage-2 output that drove the decision, kept for
	// reporting.
	Probability float64
}

// Decide labels one account. Monotonic in prob at fixed support: raising prob
// can only move human toward bot, never the reverse.
func (p Policy) Decide(prob float64, support int) Label {
	if prob >= p.Threshold && support >= p.MinSupport {
		return LabelBot
	}
	return LabelHuman
}

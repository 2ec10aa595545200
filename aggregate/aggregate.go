// Package aggregate reduces per-post bot probabilities to fixed-size
// per-account summaries consumed by the second-stage classifier.
package aggregate

import "math"

// DefaultBotPostThreshold marks a single post as bot-like when computing
// support counts. Tuned alongside the decision thresholds; this is the value
// both pipelines shipped with.
const DefaultBotPostThreshold = 0.5

// Summary is the fixed-size reduction of one account's per-post scores.
type Summary struct {
	Mean float64
	Max  float64
	Min  float64
	Std  float64
	// ShareAbove is the fraction of posts at or above the bot-post threshold.
	ShareAbove float64
	// Support is the absolute number of posts at or above the bot-post
	// threshold; the French decision guardrail reads this.
	Support int
	// Count is the number of posts aggregated.
	Count int
}

// Default is the sentinel summary for an account with zero posts. Zero posts
// is a valid state, not an error.
func Default() Summary {
	return Summary{}
}

// Summarize reduces per-post probabilities for one account. probs may be
// empty, in which case the default summary is returned.
func Summarize(probs []float64, botPostThreshold float64) Summary {
	if len(probs) == 0 {
		return Default()
	}
	s := Summary{
		Min:   1.0,
		Count: len(probs),
	}
	var sum float64
	for _, p := range probs {
		sum += p
		if p > s.Max {
			s.Max = p
		}
		if p < s.Min {
			s.Min = p
		}
		if p >= botPostThreshold {
			s.Support++
		}
	}
	s.Mean = sum / float64(len(probs))
	s.ShareAbove = float64(s.Support) / float64(len(probs))

	var sq float64
	for _, p := range probs {
		d := p - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / float64(len(probs)))
	return s
}

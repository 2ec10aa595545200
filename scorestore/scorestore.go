// Package scorestore persists per-post bot probabilities between the two
// model stages.
//
// Small runs keep scores in memory; large dumps use the gorm-backed store so
// an interrupted scoring pass can resume without re-running stage 1.
package scorestore

import "context"

// PostScore is one stage-1 output: the bot probability for a single post.
type PostScore struct {
	AuthorID    string
	TweetID     string
	Probability float64
}

// ScoreStore is the handoff surface between stage 1 and the aggregator.
type ScoreStore interface {
	// Put upserts scores; re-scoring a tweet replaces its previous score,
	// including its author attribution.
	Put(ctx context.Context, scores []PostScore) error
	// GetAccount returns all scores for one account, in insertion order.
	// An unknown account returns an empty slice, not an error.
	GetAccount(ctx context.Context, authorID string) ([]PostScore, error)
	// HasTweet reports whether a tweet has already been scored.
	HasTweet(ctx context.Context, tweetID string) (bool, error)
	// Count returns the total number of stored scores.
	Count(ctx context.Context) (int64, error)
}

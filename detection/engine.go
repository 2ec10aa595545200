// Package detection wires the two model stages into the account
// classification pipeline: clean and score posts, persist per-post scores,
// aggregate per account, boost, and decide.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tanagra/botsweep/aggregate"
	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/decision"
	"github.com/tanagra/botsweep/features"
	"github.com/tanagra/botsweep/normalize"
	"github.com/tanagra/botsweep/scorestore"
	"github.com/tanagra/botsweep/stage1"
	"github.com/tanagra/botsweep/stage2"
	"github.com/tanagra/botsweep/tokenizer"
)

// scoreBatchSize is the number of tweets handed to one worker before scores
// are flushed to the store.
const scoreBatchSize = 256

// Engine runs one language pipeline end to end.
type Engine struct {
	Logger    *slog.Logger
	Tokenizer *tokenizer.Tokenizer
	Stage1    *stage1.Ensemble
	Stage2    *stage2.Booster
	Scores    scorestore.ScoreStore

	// Workers bounds parallel stage-1 scoring; <=1 means sequential.
	Workers int

	// BotPostThreshold marks single posts as bot-like for support counting.
	BotPostThreshold float64
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) botPostThreshold() float64 {
	if e.BotPostThreshold > 0 {
		return e.BotPostThreshold
	}
	return aggregate.DefaultBotPostThreshold
}

// scorePost runs one tweet through clean/encode/featurize/predict.
func scorePost(tok *tokenizer.Tokenizer, ens *stage1.Ensemble, tw dataset.Tweet) (float64, error) {
	cl := normalize.Clean(tw.Text)
	enc := tok.Encode(cl.Text)
	meta := features.PostVector(tw, cl)
	return ens.Predict(enc.IDs, enc.Mask, meta)
}

// ScorePosts runs stage 1 over all tweets, persisting per-post scores.
// Already-scored tweets are skipped so interrupted runs resume cheaply.
func (e *Engine) ScorePosts(ctx context.Context, tweets []dataset.Tweet) error {
	start := time.Now()
	logger := e.logger()

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for off := 0; off < len(tweets); off += scoreBatchSize {
		batch := tweets[off:min(off+scoreBatchSize, len(tweets))]
		eg.Go(func() (err error) {
			// recover panics from model execution, like an HTTP server would
			defer func() {
				if r := recover(); r != nil {
					logger.Error("stage1 scoring panic", "err", r)
					err = fmt.Errorf("stage1 scoring panic: %v", r)
				}
			}()

			scores := make([]scorestore.PostScore, 0, len(batch))
			for _, tw := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				done, err := e.Scores.HasTweet(ctx, tw.TweetID)
				if err != nil {
					return err
				}
				if done {
					continue
				}
				p, err := scorePost(e.Tokenizer, e.Stage1, tw)
				if err != nil {
					return fmt.Errorf("scoring tweet %s: %w", tw.TweetID, err)
				}
				scores = append(scores, scorestore.PostScore{
					AuthorID:    tw.AuthorID,
					TweetID:     tw.TweetID,
					Probability: p,
				})
				postsScored.Inc()
			}
			return e.Scores.Put(ctx, scores)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	scoreDuration.Observe(time.Since(start).Seconds())
	logger.Info("stage1 scoring complete", "tweets", len(tweets), "took", time.Since(start))
	return nil
}

// DetectAccounts aggregates stored scores, applies the booster and the
// decision policy, and returns one Decision per account. Accounts with no
// scored posts flow through on the default aggregate, never erroring.
func (e *Engine) DetectAccounts(ctx context.Context, accounts []dataset.Account, ref time.Time) ([]decision.Decision, error) {
	logger := e.logger()
	policy := e.Stage2.Policy
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("stage2 artifact carries no usable policy: %w", err)
	}

	out := make([]decision.Decision, 0, len(accounts))
	for i := range accounts {
		acct := &accounts[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := e.Scores.GetAccount(ctx, acct.AuthorID)
		if err != nil {
			return nil, fmt.Errorf("loading scores for %s: %w", acct.AuthorID, err)
		}
		probs := make([]float64, len(stored))
		for j, s := range stored {
			probs[j] = s.Probability
		}

		sum := aggregate.Summarize(probs, e.botPostThreshold())
		vec := features.AccountVector(sum, *acct, ref)
		prob := e.Stage2.PredictBlended(vec, sum.Mean)
		label := policy.Decide(prob, sum.Support)

		logger.Debug("account decided",
			"author", acct.AuthorID, "posts", sum.Count, "support", sum.Support,
			"prob", prob, "label", label)
		decisionsCount.WithLabelValues(policy.Lang, string(label)).Inc()

		out = append(out, decision.Decision{
			AuthorID:    acct.AuthorID,
			Label:       label,
			Probability: prob,
		})
	}
	accountsScored.Add(float64(len(accounts)))
	return out, nil
}

// Flagged extracts the author ids labeled bot, in input order.
func Flagged(decisions []decision.Decision) []string {
	var out []string
	for _, d := range decisions {
		if d.Label == decision.LabelBot {
			out = append(out, d.AuthorID)
		}
	}
	return out
}

// RefTime picks the feature reference time for account-age features: the
// newest tweet timestamp, so repeated runs over the same dump produce
// identical features. An empty dump falls back to the wall clock.
func RefTime(tweets []dataset.Tweet) time.Time {
	var ref time.Time
	for _, tw := range tweets {
		if tw.CreatedAt.After(ref) {
			ref = tw.CreatedAt
		}
	}
	if ref.IsZero() {
		return time.Now().UTC()
	}
	return ref
}

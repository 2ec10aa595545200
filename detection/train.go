package detection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tanagra/botsweep/aggregate"
	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/decision"
	"github.com/tanagra/botsweep/features"
	"github.com/tanagra/botsweep/normalize"
	"github.com/tanagra/botsweep/stage1"
	"github.com/tanagra/botsweep/stage2"
	"github.com/tanagra/botsweep/tokenizer"
)

// TrainConfig drives one full training run of a language pipeline.
type TrainConfig struct {
	Lang   string
	Seeds  []int64
	Folds  int
	Epochs int
	Agg    string

	Profile string
	Alpha   float64

	MaxLen           int
	ValFraction      float64
	SplitSeed        int64
	BotPostThreshold float64

	// MinSupportGrid is the guardrail search grid; empty disables the
	// guardrail (the English pipeline).
	MinSupportGrid []int
}

// DefaultTrainConfig returns the shipped settings for a language pipeline.
func DefaultTrainConfig(lang string) TrainConfig {
	cfg := TrainConfig{
		Lang:             lang,
		Seeds:            []int64{1, 2, 3},
		Folds:            4,
		Epochs:           5,
		Agg:              stage1.AggMean,
		Profile:          stage2.ProfileLegacy,
		Alpha:            1,
		MaxLen:           64,
		ValFraction:      0.2,
		SplitSeed:        42,
		BotPostThreshold: aggregate.DefaultBotPostThreshold,
	}
	if lang == "fr" {
		cfg.MinSupportGrid = []int{0, 1, 2, 3, 4, 5}
	}
	return cfg
}

// AccountRow is one account's evaluated state: its stage-2 feature vector,
// its stage-1 aggregate, and its ground truth.
type AccountRow struct {
	AuthorID string
	Vec      []float64
	Mean     float64
	Support  int
	IsBot    bool
}

// Outcome converts a row into a decision outcome under a booster.
func (r AccountRow) Outcome(b *stage2.Booster) decision.Outcome {
	return decision.Outcome{
		Prob:    b.PredictBlended(r.Vec, r.Mean),
		Support: r.Support,
		IsBot:   r.IsBot,
	}
}

// EnsembleOutcome is the stage-1-only baseline outcome for a row.
func (r AccountRow) EnsembleOutcome() decision.Outcome {
	return decision.Outcome{Prob: r.Mean, Support: r.Support, IsBot: r.IsBot}
}

// CoreFeatures is everything one stage-1 pass produces: the final ensemble,
// the out-of-fold booster training matrix, and evaluated validation rows.
// Several boosters (profiles, alphas) can be fit on one CoreFeatures.
type CoreFeatures struct {
	Ensemble *stage1.Ensemble
	X        [][]float64
	Y        []float64
	Val      []AccountRow
}

// buildExamples turns one account's tweets into stage-1 training examples,
// propagating the account label to each post.
func buildExamples(tok *tokenizer.Tokenizer, tweets []dataset.Tweet, isBot bool) []stage1.Example {
	label := float32(0)
	if isBot {
		label = 1
	}
	out := make([]stage1.Example, 0, len(tweets))
	for _, tw := range tweets {
		cl := normalize.Clean(tw.Text)
		enc := tok.Encode(cl.Text)
		out = append(out, stage1.Example{
			IDs:   enc.IDs,
			Mask:  enc.Mask,
			Meta:  features.PostVector(tw, cl),
			Label: label,
		})
	}
	return out
}

// scoreAccountPosts runs the ensemble over one account's tweets.
func scoreAccountPosts(tok *tokenizer.Tokenizer, ens *stage1.Ensemble, tweets []dataset.Tweet) ([]float64, error) {
	out := make([]float64, 0, len(tweets))
	for _, tw := range tweets {
		p, err := scorePost(tok, ens, tw)
		if err != nil {
			return nil, fmt.Errorf("scoring tweet %s: %w", tw.TweetID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// SummarizeAccounts scores each account's posts with the ensemble and builds
// its AccountRow.
func SummarizeAccounts(ctx context.Context, tok *tokenizer.Tokenizer, ens *stage1.Ensemble, accounts []dataset.Account, grouped map[string][]dataset.Tweet, ref time.Time, botPostThreshold float64) ([]AccountRow, error) {
	out := make([]AccountRow, 0, len(accounts))
	for _, a := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probs, err := scoreAccountPosts(tok, ens, grouped[a.AuthorID])
		if err != nil {
			return nil, err
		}
		sum := aggregate.Summarize(probs, botPostThreshold)
		out = append(out, AccountRow{
			AuthorID: a.AuthorID,
			Vec:      features.AccountVector(sum, a, ref),
			Mean:     sum.Mean,
			Support:  sum.Support,
			IsBot:    a.IsBot(),
		})
	}
	return out, nil
}

// StratifiedSplit shuffles bots and humans separately and carves off a
// fraction of each, keeping class balance.
func StratifiedSplit(accounts []dataset.Account, fraction float64, seed int64) (rest, held []dataset.Account) {
	rng := rand.New(rand.NewSource(seed))
	var bots, humans []dataset.Account
	for _, a := range accounts {
		if a.IsBot() {
			bots = append(bots, a)
		} else {
			humans = append(humans, a)
		}
	}
	split := func(group []dataset.Account) {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		n := int(float64(len(group)) * fraction)
		held = append(held, group[:n]...)
		rest = append(rest, group[n:]...)
	}
	split(bots)
	split(humans)
	return rest, held
}

// splitFolds deals accounts round-robin into k folds after a stratified
// shuffle, so every fold sees both classes where possible.
func splitFolds(accounts []dataset.Account, k int, seed int64) [][]dataset.Account {
	rng := rand.New(rand.NewSource(seed))
	var bots, humans []dataset.Account
	for _, a := range accounts {
		if a.IsBot() {
			bots = append(bots, a)
		} else {
			humans = append(humans, a)
		}
	}
	rng.Shuffle(len(bots), func(i, j int) { bots[i], bots[j] = bots[j], bots[i] })
	rng.Shuffle(len(humans), func(i, j int) { humans[i], humans[j] = humans[j], humans[i] })

	folds := make([][]dataset.Account, k)
	i := 0
	for _, a := range append(bots, humans...) {
		folds[i%k] = append(folds[i%k], a)
		i++
	}
	return folds
}

// foldExamples assembles the stage-1 training set for fold fi from every
// other fold's accounts. Fold fi's own posts never enter it; that exclusion
// is what makes the held-out scores usable as booster training features.
func foldExamples(tok *tokenizer.Tokenizer, folds [][]dataset.Account, fi int, grouped map[string][]dataset.Tweet) []stage1.Example {
	var out []stage1.Example
	for fj, other := range folds {
		if fj == fi {
			continue
		}
		for _, a := range other {
			out = append(out, buildExamples(tok, grouped[a.AuthorID], a.IsBot())...)
		}
	}
	return out
}

// BuildCoreFeatures runs the stage-1 half of the training protocol:
//
//  1. split labeled accounts into train/validation, stratified;
//  2. build out-of-fold stage-1 scores over the training accounts, so the
//     booster never sees a score from a model that trained on that account;
//  3. train the final stage-1 ensemble on all training accounts;
//  4. assemble the OOF booster training matrix and the validation rows.
func BuildCoreFeatures(ctx context.Context, tok *tokenizer.Tokenizer, accounts []dataset.Account, tweets []dataset.Tweet, cfg TrainConfig, logger *slog.Logger) (*CoreFeatures, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Folds < 2 {
		return nil, fmt.Errorf("out-of-fold training needs at least 2 folds, got %d", cfg.Folds)
	}

	var labeled []dataset.Account
	for _, a := range accounts {
		if a.Label != "" {
			labeled = append(labeled, a)
		}
	}
	if len(labeled) == 0 {
		return nil, fmt.Errorf("no labeled accounts in training data")
	}

	grouped := dataset.GroupByAccount(labeled, tweets)
	ref := RefTime(tweets)

	trainAccts, valAccts := StratifiedSplit(labeled, cfg.ValFraction, cfg.SplitSeed)
	if len(trainAccts) < cfg.Folds {
		return nil, fmt.Errorf("%d training accounts cannot fill %d folds", len(trainAccts), cfg.Folds)
	}

	s1cfg := stage1.DefaultConfig(tok.VocabSize(), features.PostDim, cfg.MaxLen)
	s1cfg.Epochs = cfg.Epochs

	logger.Info("building OOF first-stage features",
		"lang", cfg.Lang, "seeds", cfg.Seeds, "folds", cfg.Folds, "epochs", cfg.Epochs,
		"train_accounts", len(trainAccts), "val_accounts", len(valAccts))

	// out-of-fold per-post scores for every training account
	oofProbs := make(map[string][]float64, len(trainAccts))
	folds := splitFolds(trainAccts, cfg.Folds, cfg.SplitSeed)
	for fi, fold := range folds {
		examples := foldExamples(tok, folds, fi, grouped)
		ens, err := stage1.TrainEnsemble(ctx, s1cfg, cfg.Seeds, cfg.Agg, examples, logger)
		if err != nil {
			return nil, fmt.Errorf("training fold %d ensemble: %w", fi, err)
		}
		for _, a := range fold {
			probs, err := scoreAccountPosts(tok, ens, grouped[a.AuthorID])
			if err != nil {
				return nil, err
			}
			oofProbs[a.AuthorID] = probs
		}
		logger.Debug("fold scored", "fold", fi, "held_out_accounts", len(fold))
	}

	// final ensemble, trained on everything the booster trains on
	var allExamples []stage1.Example
	for _, a := range trainAccts {
		allExamples = append(allExamples, buildExamples(tok, grouped[a.AuthorID], a.IsBot())...)
	}
	finalEns, err := stage1.TrainEnsemble(ctx, s1cfg, cfg.Seeds, cfg.Agg, allExamples, logger)
	if err != nil {
		return nil, fmt.Errorf("training final ensemble: %w", err)
	}

	core := &CoreFeatures{Ensemble: finalEns}
	for _, a := range trainAccts {
		sum := aggregate.Summarize(oofProbs[a.AuthorID], cfg.BotPostThreshold)
		core.X = append(core.X, features.AccountVector(sum, a, ref))
		if a.IsBot() {
			core.Y = append(core.Y, 1)
		} else {
			core.Y = append(core.Y, 0)
		}
	}
	core.Val, err = SummarizeAccounts(ctx, tok, finalEns, valAccts, grouped, ref, cfg.BotPostThreshold)
	if err != nil {
		return nil, err
	}
	return core, nil
}

// TrainReport summarizes one run: the ensemble-only baseline against the
// second stage, on the held-out validation accounts.
type TrainReport struct {
	Lang   string  `json:"lang"`
	Seeds  []int64 `json:"seeds"`
	Folds  int     `json:"folds"`
	Epochs int     `json:"epochs"`

	EnsemblePolicy decision.Policy    `json:"ensemble_policy"`
	EnsembleConf   decision.Confusion `json:"ensemble_conf"`

	BoosterPolicy decision.Policy    `json:"booster_policy"`
	BoosterConf   decision.Confusion `json:"booster_conf"`

	// ValBots is the score ceiling: the number of bot accounts in the
	// validation split.
	ValBots int `json:"val_bots"`
}

// Gain is the booster's score improvement over the ensemble baseline.
func (r *TrainReport) Gain() int {
	return r.BoosterConf.Score() - r.EnsembleConf.Score()
}

// TrainPipeline runs the full two-stage training protocol and tunes the
// decision policy on the validation accounts, embedding it in the booster
// artifact.
func TrainPipeline(ctx context.Context, tok *tokenizer.Tokenizer, accounts []dataset.Account, tweets []dataset.Tweet, cfg TrainConfig, logger *slog.Logger) (*stage1.Ensemble, *stage2.Booster, *TrainReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	core, err := BuildCoreFeatures(ctx, tok, accounts, tweets, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	prof, err := stage2.ProfileByName(cfg.Profile)
	if err != nil {
		return nil, nil, nil, err
	}
	booster, err := stage2.TrainBooster(ctx, prof, core.X, core.Y, features.AccountFeatureNames(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("training booster: %w", err)
	}
	booster.Alpha = cfg.Alpha

	var boosterOutcomes, ensembleOutcomes []decision.Outcome
	valBots := 0
	for _, row := range core.Val {
		boosterOutcomes = append(boosterOutcomes, row.Outcome(booster))
		ensembleOutcomes = append(ensembleOutcomes, row.EnsembleOutcome())
		if row.IsBot {
			valBots++
		}
	}

	boosterPolicy, boosterConf := decision.Tune(cfg.Lang, boosterOutcomes, cfg.MinSupportGrid)
	booster.Policy = boosterPolicy
	ensPolicy, ensConf := decision.Tune(cfg.Lang, ensembleOutcomes, nil)

	report := &TrainReport{
		Lang:           cfg.Lang,
		Seeds:          cfg.Seeds,
		Folds:          cfg.Folds,
		Epochs:         cfg.Epochs,
		EnsemblePolicy: ensPolicy,
		EnsembleConf:   ensConf,
		BoosterPolicy:  boosterPolicy,
		BoosterConf:    boosterConf,
		ValBots:        valBots,
	}

	logger.Info("pipeline trained",
		"lang", cfg.Lang,
		"ensemble_threshold", ensPolicy.Threshold,
		"ensemble_score", ensConf.Score(),
		"booster_threshold", boosterPolicy.Threshold,
		"booster_min_support", boosterPolicy.MinSupport,
		"booster_score", boosterConf.Score(),
		"val_bots", valBots,
		"gain", report.Gain())
	return core.Ensemble, booster, report, nil
}

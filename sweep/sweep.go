// Package sweep runs booster parameter sweeps: for each run spec it rebuilds
// the out-of-fold stage-1 features once, fits second-stage candidates across
// profiles and blend alphas, tunes each candidate's threshold on validation,
// and reports test scores against the ensemble-only baseline.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/decision"
	"github.com/tanagra/botsweep/detection"
	"github.com/tanagra/botsweep/stage2"
	"github.com/tanagra/botsweep/tokenizer"
)

// RunSpec is one sweep grid point.
type RunSpec struct {
	Name   string
	Lang   string
	Seeds  []int64
	Folds  int
	Epochs int
	Agg    string

	// Profiles to fit; more than one means "auto" profile mode, where the
	// candidate table picks the winner.
	Profiles []string
	// Alphas are the booster blend weights to try.
	Alphas []float64

	MaxLen           int
	ValFraction      float64
	BotPostThreshold float64
	MinSupportGrid   []int
}

// Candidate is one (profile, alpha) second-stage fit with its tuned
// threshold and scores.
type Candidate struct {
	Profile   string  `json:"profile"`
	Alpha     float64 `json:"alpha"`
	Threshold float64 `json:"threshold"`

	ValScore int `json:"val_score"`
	ValTP    int `json:"val_tp_accounts"`
	ValFN    int `json:"val_fn_accounts"`
	ValFP    int `json:"val_fp_accounts"`

	TestScore int `json:"test_score"`
	TestTP    int `json:"test_tp_accounts"`
	TestFN    int `json:"test_fn_accounts"`
	TestFP    int `json:"test_fp_accounts"`
}

// Run is one completed sweep run.
type Run struct {
	RunIndex int    `json:"run_index"`
	RunTotal int    `json:"run_total"`
	RunName  string `json:"run_name"`

	OOFSeeds []int64 `json:"oof_seeds"`
	Folds    int     `json:"folds"`
	Epochs   int     `json:"epochs"`

	EnsembleAgg       string  `json:"ensemble_agg"`
	EnsembleThreshold float64 `json:"ensemble_threshold"`
	EnsembleScore     int     `json:"ensemble_score"`
	EnsembleTP        int     `json:"ensemble_tp"`
	EnsembleFN        int     `json:"ensemble_fn"`
	EnsembleFP        int     `json:"ensemble_fp"`
	EnsembleAccounts  int     `json:"ensemble_accounts"`

	SeedScoreMean float64 `json:"seed_score_mean"`
	SeedScoreStd  float64 `json:"seed_score_std"`

	ProfileMode     string  `json:"profile_mode"`
	SelectedProfile string  `json:"selected_profile"`
	BlendAlpha      float64 `json:"blend_alpha"`
	SecondThreshold float64 `json:"second_threshold"`

	BoosterScore int `json:"booster_score"`
	BoosterMax   int `json:"booster_max"`
	SecondTP     int `json:"second_tp"`
	SecondFN     int `json:"second_fn"`
	SecondFP     int `json:"second_fp"`

	Gain      int     `json:"gain"`
	DurationS float64 `json:"duration_s"`

	Candidates []Candidate `json:"candidates"`
}

// IncompleteRun records a run that failed partway.
type IncompleteRun struct {
	RunName string `json:"run_name"`
	Err     string `json:"err"`
}

// Runner executes sweep runs over a fixed dataset.
type Runner struct {
	Logger    *slog.Logger
	Tokenizer *tokenizer.Tokenizer
	Accounts  []dataset.Account
	Tweets    []dataset.Tweet

	// TestFraction is held out of every run for final scoring; the rest is
	// split train/validation inside the pipeline.
	TestFraction float64
	SplitSeed    int64
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Execute runs every spec, collecting completed runs and failures.
func (r *Runner) Execute(ctx context.Context, specs []RunSpec) ([]Run, []IncompleteRun, error) {
	var runs []Run
	var incomplete []IncompleteRun
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return runs, incomplete, err
		}
		r.logger().Info("sweep run starting", "index", i+1, "total", len(specs), "name", spec.Name)
		run, err := r.runOne(ctx, spec, i+1, len(specs))
		if err != nil {
			r.logger().Error("sweep run failed", "name", spec.Name, "err", err)
			incomplete = append(incomplete, IncompleteRun{RunName: spec.Name, Err: err.Error()})
			continue
		}
		runs = append(runs, run)
		r.logger().Info("sweep run complete",
			"name", run.RunName, "booster", run.BoosterScore, "ensemble", run.EnsembleScore,
			"gain", run.Gain, "dur_s", run.DurationS)
	}
	return runs, incomplete, nil
}

func (r *Runner) runOne(ctx context.Context, spec RunSpec, index, total int) (Run, error) {
	start := time.Now()
	run := Run{
		RunIndex:    index,
		RunTotal:    total,
		RunName:     spec.Name,
		OOFSeeds:    spec.Seeds,
		Folds:       spec.Folds,
		Epochs:      spec.Epochs,
		EnsembleAgg: spec.Agg,
	}
	if len(spec.Profiles) == 0 || len(spec.Alphas) == 0 {
		return run, fmt.Errorf("run %s has no profiles or alphas", spec.Name)
	}
	run.ProfileMode = spec.Profiles[0]
	if len(spec.Profiles) > 1 {
		run.ProfileMode = "auto"
	}

	var labeled []dataset.Account
	for _, a := range r.Accounts {
		if a.Label != "" {
			labeled = append(labeled, a)
		}
	}
	work, test := detection.StratifiedSplit(labeled, r.TestFraction, r.SplitSeed)
	if len(test) == 0 {
		return run, fmt.Errorf("test split is empty")
	}
	grouped := dataset.GroupByAccount(labeled, r.Tweets)
	ref := detection.RefTime(r.Tweets)

	cfg := detection.TrainConfig{
		Lang:             spec.Lang,
		Seeds:            spec.Seeds,
		Folds:            spec.Folds,
		Epochs:           spec.Epochs,
		Agg:              spec.Agg,
		MaxLen:           spec.MaxLen,
		ValFraction:      spec.ValFraction,
		SplitSeed:        r.SplitSeed,
		BotPostThreshold: spec.BotPostThreshold,
		MinSupportGrid:   spec.MinSupportGrid,
	}
	core, err := detection.BuildCoreFeatures(ctx, r.Tokenizer, work, r.Tweets, cfg, r.logger())
	if err != nil {
		return run, err
	}
	testRows, err := detection.SummarizeAccounts(ctx, r.Tokenizer, core.Ensemble, test, grouped, ref, spec.BotPostThreshold)
	if err != nil {
		return run, err
	}
	for _, row := range testRows {
		if row.IsBot {
			run.BoosterMax++
		}
	}

	// ensemble-only baseline: tune on validation, score on test
	var valEns, testEns []decision.Outcome
	for _, row := range core.Val {
		valEns = append(valEns, row.EnsembleOutcome())
	}
	for _, row := range testRows {
		testEns = append(testEns, row.EnsembleOutcome())
	}
	ensPolicy, _ := decision.Tune(spec.Lang, valEns, nil)
	ensConf := decision.Evaluate(ensPolicy, testEns)
	run.EnsembleThreshold = ensPolicy.Threshold
	run.EnsembleScore = ensConf.Score()
	run.EnsembleTP = ensConf.TP
	run.EnsembleFN = ensConf.FN
	run.EnsembleFP = ensConf.FP
	run.EnsembleAccounts = len(testRows)

	run.SeedScoreMean, run.SeedScoreStd, err = r.seedScores(ctx, core, test, grouped, ref, spec, ensPolicy)
	if err != nil {
		return run, err
	}

	// second-stage candidate table over profile x alpha
	for _, profName := range spec.Profiles {
		prof, err := stage2.ProfileByName(profName)
		if err != nil {
			return run, err
		}
		booster, err := stage2.TrainBooster(ctx, prof, core.X, core.Y, nil, r.logger())
		if err != nil {
			return run, fmt.Errorf("fitting %s booster: %w", profName, err)
		}
		for _, alpha := range spec.Alphas {
			b := *booster
			b.Alpha = alpha

			var valOutcomes, testOutcomes []decision.Outcome
			for _, row := range core.Val {
				valOutcomes = append(valOutcomes, row.Outcome(&b))
			}
			for _, row := range testRows {
				testOutcomes = append(testOutcomes, row.Outcome(&b))
			}
			policy, valConf := decision.Tune(spec.Lang, valOutcomes, spec.MinSupportGrid)
			testConf := decision.Evaluate(policy, testOutcomes)

			run.Candidates = append(run.Candidates, Candidate{
				Profile:   profName,
				Alpha:     alpha,
				Threshold: policy.Threshold,
				ValScore:  valConf.Score(),
				ValTP:     valConf.TP,
				ValFN:     valConf.FN,
				ValFP:     valConf.FP,
				TestScore: testConf.Score(),
				TestTP:    testConf.TP,
				TestFN:    testConf.FN,
				TestFP:    testConf.FP,
			})
		}
	}

	best := run.Candidates[0]
	for _, c := range run.Candidates[1:] {
		if c.ValScore > best.ValScore ||
			(c.ValScore == best.ValScore && c.ValFP < best.ValFP) {
			best = c
		}
	}
	run.SelectedProfile = best.Profile
	run.BlendAlpha = best.Alpha
	run.SecondThreshold = best.Threshold
	run.BoosterScore = best.TestScore
	run.SecondTP = best.TestTP
	run.SecondFN = best.TestFN
	run.SecondFP = best.TestFP
	run.Gain = run.BoosterScore - run.EnsembleScore
	run.DurationS = time.Since(start).Seconds()
	return run, nil
}

// seedScores evaluates each ensemble member alone on the test accounts under
// the ensemble baseline policy, reporting score spread across seeds.
func (r *Runner) seedScores(ctx context.Context, core *detection.CoreFeatures, test []dataset.Account, grouped map[string][]dataset.Tweet, ref time.Time, spec RunSpec, policy decision.Policy) (float64, float64, error) {
	var scores []float64
	for _, m := range core.Ensemble.Models {
		single := core.Ensemble.Single(m)
		rows, err := detection.SummarizeAccounts(ctx, r.Tokenizer, single, test, grouped, ref, spec.BotPostThreshold)
		if err != nil {
			return 0, 0, err
		}
		var outcomes []decision.Outcome
		for _, row := range rows {
			outcomes = append(outcomes, row.EnsembleOutcome())
		}
		scores = append(scores, float64(decision.Evaluate(policy, outcomes).Score()))
	}

	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(scores))), nil
}

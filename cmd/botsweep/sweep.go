package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/detection"
	"github.com/tanagra/botsweep/stage1"
	"github.com/tanagra/botsweep/sweep"
)

var sweepCmd = &cli.Command{
	Name:  "sweep",
	Usage: "run the booster parameter sweep and write CSV/JSON artifacts",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "lang",
			Value:   "en",
			EnvVars: []string{"BOTSWEEP_LANG"},
		},
		&cli.StringFlag{
			Name:    "tweets-file",
			Value:   "dataset.tweets.json",
			EnvVars: []string{"BOTSWEEP_TWEETS_FILE"},
		},
		&cli.StringFlag{
			Name:    "users-file",
			Value:   "dataset.users.json",
			EnvVars: []string{"BOTSWEEP_USERS_FILE"},
		},
		&cli.StringFlag{
			Name:    "vocab-file",
			EnvVars: []string{"BOTSWEEP_VOCAB_FILE"},
		},
		&cli.StringFlag{
			Name:    "out-dir",
			Value:   "artifacts",
			EnvVars: []string{"BOTSWEEP_ARTIFACTS_DIR"},
		},
		&cli.Int64SliceFlag{
			Name:  "seed",
			Usage: "stage1 seeds used by every run",
		},
		&cli.IntSliceFlag{
			Name:  "folds",
			Usage: "fold counts to sweep",
		},
		&cli.IntSliceFlag{
			Name:  "epochs",
			Usage: "epoch counts to sweep",
		},
		&cli.StringSliceFlag{
			Name:  "profile",
			Usage: "stage2 profiles to sweep",
		},
		&cli.Float64SliceFlag{
			Name:  "alpha",
			Usage: "blend alphas to sweep",
		},
		&cli.IntFlag{
			Name:  "max-len",
			Value: 64,
		},
		&cli.Float64Flag{
			Name:  "test-fraction",
			Value: 0.2,
		},
	},
	Action: runSweep,
}

func runSweep(cctx *cli.Context) error {
	ctx := context.Background()
	logger := setupLogger(cctx)
	maybeServeMetrics(cctx, logger)

	lang := cctx.String("lang")
	base := detection.DefaultTrainConfig(lang)

	seeds := cctx.Int64Slice("seed")
	if len(seeds) == 0 {
		seeds = base.Seeds
	}
	foldGrid := cctx.IntSlice("folds")
	if len(foldGrid) == 0 {
		foldGrid = []int{base.Folds}
	}
	epochGrid := cctx.IntSlice("epochs")
	if len(epochGrid) == 0 {
		epochGrid = []int{base.Epochs}
	}
	profiles := cctx.StringSlice("profile")
	if len(profiles) == 0 {
		profiles = []string{"legacy", "regularized"}
	}
	alphas := cctx.Float64Slice("alpha")
	if len(alphas) == 0 {
		alphas = []float64{1, 0.8, 0.6}
	}

	tok, err := loadTokenizer(cctx.String("vocab-file"), lang, cctx.Int("max-len"))
	if err != nil {
		return err
	}
	tweets, err := dataset.LoadTweets(cctx.String("tweets-file"))
	if err != nil {
		return err
	}
	accounts, err := dataset.LoadAccounts(cctx.String("users-file"))
	if err != nil {
		return err
	}

	var specs []sweep.RunSpec
	for _, folds := range foldGrid {
		for _, epochs := range epochGrid {
			specs = append(specs, sweep.RunSpec{
				Name:             fmt.Sprintf("week_sweep_%03d", len(specs)+1),
				Lang:             lang,
				Seeds:            seeds,
				Folds:            folds,
				Epochs:           epochs,
				Agg:              stage1.AggMean,
				Profiles:         profiles,
				Alphas:           alphas,
				MaxLen:           cctx.Int("max-len"),
				ValFraction:      base.ValFraction,
				BotPostThreshold: base.BotPostThreshold,
				MinSupportGrid:   base.MinSupportGrid,
			})
		}
	}
	logger.Info("sweep grid built", "runs", len(specs), "profiles", profiles, "alphas", alphas)

	runner := &sweep.Runner{
		Logger:       logger,
		Tokenizer:    tok,
		Accounts:     accounts,
		Tweets:       tweets,
		TestFraction: cctx.Float64("test-fraction"),
		SplitSeed:    base.SplitSeed,
	}
	runs, incomplete, err := runner.Execute(ctx, specs)
	if err != nil {
		return err
	}

	outDir := cctx.String("out-dir")
	if err := sweep.WriteArtifacts(outDir, runs, incomplete); err != nil {
		return err
	}
	if best := sweep.SelectBest(runs); best != nil {
		logger.Info("best run",
			"name", best.RunName, "booster", best.BoosterScore, "gain", best.Gain,
			"profile", best.SelectedProfile, "threshold", best.SecondThreshold,
			"seeds", best.OOFSeeds, "folds", best.Folds, "epochs", best.Epochs)
	}
	logger.Info("sweep artifacts written", "dir", outDir, "runs", len(runs), "incomplete", len(incomplete))
	return nil
}

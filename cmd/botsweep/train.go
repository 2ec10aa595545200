package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v2"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/detection"
)

var trainCmd = &cli.Command{
	Name:  "train",
	Usage: "train one language pipeline and write its model artifacts",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "lang",
			Usage:   "pipeline language (en or fr)",
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
			Usage:   "tokenizer vocab artifact for this language",
			EnvVars: []string{"BOTSWEEP_VOCAB_FILE"},
		},
		&cli.StringFlag{
			Name:    "artifacts-dir",
			Value:   "artifacts",
			EnvVars: []string{"BOTSWEEP_ARTIFACTS_DIR"},
		},
		&cli.Int64SliceFlag{
			Name:  "seed",
			Usage: "stage1 ensemble seeds (repeatable)",
		},
		&cli.IntFlag{
			Name:  "folds",
			Usage: "out-of-fold split count",
		},
		&cli.IntFlag{
			Name:  "epochs",
			Usage: "stage1 training epochs",
		},
		&cli.StringFlag{
			Name:  "agg",
			Usage: "ensemble aggregation (mean or vote)",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "stage2 profile (legacy or regularized)",
		},
		&cli.Float64Flag{
			Name:  "alpha",
			Usage: "booster blend weight; 1 disables blending",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "max-len",
			Usage: "token sequence length",
		},
	},
	Action: runTrain,
}

func runTrain(cctx *cli.Context) error {
	ctx := context.Background()
	logger := setupLogger(cctx)
	maybeServeMetrics(cctx, logger)

	lang := cctx.String("lang")
	cfg := detection.DefaultTrainConfig(lang)
	if seeds := cctx.Int64Slice("seed"); len(seeds) > 0 {
		cfg.Seeds = seeds
	}
	if v := cctx.Int("folds"); v > 0 {
		cfg.Folds = v
	}
	if v := cctx.Int("epochs"); v > 0 {
		cfg.Epochs = v
	}
	if v := cctx.String("agg"); v != "" {
		cfg.Agg = v
	}
	if v := cctx.String("profile"); v != "" {
		cfg.Profile = v
	}
	if v := cctx.Int("max-len"); v > 0 {
		cfg.MaxLen = v
	}
	cfg.Alpha = cctx.Float64("alpha")

	tok, err := loadTokenizer(cctx.String("vocab-file"), lang, cfg.MaxLen)
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
	logger.Info("dataset loaded", "tweets", len(tweets), "accounts", len(accounts), "lang", lang)

	ens, booster, report, err := detection.TrainPipeline(ctx, tok, accounts, tweets, cfg, logger)
	if err != nil {
		return err
	}

	dir := cctx.String("artifacts-dir")
	if err := ens.Save(filepath.Join(dir, fmt.Sprintf("stage1.%s.json", lang))); err != nil {
		return err
	}
	if err := booster.Save(filepath.Join(dir, fmt.Sprintf("stage2.%s.json", lang))); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	reportPath := filepath.Join(dir, fmt.Sprintf("train_report.%s.json", lang))
	if err := os.WriteFile(reportPath, raw, 0o644); err != nil {
		return fmt.Errorf("writing train report: %w", err)
	}
	logger.Info("artifacts written", "dir", dir, "report", reportPath)
	return nil
}

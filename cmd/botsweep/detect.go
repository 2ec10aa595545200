package main

import (
	"context"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v2"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/detection"
	"github.com/tanagra/botsweep/scorestore"
	"github.com/tanagra/botsweep/stage1"
	"github.com/tanagra/botsweep/stage2"
	"github.com/tanagra/botsweep/util/cliutil"
)

var detectCmd = &cli.Command{
	Name:  "detect",
	Usage: "score a dataset with trained artifacts and write the detections file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "lang",
			Value:   "en",
			EnvVars: []string{"BOTSWEEP_LANG"},
		},
		&cli.StringFlag{
			Name:    "team",
			Usage:   "team name used in the detections filename",
			Value:   "tanagra",
			EnvVars: []string{"BOTSWEEP_TEAM"},
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
			Name:    "artifacts-dir",
			Value:   "artifacts",
			EnvVars: []string{"BOTSWEEP_ARTIFACTS_DIR"},
		},
		&cli.StringFlag{
			Name:  "out-dir",
			Value: ".",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "optional score store, eg sqlite://data/botsweep/scores.db; empty keeps scores in memory",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "parallel stage1 scoring workers",
			Value: 4,
		},
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "override the tuned decision threshold",
		},
		&cli.IntFlag{
			Name:  "min-support",
			Usage: "override the tuned support guardrail",
			Value: -1,
		},
	},
	Action: runDetect,
}

func runDetect(cctx *cli.Context) error {
	ctx := context.Background()
	logger := setupLogger(cctx)
	maybeServeMetrics(cctx, logger)

	lang := cctx.String("lang")
	dir := cctx.String("artifacts-dir")

	ens, err := stage1.LoadEnsemble(filepath.Join(dir, fmt.Sprintf("stage1.%s.json", lang)))
	if err != nil {
		return err
	}
	booster, err := stage2.LoadBooster(filepath.Join(dir, fmt.Sprintf("stage2.%s.json", lang)))
	if err != nil {
		return err
	}
	if booster.Policy.Lang != lang {
		return fmt.Errorf("stage2 artifact is tuned for %q, pipeline is %q", booster.Policy.Lang, lang)
	}
	if v := cctx.Float64("threshold"); v > 0 {
		booster.Policy.Threshold = v
	}
	if v := cctx.Int("min-support"); v >= 0 {
		booster.Policy.MinSupport = v
	}

	maxLen := ens.Models[0].Cfg.MaxLen
	tok, err := loadTokenizer(cctx.String("vocab-file"), lang, maxLen)
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

	var scores scorestore.ScoreStore = scorestore.NewMemScoreStore()
	if dburl := cctx.String("database-url"); dburl != "" {
		db, err := cliutil.SetupDatabase(dburl, 40)
		if err != nil {
			return err
		}
		scores, err = scorestore.NewGormScoreStore(db)
		if err != nil {
			return err
		}
	}

	eng := &detection.Engine{
		Logger:    logger,
		Tokenizer: tok,
		Stage1:    ens,
		Stage2:    booster,
		Scores:    scores,
		Workers:   cctx.Int("workers"),
	}
	if err := eng.ScorePosts(ctx, tweets); err != nil {
		return err
	}
	decisions, err := eng.DetectAccounts(ctx, accounts, detection.RefTime(tweets))
	if err != nil {
		return err
	}

	flagged := detection.Flagged(decisions)
	outPath := filepath.Join(cctx.String("out-dir"), dataset.DetectionsFilename(cctx.String("team"), lang))
	if err := dataset.WriteDetections(outPath, accounts, flagged); err != nil {
		return err
	}
	logger.Info("detections written", "path", outPath, "flagged", len(flagged), "accounts", len(accounts))
	return nil
}

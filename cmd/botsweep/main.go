// botsweep is the two-stage bot-account detection pipeline: a recurrent
// per-post classifier feeding a gradient-boosted account classifier, with
// independently tuned English and French configurations.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/tanagra/botsweep/tokenizer"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "botsweep",
		Usage:   "two-stage bot account detection pipeline",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"BOTSWEEP_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to serve prometheus metrics on during long runs",
			EnvVars: []string{"BOTSWEEP_METRICS_LISTEN"},
		},
	}

	app.Commands = []*cli.Command{
		trainCmd,
		detectCmd,
		sweepCmd,
	}

	return app.Run(args)
}

func setupLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// maybeServeMetrics starts a prometheus endpoint if --metrics-listen is set.
// Training and sweep runs can be long; this is the only service surface the
// batch pipeline has.
func maybeServeMetrics(cctx *cli.Context, logger *slog.Logger) {
	addr := cctx.String("metrics-listen")
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener failed", "err", err)
		}
	}()
}

// loadTokenizer reads the language vocab artifact and refuses a vocab/lang
// mismatch; the two language pipelines are not interchangeable.
func loadTokenizer(path, lang string, maxLen int) (*tokenizer.Tokenizer, error) {
	tok, err := tokenizer.LoadVocab(path, maxLen)
	if err != nil {
		return nil, err
	}
	if tok.Lang() != lang {
		return nil, fmt.Errorf("tokenizer vocab is for %q, pipeline is %q", tok.Lang(), lang)
	}
	return tok, nil
}

package sweep

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Artifact filenames under the sweep output directory.
const (
	ParsedCSVName      = "booster_sweep_parsed.csv"
	BestJSONName       = "booster_sweep_best.json"
	IncompleteJSONName = "booster_sweep_incomplete.json"
)

// SelectBest picks the winning run: highest booster score, then highest gain
// over the ensemble baseline, then fewest false positives. Returns nil for an
// empty slice.
func SelectBest(runs []Run) *Run {
	if len(runs) == 0 {
		return nil
	}
	best := &runs[0]
	for i := 1; i < len(runs); i++ {
		r := &runs[i]
		switch {
		case r.BoosterScore != best.BoosterScore:
			if r.BoosterScore > best.BoosterScore {
				best = r
			}
		case r.Gain != best.Gain:
			if r.Gain > best.Gain {
				best = r
			}
		case r.SecondFP < best.SecondFP:
			best = r
		}
	}
	return best
}

var csvFields = []string{
	"run_index", "run_total", "run_name",
	"booster_score", "booster_max", "ensemble_score", "gain", "duration_s",
	"oof_seeds", "folds", "epochs",
	"ensemble_agg", "ensemble_threshold", "ensemble_tp", "ensemble_fn", "ensemble_fp",
	"profile_mode", "selected_profile", "blend_alpha", "second_threshold",
	"second_tp", "second_fn", "second_fp",
	"seed_score_mean", "seed_score_std",
	"candidates",
}

func (r *Run) csvRecord() ([]string, error) {
	seeds := make([]string, len(r.OOFSeeds))
	for i, s := range r.OOFSeeds {
		seeds[i] = strconv.FormatInt(s, 10)
	}
	cands, err := json.Marshal(r.Candidates)
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.Itoa(r.RunIndex), strconv.Itoa(r.RunTotal), r.RunName,
		strconv.Itoa(r.BoosterScore), strconv.Itoa(r.BoosterMax),
		strconv.Itoa(r.EnsembleScore), strconv.Itoa(r.Gain),
		strconv.FormatFloat(r.DurationS, 'f', 3, 64),
		strings.Join(seeds, ","), strconv.Itoa(r.Folds), strconv.Itoa(r.Epochs),
		r.EnsembleAgg, strconv.FormatFloat(r.EnsembleThreshold, 'f', -1, 64),
		strconv.Itoa(r.EnsembleTP), strconv.Itoa(r.EnsembleFN), strconv.Itoa(r.EnsembleFP),
		r.ProfileMode, r.SelectedProfile,
		strconv.FormatFloat(r.BlendAlpha, 'f', -1, 64),
		strconv.FormatFloat(r.SecondThreshold, 'f', -1, 64),
		strconv.Itoa(r.SecondTP), strconv.Itoa(r.SecondFN), strconv.Itoa(r.SecondFP),
		strconv.FormatFloat(r.SeedScoreMean, 'f', -1, 64),
		strconv.FormatFloat(r.SeedScoreStd, 'f', -1, 64),
		string(cands),
	}, nil
}

// WriteArtifacts writes the parsed-runs CSV, the best-run JSON, and (when any
// runs failed) the incomplete-runs JSON under dir.
func WriteArtifacts(dir string, runs []Run, incomplete []IncompleteRun) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifacts directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, ParsedCSVName))
	if err != nil {
		return fmt.Errorf("creating sweep csv: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvFields); err != nil {
		return err
	}
	for i := range runs {
		rec, err := runs[i].csvRecord()
		if err != nil {
			return fmt.Errorf("encoding run %s: %w", runs[i].RunName, err)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing sweep csv: %w", err)
	}

	if best := SelectBest(runs); best != nil {
		raw, err := json.MarshalIndent(best, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, BestJSONName), raw, 0o644); err != nil {
			return fmt.Errorf("writing best-run json: %w", err)
		}
	}

	if len(incomplete) > 0 {
		raw, err := json.MarshalIndent(incomplete, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, IncompleteJSONName), raw, 0o644); err != nil {
			return fmt.Errorf("writing incomplete-run json: %w", err)
		}
	}
	return nil
}

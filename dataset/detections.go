package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DetectionsFilename builds the submission filename for a team and language
// pipeline, e.g. "tanagra.detections.en.txt".
func DetectionsFilename(team, lang string) string {
	return fmt.Sprintf("%s.detections.%s.txt", team, lang)
}

// WriteDetections writes flagged author ids to path, one per line, no header.
//
// Invariants enforced here rather than trusted from upstream: no duplicate
// lines, and every id must belong to an account in the users file. Ids are
// sorted so repeated runs produce identical files. An empty flag set writes an
// empty file.
func WriteDetections(path string, accounts []Account, flagged []string) error {
	known := make(map[string]bool, len(accounts))
	for i := range accounts {
		known[accounts[i].AuthorID] = true
	}

	seen := make(map[string]bool, len(flagged))
	lines := make([]string, 0, len(flagged))
	for _, id := range flagged {
		if seen[id] {
			continue
		}
		if !known[id] {
			return fmt.Errorf("flagged author %q not present in users file", id)
		}
		seen[id] = true
		lines = append(lines, id)
	}
	sort.Strings(lines)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing detections file: %w", err)
	}
	return nil
}

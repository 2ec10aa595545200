// Package tokenizer wraps a pretrained subword vocabulary as a fixed-length
// encoder for the per-post classifier.
//
// Each language pipeline ships its own vocab artifact (a Twitter-domain
// vocabulary for English, a French-targeted one for French); the two are not
// interchangeable and the pipeline refuses to mix them. Encoding is
// deterministic for a given text and vocab.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Special tokens every vocab artifact must define.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"

	// continuation prefix for non-initial word pieces
	piecePrefix = "##"

	// longest word considered for subword splitting; longer words map to [UNK]
	maxWordChars = 64

	encodeCacheSize = 16384
)

// Encoding is one post's fixed-length token-id sequence plus attention mask.
// Both slices have length equal to the tokenizer's MaxLen. Mask is 1 for real
// tokens (including [CLS]/[SEP]) and 0 for padding.
type Encoding struct {
	IDs  []int
	Mask []int
}

type vocabFile struct {
	Lang   string   `json:"lang"`
	Tokens []string `json:"tokens"`
}

// Tokenizer encodes cleaned text into id sequences using greedy
// longest-match-first subword splitting.
type Tokenizer struct {
	lang   string
	maxLen int

	ids    map[string]int
	tokens []string

	padID int
	unkID int
	clsID int
	sepID int

	cache *lru.Cache[string, Encoding]
}

// New builds a tokenizer from an in-memory vocab. Token ids are assigned by
// position in tokens. The four special tokens must be present.
func New(lang string, tokens []string, maxLen int) (*Tokenizer, error) {
	if maxLen < 4 {
		return nil, fmt.Errorf("max sequence length too small: %d", maxLen)
	}
	t := &Tokenizer{
		lang:   lang,
		maxLen: maxLen,
		ids:    make(map[string]int, len(tokens)),
		tokens: tokens,
		padID:  -1,
		unkID:  -1,
		clsID:  -1,
		sepID:  -1,
	}
	for i, tok := range tokens {
		if _, dup := t.ids[tok]; dup {
			return nil, fmt.Errorf("duplicate token in vocab: %q", tok)
		}
		t.ids[tok] = i
		switch tok {
		case PadToken:
			t.padID = i
		case UnkToken:
			t.unkID = i
		case ClsToken:
			t.clsID = i
		case SepToken:
			t.sepID = i
		}
	}
	if t.padID < 0 || t.unkID < 0 || t.clsID < 0 || t.sepID < 0 {
		return nil, fmt.Errorf("vocab for %q is missing special tokens", lang)
	}
	cache, err := lru.New[string, Encoding](encodeCacheSize)
	if err != nil {
		return nil, err
	}
	t.cache = cache
	return t, nil
}

// LoadVocab reads a vocab artifact from disk. A missing or malformed artifact
// is fatal for the pipeline that needs it.
func LoadVocab(path string, maxLen int) (*Tokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tokenizer vocab: %w", err)
	}
	var vf vocabFile
	if err := json.Unmarshal(raw, &vf); err != nil {
		return nil, fmt.Errorf("parsing tokenizer vocab %s: %w", path, err)
	}
	if vf.Lang == "" {
		return nil, fmt.Errorf("tokenizer vocab %s has no lang", path)
	}
	return New(vf.Lang, vf.Tokens, maxLen)
}

// Lang reports which language pipeline this vocab was built for.
func (t *Tokenizer) Lang() string { return t.lang }

// MaxLen reports the fixed sequence length of every Encoding.
func (t *Tokenizer) MaxLen() int { return t.maxLen }

// VocabSize reports the number of token ids, which bounds every id in an
// Encoding.
func (t *Tokenizer) VocabSize() int { return len(t.tokens) }

// Encode converts cleaned text to a fixed-length Encoding. The result is
// cached; callers must not mutate the returned slices.
func (t *Tokenizer) Encode(text string) Encoding {
	if enc, ok := t.cache.Get(text); ok {
		return enc
	}

	ids := make([]int, 0, t.maxLen)
	ids = append(ids, t.clsID)
	for _, word := range strings.Fields(text) {
		for _, id := range t.splitWord(word) {
			ids = append(ids, id)
			if len(ids) == t.maxLen-1 {
				break
			}
		}
		if len(ids) == t.maxLen-1 {
			break
		}
	}
	ids = append(ids, t.sepID)

	enc := Encoding{
		IDs:  make([]int, t.maxLen),
		Mask: make([]int, t.maxLen),
	}
	for i := range enc.IDs {
		if i < len(ids) {
			enc.IDs[i] = ids[i]
			enc.Mask[i] = 1
		} else {
			enc.IDs[i] = t.padID
		}
	}
	t.cache.Add(text, enc)
	return enc
}

// splitWord runs greedy longest-match-first subword splitting. If no prefix of
// the word is in the vocab the whole word becomes [UNK].
func (t *Tokenizer) splitWord(word string) []int {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int{t.unkID}
	}
	var out []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		id := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = piecePrefix + piece
			}
			if v, ok := t.ids[piece]; ok {
				id = v
				break
			}
			end--
		}
		if id < 0 {
			return []int{t.unkID}
		}
		out = append(out, id)
		start = end
	}
	return out
}

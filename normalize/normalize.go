// Package normalize cleans raw post text before tokenization and feature
// extraction.
//
// The cleaning is intentionally lossy: URLs and @-mentions carry almost no
// lexical signal for the per-post classifier and are replaced with stable
// placeholder tokens, while counts of the removed entities are surfaced
// separately for the metadata featurizer.
package normalize

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder tokens substituted for stripped entities. Kept lowercase so they
// survive case folding unchanged.
const (
	URLToken     = "xurl"
	MentionToken = "xmention"
)

var (
	// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
	urlRegex     = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)
	schemeRegex  = regexp.MustCompile(`(?:https?|ftp):\/\/\S+`)
	mentionRegex = regexp.MustCompile(`@[A-Za-z0-9_]{1,15}`)
	hashtagRegex = regexp.MustCompile(`#[\pL\pN_]+`)
	repeatRegex  = regexp.MustCompile(`(.)\1{3,}`)

	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
)

// Cleaned is the result of normalizing one post's text.
type Cleaned struct {
	// Text is the normalized string, suitable for the subword tokenizer.
	Text string
	// Tokens is Text split on whitespace.
	Tokens []string

	URLs     int
	Mentions int
	Hashtags int
}

// ExtractURLs returns all URL-shaped substrings of raw text.
func ExtractURLs(raw string) []string {
	return urlRegex.FindAllString(raw, -1)
}

// ExtractMentions returns all @-mention substrings of raw text.
func ExtractMentions(raw string) []string {
	return mentionRegex.FindAllString(raw, -1)
}

// ExtractHashtags returns all #hashtag substrings of raw text.
func ExtractHashtags(raw string) []string {
	return hashtagRegex.FindAllString(raw, -1)
}

// Clean normalizes raw post text: entity stripping, unicode NFD fold with
// combining-mark removal, case folding, punctuation removal, whitespace
// collapse. Empty or whitespace-only input yields a zero-value Cleaned, never
// an error.
func Clean(raw string) Cleaned {
	out := Cleaned{}
	if strings.TrimSpace(raw) == "" {
		return out
	}

	// counts include bare domains; only scheme'd URLs get the placeholder,
	// bare domains keep their lexical content for the tokenizer
	out.URLs = len(ExtractURLs(raw))
	out.Mentions = len(ExtractMentions(raw))
	out.Hashtags = len(ExtractHashtags(raw))

	text := schemeRegex.ReplaceAllString(raw, " "+URLToken+" ")
	text = mentionRegex.ReplaceAllString(text, " "+MentionToken+" ")
	// keep hashtag words, drop the marker
	text = strings.ReplaceAll(text, "#", " ")
	// clamp character floods ("loooooool" style) to three repeats
	text = repeatRegex.ReplaceAllString(text, "$1$1$1")

	// this transform chain needs to be re-built per call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	text = strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(normFunc, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = text
	}

	out.Tokens = strings.Fields(folded)
	out.Text = strings.Join(out.Tokens, " ")
	return out
}

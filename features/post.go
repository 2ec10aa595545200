// Package features builds the numeric feature vectors for both model stages:
// lightweight per-post metadata features for the recurrent classifier, and the
// per-account vector for the booster.
package features

import (
	"strings"
	"unicode"

	"github.com/spaolacci/murmur3"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/normalize"
)

// sourceBuckets is the number of hashed buckets for the tweet source string.
// Sources are a long tail of client names; hashing keeps the dimension fixed
// without a fitted vocabulary.
const sourceBuckets = 8

// PostDim is the length of every per-post feature vector.
const PostDim = 11 + sourceBuckets

// PostVector extracts per-post metadata features, independent of token
// content. All features are scaled to roughly [0,1] so they can be
// concatenated with pooled hidden states without per-feature normalization
// state.
func PostVector(tw dataset.Tweet, cl normalize.Cleaned) []float32 {
	v := make([]float32, PostDim)

	runes := []rune(tw.Text)
	v[0] = clamp01(float32(len(runes)) / 280)
	v[1] = clamp01(float32(len(cl.Tokens)) / 64)
	v[2] = clamp01(float32(cl.URLs) / 4)
	v[3] = clamp01(float32(cl.Mentions) / 8)
	v[4] = clamp01(float32(cl.Hashtags) / 8)
	v[5] = capsRatio(runes)
	v[6] = digitRatio(runes)

	hour := tw.CreatedAt.UTC().Hour()
	v[7] = float32(hour) / 23
	if tw.IsReply {
		v[8] = 1
	}
	if tw.IsRetweet {
		v[9] = 1
	}
	if tw.Text == "" || len(cl.Tokens) == 0 {
		// zero-signal post marker; empty text is valid input
		v[10] = 1
	}

	bucket := murmur3.Sum64([]byte(strings.ToLower(tw.Source))) % sourceBuckets
	v[11+int(bucket)] = 1
	return v
}

func clamp01(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < 0 {
		return 0
	}
	return x
}

func capsRatio(runes []rune) float32 {
	letters, upper := 0, 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float32(upper) / float32(letters)
}

func digitRatio(runes []rune) float32 {
	if len(runes) == 0 {
		return 0
	}
	digits := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float32(digits) / float32(len(runes))
}

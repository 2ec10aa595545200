// Package dataset reads the competition input files and writes the detections
// output file.
//
// The two JSON files are an external, versioned contract: unknown fields are
// ignored, malformed JSON is fatal, and empty arrays are valid inputs that
// flow through to an empty detections file.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Tweet is one post record from dataset.tweets.json. Immutable once loaded.
type Tweet struct {
	TweetID   string    `json:"tweet_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Lang      string    `json:"lang"`
	IsReply   bool      `json:"is_reply"`
	IsRetweet bool      `json:"is_retweet"`
}

// Account is one user record from dataset.users.json. Label is only present in
// training data; empty means unknown.
type Account struct {
	AuthorID       string    `json:"author_id"`
	Username       string    `json:"username"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	TweetCount     int       `json:"tweet_count"`
	DefaultProfile bool      `json:"default_profile"`
	DefaultAvatar  bool      `json:"default_avatar"`
	Verified       bool      `json:"verified"`
	Label          string    `json:"label,omitempty"`
}

// Account labels as they appear in training data.
const (
	LabelBot   = "bot"
	LabelHuman = "human"
)

// IsBot reports whether the training label marks this account as a bot.
func (a *Account) IsBot() bool { return a.Label == LabelBot }

// LoadTweets parses dataset.tweets.json. A missing or malformed file is fatal;
// an empty array is not.
func LoadTweets(path string) ([]Tweet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tweets file: %w", err)
	}
	var tweets []Tweet
	if err := json.Unmarshal(raw, &tweets); err != nil {
		return nil, fmt.Errorf("parsing tweets file %s: %w", path, err)
	}
	return tweets, nil
}

// LoadAccounts parses dataset.users.json.
func LoadAccounts(path string) ([]Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var accounts []Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}
	return accounts, nil
}

// GroupByAccount indexes tweets by author. Tweets whose author_id is missing
// from accounts are dropped with no error; the contract only requires output
// rows for known accounts.
func GroupByAccount(accounts []Account, tweets []Tweet) map[string][]Tweet {
	known := make(map[string]bool, len(accounts))
	for i := range accounts {
		known[accounts[i].AuthorID] = true
	}
	out := make(map[string][]Tweet, len(accounts))
	for _, tw := range tweets {
		if !known[tw.AuthorID] {
			continue
		}
		out[tw.AuthorID] = append(out[tw.AuthorID], tw)
	}
	return out
}

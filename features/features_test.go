package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tanagra/botsweep/aggregate"
	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/normalize"
)

func TestPostVectorShape(t *testing.T) {
	assert := assert.New(t)

	tw := dataset.Tweet{
		Text:      "WIN a FREE iphone https://spam.example/x @you #now",
		CreatedAt: time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		Source:    "automation-suite",
		IsRetweet: true,
	}
	v := PostVector(tw, normalize.Clean(tw.Text))
	assert.Len(v, PostDim)
	for i, f := range v {
		assert.GreaterOrEqual(f, float32(0), "feature %d", i)
		assert.LessOrEqual(f, float32(1), "feature %d", i)
	}
	assert.Equal(float32(1), v[9]) // retweet flag
	assert.Equal(float32(0), v[8])
}

func TestPostVectorEmptyText(t *testing.T) {
	assert := assert.New(t)

	tw := dataset.Tweet{Text: "", CreatedAt: time.Now()}
	v := PostVector(tw, normalize.Clean(tw.Text))
	assert.Len(v, PostDim)
	assert.Equal(float32(1), v[10]) // zero-signal marker
}

func TestPostVectorSourceBucketStable(t *testing.T) {
	assert := assert.New(t)

	tw := dataset.Tweet{Text: "hi", Source: "phone-client", CreatedAt: time.Now()}
	a := PostVector(tw, normalize.Clean(tw.Text))
	b := PostVector(tw, normalize.Clean(tw.Text))
	assert.Equal(a, b)
}

func TestAccountVectorLayout(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(len(AccountFeatureNames()), AccountDim())

	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	acct := dataset.Account{
		AuthorID:       "u1",
		CreatedAt:      ref.AddDate(0, 0, -10),
		FollowersCount: 10,
		FollowingCount: 99,
		TweetCount:     100,
		DefaultProfile: true,
	}
	sum := aggregate.Summarize([]float64{0.9, 0.95, 0.2}, aggregate.DefaultBotPostThreshold)
	v := AccountVector(sum, acct, ref)
	assert.Len(v, AccountDim())

	assert.InDelta(0.683, v[0], 0.001) // score_mean
	assert.Equal(0.95, v[1])           // score_max
	assert.Equal(0.1, v[9])            // follower_ratio
	assert.Equal(1.0, v[12])           // default_profile
}

func TestAccountVectorZeroPosts(t *testing.T) {
	assert := assert.New(t)

	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	acct := dataset.Account{AuthorID: "u3", CreatedAt: ref.AddDate(-1, 0, 0)}
	v := AccountVector(aggregate.Default(), acct, ref)
	assert.Len(v, AccountDim())
	for i := 0; i < 7; i++ {
		assert.Equal(0.0, v[i], "aggregate block feature %d", i)
	}
	// metadata block still populated
	assert.Greater(v[10], 0.0) // account age
}

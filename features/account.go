package features

import (
	"math"
	"time"

	"github.com/tanagra/botsweep/aggregate"
	"github.com/tanagra/botsweep/dataset"
)

// accountFeatureNames is the stage-2 feature layout. Order is part of the
// booster model artifact contract: a booster trained against one layout must
// not be applied to another.
var accountFeatureNames = []string{
	"score_mean",
	"score_max",
	"score_min",
	"score_std",
	"score_share_above",
	"bot_post_support_log",
	"post_count_log",
	"followers_log",
	"following_log",
	"follower_ratio",
	"account_age_days_log",
	"tweets_per_day_log",
	"default_profile",
	"default_avatar",
	"verified",
	"description_len",
}

// AccountFeatureNames returns the stage-2 feature layout, index-aligned with
// AccountVector output.
func AccountFeatureNames() []string {
	out := make([]string, len(accountFeatureNames))
	copy(out, accountFeatureNames)
	return out
}

// AccountDim is the length of every account feature vector.
func AccountDim() int { return len(accountFeatureNames) }

// AccountVector builds the stage-2 feature vector for one account from its
// aggregated per-post scores plus raw account metadata. A zero-post account
// gets the aggregate default block and still carries its metadata block.
func AccountVector(sum aggregate.Summary, acct dataset.Account, ref time.Time) []float64 {
	ageDays := ref.Sub(acct.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	tweetsPerDay := 0.0
	if ageDays > 0 {
		tweetsPerDay = float64(acct.TweetCount) / ageDays
	}

	return []float64{
		sum.Mean,
		sum.Max,
		sum.Min,
		sum.Std,
		sum.ShareAbove,
		math.Log1p(float64(sum.Support)),
		math.Log1p(float64(sum.Count)),
		math.Log1p(float64(acct.FollowersCount)),
		math.Log1p(float64(acct.FollowingCount)),
		float64(acct.FollowersCount) / float64(acct.FollowingCount+1),
		math.Log1p(ageDays),
		math.Log1p(tweetsPerDay),
		boolFeature(acct.DefaultProfile),
		boolFeature(acct.DefaultAvatar),
		boolFeature(acct.Verified),
		math.Min(float64(len([]rune(acct.Description)))/160, 1),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsScored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "botsweep_posts_scored",
	Help: "Number of posts scored by stage1",
})

var accountsScored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "botsweep_accounts_scored",
	Help: "Number of accounts run through the decision layer",
})

var decisionsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "botsweep_decisions",
	Help: "Number of final decisions, by pipeline and label",
}, []string{"lang", "label"})

var scoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "botsweep_score_pass_duration_sec",
	Help: "Duration of full stage1 scoring passes",
})

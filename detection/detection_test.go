package detection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanagra/botsweep/dataset"
	"github.com/tanagra/botsweep/features"
	"github.com/tanagra/botsweep/scorestore"
	"github.com/tanagra/botsweep/stage1"
	"github.com/tanagra/botsweep/stage2"
	"github.com/tanagra/botsweep/tokenizer"
)

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	vocab := []string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken,
		"free", "win", "now", "crypto", "deal", "click",
		"walk", "morning", "coffee", "garden", "lovely", "today",
		"xurl", "xmention",
	}
	tok, err := tokenizer.New("en", vocab, 16)
	require.NoError(t, err)
	return tok
}

// syntheticDataset builds a small separable corpus: spammy bot accounts and
// low-key human accounts.
func syntheticDataset(bots, humans, tweetsEach int) ([]dataset.Account, []dataset.Tweet) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var accounts []dataset.Account
	var tweets []dataset.Tweet

	add := func(id string, bot bool, n int) {
		label := dataset.LabelHuman
		created := base.AddDate(-2, 0, 0)
		followers, following := 400, 300
		if bot {
			label = dataset.LabelBot
			created = base.AddDate(0, 0, -14)
			followers, following = 10, 4000
		}
		accounts = append(accounts, dataset.Account{
			AuthorID:       id,
			Username:       id,
			CreatedAt:      created,
			FollowersCount: followers,
			FollowingCount: following,
			TweetCount:     n * 100,
			DefaultProfile: bot,
			Label:          label,
		})
		for i := 0; i < n; i++ {
			text := "lovely walk in the garden this morning"
			source := "phone-client"
			if bot {
				text = "WIN free crypto deal click now https://spam.example/x #free #win"
				source = "automation-suite"
			}
			tweets = append(tweets, dataset.Tweet{
				TweetID:   fmt.Sprintf("%s-t%d", id, i),
				AuthorID:  id,
				Text:      text,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
				Source:    source,
			})
		}
	}
	for i := 0; i < bots; i++ {
		add(fmt.Sprintf("bot%d", i), true, tweetsEach)
	}
	for i := 0; i < humans; i++ {
		add(fmt.Sprintf("hum%d", i), false, tweetsEach)
	}
	return accounts, tweets
}

func testTrainConfig() TrainConfig {
	cfg := DefaultTrainConfig("en")
	cfg.Seeds = []int64{1}
	cfg.Folds = 2
	cfg.Epochs = 4
	cfg.MaxLen = 16
	cfg.ValFraction = 0.25
	return cfg
}

func TestSplitFoldsPartition(t *testing.T) {
	assert := assert.New(t)

	accounts, _ := syntheticDataset(6, 10, 1)
	folds := splitFolds(accounts, 4, 42)
	assert.Len(folds, 4)

	seen := make(map[string]int)
	for _, fold := range folds {
		assert.NotEmpty(fold)
		for _, a := range fold {
			seen[a.AuthorID]++
		}
	}
	assert.Len(seen, len(accounts))
	for id, n := range seen {
		assert.Equal(1, n, "account %s in %d folds", id, n)
	}
}

func TestFoldTrainingExcludesHeldOutAccounts(t *testing.T) {
	assert := assert.New(t)

	// one unique vocab word per account, so a held-out account's posts are
	// identifiable in any training set by their token id
	const n = 8
	vocab := []string{
		tokenizer.PadToken, tokenizer.UnkToken, tokenizer.ClsToken, tokenizer.SepToken,
	}
	var accounts []dataset.Account
	grouped := make(map[string][]dataset.Tweet)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("acct%d", i)
		word := fmt.Sprintf("signature%d", i)
		vocab = append(vocab, word)
		label := dataset.LabelHuman
		if i%2 == 0 {
			label = dataset.LabelBot
		}
		accounts = append(accounts, dataset.Account{AuthorID: id, Label: label})
		grouped[id] = []dataset.Tweet{{TweetID: id + "-t0", AuthorID: id, Text: word}}
	}
	tok, err := tokenizer.New("en", vocab, 8)
	require.NoError(t, err)

	wordID := func(i int) int {
		// [CLS] word [SEP] pad...
		return tok.Encode(fmt.Sprintf("signature%d", i)).IDs[1]
	}
	acctIndex := make(map[string]int, n)
	for i, a := range accounts {
		acctIndex[a.AuthorID] = i
	}

	folds := splitFolds(accounts, 4, 11)
	total := 0
	for fi, fold := range folds {
		held := make(map[int]bool, len(fold))
		for _, a := range fold {
			held[wordID(acctIndex[a.AuthorID])] = true
		}

		examples := foldExamples(tok, folds, fi, grouped)
		assert.Len(examples, n-len(fold))
		for _, ex := range examples {
			assert.False(held[ex.IDs[1]], "fold %d trains on a held-out account's post", fi)
		}
		total += len(fold)
	}
	assert.Equal(n, total)
}

func TestStratifiedSplit(t *testing.T) {
	assert := assert.New(t)

	accounts, _ := syntheticDataset(8, 12, 1)
	train, val := StratifiedSplit(accounts, 0.25, 7)
	assert.Len(train, 15)
	assert.Len(val, 5)

	valBots := 0
	for _, a := range val {
		if a.IsBot() {
			valBots++
		}
	}
	assert.Equal(2, valBots)
}

func TestTrainPipelineAndDetect(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	tok := testTokenizer(t)
	accounts, tweets := syntheticDataset(8, 8, 4)

	ens, booster, report, err := TrainPipeline(ctx, tok, accounts, tweets, testTrainConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, ens)
	require.NotNil(t, booster)
	require.NoError(t, booster.Policy.Validate())
	assert.Equal("en", report.Lang)
	assert.Equal(2, report.Folds)

	// run inference over the same dump plus one unlabeled zero-post account
	all := append(accounts, dataset.Account{AuthorID: "fresh", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	eng := &Engine{
		Tokenizer: tok,
		Stage1:    ens,
		Stage2:    booster,
		Scores:    scorestore.NewMemScoreStore(),
		Workers:   4,
	}
	require.NoError(t, eng.ScorePosts(ctx, tweets))

	count, err := eng.Scores.Count(ctx)
	require.NoError(t, err)
	assert.Equal(int64(len(tweets)), count)

	decisions, err := eng.DetectAccounts(ctx, all, RefTime(tweets))
	require.NoError(t, err)
	require.Len(t, decisions, len(all))

	seen := make(map[string]bool)
	for _, d := range decisions {
		assert.False(seen[d.AuthorID], "duplicate decision for %s", d.AuthorID)
		seen[d.AuthorID] = true
		assert.GreaterOrEqual(d.Probability, 0.0)
		assert.LessOrEqual(d.Probability, 1.0)
	}

	known := make(map[string]bool)
	for _, a := range all {
		known[a.AuthorID] = true
	}
	for _, id := range Flagged(decisions) {
		assert.True(known[id])
	}
}

func TestScorePostsResumes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	tok := testTokenizer(t)
	accounts, tweets := syntheticDataset(2, 2, 3)
	_ = accounts

	cfg := stage1.DefaultConfig(tok.VocabSize(), features.PostDim, 16)
	cfg.Epochs = 1
	m, err := stage1.NewModel(cfg)
	require.NoError(t, err)
	eng := &Engine{
		Tokenizer: tok,
		Stage1:    &stage1.Ensemble{Agg: stage1.AggMean, Models: []*stage1.Model{m}},
		Scores:    scorestore.NewMemScoreStore(),
	}

	require.NoError(t, eng.ScorePosts(ctx, tweets))
	require.NoError(t, eng.ScorePosts(ctx, tweets))

	count, err := eng.Scores.Count(ctx)
	require.NoError(t, err)
	assert.Equal(int64(len(tweets)), count)
}

func TestDetectAccountsRequiresPolicy(t *testing.T) {
	assert := assert.New(t)

	eng := &Engine{
		Stage2: &stage2.Booster{Trees: []stage2.Tree{}},
		Scores: scorestore.NewMemScoreStore(),
	}
	_, err := eng.DetectAccounts(context.Background(), []dataset.Account{{AuthorID: "u1"}}, time.Now())
	assert.Error(err)
}

func TestRefTime(t *testing.T) {
	assert := assert.New(t)

	newest := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tweets := []dataset.Tweet{
		{CreatedAt: newest.Add(-time.Hour)},
		{CreatedAt: newest},
		{CreatedAt: newest.Add(-48 * time.Hour)},
	}
	assert.Equal(newest, RefTime(tweets))
	assert.False(RefTime(nil).IsZero())
}

package scorestore

import (
	"context"
	"sync"
)

// MemScoreStore is the in-memory ScoreStore used for tests and single-shot
// runs.
type MemScoreStore struct {
	lk       sync.RWMutex
	byAuthor map[string][]PostScore
	byTweet  map[string]int // tweetID -> index into byAuthor slice owner
	owner    map[string]string
}

var _ ScoreStore = (*MemScoreStore)(nil)

func NewMemScoreStore() *MemScoreStore {
	return &MemScoreStore{
		byAuthor: make(map[string][]PostScore),
		byTweet:  make(map[string]int),
		owner:    make(map[string]string),
	}
}

func (s *MemScoreStore) Put(ctx context.Context, scores []PostScore) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	for _, sc := range scores {
		if prevAuthor, ok := s.owner[sc.TweetID]; ok {
			idx := s.byTweet[sc.TweetID]
			if prevAuthor == sc.AuthorID {
				s.byAuthor[prevAuthor][idx] = sc
				continue
			}
			// author reassignment: drop from the old author's slice and
			// re-insert, matching the gorm store's column update
			prev := s.byAuthor[prevAuthor]
			s.byAuthor[prevAuthor] = append(prev[:idx], prev[idx+1:]...)
			for i := idx; i < len(s.byAuthor[prevAuthor]); i++ {
				s.byTweet[s.byAuthor[prevAuthor][i].TweetID] = i
			}
		}
		s.byAuthor[sc.AuthorID] = append(s.byAuthor[sc.AuthorID], sc)
		s.byTweet[sc.TweetID] = len(s.byAuthor[sc.AuthorID]) - 1
		s.owner[sc.TweetID] = sc.AuthorID
	}
	return nil
}

func (s *MemScoreStore) GetAccount(ctx context.Context, authorID string) ([]PostScore, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	v := s.byAuthor[authorID]
	out := make([]PostScore, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemScoreStore) HasTweet(ctx context.Context, tweetID string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	_, ok := s.owner[tweetID]
	return ok, nil
}

func (s *MemScoreStore) Count(ctx context.Context) (int64, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return int64(len(s.owner)), nil
}

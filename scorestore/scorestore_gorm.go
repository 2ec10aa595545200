package scorestore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPostScore is the database row backing one PostScore.
type GormPostScore struct {
	gorm.Model
	TweetID     string `gorm:"uniqueIndex"`
	AuthorID    string `gorm:"index"`
	Probability float64
}

// GormScoreStore is a gorm-backed implementation of the ScoreStore interface,
// for resumable scoring of large dumps.
type GormScoreStore struct {
	db *gorm.DB
}

var _ ScoreStore = (*GormScoreStore)(nil)

func NewGormScoreStore(db *gorm.DB) (*GormScoreStore, error) {
	if err := db.AutoMigrate(&GormPostScore{}); err != nil {
		return nil, fmt.Errorf("migrating score store: %w", err)
	}
	return &GormScoreStore{db: db}, nil
}

func (s *GormScoreStore) Put(ctx context.Context, scores []PostScore) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]GormPostScore, len(scores))
	for i, sc := range scores {
		rows[i] = GormPostScore{
			TweetID:     sc.TweetID,
			AuthorID:    sc.AuthorID,
			Probability: sc.Probability,
		}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tweet_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"author_id", "probability", "updated_at"}),
	}).CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("storing post scores: %w", err)
	}
	return nil
}

func (s *GormScoreStore) GetAccount(ctx context.Context, authorID string) ([]PostScore, error) {
	var rows []GormPostScore
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading scores for account %s: %w", authorID, err)
	}
	out := make([]PostScore, len(rows))
	for i, r := range rows {
		out[i] = PostScore{AuthorID: r.AuthorID, TweetID: r.TweetID, Probability: r.Probability}
	}
	return out, nil
}

func (s *GormScoreStore) HasTweet(ctx context.Context, tweetID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&GormPostScore{}).
		Where("tweet_id = ?", tweetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormScoreStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&GormPostScore{}).Count(&count).Error
	return count, err
}

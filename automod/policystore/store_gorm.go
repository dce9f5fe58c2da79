package policystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatSettings struct {
	ChatID               int64 `gorm:"primaryKey;autoIncrement:false"`
	MessagesPerMinute    uint
	SimilarMessageLimit  uint
	MaxForwardsPerMinute uint
	URLLimit             uint
	Action               string
	MaxWarnings          uint
	AntiSpamEnabled      bool
	AntiFloodEnabled     bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type BlacklistTerm struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    int64  `gorm:"uniqueIndex:idx_blacklist_chat_term"`
	Term      string `gorm:"uniqueIndex:idx_blacklist_chat_term"`
	CreatedAt time.Time
}

func (cs *ChatSettings) Policy() (model.ChatPolicy, error) {
	action, err := model.ParseAction(cs.Action)
	if err != nil {
		return model.ChatPolicy{}, err
	}
	return model.ChatPolicy{
		MessagesPerMinute:    cs.MessagesPerMinute,
		SimilarMessageLimit:  cs.SimilarMessageLimit,
		MaxForwardsPerMinute: cs.MaxForwardsPerMinute,
		URLLimit:             cs.URLLimit,
		Action:               action,
		MaxWarnings:          cs.MaxWarnings,
		AntiSpamEnabled:      cs.AntiSpamEnabled,
		AntiFloodEnabled:     cs.AntiFloodEnabled,
	}, nil
}

// Policy and blacklist storage in a SQL database (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

var (
	_ PolicyStore    = (*GormStore)(nil)
	_ BlacklistStore = (*GormStore)(nil)
	_ PolicyWriter   = (*GormStore)(nil)
)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ChatSettings{}, &BlacklistTerm{}); err != nil {
		return nil, fmt.Errorf("migrating policy tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetPolicy(ctx context.Context, chatID int64) (model.ChatPolicy, error) {
	var row ChatSettings
	err := s.db.WithContext(ctx).First(&row, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultPolicy(), nil
	} else if err != nil {
		return model.ChatPolicy{}, err
	}
	return row.Policy()
}

func (s *GormStore) SavePolicy(ctx context.Context, chatID int64, policy model.ChatPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	row := ChatSettings{
		ChatID:               chatID,
		MessagesPerMinute:    policy.MessagesPerMinute,
		SimilarMessageLimit:  policy.SimilarMessageLimit,
		MaxForwardsPerMinute: policy.MaxForwardsPerMinute,
		URLLimit:             policy.URLLimit,
		Action:               policy.Action.String(),
		MaxWarnings:          policy.MaxWarnings,
		AntiSpamEnabled:      policy.AntiSpamEnabled,
		AntiFloodEnabled:     policy.AntiFloodEnabled,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages_per_minute", "similar_message_limit", "max_forwards_per_minute", "url_limit", "action", "max_warnings", "anti_spam_enabled", "anti_flood_enabled", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) GetBlacklist(ctx context.Context, chatID int64) ([]string, error) {
	var terms []string
	err := s.db.WithContext(ctx).Model(&BlacklistTerm{}).Where("chat_id = ?", chatID).Order("term").Pluck("term", &terms).Error
	if err != nil {
		return nil, err
	}
	return terms, nil
}

func (s *GormStore) AddTerm(ctx context.Context, chatID int64, term string) error {
	row := BlacklistTerm{ChatID: chatID, Term: keyword.FoldText(term)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *GormStore) RemoveTerm(ctx context.Context, chatID int64, term string) error {
	return s.db.WithContext(ctx).Where("chat_id = ? AND term = ?", chatID, keyword.FoldText(term)).Delete(&BlacklistTerm{}).Error
}

package policystore

import (
	"context"
	"slices"

	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemStore struct {
	policies *xsync.MapOf[int64, model.ChatPolicy]
	terms    *xsync.MapOf[int64, []string]
}

var (
	_ PolicyStore    = (*MemStore)(nil)
	_ BlacklistStore = (*MemStore)(nil)
	_ PolicyWriter   = (*MemStore)(nil)
)

func NewMemStore() *MemStore {
	return &MemStore{
		policies: xsync.NewMapOf[int64, model.ChatPolicy](),
		terms:    xsync.NewMapOf[int64, []string](),
	}
}

func (s *MemStore) GetPolicy(ctx context.Context, chatID int64) (model.ChatPolicy, error) {
	p, ok := s.policies.Load(chatID)
	if !ok {
		return model.DefaultPolicy(), nil
	}
	return p, nil
}

func (s *MemStore) SavePolicy(ctx context.Context, chatID int64, policy model.ChatPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policies.Store(chatID, policy)
	return nil
}

func (s *MemStore) GetBlacklist(ctx context.Context, chatID int64) ([]string, error) {
	l, _ := s.terms.Load(chatID)
	return slices.Clone(l), nil
}

func (s *MemStore) AddTerm(ctx context.Context, chatID int64, term string) error {
	term = keyword.FoldText(term)
	s.terms.Compute(chatID, func(old []string, loaded bool) ([]string, bool) {
		if slices.Contains(old, term) {
			return old, false
		}
		return append(slices.Clone(old), term), false
	})
	return nil
}

func (s *MemStore) RemoveTerm(ctx context.Context, chatID int64, term string) error {
	term = keyword.FoldText(term)
	s.terms.Compute(chatID, func(old []string, loaded bool) ([]string, bool) {
		out := slices.DeleteFunc(slices.Clone(old), func(t string) bool { return t == term })
		return out, len(out) == 0
	})
	return nil
}

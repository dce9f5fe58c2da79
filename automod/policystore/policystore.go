package policystore

import (
	"context"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Source of per-chat policy. Chats with no stored settings get model.DefaultPolicy.
type PolicyStore interface {
	GetPolicy(ctx context.Context, chatID int64) (model.ChatPolicy, error)
}

// Source of chat-specific blacklist terms. The global set is merged in by Resolver.
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, chatID int64) ([]string, error)
}

// Administrative mutations, used by the admin API
type PolicyWriter interface {
	SavePolicy(ctx context.Context, chatID int64, policy model.ChatPolicy) error
	AddTerm(ctx context.Context, chatID int64, term string) error
	RemoveTerm(ctx context.Context, chatID int64, term string) error
}

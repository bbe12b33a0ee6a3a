package store

import (
	"context"
	"errors"
	"time"

	"quoteshare/pkg/domain"
)

var (
	// ErrNotFound is returned when a write targets a row that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// Store defines persistence operations for users, quotes, and reactions.
// Every call is scoped to the caller's context; multi-statement writes run
// inside a single transaction.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	HasUsername(ctx context.Context, username string) (bool, error)
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByLogin(ctx context.Context, identifier string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id uint64) (domain.User, bool, error)
	SetLastLogin(ctx context.Context, id uint64, at time.Time) error
	DeleteUser(ctx context.Context, id uint64) error

	// quotes
	CreateQuote(ctx context.Context, q domain.Quote) (domain.Quote, error)
	GetQuote(ctx context.Context, id uint64) (domain.Quote, bool, error)
	UpdateQuote(ctx context.Context, q domain.Quote) error
	DeleteQuote(ctx context.Context, id uint64) error
	ListQuotes(ctx context.Context, filter domain.QuoteFilter, offset, limit int) ([]domain.Quote, error)
	CountQuotes(ctx context.Context, filter domain.QuoteFilter) (int64, error)

	// reactions
	ToggleReaction(ctx context.Context, userID, quoteID uint64, reaction domain.ReactionType) (domain.ReactionState, error)
	ListUserReactions(ctx context.Context, userID uint64, quoteIDs []uint64) ([]domain.Reaction, error)
	ListReactedQuotes(ctx context.Context, userID uint64, reaction domain.ReactionType, offset, limit int) ([]domain.Quote, error)
	CountReactedQuotes(ctx context.Context, userID uint64, reaction domain.ReactionType) (int64, error)
}

// SessionStore maps opaque session tokens to user IDs server-side.
type SessionStore interface {
	NewSession(ctx context.Context, userID uint64) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (uint64, bool, error)
	DeleteSession(ctx context.Context, token string) error
}

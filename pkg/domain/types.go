package domain

import "time"

type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionCollect ReactionType = "collect"
)

// ParseReactionType reports whether raw names a supported reaction.
func ParseReactionType(raw string) (ReactionType, bool) {
	switch ReactionType(raw) {
	case ReactionLike:
		return ReactionLike, true
	case ReactionCollect:
		return ReactionCollect, true
	default:
		return "", false
	}
}

type ReactionState string

const (
	ReactionAdded   ReactionState = "added"
	ReactionRemoved ReactionState = "removed"
)

type User struct {
	ID           uint64     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Quote optional fields are nil when absent, never empty strings.
type Quote struct {
	ID          uint64    `json:"id"`
	OwnerID     uint64    `json:"owner_id"`
	OwnerName   string    `json:"owner_name,omitempty"`
	Content     string    `json:"content"`
	Source      *string   `json:"source"`
	Author      *string   `json:"author"`
	Explanation *string   `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Reaction struct {
	ID        uint64       `json:"id"`
	UserID    uint64       `json:"userId"`
	QuoteID   uint64       `json:"quoteId"`
	Type      ReactionType `json:"reactionType"`
	CreatedAt time.Time    `json:"createdAt"`
}

// QuoteFilter narrows the quote feed. Empty string fields are ignored;
// a zero OwnerID means every owner.
type QuoteFilter struct {
	Keyword string
	Author  string
	Source  string
	OwnerID uint64
}

// QuotePage is one page of a filtered feed. Total counts the whole
// filtered set, not just Items.
type QuotePage struct {
	Items    []Quote `json:"items"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// Pages returns the number of pages needed for Total.
func (p QuotePage) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	Username     string     `gorm:"size:50;uniqueIndex;not null"`
	Email        string     `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string     `gorm:"size:255;not null"`
	IsActive     bool       `gorm:"not null;default:true"`
	CreatedAt    time.Time  `gorm:"not null"`
	LastLoginAt  *time.Time
}

func (UserModel) TableName() string { return "users" }

type QuoteModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerID     uint64    `gorm:"not null;index"`
	Owner       UserModel `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE;"`
	Content     string    `gorm:"type:text;not null"`
	Source      *string   `gorm:"size:255"`
	Author      *string   `gorm:"size:255"`
	Explanation *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (QuoteModel) TableName() string { return "quotes" }

// ReactionModel rows are unique per (user, quote, type); the index is the
// arbiter for concurrent toggles.
type ReactionModel struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	UserID       uint64     `gorm:"not null;uniqueIndex:uq_reaction,priority:1"`
	User         UserModel  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	QuoteID      uint64     `gorm:"not null;uniqueIndex:uq_reaction,priority:2;index"`
	Quote        QuoteModel `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE;"`
	ReactionType string     `gorm:"size:20;not null;uniqueIndex:uq_reaction,priority:3"`
	CreatedAt    time.Time  `gorm:"not null"`
}

func (ReactionModel) TableName() string { return "user_quote_reactions" }

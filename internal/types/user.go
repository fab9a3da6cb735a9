package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	FirstName string    `gorm:"column:first_name" json:"first_name"`
	LastName  string    `gorm:"column:last_name" json:"last_name"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }

// JournalMember backs the journal-scope resolver: one row per
// (journal, user, role) membership.
type JournalMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JournalID uuid.UUID `gorm:"type:uuid;not null;index" json:"journal_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Role      string    `gorm:"column:role;not null" json:"role"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (JournalMember) TableName() string { return "journal_member" }

type Notification struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ManuscriptID uuid.UUID  `gorm:"type:uuid;index" json:"manuscript_id"`
	Kind         string     `gorm:"column:kind;not null;index" json:"kind"`
	Title        string     `gorm:"column:title;not null" json:"title"`
	Content      string     `gorm:"column:content;type:text" json:"content"`
	ActionURL    string     `gorm:"column:action_url" json:"action_url"`
	ReadAt       *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now();index" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }

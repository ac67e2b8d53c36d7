package model

import (
	"time"
	"unicode/utf8"
)

type PresentationStatus string

const (
	StatusPending   PresentationStatus = "pending"
	StatusCompleted PresentationStatus = "completed"
	StatusFailed    PresentationStatus = "failed"
)

// Column limits, in characters.
const (
	MaxTitleLength = 256
	MaxErrorLength = 512
)

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type Presentation struct {
	ID      string             `gorm:"primaryKey;size:36" json:"id"`
	Title   string             `gorm:"size:256" json:"title"`
	Content string             `gorm:"type:longtext" json:"content"`
	Status  PresentationStatus `gorm:"size:16;not null;index" json:"status"`
	Prompt  string             `gorm:"type:text" json:"prompt,omitempty"`
	Error   string             `gorm:"size:512" json:"error,omitempty"`
	// StartedAt is set once by the run that claims a pending presentation.
	StartedAt *time.Time          `json:"started_at,omitempty"`
	Images    []PresentationImage `gorm:"foreignKey:PresentationID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type PresentationImage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PresentationID string    `gorm:"size:36;not null;index" json:"presentation_id"`
	Position       int       `gorm:"not null" json:"position"`
	URL            string    `gorm:"size:1024;not null" json:"url"`
	Description    string    `gorm:"size:512" json:"description"`
	Prompt         string    `gorm:"type:text" json:"prompt"`
	CreatedAt      time.Time `json:"created_at"`
}

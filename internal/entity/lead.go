package entity

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a persisted business together with its lead score.
type Lead struct {
	ID uuid.UUID `json:"id"`
	BusinessRecord
	Score          int            `json:"score"`
	ScoreBreakdown map[string]int `json:"score_breakdown,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

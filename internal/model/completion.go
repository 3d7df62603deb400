package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CompletionStatus string

const (
	StatusInProgress CompletionStatus = "IN_PROGRESS"
	StatusCompleted  CompletionStatus = "COMPLETED"
	StatusApproved   CompletionStatus = "APPROVED"
	StatusRejected   CompletionStatus = "REJECTED"
)

// Completion records one child doing one chore. AmountEarned is copied
// from the chore's reward when the completion is created.
type Completion struct {
	ID           int64            `json:"id"`
	ChildID      int64            `json:"child_id"`
	ChoreID      int64            `json:"chore_id"`
	PicturePath  *string          `json:"picture_path"`
	AmountEarned decimal.Decimal  `json:"amount_earned"`
	Status       CompletionStatus `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	ApprovedAt   *time.Time       `json:"approved_at"`
}

type CompletionDetail struct {
	Completion
	ChoreName string `json:"chore_name"`
	ChildName string `json:"child_name"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserTypeChild  UserType = "CHILD"
	UserTypeParent UserType = "PARENT"
)

type User struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      UserType        `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	HasPIN    bool            `json:"has_pin"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsChild reports whether the user can start chores and earn allowance.
func (u User) IsChild() bool {
	return u.Type == UserTypeChild
}

// ChildBalance is one row of the parent dashboard.
type ChildBalance struct {
	ChildID       int64           `json:"child_id"`
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
	ApprovedTotal decimal.Decimal `json:"approved_total"`
	PendingCount  int             `json:"pending_count"`
}

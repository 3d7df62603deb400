package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Chore struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Reward    decimal.Decimal `json:"reward"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

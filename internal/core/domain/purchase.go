package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Purchase struct {
	ID     int64           `json:"id"`
	UserID string          `json:"userId"`
	ItemID int64           `json:"itemId"`
	Price  decimal.Decimal `json:"price"` // captured at purchase time
	Date   time.Time       `json:"date"`
	Item   *Item           `json:"item,omitempty"`

	// TotalCount is only set by per-item count views.
	TotalCount int64 `json:"totalCount,omitempty"`
}

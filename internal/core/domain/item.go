package domain

import "github.com/shopspring/decimal"

type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Volume    float64         `json:"volume"`
	Alcohol   float64         `json:"alcohol"` // percent
	Barcodes  []string        `json:"barcodes"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Thumbnail string          `json:"thumbnail,omitempty"`
}

// HasBarcode reports whether code is one of the item's barcodes.
func (i *Item) HasBarcode(code string) bool {
	for _, c := range i.Barcodes {
		if c == code {
			return true
		}
	}
	return false
}

// ItemInput is the inbound shape for creating or updating an item.
type ItemInput struct {
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Volume    float64         `json:"volume" validate:"gte=0"`
	Alcohol   float64         `json:"alcohol" validate:"gte=0,lte=100"`
	Barcodes  []string        `json:"barcodes"`
	ImageURL  string          `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Thumbnail string          `json:"thumbnail,omitempty" validate:"omitempty,url"`
}

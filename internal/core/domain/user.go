package domain

import "github.com/shopspring/decimal"

type User struct {
	ID        string          `json:"id" validate:"required,max=64"`
	Name      string          `json:"name" validate:"max=255"`
	Debt      decimal.Decimal `json:"debt"`
	Lobare    bool            `json:"lobare"`
	Admin     bool            `json:"admin"`
	Purchases []*Purchase     `json:"purchases,omitempty"`
}

// DebtDiscrepancy reports a user whose stored debt does not match the sum
// of the prices of their purchases.
type DebtDiscrepancy struct {
	UserID      string          `json:"userId"`
	Debt        decimal.Decimal `json:"debt"`
	LedgerTotal decimal.Decimal `json:"ledgerTotal"`
}

func (d DebtDiscrepancy) Drift() decimal.Decimal {
	return d.Debt.Sub(d.LedgerTotal)
}

package mapper

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
)

// PurchaseItemPrefix prefixes the item columns of a purchase row so that they
// do not collide with purchase or user columns of the same joined row.
const PurchaseItemPrefix = "item_"

var userPlan = Plan[domain.User]{
	String("user_id", func(u *domain.User) *string { return &u.ID }),
	String("name", func(u *domain.User) *string { return &u.Name }),
	Decimal("debt", func(u *domain.User) *decimal.Decimal { return &u.Debt }),
	Bool("lobare", func(u *domain.User) *bool { return &u.Lobare }),
	Bool("admin", func(u *domain.User) *bool { return &u.Admin }),
}

func itemPlan(prefix string) Plan[domain.Item] {
	return Plan[domain.Item]{
		Int64("item_id", func(i *domain.Item) *int64 { return &i.ID }),
		String(prefix+"name", func(i *domain.Item) *string { return &i.Name }),
		Decimal(prefix+"price", func(i *domain.Item) *decimal.Decimal { return &i.Price }),
		Float64(prefix+"volume", func(i *domain.Item) *float64 { return &i.Volume }),
		Float64(prefix+"alcohol", func(i *domain.Item) *float64 { return &i.Alcohol }),
		List(prefix+"codes", func(i *domain.Item) *[]string { return &i.Barcodes }),
		String(prefix+"large", func(i *domain.Item) *string { return &i.ImageURL }),
		String(prefix+"thumbnail", func(i *domain.Item) *string { return &i.Thumbnail }),
	}
}

var (
	itemRowPlan      = itemPlan("")
	purchaseItemPlan = itemPlan(PurchaseItemPrefix)
)

var purchasePlan = Plan[domain.Purchase]{
	Int64("purchase_id", func(p *domain.Purchase) *int64 { return &p.ID }),
	String("user_id", func(p *domain.Purchase) *string { return &p.UserID }),
	Int64("item_id", func(p *domain.Purchase) *int64 { return &p.ItemID }),
	Decimal("price", func(p *domain.Purchase) *decimal.Decimal { return &p.Price }),
	Time("date", func(p *domain.Purchase) *time.Time { return &p.Date }),
	Int64("total", func(p *domain.Purchase) *int64 { return &p.TotalCount }),
	Derive(purchaseItemPlan.Columns(), embedItem),
}

// embedItem builds the purchased item from the item columns of a purchase row.
func embedItem(p *domain.Purchase, row Row) error {
	sub := Subset(row, purchaseItemPlan.Columns())
	if len(sub) <= 1 {
		// only item_id, no joined item columns
		return nil
	}
	item, err := mapItem(sub, purchaseItemPlan)
	if err != nil {
		return fmt.Errorf("embedded item: %w", err)
	}
	p.Item = item
	return nil
}

func mapItem(row Row, plan Plan[domain.Item]) (*domain.Item, error) {
	item, err := Map(row, plan)
	if item != nil && item.Barcodes == nil {
		item.Barcodes = []string{}
	}
	return item, err
}

func UserFromRow(row Row) (*domain.User, error) {
	return Map(Subset(row, userPlan.Columns()), userPlan)
}

func ItemFromRow(row Row) (*domain.Item, error) {
	return mapItem(Subset(row, itemRowPlan.Columns()), itemRowPlan)
}

func PurchaseFromRow(row Row) (*domain.Purchase, error) {
	return Map(Subset(row, purchasePlan.Columns()), purchasePlan)
}

// FeedUserFromRow splits one joined feed row into a user carrying the single
// purchase the row describes.
func FeedUserFromRow(row Row) (*domain.User, error) {
	if row == nil {
		return nil, nil
	}
	user, err := UserFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("feed user: %w", err)
	}
	purchase, err := PurchaseFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("feed purchase: %w", err)
	}
	return AttachPurchases(user, []*domain.Purchase{purchase}), nil
}

// AttachPurchases sets the user's purchases. A nil user stays nil.
func AttachPurchases(user *domain.User, purchases []*domain.Purchase) *domain.User {
	if user == nil {
		return nil
	}
	if purchases == nil {
		purchases = []*domain.Purchase{}
	}
	user.Purchases = purchases
	return user
}

// ItemsFromRows maps item rows, merging rows that share an item id. With
// barcodes aggregated per item this is a plain map; with one row per barcode
// the codes are accumulated in row order.
func ItemsFromRows(rows []Row) ([]*domain.Item, error) {
	items := make([]*domain.Item, 0, len(rows))
	byID := make(map[int64]*domain.Item, len(rows))
	for _, row := range rows {
		item, err := ItemFromRow(row)
		if err != nil {
			return nil, err
		}
		if prev, ok := byID[item.ID]; ok {
			prev.Barcodes = appendDistinct(prev.Barcodes, item.Barcodes...)
			continue
		}
		byID[item.ID] = item
		items = append(items, item)
	}
	return items, nil
}

func UsersFromRows(rows []Row) ([]*domain.User, error) {
	return mapAll(rows, UserFromRow)
}

func PurchasesFromRows(rows []Row) ([]*domain.Purchase, error) {
	return mapAll(rows, PurchaseFromRow)
}

func FeedUsersFromRows(rows []Row) ([]*domain.User, error) {
	return mapAll(rows, FeedUserFromRow)
}

func mapAll[T any](rows []Row, fn func(Row) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var discrepancyPlan = Plan[domain.DebtDiscrepancy]{
	String("user_id", func(d *domain.DebtDiscrepancy) *string { return &d.UserID }),
	Decimal("debt", func(d *domain.DebtDiscrepancy) *decimal.Decimal { return &d.Debt }),
	Decimal("ledger_total", func(d *domain.DebtDiscrepancy) *decimal.Decimal { return &d.LedgerTotal }),
}

func DiscrepanciesFromRows(rows []Row) ([]domain.DebtDiscrepancy, error) {
	out := make([]domain.DebtDiscrepancy, 0, len(rows))
	for _, row := range rows {
		d, err := Map(row, discrepancyPlan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

// memStore is an in-memory port.Store. A transaction holds the store lock
// for its whole duration and restores a snapshot when it fails.
type memStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	items     map[int64]domain.Item
	purchases map[int64]domain.Purchase
	nextID    int64
	clock     time.Time

	failCreatePurchase error
	txCount            int
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]domain.User),
		items:     make(map[int64]domain.Item),
		purchases: make(map[int64]domain.Purchase),
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) Repositories() port.Repositories {
	return m.bind(true)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	users, items, purchases, nextID := m.snapshot()
	if err := fn(ctx, m.bind(false)); err != nil {
		m.users, m.items, m.purchases, m.nextID = users, items, purchases, nextID
		return err
	}
	return nil
}

func (m *memStore) snapshot() (map[string]domain.User, map[int64]domain.Item, map[int64]domain.Purchase, int64) {
	users := make(map[string]domain.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	items := make(map[int64]domain.Item, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	purchases := make(map[int64]domain.Purchase, len(m.purchases))
	for k, v := range m.purchases {
		purchases[k] = v
	}
	return users, items, purchases, m.nextID
}

func (m *memStore) bind(lock bool) port.Repositories {
	r := &memRepos{m: m, lock: lock}
	return port.Repositories{Items: memItems{r}, Purchases: memPurchases{r}, Users: memUsers{r}}
}

func (m *memStore) seedUser(id string, debt string) {
	m.users[id] = domain.User{ID: id, Name: id, Debt: decimal.RequireFromString(debt)}
}

func (m *memStore) seedItem(name, price string) int64 {
	m.nextID++
	m.items[m.nextID] = domain.Item{ID: m.nextID, Name: name, Price: decimal.RequireFromString(price), Barcodes: []string{}}
	return m.nextID
}

func (m *memStore) debt(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Debt
}

func (m *memStore) ledgerTotal(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, p := range m.purchases {
		if p.UserID == id {
			total = total.Add(p.Price)
		}
	}
	return total
}

type memRepos struct {
	m    *memStore
	lock bool
}

func (r *memRepos) do(fn func(m *memStore)) {
	if r.lock {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
	}
	fn(r.m)
}

type memItems struct{ *memRepos }

func (r memItems) GetItem(ctx context.Context, id int64) (item *domain.Item, err error) {
	r.do(func(m *memStore) {
		if v, ok := m.items[id]; ok {
			item = &v
		}
	})
	return item, nil
}

func (r memItems) GetBarcodeItem(ctx context.Context, code string) (item *domain.Item, err error) {
	r.do(func(m *memStore) {
		for _, v := range m.items {
			if v.HasBarcode(code) {
				item = &v
				return
			}
		}
	})
	return item, nil
}

func (r memItems) sorted(desc bool) []*domain.Item {
	var out []*domain.Item
	r.do(func(m *memStore) {
		for _, v := range m.items {
			v := v
			out = append(out, &v)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}

func (r memItems) GetItems(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	return page(r.sorted(false), limit, offset), nil
}

func (r memItems) GetLatestItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return page(r.sorted(true), limit, 0), nil
}

func (r memItems) GetPopularItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return page(r.sorted(false), limit, 0), nil
}

func (r memItems) CreateItem(ctx context.Context, input domain.ItemInput) (id int64, err error) {
	r.do(func(m *memStore) {
		m.nextID++
		id = m.nextID
		m.items[id] = domain.Item{
			ID: id, Name: input.Name, Price: input.Price, Volume: input.Volume,
			Alcohol: input.Alcohol, Barcodes: append([]string{}, input.Barcodes...),
			ImageURL: input.ImageURL, Thumbnail: input.Thumbnail,
		}
	})
	return id, nil
}

func (r memItems) UpdateItem(ctx context.Context, id int64, input domain.ItemInput) (err error) {
	r.do(func(m *memStore) {
		item, ok := m.items[id]
		if !ok {
			err = domain.ErrItemNotFound
			return
		}
		item.Name, item.Price = input.Name, input.Price
		item.Barcodes = append([]string{}, input.Barcodes...)
		m.items[id] = item
	})
	return err
}

func (r memItems) DeleteItem(ctx context.Context, id int64) (err error) {
	r.do(func(m *memStore) {
		if _, ok := m.items[id]; !ok {
			err = domain.ErrItemNotFound
			return
		}
		delete(m.items, id)
	})
	return err
}

type memPurchases struct{ *memRepos }

func (r memPurchases) withItem(m *memStore, p domain.Purchase) *domain.Purchase {
	if item, ok := m.items[p.ItemID]; ok {
		p.Item = &item
	}
	return &p
}

func (r memPurchases) GetPurchase(ctx context.Context, id int64) (p *domain.Purchase, err error) {
	r.do(func(m *memStore) {
		if v, ok := m.purchases[id]; ok {
			p = r.withItem(m, v)
		}
	})
	return p, nil
}

func (r memPurchases) GetUserPurchases(ctx context.Context, userID string, limit, offset int) ([]*domain.Purchase, error) {
	var out []*domain.Purchase
	r.do(func(m *memStore) {
		for _, v := range m.purchases {
			if v.UserID == userID {
				out = append(out, r.withItem(m, v))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (r memPurchases) GetLatestUserPurchase(ctx context.Context, userID string) (*domain.Purchase, error) {
	list, _ := r.GetUserPurchases(ctx, userID, 1, 0)
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r memPurchases) GetFeedPurchases(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var out []*domain.User
	r.do(func(m *memStore) {
		for _, v := range m.purchases {
			u := m.users[v.UserID]
			u.Purchases = []*domain.Purchase{r.withItem(m, v)}
			out = append(out, &u)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Purchases[0].ID > out[j].Purchases[0].ID })
	return page(out, limit, offset), nil
}

func (r memPurchases) GetUserTopItems(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	counts := make(map[int64]*domain.Purchase)
	r.do(func(m *memStore) {
		for _, v := range m.purchases {
			if v.UserID != userID {
				continue
			}
			if c, ok := counts[v.ItemID]; ok {
				c.TotalCount++
				continue
			}
			p := r.withItem(m, domain.Purchase{UserID: userID, ItemID: v.ItemID, TotalCount: 1})
			counts[v.ItemID] = p
		}
	})
	out := make([]*domain.Purchase, 0, len(counts))
	for _, p := range counts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCount != out[j].TotalCount {
			return out[i].TotalCount > out[j].TotalCount
		}
		return out[i].ItemID < out[j].ItemID
	})
	return page(out, limit, 0), nil
}

func (r memPurchases) CreatePurchase(ctx context.Context, userID string, itemID int64, price decimal.Decimal) (id int64, err error) {
	r.do(func(m *memStore) {
		if m.failCreatePurchase != nil {
			err = m.failCreatePurchase
			return
		}
		if _, ok := m.users[userID]; !ok {
			err = domain.ErrInvalidEntity
			return
		}
		m.nextID++
		m.clock = m.clock.Add(time.Second)
		id = m.nextID
		m.purchases[id] = domain.Purchase{ID: id, UserID: userID, ItemID: itemID, Price: price, Date: m.clock}
	})
	return id, err
}

func (r memPurchases) DeletePurchase(ctx context.Context, id int64) (err error) {
	r.do(func(m *memStore) {
		if _, ok := m.purchases[id]; !ok {
			err = domain.ErrPurchaseNotFound
			return
		}
		delete(m.purchases, id)
	})
	return err
}

type memUsers struct{ *memRepos }

func (r memUsers) GetUser(ctx context.Context, id string) (u *domain.User, err error) {
	r.do(func(m *memStore) {
		if v, ok := m.users[id]; ok {
			u = &v
		}
	})
	return u, nil
}

func (r memUsers) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetUser(ctx, id)
}

func (r memUsers) GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var out []*domain.User
	r.do(func(m *memStore) {
		for _, v := range m.users {
			v := v
			out = append(out, &v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r memUsers) GetMonthlyHighscore(ctx context.Context, limit int) ([]*domain.User, error) {
	return r.GetUsers(ctx, limit, 0)
}

func (r memUsers) CreateUser(ctx context.Context, user domain.User) (err error) {
	r.do(func(m *memStore) {
		if _, ok := m.users[user.ID]; ok {
			err = domain.ErrDuplicate
			return
		}
		user.Debt = decimal.Zero
		user.Purchases = nil
		m.users[user.ID] = user
	})
	return err
}

func (r memUsers) UpdateUser(ctx context.Context, user domain.User) error {
	r.do(func(m *memStore) {
		current, ok := m.users[user.ID]
		if !ok {
			return
		}
		current.Name, current.Lobare, current.Admin = user.Name, user.Lobare, user.Admin
		m.users[user.ID] = current
	})
	return nil
}

func (r memUsers) AdjustDebt(ctx context.Context, userID string, delta decimal.Decimal) error {
	r.do(func(m *memStore) {
		u, ok := m.users[userID]
		if !ok {
			return
		}
		u.Debt = u.Debt.Add(delta)
		m.users[userID] = u
	})
	return nil
}

func (r memUsers) GetDebtDiscrepancies(ctx context.Context) ([]domain.DebtDiscrepancy, error) {
	var out []domain.DebtDiscrepancy
	r.do(func(m *memStore) {
		totals := make(map[string]decimal.Decimal)
		for _, p := range m.purchases {
			totals[p.UserID] = totals[p.UserID].Add(p.Price)
		}
		for id, u := range m.users {
			if !u.Debt.Equal(totals[id]) {
				out = append(out, domain.DebtDiscrepancy{UserID: id, Debt: u.Debt, LedgerTotal: totals[id]})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

var errInjected = errors.New("injected failure")

// memCache is an in-memory idempotency cache.
type memCache struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemCache() *memCache {
	return &memCache{keys: make(map[string]bool)}
}

func (c *memCache) GetItem(ctx context.Context, id int64) (*domain.Item, error) { return nil, nil }

func (c *memCache) SetItem(ctx context.Context, item *domain.Item) error { return nil }

func (c *memCache) LookupBarcode(ctx context.Context, code string) (int64, bool, error) {
	return 0, false, nil
}

func (c *memCache) InvalidateItem(ctx context.Context, id int64) error { return nil }

func (c *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.keys[key] {
		return false, nil
	}
	c.keys[key] = true
	return true, nil
}

func (c *memCache) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

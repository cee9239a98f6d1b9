package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/core/mapper"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

// Barcodes hold one row per item with every code comma-joined; the join
// still aggregates so the query keeps one row per item either way.
const (
	barcodeJoin = `
		LEFT JOIN (SELECT item_id, GROUP_CONCAT(code) AS codes FROM Barcodes GROUP BY item_id) AS bc
			ON bc.item_id = Items.item_id`
	imageJoin = `
		LEFT JOIN Images ON Images.item_id = Items.item_id`

	itemColumns = `Items.item_id, Items.name, Items.price, Items.volume, Items.alcohol,
		bc.codes, Images.thumbnail, Images.large`
	itemSource = `FROM Items` + barcodeJoin + imageJoin
)

type ItemStore struct {
	db     DBTX
	logger *slog.Logger
}

func NewItemStore(db DBTX, l *slog.Logger) *ItemStore {
	if l == nil {
		l = slog.Default()
	}
	return &ItemStore{db: db, logger: l.With(slog.String("component", "item_store"))}
}

var _ port.ItemRepository = (*ItemStore)(nil)

func (s *ItemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := queryRows(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return mapper.ItemsFromRows(rows)
}

func (s *ItemStore) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	items, err := s.queryItems(ctx, `
		SELECT `+itemColumns+` `+itemSource+`
		WHERE Items.item_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (s *ItemStore) GetBarcodeItem(ctx context.Context, code string) (*domain.Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT item_id FROM Barcodes
		WHERE FIND_IN_SET(?, code) > 0
		ORDER BY item_id
		LIMIT 1`, code,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query barcode: %w", err)
	}

	return s.GetItem(ctx, id)
}

func (s *ItemStore) GetItems(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	items, err := s.queryItems(ctx, `
		SELECT `+itemColumns+` `+itemSource+`
		ORDER BY Items.item_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return items, nil
}

func (s *ItemStore) GetLatestItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	items, err := s.queryItems(ctx, `
		SELECT `+itemColumns+` `+itemSource+`
		ORDER BY Items.item_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest items: %w", err)
	}
	return items, nil
}

func (s *ItemStore) GetPopularItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	items, err := s.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM Items
		JOIN (
			SELECT item_id, COUNT(*) AS total FROM Purchases
			WHERE date >= NOW() - INTERVAL 30 DAY
			GROUP BY item_id
		) AS pc ON pc.item_id = Items.item_id`+barcodeJoin+imageJoin+`
		ORDER BY pc.total DESC, Items.item_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular items: %w", err)
	}
	return items, nil
}

// CreateItem inserts the item row, one barcode row holding every code and,
// when an image URL is given, one image row, all in a single transaction.
func (s *ItemStore) CreateItem(ctx context.Context, input domain.ItemInput) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var id int64
	err := runAtomic(ctx, s.db, func(ctx context.Context, q DBTX) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO Items (name, price, volume, alcohol)
			VALUES (?, ?, ?, ?)`,
			input.Name, input.Price, input.Volume, input.Alcohol,
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", MapError(err))
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert item id: %w", err)
		}

		if err := insertBarcodes(ctx, q, id, input.Barcodes); err != nil {
			return err
		}
		return insertImage(ctx, q, id, input)
	})
	if err != nil {
		log.Error("failed to create item",
			slog.String("error", err.Error()),
			slog.String("name", input.Name))
		return 0, err
	}

	log.Info("item created",
		slog.Int64("item_id", id),
		slog.Int("barcodes", len(input.Barcodes)))
	return id, nil
}

// UpdateItem rewrites the item and replaces its barcode row, so an item
// always ends with exactly one barcode row. The image row is only replaced
// when an image URL is given.
func (s *ItemStore) UpdateItem(ctx context.Context, id int64, input domain.ItemInput) error {
	err := runAtomic(ctx, s.db, func(ctx context.Context, q DBTX) error {
		var locked int64
		err := q.QueryRowContext(ctx,
			`SELECT item_id FROM Items WHERE item_id = ? FOR UPDATE`, id,
		).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE Items SET name = ?, price = ?, volume = ?, alcohol = ?
			WHERE item_id = ?`,
			input.Name, input.Price, input.Volume, input.Alcohol, id,
		); err != nil {
			return fmt.Errorf("update item: %w", MapError(err))
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM Barcodes WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete barcodes: %w", MapError(err))
		}
		if err := insertBarcodes(ctx, q, id, input.Barcodes); err != nil {
			return err
		}

		if input.ImageURL == "" {
			return nil
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM Images WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete image: %w", MapError(err))
		}
		return insertImage(ctx, q, id, input)
	})
	if err != nil {
		return err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("item updated", slog.Int64("item_id", id))
	return nil
}

func (s *ItemStore) DeleteItem(ctx context.Context, id int64) error {
	return runAtomic(ctx, s.db, func(ctx context.Context, q DBTX) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM Barcodes WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete barcodes: %w", MapError(err))
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM Images WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete image: %w", MapError(err))
		}
		res, err := q.ExecContext(ctx, `DELETE FROM Items WHERE item_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete item: %w", MapError(err))
		}
		return checkRowsAffected(res, domain.ErrItemNotFound)
	})
}

// insertBarcodes stores the normalized codes as the item's single barcode
// row. A code already owned by another item is rejected with ErrDuplicate.
// The code column holds a joined list, so no UNIQUE index can back this up;
// the ownership check is a locking read instead, which sees committed rows
// and holds next-key locks on Barcodes until the transaction ends.
func insertBarcodes(ctx context.Context, q DBTX, itemID int64, codes []string) error {
	joined := mapper.JoinList(codes)
	for _, code := range mapper.SplitList(joined) {
		var owner int64
		err := q.QueryRowContext(ctx, `
			SELECT item_id FROM Barcodes
			WHERE FIND_IN_SET(?, code) > 0 AND item_id <> ?
			LIMIT 1
			FOR UPDATE`, code, itemID,
		).Scan(&owner)
		if err == nil {
			return fmt.Errorf("%w: barcode %s belongs to item %d", domain.ErrDuplicate, code, owner)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check barcode: %w", err)
		}
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO Barcodes (item_id, code) VALUES (?, ?)`,
		itemID, joined,
	)
	if err != nil {
		return fmt.Errorf("insert barcodes: %w", MapError(err))
	}
	return nil
}

func insertImage(ctx context.Context, q DBTX, itemID int64, input domain.ItemInput) error {
	if input.ImageURL == "" {
		return nil
	}
	var thumbnail sql.NullString
	if input.Thumbnail != "" {
		thumbnail = sql.NullString{String: input.Thumbnail, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO Images (item_id, thumbnail, large) VALUES (?, ?, ?)`,
		itemID, thumbnail, input.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("insert image: %w", MapError(err))
	}
	return nil
}

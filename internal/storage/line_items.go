package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"granttrack/internal/core"
)

func (s *Store) lineItemSelect() sq.SelectBuilder {
	return s.sb.Select("li.id", "li.grant_id", "li.name", "li.description", "li.allocated_cents").
		From("grant_line_items li")
}

func scanLineItem(scan func(dest ...any) error) (core.LineItem, error) {
	var li core.LineItem
	var cents int64
	if err := scan(&li.ID, &li.GrantID, &li.Name, &li.Description, &cents); err != nil {
		return li, err
	}
	li.AllocatedAmount = core.FromCents(cents)
	return li, nil
}

func (s *Store) fetchLineItem(ctx context.Context, q sq.SelectBuilder, what string) (core.LineItem, error) {
	var li core.LineItem
	var cents int64
	found, err := s.FetchOne(ctx, s.db, q, &li.ID, &li.GrantID, &li.Name, &li.Description, &cents)
	if err != nil {
		return li, fmt.Errorf("get line item %s: %w", what, err)
	}
	if !found {
		return li, fmt.Errorf("line item %s: %w", what, core.ErrNotFound)
	}
	li.AllocatedAmount = core.FromCents(cents)
	return li, nil
}

func (s *Store) GetLineItem(ctx context.Context, id int64) (core.LineItem, error) {
	return s.fetchLineItem(ctx, s.lineItemSelect().Where(sq.Eq{"li.id": id}), fmt.Sprint(id))
}

// LineItemByName matches case-insensitively within the grant.
func (s *Store) LineItemByName(ctx context.Context, grantID int64, name string) (core.LineItem, error) {
	q := s.lineItemSelect().Where(sq.And{
		sq.Eq{"li.grant_id": grantID},
		sq.Expr("LOWER(li.name) = LOWER(?)", s.norm.String(name)),
	})
	return s.fetchLineItem(ctx, q, fmt.Sprintf("%q", name))
}

func (s *Store) ListLineItems(ctx context.Context, grantID int64) ([]core.LineItem, error) {
	q := s.lineItemSelect().Where(sq.Eq{"li.grant_id": grantID}).OrderBy("li.id")
	items, err := s.collectLineItems(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list line items for grant %d: %w", grantID, err)
	}
	return items, nil
}

// LineItemsWithoutForecast returns up to limit line items that have no anticipated rows yet.
func (s *Store) LineItemsWithoutForecast(ctx context.Context, limit int) ([]core.LineItem, error) {
	q := s.lineItemSelect().
		Where("NOT EXISTS (SELECT 1 FROM anticipated_expenses a WHERE a.line_item_id = li.id)").
		OrderBy("li.id").
		Limit(uint64(limit))
	items, err := s.collectLineItems(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list line items without forecast: %w", err)
	}
	return items, nil
}

func (s *Store) collectLineItems(ctx context.Context, q sq.SelectBuilder) ([]core.LineItem, error) {
	var items []core.LineItem
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		li, err := scanLineItem(rows.Scan)
		if err != nil {
			return err
		}
		items = append(items, li)
		return nil
	})
	return items, err
}

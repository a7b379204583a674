package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"granttrack/internal/core"
)

// ListMappings lists the code mappings of a grant, optionally narrowed to one line item.
func (s *Store) ListMappings(ctx context.Context, grantID, lineItemID int64) ([]core.Mapping, error) {
	q := s.sb.Select("m.id", "m.grant_id", "m.line_item_id", "m.qb_code", "c.name", "li.name").
		From("line_item_qb_mapping m").
		Join("qb_codes c ON c.code = m.qb_code").
		Join("grant_line_items li ON li.id = m.line_item_id").
		Where(sq.Eq{"m.grant_id": grantID}).
		OrderBy("li.name", "m.qb_code")
	if lineItemID > 0 {
		q = q.Where(sq.Eq{"m.line_item_id": lineItemID})
	}

	var out []core.Mapping
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var m core.Mapping
		if err := rows.Scan(&m.ID, &m.GrantID, &m.LineItemID, &m.QBCode, &m.CodeName, &m.LineItemName); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list mappings for grant %d: %w", grantID, err)
	}
	return out, nil
}

// ListAnticipated returns a grant's forecast rows ordered by line item then month.
func (s *Store) ListAnticipated(ctx context.Context, grantID int64) ([]core.AnticipatedExpense, error) {
	q := s.sb.Select("grant_id", "line_item_id", "month", "expected_cents").
		From("anticipated_expenses").
		Where(sq.Eq{"grant_id": grantID}).
		OrderBy("line_item_id", "month")

	var out []core.AnticipatedExpense
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var a core.AnticipatedExpense
		var cents int64
		if err := rows.Scan(&a.GrantID, &a.LineItemID, &a.Month, &cents); err != nil {
			return err
		}
		a.ExpectedAmount = core.FromCents(cents)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list anticipated expenses for grant %d: %w", grantID, err)
	}
	return out, nil
}

// DeleteAnticipatedByGrant removes every forecast row of the grant.
func (s *Store) DeleteAnticipatedByGrant(ctx context.Context, grantID int64) (int64, error) {
	n, err := s.Exec(ctx, s.db, s.sb.Delete("anticipated_expenses").Where(sq.Eq{"grant_id": grantID}))
	if err != nil {
		return 0, fmt.Errorf("delete anticipated expenses for grant %d: %w", grantID, err)
	}
	return n, nil
}

// ListActuals returns a grant's actual expenses, restricted to one month when month is set.
func (s *Store) ListActuals(ctx context.Context, grantID int64, month string) ([]core.ActualExpense, error) {
	q := s.sb.Select("id", "grant_id", "month", "qb_code", "line_item_id", "amount_cents", "notes", "date_submitted").
		From("actual_expenses").
		Where(sq.Eq{"grant_id": grantID}).
		OrderBy("month", "line_item_id", "qb_code")
	if month != "" {
		q = q.Where(sq.Eq{"month": month})
	}

	var out []core.ActualExpense
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var a core.ActualExpense
		var cents int64
		var submitted string
		if err := rows.Scan(&a.ID, &a.GrantID, &a.Month, &a.QBCode, &a.LineItemID, &cents, &a.Notes, &submitted); err != nil {
			return err
		}
		a.Amount = core.FromCents(cents)
		if submitted != "" {
			d, err := core.ParseDate(submitted)
			if err != nil {
				return err
			}
			a.DateSubmitted = d
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list actual expenses for grant %d: %w", grantID, err)
	}
	return out, nil
}

// SpentByLineItem sums actual expenses per line item across all months of the grant.
// Line items without expenses are absent from the map.
func (s *Store) SpentByLineItem(ctx context.Context, grantID int64) (map[int64]decimal.Decimal, error) {
	q := s.sb.Select("line_item_id", "SUM(amount_cents)").
		From("actual_expenses").
		Where(sq.Eq{"grant_id": grantID}).
		GroupBy("line_item_id")

	out := make(map[int64]decimal.Decimal)
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var id, cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return err
		}
		out[id] = core.FromCents(cents)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sum actual expenses for grant %d: %w", grantID, err)
	}
	return out, nil
}

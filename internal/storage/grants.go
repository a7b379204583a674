package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"granttrack/internal/core"
)

func (s *Store) ListFunders(ctx context.Context) ([]core.Funder, error) {
	var funders []core.Funder
	err := s.FetchAll(ctx, s.db, s.sb.Select("id", "name", "type").From("funders").OrderBy("name"), func(rows *sql.Rows) error {
		var f core.Funder
		if err := rows.Scan(&f.ID, &f.Name, &f.Type); err != nil {
			return err
		}
		funders = append(funders, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list funders: %w", err)
	}
	return funders, nil
}

// FunderByName matches case-insensitively.
func (s *Store) FunderByName(ctx context.Context, name string) (core.Funder, error) {
	var f core.Funder
	q := s.sb.Select("id", "name", "type").From("funders").
		Where(sq.Expr("LOWER(name) = LOWER(?)", s.norm.String(name)))
	found, err := s.FetchOne(ctx, s.db, q, &f.ID, &f.Name, &f.Type)
	if err != nil {
		return f, fmt.Errorf("get funder %q: %w", name, err)
	}
	if !found {
		return f, fmt.Errorf("funder %q: %w", name, core.ErrNotFound)
	}
	return f, nil
}

func (s *Store) grantSelect() sq.SelectBuilder {
	return s.sb.Select(
		"g.id", "g.name", "g.funder_id", "f.name", "f.type",
		"g.start_date", "g.end_date", "g.total_award_cents", "g.status", "g.notes",
	).From("grants g").Join("funders f ON f.id = g.funder_id")
}

type grantRow struct {
	grant      core.Grant
	start, end string
	awardCents int64
	status     string
}

func (r *grantRow) dest() []any {
	g := &r.grant
	return []any{&g.ID, &g.Name, &g.FunderID, &g.FunderName, &g.FunderType, &r.start, &r.end, &r.awardCents, &r.status, &g.Notes}
}

func (r *grantRow) finish() (core.Grant, error) {
	g := r.grant
	var err error
	if g.StartDate, err = core.ParseDate(r.start); err != nil {
		return g, fmt.Errorf("grant %d start date: %w", g.ID, err)
	}
	if g.EndDate, err = core.ParseDate(r.end); err != nil {
		return g, fmt.Errorf("grant %d end date: %w", g.ID, err)
	}
	g.TotalAward = core.FromCents(r.awardCents)
	g.Status = core.GrantStatus(r.status)
	return g, nil
}

func (s *Store) GetGrant(ctx context.Context, id int64) (core.Grant, error) {
	var r grantRow
	found, err := s.FetchOne(ctx, s.db, s.grantSelect().Where(sq.Eq{"g.id": id}), r.dest()...)
	if err != nil {
		return core.Grant{}, fmt.Errorf("get grant %d: %w", id, err)
	}
	if !found {
		return core.Grant{}, fmt.Errorf("grant %d: %w", id, core.ErrNotFound)
	}
	return r.finish()
}

// GrantByName matches case-insensitively.
func (s *Store) GrantByName(ctx context.Context, name string) (core.Grant, error) {
	var r grantRow
	q := s.grantSelect().Where(sq.Expr("LOWER(g.name) = LOWER(?)", s.norm.String(name)))
	found, err := s.FetchOne(ctx, s.db, q, r.dest()...)
	if err != nil {
		return core.Grant{}, fmt.Errorf("get grant %q: %w", name, err)
	}
	if !found {
		return core.Grant{}, fmt.Errorf("grant %q: %w", name, core.ErrNotFound)
	}
	return r.finish()
}

func (s *Store) ListGrants(ctx context.Context) ([]core.Grant, error) {
	var grants []core.Grant
	err := s.FetchAll(ctx, s.db, s.grantSelect().OrderBy("g.start_date", "g.name"), func(rows *sql.Rows) error {
		var r grantRow
		if err := rows.Scan(r.dest()...); err != nil {
			return err
		}
		g, err := r.finish()
		if err != nil {
			return err
		}
		grants = append(grants, g)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// AllocationTotals returns the sum of line item allocations and the grant award.
func (s *Store) AllocationTotals(ctx context.Context, grantID int64) (allocated, award decimal.Decimal, err error) {
	q := s.sb.Select("g.total_award_cents", "COALESCE(SUM(li.allocated_cents), 0)").
		From("grants g").
		LeftJoin("grant_line_items li ON li.grant_id = g.id").
		Where(sq.Eq{"g.id": grantID}).
		GroupBy("g.id", "g.total_award_cents")

	var awardCents, allocatedCents int64
	found, err := s.FetchOne(ctx, s.db, q, &awardCents, &allocatedCents)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("allocation totals for grant %d: %w", grantID, err)
	}
	if !found {
		return decimal.Zero, decimal.Zero, fmt.Errorf("grant %d: %w", grantID, core.ErrNotFound)
	}
	return core.FromCents(allocatedCents), core.FromCents(awardCents), nil
}

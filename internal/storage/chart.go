package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"granttrack/internal/core"
)

// CodeFilter narrows ListCodes by parent category and/or subcategory name. Empty
// fields match everything.
type CodeFilter struct {
	Parent      string
	Subcategory string
}

func (s *Store) ListParentCategories(ctx context.Context) ([]core.ParentCategory, error) {
	var out []core.ParentCategory
	q := s.sb.Select("id", "name", "description").From("qb_parent_categories").OrderBy("name")
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var p core.ParentCategory
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list parent categories: %w", err)
	}
	return out, nil
}

func (s *Store) ParentCategoryByName(ctx context.Context, name string) (core.ParentCategory, error) {
	var p core.ParentCategory
	q := s.sb.Select("id", "name", "description").From("qb_parent_categories").
		Where(sq.Expr("LOWER(name) = LOWER(?)", s.norm.String(name)))
	found, err := s.FetchOne(ctx, s.db, q, &p.ID, &p.Name, &p.Description)
	if err != nil {
		return p, fmt.Errorf("get parent category %q: %w", name, err)
	}
	if !found {
		return p, fmt.Errorf("parent category %q: %w", name, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetParentCategory(ctx context.Context, id int64) (core.ParentCategory, error) {
	var p core.ParentCategory
	q := s.sb.Select("id", "name", "description").From("qb_parent_categories").Where(sq.Eq{"id": id})
	found, err := s.FetchOne(ctx, s.db, q, &p.ID, &p.Name, &p.Description)
	if err != nil {
		return p, fmt.Errorf("get parent category %d: %w", id, err)
	}
	if !found {
		return p, fmt.Errorf("parent category %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

// ListSubcategories lists the children of parentID, or every subcategory when parentID is 0.
func (s *Store) ListSubcategories(ctx context.Context, parentID int64) ([]core.Subcategory, error) {
	q := s.sb.Select("id", "name", "parent_id").From("qb_subcategories").OrderBy("name")
	if parentID > 0 {
		q = q.Where(sq.Eq{"parent_id": parentID})
	}
	var out []core.Subcategory
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var sub core.Subcategory
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.ParentID); err != nil {
			return err
		}
		out = append(out, sub)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	return out, nil
}

func (s *Store) GetSubcategory(ctx context.Context, id int64) (core.Subcategory, error) {
	var sub core.Subcategory
	q := s.sb.Select("id", "name", "parent_id").From("qb_subcategories").Where(sq.Eq{"id": id})
	found, err := s.FetchOne(ctx, s.db, q, &sub.ID, &sub.Name, &sub.ParentID)
	if err != nil {
		return sub, fmt.Errorf("get subcategory %d: %w", id, err)
	}
	if !found {
		return sub, fmt.Errorf("subcategory %d: %w", id, core.ErrNotFound)
	}
	return sub, nil
}

func (s *Store) SubcategoryByName(ctx context.Context, parentID int64, name string) (core.Subcategory, error) {
	var sub core.Subcategory
	q := s.sb.Select("id", "name", "parent_id").From("qb_subcategories").Where(sq.And{
		sq.Eq{"parent_id": parentID},
		sq.Expr("LOWER(name) = LOWER(?)", s.norm.String(name)),
	})
	found, err := s.FetchOne(ctx, s.db, q, &sub.ID, &sub.Name, &sub.ParentID)
	if err != nil {
		return sub, fmt.Errorf("get subcategory %q: %w", name, err)
	}
	if !found {
		return sub, fmt.Errorf("subcategory %q: %w", name, core.ErrNotFound)
	}
	return sub, nil
}

func (s *Store) codeSelect() sq.SelectBuilder {
	return s.sb.Select("c.code", "c.name", "c.category_id", "sc.name", "pc.name").
		From("qb_codes c").
		Join("qb_subcategories sc ON sc.id = c.category_id").
		Join("qb_parent_categories pc ON pc.id = sc.parent_id")
}

// GetCode looks a code up case-insensitively and returns it as stored.
func (s *Store) GetCode(ctx context.Context, code string) (core.Code, error) {
	var c core.Code
	q := s.codeSelect().Where(sq.Expr("LOWER(c.code) = LOWER(?)", core.Trim(code)))
	found, err := s.FetchOne(ctx, s.db, q, &c.Code, &c.Name, &c.CategoryID, &c.Subcategory, &c.ParentCategory)
	if err != nil {
		return c, fmt.Errorf("get code %q: %w", code, err)
	}
	if !found {
		return c, fmt.Errorf("code %q: %w", code, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCodes(ctx context.Context, filter CodeFilter) ([]core.Code, error) {
	q := s.codeSelect().OrderBy("c.code")
	if filter.Parent != "" {
		q = q.Where(sq.Expr("LOWER(pc.name) = LOWER(?)", s.norm.String(filter.Parent)))
	}
	if filter.Subcategory != "" {
		q = q.Where(sq.Expr("LOWER(sc.name) = LOWER(?)", s.norm.String(filter.Subcategory)))
	}

	var out []core.Code
	err := s.FetchAll(ctx, s.db, q, func(rows *sql.Rows) error {
		var c core.Code
		if err := rows.Scan(&c.Code, &c.Name, &c.CategoryID, &c.Subcategory, &c.ParentCategory); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return out, nil
}

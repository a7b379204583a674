package storage

import (
	"fmt"
	"slices"

	"granttrack/internal/core"
)

// Values is a column -> value bundle for one row.
type Values map[string]any

// ChildRef names a table whose Column references the parent id.
type ChildRef struct {
	Table  string
	Column string
}

// Entity is the compile-time descriptor the upsert engine works from. Table and column
// names only ever come from these descriptors, never from callers.
type Entity struct {
	Table string
	ID    string

	// Columns are the writable columns.
	Columns []string
	// Conflict columns define the natural key.
	Conflict []string
	// CaseInsensitive is the subset of Conflict compared with LOWER().
	CaseInsensitive []string
	// Name is the column renamed by UpdateNameIfUnique; Scope narrows its uniqueness.
	Name  string
	Scope []string
	// Titled columns go through the Normalizer, other strings are only trimmed.
	Titled []string
	// Children block DeleteIfNoDependents while any row references the id.
	Children []ChildRef
}

var (
	Funders = Entity{
		Table:           "funders",
		ID:              "id",
		Columns:         []string{"name", "type"},
		Conflict:        []string{"name"},
		CaseInsensitive: []string{"name"},
		Name:            "name",
		Titled:          []string{"name"},
		Children:        []ChildRef{{Table: "grants", Column: "funder_id"}},
	}

	Grants = Entity{
		Table:           "grants",
		ID:              "id",
		Columns:         []string{"name", "funder_id", "start_date", "end_date", "total_award_cents", "status", "notes"},
		Conflict:        []string{"name"},
		CaseInsensitive: []string{"name"},
		Name:            "name",
		Titled:          []string{"name"},
	}

	LineItems = Entity{
		Table:           "grant_line_items",
		ID:              "id",
		Columns:         []string{"grant_id", "name", "description", "allocated_cents"},
		Conflict:        []string{"grant_id", "name"},
		CaseInsensitive: []string{"name"},
		Name:            "name",
		Scope:           []string{"grant_id"},
		Titled:          []string{"name"},
	}

	ParentCategories = Entity{
		Table:           "qb_parent_categories",
		ID:              "id",
		Columns:         []string{"name", "description"},
		Conflict:        []string{"name"},
		CaseInsensitive: []string{"name"},
		Name:            "name",
		Titled:          []string{"name"},
		Children:        []ChildRef{{Table: "qb_subcategories", Column: "parent_id"}},
	}

	Subcategories = Entity{
		Table:           "qb_subcategories",
		ID:              "id",
		Columns:         []string{"name", "parent_id"},
		Conflict:        []string{"name", "parent_id"},
		CaseInsensitive: []string{"name"},
		Name:            "name",
		Scope:           []string{"parent_id"},
		Titled:          []string{"name"},
		Children:        []ChildRef{{Table: "qb_codes", Column: "category_id"}},
	}

	Codes = Entity{
		Table:           "qb_codes",
		ID:              "code",
		Columns:         []string{"code", "name", "category_id"},
		Conflict:        []string{"code"},
		CaseInsensitive: []string{"code"},
		Titled:          []string{"name"},
		Children: []ChildRef{
			{Table: "line_item_qb_mapping", Column: "qb_code"},
			{Table: "actual_expenses", Column: "qb_code"},
		},
	}

	Mappings = Entity{
		Table:    "line_item_qb_mapping",
		ID:       "id",
		Columns:  []string{"grant_id", "line_item_id", "qb_code"},
		Conflict: []string{"grant_id", "line_item_id", "qb_code"},
	}

	AnticipatedExpenses = Entity{
		Table:    "anticipated_expenses",
		ID:       "id",
		Columns:  []string{"grant_id", "line_item_id", "month", "expected_cents"},
		Conflict: []string{"grant_id", "line_item_id", "month"},
	}

	ActualExpenses = Entity{
		Table:    "actual_expenses",
		ID:       "id",
		Columns:  []string{"grant_id", "month", "qb_code", "line_item_id", "amount_cents", "notes", "date_submitted"},
		Conflict: []string{"grant_id", "month", "qb_code", "line_item_id"},
	}
)

func (e Entity) writable(col string) bool { return slices.Contains(e.Columns, col) }

func (e Entity) titled(col string) bool { return slices.Contains(e.Titled, col) }

func (e Entity) caseInsensitive(col string) bool { return slices.Contains(e.CaseInsensitive, col) }

// row validates vals against the descriptor and applies the string policy.
func (s *Store) row(e Entity, vals Values) (Values, error) {
	out := make(Values, len(vals))
	for col, v := range vals {
		if !e.writable(col) {
			return nil, fmt.Errorf("%s: unknown column %q", e.Table, col)
		}
		if e.titled(col) {
			out[col] = s.norm.Value(v)
		} else {
			out[col] = core.Trim(v)
		}
	}
	return out, nil
}

// keyOf extracts the conflict columns, which must all be present.
func (e Entity) keyOf(row Values) (Values, error) {
	key := make(Values, len(e.Conflict))
	for _, col := range e.Conflict {
		v, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("%s: missing key column %q", e.Table, col)
		}
		key[col] = v
	}
	return key, nil
}

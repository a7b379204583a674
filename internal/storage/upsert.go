package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
)

// errUnchanged rolls back a transaction whose write was rejected, either because
// the name is taken or because another writer won the unique index.
var errUnchanged = errors.New("write rejected")

// InsertIfNotExists inserts vals unless a row with the same natural key exists.
// It returns true when a row was inserted and false when one was already present.
func (s *Store) InsertIfNotExists(ctx context.Context, e Entity, vals Values) (bool, error) {
	var inserted bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = s.InsertIfNotExistsTx(ctx, tx, e, vals)
		return err
	})
	if err != nil {
		return false, err
	}

	slog.DebugContext(ctx, "Insert if not exists", "table", e.Table, "inserted", inserted)
	return inserted, nil
}

// InsertIfNotExistsTx is InsertIfNotExists inside the caller's transaction.
func (s *Store) InsertIfNotExistsTx(ctx context.Context, tx *sql.Tx, e Entity, vals Values) (bool, error) {
	row, err := s.row(e, vals)
	if err != nil {
		return false, err
	}
	inserted, err := s.insertIfNotExists(ctx, tx, e, row)
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", e.Table, err)
	}
	return inserted, nil
}

// InsertManyIfNotExists applies InsertIfNotExists to every row in one transaction and
// returns how many rows were inserted.
func (s *Store) InsertManyIfNotExists(ctx context.Context, e Entity, rows []Values) (int, error) {
	prepared := make([]Values, 0, len(rows))
	for _, vals := range rows {
		row, err := s.row(e, vals)
		if err != nil {
			return 0, err
		}
		prepared = append(prepared, row)
	}

	count := 0
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		count = 0
		for _, row := range prepared {
			inserted, err := s.insertIfNotExists(ctx, tx, e, row)
			if err != nil {
				return err
			}
			if inserted {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert batch into %s: %w", e.Table, err)
	}
	return count, nil
}

func (s *Store) insertIfNotExists(ctx context.Context, tx *sql.Tx, e Entity, row Values) (bool, error) {
	key, err := e.keyOf(row)
	if err != nil {
		return false, err
	}
	if err := requireNames(e, key); err != nil {
		return false, err
	}

	found, err := s.exists(ctx, tx, e.Table, s.matchKey(e, key))
	if err != nil || found {
		return false, err
	}

	// A concurrent writer can still win between the check and the insert; the unique
	// index turns that into zero affected rows.
	n, err := s.Exec(ctx, tx, s.sb.Insert(e.Table).SetMap(row).Suffix("ON CONFLICT DO NOTHING"))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save inserts vals or, when the natural key already exists, overwrites the non-key
// columns present in vals. It reports whether a new row was created.
func (s *Store) Save(ctx context.Context, e Entity, vals Values) (bool, error) {
	if len(e.CaseInsensitive) > 0 {
		return false, fmt.Errorf("%s: save requires an exact natural key", e.Table)
	}
	row, err := s.row(e, vals)
	if err != nil {
		return false, err
	}
	key, err := e.keyOf(row)
	if err != nil {
		return false, err
	}

	var update []string
	for _, col := range e.Columns {
		if _, isKey := key[col]; isKey {
			continue
		}
		if _, ok := row[col]; ok {
			update = append(update, col)
		}
	}

	var created bool
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		found, err := s.exists(ctx, tx, e.Table, sq.Eq(key))
		if err != nil {
			return err
		}
		created = !found
		_, err = s.Exec(ctx, tx, s.sb.Insert(e.Table).SetMap(row).Suffix(onConflict(e.Conflict, update)))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("save %s: %w", e.Table, err)
	}
	return created, nil
}

func onConflict(key, update []string) string {
	if len(update) == 0 {
		return "ON CONFLICT DO NOTHING"
	}
	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = col + " = excluded." + col
	}
	return "ON CONFLICT (" + strings.Join(key, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// UpdateNameIfUnique renames row id unless another row in the same scope already carries
// the name. It returns false, without writing, when the name is taken.
func (s *Store) UpdateNameIfUnique(ctx context.Context, e Entity, id any, name string) (bool, error) {
	var updated bool
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = s.UpdateNameIfUniqueTx(ctx, tx, e, id, name)
		if err == nil && !updated {
			return errUnchanged
		}
		return err
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	return updated, err
}

// UpdateNameIfUniqueTx is UpdateNameIfUnique inside the caller's transaction. On false
// the caller must roll back: a lost race leaves a postgres transaction aborted.
func (s *Store) UpdateNameIfUniqueTx(ctx context.Context, tx *sql.Tx, e Entity, id any, name string) (bool, error) {
	if e.Name == "" {
		return false, fmt.Errorf("%s: no unique name column", e.Table)
	}
	row, err := s.row(e, Values{e.Name: name})
	if err != nil {
		return false, err
	}
	if err := requireNames(e, row); err != nil {
		return false, err
	}
	value := row[e.Name]

	cols := append([]string{e.ID}, e.Scope...)
	current := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range current {
		dest[i] = &current[i]
	}
	found, err := s.FetchOne(ctx, tx, s.sb.Select(cols...).From(e.Table).Where(sq.Eq{e.ID: id}), dest...)
	if err != nil {
		return false, fmt.Errorf("rename %s: %w", e.Table, err)
	}
	if !found {
		return false, fmt.Errorf("rename %s %v: %w", e.Table, id, core.ErrNotFound)
	}

	dup := sq.And{s.matchColumn(e, e.Name, value), sq.NotEq{e.ID: id}}
	for i, col := range e.Scope {
		dup = append(dup, sq.Eq{col: current[i+1]})
	}
	taken, err := s.exists(ctx, tx, e.Table, dup)
	if err != nil {
		return false, fmt.Errorf("rename %s: %w", e.Table, err)
	}
	if taken {
		return false, nil
	}

	_, err = s.Exec(ctx, tx, s.sb.Update(e.Table).Set(e.Name, value).Where(sq.Eq{e.ID: id}))
	if errors.Is(err, core.ErrDuplicateKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rename %s: %w", e.Table, err)
	}
	return true, nil
}

// UpdateRecord writes vals to row id without any uniqueness check.
func (s *Store) UpdateRecord(ctx context.Context, e Entity, id any, vals Values) error {
	return s.updateRecord(ctx, s.db, e, id, vals)
}

// UpdateRecordTx is UpdateRecord inside the caller's transaction.
func (s *Store) UpdateRecordTx(ctx context.Context, tx *sql.Tx, e Entity, id any, vals Values) error {
	return s.updateRecord(ctx, tx, e, id, vals)
}

func (s *Store) updateRecord(ctx context.Context, q DBTX, e Entity, id any, vals Values) error {
	if len(vals) == 0 {
		return nil
	}
	row, err := s.row(e, vals)
	if err != nil {
		return err
	}

	n, err := s.Exec(ctx, q, s.sb.Update(e.Table).SetMap(row).Where(sq.Eq{e.ID: id}))
	if err != nil {
		return fmt.Errorf("update %s: %w", e.Table, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %v: %w", e.Table, id, core.ErrNotFound)
	}
	return nil
}

// DeleteIfNoDependents deletes row id unless a child row references it, in which case it
// returns false and leaves everything intact.
func (s *Store) DeleteIfNoDependents(ctx context.Context, e Entity, id any) (bool, error) {
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, child := range e.Children {
			has, err := s.exists(ctx, tx, child.Table, sq.Eq{child.Column: id})
			if err != nil {
				return err
			}
			if has {
				slog.InfoContext(ctx, "Delete blocked by dependents", applog.FieldComponent, applog.ComponentStorage,
					"table", e.Table, "id", id, "dependent", child.Table)
				return core.ErrDependencyExists
			}
		}

		n, err := s.Exec(ctx, tx, s.sb.Delete(e.Table).Where(sq.Eq{e.ID: id}))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s %v: %w", e.Table, id, core.ErrNotFound)
		}
		return nil
	})
	if errors.Is(err, core.ErrDependencyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", e.Table, err)
	}
	return true, nil
}

// Delete removes row id, cascading per the schema. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, e Entity, id any) (bool, error) {
	n, err := s.Exec(ctx, s.db, s.sb.Delete(e.Table).Where(sq.Eq{e.ID: id}))
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", e.Table, err)
	}
	return n > 0, nil
}

// LookupID finds the id of the row matching the natural key in vals.
func (s *Store) LookupID(ctx context.Context, e Entity, vals Values) (int64, error) {
	return s.lookupID(ctx, s.db, e, vals)
}

// LookupIDTx is LookupID inside the caller's transaction.
func (s *Store) LookupIDTx(ctx context.Context, tx *sql.Tx, e Entity, vals Values) (int64, error) {
	return s.lookupID(ctx, tx, e, vals)
}

func (s *Store) lookupID(ctx context.Context, q DBTX, e Entity, vals Values) (int64, error) {
	row, err := s.row(e, vals)
	if err != nil {
		return 0, err
	}
	key, err := e.keyOf(row)
	if err != nil {
		return 0, err
	}

	var id int64
	found, err := s.FetchOne(ctx, q, s.sb.Select(e.ID).From(e.Table).Where(s.matchKey(e, key)).Limit(1), &id)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", e.Table, err)
	}
	if !found {
		return 0, fmt.Errorf("%s: %w", e.Table, core.ErrNotFound)
	}
	return id, nil
}

func (s *Store) exists(ctx context.Context, q DBTX, table string, where sq.Sqlizer) (bool, error) {
	var one int
	return s.FetchOne(ctx, q, s.sb.Select("1").From(table).Where(where).Limit(1), &one)
}

func (s *Store) matchKey(e Entity, key Values) sq.And {
	conds := make(sq.And, 0, len(e.Conflict))
	for _, col := range e.Conflict {
		conds = append(conds, s.matchColumn(e, col, key[col]))
	}
	return conds
}

func (s *Store) matchColumn(e Entity, col string, v any) sq.Sqlizer {
	if e.caseInsensitive(col) {
		return sq.Expr("LOWER("+col+") = LOWER(?)", v)
	}
	return sq.Eq{col: v}
}

// requireNames rejects empty strings in case-insensitive key columns.
func requireNames(e Entity, vals Values) error {
	for col, v := range vals {
		if !e.caseInsensitive(col) {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			return &core.ValidationError{Field: col, Reason: col + " is required", Err: core.ErrEmptyName}
		}
	}
	return nil
}

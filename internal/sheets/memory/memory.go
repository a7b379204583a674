package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ports "granttrack/internal/sheets"
)

// Store keeps written tables in memory, for tests and runs without a spreadsheet.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]string
	writes int
}

var _ ports.TableWriter = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string][][]string)}
}

// WriteTable replaces the named table and returns a synthetic range reference.
func (s *Store) WriteTable(_ context.Context, sheet string, rows [][]string) (string, error) {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		return "", errors.New("sheet name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sheet] = copyRows(rows)
	s.writes++
	return fmt.Sprintf("mem:%s!%d", sheet, len(rows)), nil
}

// Table returns a copy of the last rows written to sheet.
func (s *Store) Table(sheet string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[sheet]
	return copyRows(rows), ok
}

// Writes counts successful WriteTable calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

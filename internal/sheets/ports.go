package sheets

import "context"

// Ports for outbound adapters.
type (
	// TableWriter replaces the contents of a named tab with rows of cells. The first
	// row is the header. It returns a reference to the written range.
	TableWriter interface {
		WriteTable(ctx context.Context, sheet string, rows [][]string) (rangeRef string, err error)
	}
)

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/report"
	"granttrack/internal/sheets"
)

// maxSheetTitle is the Google Sheets limit on tab names.
const maxSheetTitle = 100

type summaryReader interface {
	GrantSummary(ctx context.Context, grantID int64) (core.GrantSummary, error)
}

type grantLister interface {
	ListGrants(ctx context.Context) ([]core.Grant, error)
}

// SummarySync keeps one spreadsheet tab per grant in step with the ledger.
// Events that change spend or allocation re-export the grant's summary.
type SummarySync struct {
	summaries summaryReader
	grants    grantLister
	sheets    sheets.TableWriter
	prefix    string
}

func NewSummarySync(summaries summaryReader, grants grantLister, w sheets.TableWriter, prefix string) *SummarySync {
	if prefix == "" {
		prefix = "Grant Summary"
	}
	return &SummarySync{
		summaries: summaries,
		grants:    grants,
		sheets:    w,
		prefix:    prefix,
	}
}

// HandleEvent processes a single ledger event from AMQP.
func (w *SummarySync) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Type {
	case amqp.EventActualSaved, amqp.EventLineItemAllocated, amqp.EventLineItemCreated:
	default:
		return nil
	}

	err := w.syncGrant(ctx, ev.GrantID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Grant no longer exists, skipping summary sync",
			applog.FieldGrantID, ev.GrantID,
			"event_id", ev.ID)
		return nil
	}
	return err
}

// StartupSync exports every grant once, covering events missed while the
// worker was down. Failures are logged and counted, never fatal.
func (w *SummarySync) StartupSync(ctx context.Context) (synced, failed int, err error) {
	grants, err := w.grants.ListGrants(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list grants for startup sync: %w", err)
	}

	for _, g := range grants {
		if ctx.Err() != nil {
			break
		}
		if err := w.syncGrant(ctx, g.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync grant summary during startup",
				applog.FieldGrantID, g.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup summary sync completed",
		"total", len(grants),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

func (w *SummarySync) syncGrant(ctx context.Context, grantID int64) error {
	summary, err := w.summaries.GrantSummary(ctx, grantID)
	if err != nil {
		return fmt.Errorf("load grant summary: %w", err)
	}
	sheet := w.SheetName(summary.Grant)
	ref, err := report.ExportSummary(ctx, w.sheets, sheet, summary)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Successfully synced grant summary",
		applog.FieldGrantID, grantID,
		"sheet", sheet,
		"sheets_ref", ref)
	return nil
}

// SheetName derives the tab for a grant, dropping characters Sheets rejects
// in tab names.
func (w *SummarySync) SheetName(g core.Grant) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\', '\'':
			return -1
		}
		return r
	}, fmt.Sprintf("%s - %s", w.prefix, g.Name))
	if runes := []rune(name); len(runes) > maxSheetTitle {
		name = string(runes[:maxSheetTitle])
	}
	return strings.TrimSpace(name)
}

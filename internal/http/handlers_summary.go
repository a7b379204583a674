package http

import (
	"bytes"
	"fmt"
	"net/http"

	applog "granttrack/internal/log"
	"granttrack/internal/report"
)

func (s *Server) handleGrantSummary(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	format, err := Format(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	summary, err := s.reconciler.GrantSummary(r.Context(), grantID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		err = report.WriteSummaryCSV(&buf, summary)
		s.writeDocument(w, r, err, "text/csv; charset=utf-8", fmt.Sprintf("grant-%d-summary.csv", grantID), buf.Bytes())
	case "text":
		err = report.WriteSummaryTable(&buf, summary, s.currency)
		s.writeDocument(w, r, err, "text/plain; charset=utf-8", "", buf.Bytes())
	default:
		NewJSONResponse().Data(toSummaryJSON(summary)).Write(w)
	}
}

type exportJSON struct {
	Sheet string `json:"sheet"`
	Range string `json:"range"`
}

// handleExportSummary writes the grant summary to the configured spreadsheet.
func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		ErrorResponse(http.StatusNotImplemented, CodeNotEnabled, "spreadsheet export is not configured").Write(w)
		return
	}
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}

	ctx := r.Context()
	summary, err := s.reconciler.GrantSummary(ctx, grantID)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	sheet := s.sheetName
	if q := sanitizeInput(r.URL.Query().Get("sheet")); q != "" {
		sheet = q
	}
	ref, err := report.ExportSummary(ctx, s.sheets, sheet, summary)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Grant summary exported",
		applog.FieldGrantID, grantID,
		"sheet", sheet,
		"range", ref)
	NewJSONResponse().Data(exportJSON{Sheet: sheet, Range: ref}).Write(w)
}

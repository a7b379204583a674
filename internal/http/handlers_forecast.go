package http

import (
	"bytes"
	"fmt"
	"net/http"

	applog "granttrack/internal/log"
	"granttrack/internal/report"
)

func (s *Server) handleInitializeGrantForecast(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpInitialize, err)
		return
	}
	n, err := s.forecast.InitializeGrantForecast(r.Context(), grantID)
	if err != nil {
		s.fail(w, r, applog.OpInitialize, err)
		return
	}
	NewJSONResponse().Data(countJSON{Rows: int64(n)}).Write(w)
}

func (s *Server) handleInitializeLineItemForecast(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpInitialize, err)
		return
	}
	ctx := r.Context()
	li, err := s.grants.GetLineItem(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpInitialize, err)
		return
	}
	n, err := s.forecast.InitializeAnticipatedExpenses(ctx, li.GrantID, li.ID)
	if err != nil {
		s.fail(w, r, applog.OpInitialize, err)
		return
	}
	NewJSONResponse().Data(countJSON{Rows: int64(n)}).Write(w)
}

// handleUpdateAnticipated overrides one month of a line item's forecast.
func (s *Server) handleUpdateAnticipated(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req amountRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	amount, err := req.Amount.Parse("amount")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	ctx := r.Context()
	li, err := s.grants.GetLineItem(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	inserted, err := s.forecast.UpdateAnticipatedExpense(ctx, li.GrantID, li.ID, r.PathValue("month"), amount)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	NewJSONResponse().Status(status).Data(created{Created: inserted}).Write(w)
}

func (s *Server) handleResetForecast(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpReset, err)
		return
	}
	ctx := r.Context()
	if _, err := s.grants.GetGrant(ctx, grantID); err != nil {
		s.fail(w, r, applog.OpReset, err)
		return
	}
	n, err := s.forecast.ResetForecast(ctx, grantID)
	if err != nil {
		s.fail(w, r, applog.OpReset, err)
		return
	}
	NewJSONResponse().Data(countJSON{Rows: n}).Write(w)
}

// handleForecastPlan renders the line item x month pivot as JSON, long-format
// CSV or an aligned text table.
func (s *Server) handleForecastPlan(w http.ResponseWriter, r *http.Request) {
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
	plan, err := s.forecast.ForecastPlan(r.Context(), grantID)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		err = report.WriteForecastCSV(&buf, plan)
		s.writeDocument(w, r, err, "text/csv; charset=utf-8", fmt.Sprintf("forecast-%d.csv", grantID), buf.Bytes())
	case "text":
		err = report.WriteForecastTable(&buf, plan, s.currency)
		s.writeDocument(w, r, err, "text/plain; charset=utf-8", "", buf.Bytes())
	default:
		NewJSONResponse().Data(toForecastJSON(plan)).Write(w)
	}
}

// writeDocument sends a rendered CSV or text body, or the render error.
func (s *Server) writeDocument(w http.ResponseWriter, r *http.Request, err error, contentType, filename string, body []byte) {
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

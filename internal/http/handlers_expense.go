package http

import (
	"net/http"
	"strings"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
)

// handleSaveActual records actual spend; resubmitting the same grant, month,
// code and line item overwrites the amount.
func (s *Server) handleSaveActual(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpSave, err)
		return
	}
	var req actualRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpSave, err)
		return
	}
	amount, err := req.Amount.Parse("amount")
	if err != nil {
		s.fail(w, r, applog.OpSave, err)
		return
	}
	submitted, err := ParseDateField("date_submitted", req.DateSubmitted)
	if err != nil {
		s.fail(w, r, applog.OpSave, err)
		return
	}

	exp := core.ActualExpense{
		GrantID:       grantID,
		LineItemID:    req.LineItemID,
		Month:         strings.TrimSpace(req.Month),
		QBCode:        strings.TrimSpace(req.QBCode),
		Amount:        amount,
		Notes:         sanitizeInput(req.Notes),
		DateSubmitted: submitted,
	}
	inserted, err := s.expenses.SaveActualExpense(r.Context(), exp)
	if err != nil {
		s.fail(w, r, applog.OpSave, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	NewJSONResponse().Status(status).Data(created{Created: inserted}).Write(w)
}

func (s *Server) handleListActuals(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	actuals, err := s.expenses.ListActualExpenses(r.Context(), grantID, month)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]actualJSON, 0, len(actuals))
	for _, a := range actuals {
		out = append(out, toActualJSON(a))
	}
	NewJSONResponse().Data(out).Write(w)
}

package http

import (
	"github.com/shopspring/decimal"

	"granttrack/internal/core"
	"granttrack/internal/services"
)

// Money travels as a fixed two-decimal string so clients never see float rounding.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type funderRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type funderJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func toFunderJSON(f core.Funder) funderJSON {
	return funderJSON{ID: f.ID, Name: f.Name, Type: f.Type}
}

type grantRequest struct {
	Name       string `json:"name"`
	FunderName string `json:"funder"`
	FunderType string `json:"funder_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalAward Amount `json:"total_award"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
}

func (req grantRequest) toInput() (services.GrantInput, error) {
	in := services.GrantInput{
		Name:       sanitizeInput(req.Name),
		FunderName: sanitizeInput(req.FunderName),
		FunderType: sanitizeInput(req.FunderType),
		Notes:      sanitizeInput(req.Notes),
	}
	var err error
	if in.StartDate, err = ParseDateField("start_date", req.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = ParseDateField("end_date", req.EndDate); err != nil {
		return in, err
	}
	if in.TotalAward, err = req.TotalAward.Parse("total_award"); err != nil {
		return in, err
	}
	if req.Status != "" {
		if in.Status, err = core.ParseGrantStatus(req.Status); err != nil {
			return in, err
		}
	}
	return in, nil
}

type grantJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FunderID   int64  `json:"funder_id"`
	FunderName string `json:"funder"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalAward string `json:"total_award"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
}

func toGrantJSON(g core.Grant) grantJSON {
	return grantJSON{
		ID:         g.ID,
		Name:       g.Name,
		FunderID:   g.FunderID,
		FunderName: g.FunderName,
		StartDate:  g.StartDate.String(),
		EndDate:    g.EndDate.String(),
		TotalAward: money(g.TotalAward),
		Status:     string(g.Status),
		Notes:      g.Notes,
	}
}

type lineItemRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	AllocatedAmount Amount `json:"allocated_amount"`
}

// lineItemPatch updates name and/or description; absent fields are left alone.
type lineItemPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type amountRequest struct {
	Amount Amount `json:"amount"`
}

type lineItemJSON struct {
	ID              int64  `json:"id"`
	GrantID         int64  `json:"grant_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	AllocatedAmount string `json:"allocated_amount"`
}

func toLineItemJSON(li core.LineItem) lineItemJSON {
	return lineItemJSON{
		ID:              li.ID,
		GrantID:         li.GrantID,
		Name:            li.Name,
		Description:     li.Description,
		AllocatedAmount: money(li.AllocatedAmount),
	}
}

type allocationJSON struct {
	GrantID        int64  `json:"grant_id"`
	Exceeds        bool   `json:"exceeds"`
	TotalAllocated string `json:"total_allocated"`
	TotalAward     string `json:"total_award"`
	Unallocated    string `json:"unallocated"`
}

func toAllocationJSON(a core.AllocationCheck) allocationJSON {
	return allocationJSON{
		GrantID:        a.GrantID,
		Exceeds:        a.Exceeds,
		TotalAllocated: money(a.TotalAllocated),
		TotalAward:     money(a.TotalAward),
		Unallocated:    money(a.Unallocated()),
	}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type subcategoryJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
}

type codeRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
}

type codeJSON struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	CategoryID     int64  `json:"category_id"`
	Subcategory    string `json:"subcategory,omitempty"`
	ParentCategory string `json:"parent_category,omitempty"`
}

func toCodeJSON(c core.Code) codeJSON {
	return codeJSON{
		Code:           c.Code,
		Name:           c.Name,
		CategoryID:     c.CategoryID,
		Subcategory:    c.Subcategory,
		ParentCategory: c.ParentCategory,
	}
}

type mappingRequest struct {
	LineItemID int64  `json:"line_item_id"`
	QBCode     string `json:"qb_code"`
}

type mappingJSON struct {
	ID         int64  `json:"id"`
	GrantID    int64  `json:"grant_id"`
	LineItemID int64  `json:"line_item_id"`
	LineItem   string `json:"line_item"`
	QBCode     string `json:"qb_code"`
	CodeName   string `json:"code_name"`
}

func toMappingJSON(m core.Mapping) mappingJSON {
	return mappingJSON{
		ID:         m.ID,
		GrantID:    m.GrantID,
		LineItemID: m.LineItemID,
		LineItem:   m.LineItemName,
		QBCode:     m.QBCode,
		CodeName:   m.CodeName,
	}
}

type actualRequest struct {
	LineItemID    int64  `json:"line_item_id"`
	Month         string `json:"month"`
	QBCode        string `json:"qb_code"`
	Amount        Amount `json:"amount"`
	Notes         string `json:"notes"`
	DateSubmitted string `json:"date_submitted"`
}

type actualJSON struct {
	ID            int64  `json:"id"`
	GrantID       int64  `json:"grant_id"`
	LineItemID    int64  `json:"line_item_id"`
	Month         string `json:"month"`
	QBCode        string `json:"qb_code"`
	Amount        string `json:"amount"`
	Notes         string `json:"notes,omitempty"`
	DateSubmitted string `json:"date_submitted,omitempty"`
}

func toActualJSON(a core.ActualExpense) actualJSON {
	out := actualJSON{
		ID:         a.ID,
		GrantID:    a.GrantID,
		LineItemID: a.LineItemID,
		Month:      a.Month,
		QBCode:     a.QBCode,
		Amount:     money(a.Amount),
		Notes:      a.Notes,
	}
	if !a.DateSubmitted.IsZero() {
		out.DateSubmitted = a.DateSubmitted.String()
	}
	return out
}

type spendJSON struct {
	LineItemID   int64  `json:"line_item_id,omitempty"`
	LineItem     string `json:"line_item"`
	Allocated    string `json:"allocated"`
	Spent        string `json:"spent"`
	PercentSpent string `json:"percent_spent"`
	Remaining    string `json:"remaining"`
}

func toSpendJSON(s core.LineItemSpend) spendJSON {
	return spendJSON{
		LineItemID:   s.LineItemID,
		LineItem:     s.LineItem,
		Allocated:    money(s.Allocated),
		Spent:        money(s.Spent),
		PercentSpent: s.PercentSpent.StringFixed(1),
		Remaining:    money(s.Remaining),
	}
}

type summaryJSON struct {
	Grant      grantJSON      `json:"grant"`
	Allocation allocationJSON `json:"allocation"`
	LineItems  []spendJSON    `json:"line_items"`
	Totals     spendJSON      `json:"totals"`
}

func toSummaryJSON(s core.GrantSummary) summaryJSON {
	rows := make([]spendJSON, 0, len(s.LineItems))
	for _, r := range s.LineItems {
		rows = append(rows, toSpendJSON(r))
	}
	return summaryJSON{
		Grant:      toGrantJSON(s.Grant),
		Allocation: toAllocationJSON(s.Allocation),
		LineItems:  rows,
		Totals:     toSpendJSON(s.Totals),
	}
}

type forecastRowJSON struct {
	LineItemID   int64             `json:"line_item_id"`
	LineItem     string            `json:"line_item"`
	Allocated    string            `json:"allocated"`
	Months       map[string]string `json:"months"`
	TotalPlanned string            `json:"total_planned"`
	Remaining    string            `json:"remaining"`
}

type forecastJSON struct {
	GrantID int64             `json:"grant_id"`
	Months  []string          `json:"months"`
	Rows    []forecastRowJSON `json:"rows"`
}

func toForecastJSON(p core.ForecastPlan) forecastJSON {
	rows := make([]forecastRowJSON, 0, len(p.Rows))
	for _, r := range p.Rows {
		months := make(map[string]string, len(r.Months))
		for m, v := range r.Months {
			months[m] = money(v)
		}
		rows = append(rows, forecastRowJSON{
			LineItemID:   r.LineItemID,
			LineItem:     r.LineItem,
			Allocated:    money(r.Allocated),
			Months:       months,
			TotalPlanned: money(r.TotalPlanned),
			Remaining:    money(r.Remaining),
		})
	}
	return forecastJSON{GrantID: p.GrantID, Months: p.Months, Rows: rows}
}

// created reports the outcome of an idempotent insert.
type created struct {
	Created bool `json:"created"`
}

type countJSON struct {
	Rows int64 `json:"rows"`
}

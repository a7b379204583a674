package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	StatusPending GrantStatus = "Pending"
	StatusActive  GrantStatus = "Active"
	StatusClosed  GrantStatus = "Closed"
)

type (
	GrantStatus string

	Funder struct {
		ID   int64
		Name string
		Type string
	}

	Grant struct {
		ID         int64
		Name       string
		FunderID   int64
		FunderName string // populated by reads joined on funders
		FunderType string
		StartDate  Date
		EndDate    Date
		TotalAward decimal.Decimal
		Status     GrantStatus
		Notes      string
	}

	LineItem struct {
		ID              int64
		GrantID         int64
		Name            string
		Description     string
		AllocatedAmount decimal.Decimal
	}

	ParentCategory struct {
		ID          int64
		Name        string
		Description string
	}

	Subcategory struct {
		ID       int64
		Name     string
		ParentID int64
	}

	// Code is a leaf QuickBooks account code under a subcategory.
	Code struct {
		Code           string
		Name           string
		CategoryID     int64
		Subcategory    string // populated by filtered listings
		ParentCategory string
	}

	Mapping struct {
		ID           int64
		GrantID      int64
		LineItemID   int64
		QBCode       string
		CodeName     string // populated by listings
		LineItemName string
	}

	AnticipatedExpense struct {
		GrantID        int64
		LineItemID     int64
		Month          string // YYYY-MM
		ExpectedAmount decimal.Decimal
	}

	ActualExpense struct {
		ID            int64
		GrantID       int64
		Month         string // YYYY-MM
		QBCode        string
		LineItemID    int64
		Amount        decimal.Decimal
		Notes         string
		DateSubmitted Date
	}
)

// ParseGrantStatus matches a status case-insensitively.
func ParseGrantStatus(s string) (GrantStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "active":
		return StatusActive, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", &ValidationError{Field: "status", Reason: "must be one of Pending, Active, Closed", Err: ErrInvalidStatus}
}

func (s GrantStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusClosed:
		return true
	}
	return false
}

func (f Funder) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "funder", Reason: "name is required", Err: ErrEmptyName}
	}
	return nil
}

func (g Grant) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &ValidationError{Field: "name", Reason: "grant name is required", Err: ErrEmptyName}
	}
	if g.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "start date is required"}
	}
	if g.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "end date is required"}
	}
	if g.EndDate.Before(g.StartDate.Time) {
		return &ValidationError{Field: "end_date", Reason: "end date must not be before start date", Err: ErrInvalidRange}
	}
	if g.TotalAward.IsNegative() {
		return &ValidationError{Field: "total_award", Reason: "total award must not be negative", Err: ErrInvalidAmount}
	}
	if !g.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be one of Pending, Active, Closed", Err: ErrInvalidStatus}
	}
	return nil
}

func (li LineItem) Validate() error {
	if li.GrantID <= 0 {
		return &ValidationError{Field: "grant_id", Reason: "line item must belong to a grant"}
	}
	if strings.TrimSpace(li.Name) == "" {
		return &ValidationError{Field: "name", Reason: "line item name is required", Err: ErrEmptyName}
	}
	if li.AllocatedAmount.IsNegative() {
		return &ValidationError{Field: "allocated_amount", Reason: "allocated amount must not be negative", Err: ErrInvalidAmount}
	}
	return nil
}

func (c Code) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return &ValidationError{Field: "code", Reason: "code is required", Err: ErrEmptyName}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "code name is required", Err: ErrEmptyName}
	}
	if c.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Reason: "code must belong to a subcategory"}
	}
	return nil
}

func (a ActualExpense) Validate() error {
	if a.GrantID <= 0 || a.LineItemID <= 0 {
		return &ValidationError{Field: "line_item_id", Reason: "grant and line item are required"}
	}
	if err := ValidateMonth(a.Month); err != nil {
		return err
	}
	if strings.TrimSpace(a.QBCode) == "" {
		return &ValidationError{Field: "qb_code", Reason: "code is required", Err: ErrEmptyName}
	}
	if a.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "amount must not be negative", Err: ErrInvalidAmount}
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"granttrack/internal/amqp"
	"granttrack/internal/core"
	"granttrack/internal/storage"
)

// GrantInput is the full record accepted by AddGrant and UpdateGrant. The funder is
// referenced by name and created on first use.
type GrantInput struct {
	Name       string
	FunderName string
	FunderType string
	StartDate  core.Date
	EndDate    core.Date
	TotalAward decimal.Decimal
	Status     core.GrantStatus
	Notes      string
}

func (in GrantInput) validate() error {
	if err := (core.Funder{Name: in.FunderName}).Validate(); err != nil {
		return err
	}
	g := core.Grant{
		Name:       in.Name,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		TotalAward: in.TotalAward,
		Status:     in.Status,
	}
	if g.Status == "" {
		g.Status = core.StatusPending
	}
	return g.Validate()
}

func (in GrantInput) values(funderID int64) storage.Values {
	status := in.Status
	if status == "" {
		status = core.StatusPending
	}
	return storage.Values{
		"name":              in.Name,
		"funder_id":         funderID,
		"start_date":        in.StartDate.String(),
		"end_date":          in.EndDate.String(),
		"total_award_cents": core.Cents(in.TotalAward),
		"status":            string(status),
		"notes":             in.Notes,
	}
}

// GrantService manages funders, grants and their line items.
type GrantService struct {
	store      *storage.Store
	reconciler *Reconciler
	events     EventPublisher
}

// NewGrantService wires the service; events may be nil.
func NewGrantService(store *storage.Store, reconciler *Reconciler, events EventPublisher) *GrantService {
	return &GrantService{
		store:      store,
		reconciler: reconciler,
		events:     events,
	}
}

func (s *GrantService) AddFunder(ctx context.Context, name, funderType string) (bool, error) {
	if err := (core.Funder{Name: name}).Validate(); err != nil {
		return false, err
	}
	inserted, err := s.store.InsertIfNotExists(ctx, storage.Funders, storage.Values{"name": name, "type": funderType})
	if err != nil {
		return false, fmt.Errorf("add funder: %w", err)
	}
	return inserted, nil
}

func (s *GrantService) RenameFunder(ctx context.Context, id int64, name string) (bool, error) {
	ok, err := s.store.UpdateNameIfUnique(ctx, storage.Funders, id, name)
	if err != nil {
		return false, fmt.Errorf("rename funder: %w", err)
	}
	return ok, nil
}

// DeleteFunder returns false while any grant still references the funder.
func (s *GrantService) DeleteFunder(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.DeleteIfNoDependents(ctx, storage.Funders, id)
	if err != nil {
		return false, fmt.Errorf("delete funder: %w", err)
	}
	return ok, nil
}

func (s *GrantService) ListFunders(ctx context.Context) ([]core.Funder, error) {
	return s.store.ListFunders(ctx)
}

// errGrantUnchanged rolls back a grant write that was rejected after the funder was ensured.
var errGrantUnchanged = errors.New("grant unchanged")

// ensureFunder creates the funder when missing and returns its id.
func (s *GrantService) ensureFunder(ctx context.Context, tx *sql.Tx, name, funderType string) (int64, error) {
	if _, err := s.store.InsertIfNotExistsTx(ctx, tx, storage.Funders, storage.Values{"name": name, "type": funderType}); err != nil {
		return 0, err
	}
	return s.store.LookupIDTx(ctx, tx, storage.Funders, storage.Values{"name": name})
}

// AddGrant creates the funder if needed, then the grant unless one with the same name
// (case-insensitive) exists. It returns false when the grant already existed, in which
// case no funder is created either.
func (s *GrantService) AddGrant(ctx context.Context, in GrantInput) (bool, error) {
	if err := in.validate(); err != nil {
		return false, err
	}

	var funderID int64
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if funderID, err = s.ensureFunder(ctx, tx, in.FunderName, in.FunderType); err != nil {
			return err
		}
		inserted, err := s.store.InsertIfNotExistsTx(ctx, tx, storage.Grants, in.values(funderID))
		if err == nil && !inserted {
			return errGrantUnchanged
		}
		return err
	})
	if errors.Is(err, errGrantUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add grant: %w", err)
	}

	slog.InfoContext(ctx, "Grant created", "name", in.Name, "funder_id", funderID)
	return true, nil
}

// UpdateGrant replaces every field of grant id in one transaction. It returns false,
// leaving the grant and the funders untouched, when the new name belongs to another grant.
func (s *GrantService) UpdateGrant(ctx context.Context, id int64, in GrantInput) (bool, error) {
	if err := in.validate(); err != nil {
		return false, err
	}

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		renamed, err := s.store.UpdateNameIfUniqueTx(ctx, tx, storage.Grants, id, in.Name)
		if err != nil {
			return err
		}
		if !renamed {
			return errGrantUnchanged
		}

		funderID, err := s.ensureFunder(ctx, tx, in.FunderName, in.FunderType)
		if err != nil {
			return err
		}
		vals := in.values(funderID)
		delete(vals, "name")
		return s.store.UpdateRecordTx(ctx, tx, storage.Grants, id, vals)
	})
	if errors.Is(err, errGrantUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update grant: %w", err)
	}
	return true, nil
}

// DeleteGrant removes the grant together with its line items, mappings and expenses.
func (s *GrantService) DeleteGrant(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.Delete(ctx, storage.Grants, id)
	if err != nil {
		return false, fmt.Errorf("delete grant: %w", err)
	}
	if ok {
		slog.InfoContext(ctx, "Grant deleted", "grant_id", id)
	}
	return ok, nil
}

func (s *GrantService) GetGrant(ctx context.Context, id int64) (core.Grant, error) {
	return s.store.GetGrant(ctx, id)
}

func (s *GrantService) GrantByName(ctx context.Context, name string) (core.Grant, error) {
	return s.store.GrantByName(ctx, name)
}

func (s *GrantService) ListGrants(ctx context.Context) ([]core.Grant, error) {
	return s.store.ListGrants(ctx)
}

// AddLineItem creates a line item unless the grant already has one with that name.
func (s *GrantService) AddLineItem(ctx context.Context, li core.LineItem) (bool, error) {
	if err := li.Validate(); err != nil {
		return false, err
	}
	if _, err := s.store.GetGrant(ctx, li.GrantID); err != nil {
		return false, fmt.Errorf("add line item: %w", err)
	}

	inserted, err := s.store.InsertIfNotExists(ctx, storage.LineItems, storage.Values{
		"grant_id":        li.GrantID,
		"name":            li.Name,
		"description":     li.Description,
		"allocated_cents": core.Cents(li.AllocatedAmount),
	})
	if err != nil {
		return false, fmt.Errorf("add line item: %w", err)
	}
	if !inserted {
		return false, nil
	}

	id, err := s.store.LookupID(ctx, storage.LineItems, storage.Values{"grant_id": li.GrantID, "name": li.Name})
	if err != nil {
		return true, fmt.Errorf("add line item: %w", err)
	}
	ev := amqp.NewLedgerEvent(amqp.EventLineItemCreated, li.GrantID, id)
	ev.AmountCents = core.Cents(li.AllocatedAmount)
	publish(ctx, s.events, ev)
	return true, nil
}

func (s *GrantService) RenameLineItem(ctx context.Context, id int64, name string) (bool, error) {
	ok, err := s.store.UpdateNameIfUnique(ctx, storage.LineItems, id, name)
	if err != nil {
		return false, fmt.Errorf("rename line item: %w", err)
	}
	return ok, nil
}

func (s *GrantService) UpdateLineItemDetails(ctx context.Context, id int64, description string) error {
	if err := s.store.UpdateRecord(ctx, storage.LineItems, id, storage.Values{"description": description}); err != nil {
		return fmt.Errorf("update line item: %w", err)
	}
	return nil
}

// UpdateLineItemAllocation sets the allocated amount and returns the grant's allocation
// check. Existing forecast rows are not redistributed.
func (s *GrantService) UpdateLineItemAllocation(ctx context.Context, id int64, amount decimal.Decimal) (core.AllocationCheck, error) {
	if amount.IsNegative() {
		return core.AllocationCheck{}, &core.ValidationError{Field: "allocated_amount", Reason: "allocated amount must not be negative", Err: core.ErrInvalidAmount}
	}
	li, err := s.store.GetLineItem(ctx, id)
	if err != nil {
		return core.AllocationCheck{}, fmt.Errorf("update allocation: %w", err)
	}

	cents := core.Cents(amount)
	if err := s.store.UpdateRecord(ctx, storage.LineItems, id, storage.Values{"allocated_cents": cents}); err != nil {
		return core.AllocationCheck{}, fmt.Errorf("update allocation: %w", err)
	}

	ev := amqp.NewLedgerEvent(amqp.EventLineItemAllocated, li.GrantID, id)
	ev.AmountCents = cents
	publish(ctx, s.events, ev)

	return s.reconciler.CheckAllocation(ctx, li.GrantID)
}

// DeleteLineItem removes the line item with its mappings and expenses.
func (s *GrantService) DeleteLineItem(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.Delete(ctx, storage.LineItems, id)
	if err != nil {
		return false, fmt.Errorf("delete line item: %w", err)
	}
	return ok, nil
}

func (s *GrantService) GetLineItem(ctx context.Context, id int64) (core.LineItem, error) {
	return s.store.GetLineItem(ctx, id)
}

func (s *GrantService) LineItemByName(ctx context.Context, grantID int64, name string) (core.LineItem, error) {
	return s.store.LineItemByName(ctx, grantID, name)
}

func (s *GrantService) ListLineItems(ctx context.Context, grantID int64) ([]core.LineItem, error) {
	return s.store.ListLineItems(ctx, grantID)
}

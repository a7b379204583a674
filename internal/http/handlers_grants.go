package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
)

func (s *Server) handleListFunders(w http.ResponseWriter, r *http.Request) {
	funders, err := s.grants.ListFunders(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]funderJSON, 0, len(funders))
	for _, f := range funders {
		out = append(out, toFunderJSON(f))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateFunder(w http.ResponseWriter, r *http.Request) {
	var req funderRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	inserted, err := s.grants.AddFunder(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Type))
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	if !inserted {
		ConflictError(fmt.Sprintf("funder %q already exists", req.Name)).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created{Created: true}).Write(w)
}

func (s *Server) handleRenameFunder(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, "funder", s.grants.RenameFunder)
}

func (s *Server) handleDeleteFunder(w http.ResponseWriter, r *http.Request) {
	s.deleteGuarded(w, r, "funder still has grants", s.grants.DeleteFunder)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := s.grants.ListGrants(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]grantJSON, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantJSON(g))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	ctx := r.Context()
	inserted, err := s.grants.AddGrant(ctx, in)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	if !inserted {
		ConflictError(fmt.Sprintf("grant %q already exists", in.Name)).Write(w)
		return
	}

	g, err := s.grants.GrantByName(ctx, in.Name)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	slog.InfoContext(ctx, "Grant created via API", applog.FieldGrantID, g.ID, "name", g.Name)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/grants/%d", g.ID)).
		Data(toGrantJSON(g)).
		Write(w)
}

func (s *Server) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	g, err := s.grants.GetGrant(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toGrantJSON(g)).Write(w)
}

func (s *Server) handleUpdateGrant(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req grantRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	ctx := r.Context()
	ok, err := s.grants.UpdateGrant(ctx, id, in)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if !ok {
		ConflictError(fmt.Sprintf("grant %q already exists", in.Name)).Write(w)
		return
	}
	g, err := s.grants.GetGrant(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toGrantJSON(g)).Write(w)
}

func (s *Server) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	ok, err := s.grants.DeleteGrant(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError(fmt.Sprintf("grant %d not found", id)).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCheckAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	check, err := s.reconciler.CheckAllocation(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toAllocationJSON(check)).Write(w)
}

func (s *Server) handleListLineItems(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	ctx := r.Context()
	if _, err := s.grants.GetGrant(ctx, grantID); err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	items, err := s.grants.ListLineItems(ctx, grantID)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]lineItemJSON, 0, len(items))
	for _, li := range items {
		out = append(out, toLineItemJSON(li))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateLineItem(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req lineItemRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	allocated, err := req.AllocatedAmount.Parse("allocated_amount")
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	ctx := r.Context()
	li := core.LineItem{
		GrantID:         grantID,
		Name:            sanitizeInput(req.Name),
		Description:     sanitizeInput(req.Description),
		AllocatedAmount: allocated,
	}
	inserted, err := s.grants.AddLineItem(ctx, li)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	if !inserted {
		ConflictError(fmt.Sprintf("line item %q already exists in grant %d", li.Name, grantID)).Write(w)
		return
	}

	stored, err := s.grants.LineItemByName(ctx, grantID, li.Name)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/line-items/%d", stored.ID)).
		Data(toLineItemJSON(stored)).
		Write(w)
}

func (s *Server) handleGetLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	li, err := s.grants.GetLineItem(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toLineItemJSON(li)).Write(w)
}

// handlePatchLineItem renames and/or redescribes a line item. The rename runs
// first; a name collision leaves the description untouched.
func (s *Server) handlePatchLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req lineItemPatch
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if req.Name == nil && req.Description == nil {
		BadRequestError("nothing to update: set name and/or description").Write(w)
		return
	}

	ctx := r.Context()
	if req.Name != nil {
		ok, err := s.grants.RenameLineItem(ctx, id, sanitizeInput(*req.Name))
		if err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
		if !ok {
			ConflictError(fmt.Sprintf("line item %q already exists in this grant", *req.Name)).Write(w)
			return
		}
	}
	if req.Description != nil {
		if err := s.grants.UpdateLineItemDetails(ctx, id, sanitizeInput(*req.Description)); err != nil {
			s.fail(w, r, applog.OpUpdate, err)
			return
		}
	}

	li, err := s.grants.GetLineItem(ctx, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toLineItemJSON(li)).Write(w)
}

// handleUpdateAllocation answers with the grant's allocation check; an
// over-allocated grant is reported, not rejected.
func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
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
	check, err := s.grants.UpdateLineItemAllocation(r.Context(), id, amount)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(toAllocationJSON(check)).Write(w)
}

func (s *Server) handleDeleteLineItem(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	ok, err := s.grants.DeleteLineItem(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError(fmt.Sprintf("line item %d not found", id)).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

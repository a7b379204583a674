package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

const maxChartBytes = 4 << 20

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.chart.ListParentCategories(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		s.fail(w, r, applog.OpCreate, &core.ValidationError{Field: "name", Reason: "category name is required", Err: core.ErrEmptyName})
		return
	}
	inserted, err := s.chart.AddParentCategory(r.Context(), name, sanitizeInput(req.Description))
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.writeCreated(w, inserted, fmt.Sprintf("category %q already exists", name))
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, "category", s.chart.RenameParentCategory)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteGuarded(w, r, "category still has subcategories", s.chart.DeleteParentCategory)
}

// handleListSubcategories serves both the children of one category and, on
// the unscoped route, every subcategory.
func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	var parentID int64
	if r.PathValue("id") != "" {
		id, err := PathID(r, "id")
		if err != nil {
			s.fail(w, r, applog.OpList, err)
			return
		}
		parentID = id
	}
	subs, err := s.chart.ListSubcategories(r.Context(), parentID)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]subcategoryJSON, 0, len(subs))
	for _, sub := range subs {
		out = append(out, subcategoryJSON{ID: sub.ID, Name: sub.Name, ParentID: sub.ParentID})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateSubcategory(w http.ResponseWriter, r *http.Request) {
	parentID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req renameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		s.fail(w, r, applog.OpCreate, &core.ValidationError{Field: "name", Reason: "subcategory name is required", Err: core.ErrEmptyName})
		return
	}
	inserted, err := s.chart.AddSubcategory(r.Context(), parentID, name)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.writeCreated(w, inserted, fmt.Sprintf("subcategory %q already exists", name))
}

func (s *Server) handleRenameSubcategory(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, "subcategory", s.chart.RenameSubcategory)
}

func (s *Server) handleDeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	s.deleteGuarded(w, r, "subcategory still has codes", s.chart.DeleteSubcategory)
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codes, err := s.chart.ListCodes(r.Context(), storage.CodeFilter{
		Parent:      sanitizeInput(q.Get("parent")),
		Subcategory: sanitizeInput(q.Get("subcategory")),
	})
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]codeJSON, 0, len(codes))
	for _, c := range codes {
		out = append(out, toCodeJSON(c))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	c := core.Code{Code: sanitizeInput(req.Code), Name: sanitizeInput(req.Name), CategoryID: req.CategoryID}
	inserted, err := s.chart.AddCode(r.Context(), c)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.writeCreated(w, inserted, fmt.Sprintf("code %q already exists", c.Code))
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	c, err := s.chart.GetCode(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(toCodeJSON(c)).Write(w)
}

func (s *Server) handleRenameCode(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.chart.RenameCode(r.Context(), r.PathValue("code"), sanitizeInput(req.Name)); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteCode(w http.ResponseWriter, r *http.Request) {
	ok, err := s.chart.DeleteCode(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		DependencyError("code is still mapped or has actual expenses").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type importResultJSON struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// handleImportChart accepts the YAML chart of accounts as the raw request body.
func (s *Server) handleImportChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := s.chart.ImportChart(ctx, http.MaxBytesReader(w, r.Body, maxChartBytes))
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Chart imported via API", "inserted", res.Inserted, "skipped", res.Skipped)
	NewJSONResponse().Data(importResultJSON{Inserted: res.Inserted, Skipped: res.Skipped}).Write(w)
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	lineItemID, err := QueryID(r, "line_item_id")
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	mappings, err := s.chart.ListMappings(r.Context(), grantID, lineItemID)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]mappingJSON, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, toMappingJSON(m))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	grantID, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req mappingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	code := strings.TrimSpace(req.QBCode)
	if code == "" {
		s.fail(w, r, applog.OpCreate, &core.ValidationError{Field: "qb_code", Reason: "code is required", Err: core.ErrEmptyName})
		return
	}
	inserted, err := s.chart.AddMapping(r.Context(), grantID, req.LineItemID, code)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.writeCreated(w, inserted, fmt.Sprintf("line item %d is already mapped to %q", req.LineItemID, code))
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	ok, err := s.chart.DeleteMapping(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError(fmt.Sprintf("mapping %d not found", id)).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// writeCreated renders the outcome of an insert-if-not-exists.
func (s *Server) writeCreated(w http.ResponseWriter, inserted bool, conflict string) {
	if !inserted {
		ConflictError(conflict).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created{Created: true}).Write(w)
}

func (s *Server) rename(w http.ResponseWriter, r *http.Request, what string, fn func(ctx context.Context, id int64, name string) (bool, error)) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req renameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	name := sanitizeInput(req.Name)
	ok, err := fn(r.Context(), id, name)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if !ok {
		ConflictError(fmt.Sprintf("%s %q already exists", what, name)).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) deleteGuarded(w http.ResponseWriter, r *http.Request, blocked string, fn func(ctx context.Context, id int64) (bool, error)) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	ok, err := fn(r.Context(), id)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if !ok {
		DependencyError(blocked).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

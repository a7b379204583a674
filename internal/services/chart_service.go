package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"granttrack/internal/cache"
	"granttrack/internal/core"
	applog "granttrack/internal/log"
	"granttrack/internal/storage"
)

// ChartService maintains the parent category -> subcategory -> code tree and the
// line item to code mappings.
type ChartService struct {
	store *storage.Store
	codes cache.Cache[[]core.Code]
}

// NewChartService wires the service. codeCache memoizes ListCodes and may be nil.
func NewChartService(store *storage.Store, codeCache cache.Cache[[]core.Code]) *ChartService {
	return &ChartService{store: store, codes: codeCache}
}

func (s *ChartService) invalidate() {
	if s.codes != nil {
		s.codes.Purge()
	}
}

func (s *ChartService) AddParentCategory(ctx context.Context, name, description string) (bool, error) {
	inserted, err := s.store.InsertIfNotExists(ctx, storage.ParentCategories, storage.Values{"name": name, "description": description})
	if err != nil {
		return false, fmt.Errorf("add parent category: %w", err)
	}
	return inserted, nil
}

func (s *ChartService) RenameParentCategory(ctx context.Context, id int64, name string) (bool, error) {
	ok, err := s.store.UpdateNameIfUnique(ctx, storage.ParentCategories, id, name)
	if err != nil {
		return false, fmt.Errorf("rename parent category: %w", err)
	}
	if ok {
		s.invalidate()
	}
	return ok, nil
}

// DeleteParentCategory returns false while the category still has subcategories.
func (s *ChartService) DeleteParentCategory(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.DeleteIfNoDependents(ctx, storage.ParentCategories, id)
	if err != nil {
		return false, fmt.Errorf("delete parent category: %w", err)
	}
	return ok, nil
}

func (s *ChartService) ListParentCategories(ctx context.Context) ([]core.ParentCategory, error) {
	return s.store.ListParentCategories(ctx)
}

func (s *ChartService) AddSubcategory(ctx context.Context, parentID int64, name string) (bool, error) {
	if _, err := s.store.GetParentCategory(ctx, parentID); err != nil {
		return false, fmt.Errorf("add subcategory: %w", err)
	}
	inserted, err := s.store.InsertIfNotExists(ctx, storage.Subcategories, storage.Values{"name": name, "parent_id": parentID})
	if err != nil {
		return false, fmt.Errorf("add subcategory: %w", err)
	}
	return inserted, nil
}

func (s *ChartService) RenameSubcategory(ctx context.Context, id int64, name string) (bool, error) {
	ok, err := s.store.UpdateNameIfUnique(ctx, storage.Subcategories, id, name)
	if err != nil {
		return false, fmt.Errorf("rename subcategory: %w", err)
	}
	if ok {
		s.invalidate()
	}
	return ok, nil
}

// DeleteSubcategory returns false while codes remain under the subcategory.
func (s *ChartService) DeleteSubcategory(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.DeleteIfNoDependents(ctx, storage.Subcategories, id)
	if err != nil {
		return false, fmt.Errorf("delete subcategory: %w", err)
	}
	return ok, nil
}

// ListSubcategories lists the subcategories of parentID, or all of them when parentID is 0.
func (s *ChartService) ListSubcategories(ctx context.Context, parentID int64) ([]core.Subcategory, error) {
	return s.store.ListSubcategories(ctx, parentID)
}

func (s *ChartService) AddCode(ctx context.Context, c core.Code) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	if _, err := s.store.GetSubcategory(ctx, c.CategoryID); err != nil {
		return false, fmt.Errorf("add code: %w", err)
	}
	inserted, err := s.store.InsertIfNotExists(ctx, storage.Codes, storage.Values{
		"code":        c.Code,
		"name":        c.Name,
		"category_id": c.CategoryID,
	})
	if err != nil {
		return false, fmt.Errorf("add code: %w", err)
	}
	if inserted {
		s.invalidate()
	}
	return inserted, nil
}

// RenameCode changes the display name of a code. Code names need not be unique.
func (s *ChartService) RenameCode(ctx context.Context, code, name string) error {
	if strings.TrimSpace(name) == "" {
		return &core.ValidationError{Field: "name", Reason: "code name is required", Err: core.ErrEmptyName}
	}
	c, err := s.store.GetCode(ctx, code)
	if err != nil {
		return fmt.Errorf("rename code: %w", err)
	}
	if err := s.store.UpdateRecord(ctx, storage.Codes, c.Code, storage.Values{"name": name}); err != nil {
		return fmt.Errorf("rename code: %w", err)
	}
	s.invalidate()
	return nil
}

// DeleteCode returns false while mappings or actual expenses reference the code.
func (s *ChartService) DeleteCode(ctx context.Context, code string) (bool, error) {
	c, err := s.store.GetCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	ok, err := s.store.DeleteIfNoDependents(ctx, storage.Codes, c.Code)
	if err != nil {
		return false, fmt.Errorf("delete code: %w", err)
	}
	if ok {
		s.invalidate()
	}
	return ok, nil
}

func (s *ChartService) GetCode(ctx context.Context, code string) (core.Code, error) {
	return s.store.GetCode(ctx, code)
}

// ListCodes lists codes narrowed by parent category and/or subcategory name.
func (s *ChartService) ListCodes(ctx context.Context, filter storage.CodeFilter) ([]core.Code, error) {
	key := strings.ToLower(strings.TrimSpace(filter.Parent)) + "|" + strings.ToLower(strings.TrimSpace(filter.Subcategory))
	if s.codes != nil {
		if codes, ok := s.codes.Get(key); ok {
			return codes, nil
		}
	}

	codes, err := s.store.ListCodes(ctx, filter)
	if err != nil {
		return nil, err
	}
	if s.codes != nil {
		s.codes.Set(key, codes)
	}
	return codes, nil
}

// AddMapping links a line item to a code. The line item must belong to grantID. It
// returns false when the mapping already exists.
func (s *ChartService) AddMapping(ctx context.Context, grantID, lineItemID int64, code string) (bool, error) {
	li, err := s.store.GetLineItem(ctx, lineItemID)
	if err != nil {
		return false, fmt.Errorf("add mapping: %w", err)
	}
	if li.GrantID != grantID {
		return false, &core.ValidationError{
			Field:  "line_item_id",
			Reason: fmt.Sprintf("line item %d does not belong to grant %d", lineItemID, grantID),
		}
	}
	c, err := s.store.GetCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("add mapping: %w", err)
	}

	inserted, err := s.store.InsertIfNotExists(ctx, storage.Mappings, storage.Values{
		"grant_id":     grantID,
		"line_item_id": lineItemID,
		"qb_code":      c.Code,
	})
	if err != nil {
		return false, fmt.Errorf("add mapping: %w", err)
	}
	return inserted, nil
}

func (s *ChartService) DeleteMapping(ctx context.Context, id int64) (bool, error) {
	ok, err := s.store.Delete(ctx, storage.Mappings, id)
	if err != nil {
		return false, fmt.Errorf("delete mapping: %w", err)
	}
	return ok, nil
}

// ListMappings lists a grant's mappings; lineItemID 0 means every line item.
func (s *ChartService) ListMappings(ctx context.Context, grantID, lineItemID int64) ([]core.Mapping, error) {
	return s.store.ListMappings(ctx, grantID, lineItemID)
}

// ChartFile is the YAML layout accepted by ImportChart.
type ChartFile struct {
	Categories []struct {
		Name          string `yaml:"name"`
		Description   string `yaml:"description"`
		Subcategories []struct {
			Name  string `yaml:"name"`
			Codes []struct {
				Code string `yaml:"code"`
				Name string `yaml:"name"`
			} `yaml:"codes"`
		} `yaml:"subcategories"`
	} `yaml:"categories"`
}

// ImportResult counts rows across all three levels of an import.
type ImportResult struct {
	Inserted int
	Skipped  int
}

func (r *ImportResult) add(inserted bool) {
	if inserted {
		r.Inserted++
	} else {
		r.Skipped++
	}
}

// ImportChart loads a chart of accounts from YAML. Entries that already exist are
// skipped, so importing the same file twice inserts nothing the second time.
func (s *ChartService) ImportChart(ctx context.Context, r io.Reader) (ImportResult, error) {
	var file ChartFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, &core.ValidationError{Field: "chart", Reason: "invalid YAML: " + err.Error()}
	}

	var res ImportResult
	for _, cat := range file.Categories {
		inserted, err := s.AddParentCategory(ctx, cat.Name, cat.Description)
		if err != nil {
			return res, fmt.Errorf("import chart: %w", err)
		}
		res.add(inserted)
		parentID, err := s.store.LookupID(ctx, storage.ParentCategories, storage.Values{"name": cat.Name})
		if err != nil {
			return res, fmt.Errorf("import chart: %w", err)
		}

		for _, sub := range cat.Subcategories {
			inserted, err := s.AddSubcategory(ctx, parentID, sub.Name)
			if err != nil {
				return res, fmt.Errorf("import chart: %w", err)
			}
			res.add(inserted)
			subID, err := s.store.LookupID(ctx, storage.Subcategories, storage.Values{"name": sub.Name, "parent_id": parentID})
			if err != nil {
				return res, fmt.Errorf("import chart: %w", err)
			}

			for _, code := range sub.Codes {
				inserted, err := s.AddCode(ctx, core.Code{Code: code.Code, Name: code.Name, CategoryID: subID})
				if err != nil {
					return res, fmt.Errorf("import chart: code %q: %w", code.Code, err)
				}
				res.add(inserted)
			}
		}
	}

	slog.InfoContext(ctx, "Chart of accounts imported",
		applog.FieldComponent, applog.ComponentChart,
		"inserted", res.Inserted,
		"skipped", res.Skipped)
	return res, nil
}

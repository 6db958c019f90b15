package ledger

import (
	"context"
	"fmt"
	"strings"
)

// UpdateCategoryRequest renames a category or moves it to another group
type UpdateCategoryRequest struct {
	Name    *string `json:"name,omitempty"`
	GroupID *string `json:"group_id,omitempty"`
}

// GroupSpec declares a category group and its categories for EnsureCatalog
type GroupSpec struct {
	Name       string       `yaml:"name" json:"name"`
	Type       CategoryType `yaml:"type" json:"type"`
	Categories []string     `yaml:"categories" json:"categories"`
}

// CategoryUsage reports how many entries reference a category
type CategoryUsage struct {
	CategoryID string `json:"category_id"`
	EntryCount int    `json:"entry_count"`
	Deletable  bool   `json:"deletable"`
}

// Catalog returns the category catalog, from the cache when one is configured
func (s *LedgerService) Catalog(ctx context.Context) (*Catalog, error) {
	var generation int64
	cacheable := false
	if s.cache != nil {
		c, gen, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "catalog_cache_get_failed", "error", err)
		} else if ok {
			return c, nil
		} else {
			generation, cacheable = gen, true
		}
	}

	var snap CatalogSnapshot
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		groups, err := tx.ListGroups(ctx)
		if err != nil {
			return fmt.Errorf("failed to list category groups: %w", err)
		}
		cats, err := tx.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		snap = CatalogSnapshot{Groups: groups, Categories: cats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	catalog := NewCatalog(snap)

	if cacheable {
		if err := s.cache.Set(ctx, generation, catalog); err != nil {
			s.logger.WarnContext(ctx, "catalog_cache_set_failed", "error", err)
		}
	}
	return catalog, nil
}

func (s *LedgerService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "catalog_cache_invalidate_failed", "error", err)
	}
}

// CreateGroup adds a category group
func (s *LedgerService) CreateGroup(ctx context.Context, name string, t CategoryType) (*CategoryGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidInput("name", "name is required")
	}
	if !ValidCategoryType(t) {
		return nil, InvalidInput("type", fmt.Sprintf("unknown category type %q", t))
	}
	g := &CategoryGroup{ID: s.newID(), Name: name, Type: t, CreatedAt: s.now().UTC()}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindGroup(ctx, name, t)
		if err != nil && CodeOf(err) != CodeNotFound {
			return err
		}
		if existing != nil {
			return InvalidInput("name", fmt.Sprintf("%s group %q already exists", t, name))
		}
		return tx.InsertGroup(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return g, nil
}

// ListGroups returns category groups in presentation order
func (s *LedgerService) ListGroups(ctx context.Context) ([]CategoryGroup, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.Snapshot().Groups, nil
}

// CreateCategory adds a category to a group; the group decides its type
func (s *LedgerService) CreateCategory(ctx context.Context, name, groupID string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidInput("name", "name is required")
	}
	var cat *Category
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if err := ensureUniqueCategory(ctx, tx, g.ID, name, ""); err != nil {
			return err
		}
		cat = &Category{ID: s.newID(), Name: name, GroupID: g.ID, GroupName: g.Name, Type: g.Type, CreatedAt: s.now().UTC()}
		return tx.InsertCategory(ctx, cat)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	s.logger.InfoContext(ctx, "category_created", "category_id", cat.ID, "group_id", groupID, "caller", CallerFromContext(ctx))
	return cat, nil
}

func ensureUniqueCategory(ctx context.Context, tx Tx, groupID, name, selfID string) error {
	existing, err := tx.FindCategory(ctx, groupID, name)
	if err != nil && CodeOf(err) != CodeNotFound {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return InvalidInput("name", fmt.Sprintf("category %q already exists in group", name))
	}
	return nil
}

// UpdateCategory renames or regroups a category
func (s *LedgerService) UpdateCategory(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error) {
	var cat *Category
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if req.GroupID != nil && *req.GroupID != c.GroupID {
			g, err := tx.GetGroup(ctx, *req.GroupID)
			if err != nil {
				return err
			}
			c.GroupID, c.GroupName, c.Type = g.ID, g.Name, g.Type
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return InvalidInput("name", "name must not be empty")
			}
			c.Name = name
		}
		if err := ensureUniqueCategory(ctx, tx, c.GroupID, c.Name, c.ID); err != nil {
			return err
		}
		if err := tx.UpdateCategory(ctx, c); err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}
		cat = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return cat, nil
}

// DeleteCategory removes a category that no entry references
func (s *LedgerService) DeleteCategory(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountCategoryEntries(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count category entries: %w", err)
		}
		if n > 0 {
			return ReferencedEntity("category", id, n)
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	s.logger.InfoContext(ctx, "category_deleted", "category_id", id, "caller", CallerFromContext(ctx))
	return nil
}

// ListByType returns categories in presentation order, all types when t is empty
func (s *LedgerService) ListByType(ctx context.Context, t CategoryType) ([]Category, error) {
	if t != "" && !ValidCategoryType(t) {
		return nil, InvalidInput("type", fmt.Sprintf("unknown category type %q", t))
	}
	c, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.Categories(t), nil
}

// CategoryUsage reports whether a category can be deleted
func (s *LedgerService) CategoryUsage(ctx context.Context, id string) (*CategoryUsage, error) {
	var usage *CategoryUsage
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountCategoryEntries(ctx, id)
		if err != nil {
			return err
		}
		usage = &CategoryUsage{CategoryID: id, EntryCount: n, Deletable: n == 0}
		return nil
	})
	return usage, err
}

// EnsureCatalog creates any missing groups and categories from specs and
// returns how many records it created. Existing records are left alone.
func (s *LedgerService) EnsureCatalog(ctx context.Context, specs []GroupSpec) (int, error) {
	created := 0
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()
		for _, spec := range specs {
			if !ValidCategoryType(spec.Type) {
				return InvalidInput("type", fmt.Sprintf("group %q has unknown type %q", spec.Name, spec.Type))
			}
			g, err := tx.FindGroup(ctx, spec.Name, spec.Type)
			if err != nil && CodeOf(err) != CodeNotFound {
				return err
			}
			if g == nil {
				g = &CategoryGroup{ID: s.newID(), Name: spec.Name, Type: spec.Type, CreatedAt: now}
				if err := tx.InsertGroup(ctx, g); err != nil {
					return fmt.Errorf("failed to create group %q: %w", spec.Name, err)
				}
				created++
			}
			for _, name := range spec.Categories {
				c, err := tx.FindCategory(ctx, g.ID, name)
				if err != nil && CodeOf(err) != CodeNotFound {
					return err
				}
				if c != nil {
					continue
				}
				c = &Category{ID: s.newID(), Name: name, GroupID: g.ID, GroupName: g.Name, Type: g.Type, CreatedAt: now}
				if err := tx.InsertCategory(ctx, c); err != nil {
					return fmt.Errorf("failed to create category %q: %w", name, err)
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.invalidateCatalog(ctx)
	}
	return created, nil
}

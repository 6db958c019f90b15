package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/ledger-core/internal/ledger"
)

func (t *sqlTx) InsertGroup(ctx context.Context, g *ledger.CategoryGroup) error {
	_, err := t.exec(ctx, `INSERT INTO category_groups (id, name, group_type, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Type), g.CreatedAt)
	return err
}

func (t *sqlTx) scanGroup(row scanner, id string) (*ledger.CategoryGroup, error) {
	g := &ledger.CategoryGroup{}
	err := row.Scan(&g.ID, &g.Name, &g.Type, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NotFound("category group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category group: %w", err)
	}
	return g, nil
}

func (t *sqlTx) GetGroup(ctx context.Context, id string) (*ledger.CategoryGroup, error) {
	row := t.queryRow(ctx, `SELECT id, name, group_type, created_at FROM category_groups WHERE id = ?`, id)
	return t.scanGroup(row, id)
}

func (t *sqlTx) FindGroup(ctx context.Context, name string, typ ledger.CategoryType) (*ledger.CategoryGroup, error) {
	row := t.queryRow(ctx, `SELECT id, name, group_type, created_at FROM category_groups
		WHERE name = ? AND group_type = ?`, name, string(typ))
	return t.scanGroup(row, name)
}

func (t *sqlTx) ListGroups(ctx context.Context) ([]ledger.CategoryGroup, error) {
	rows, err := t.query(ctx, `SELECT id, name, group_type, created_at FROM category_groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category groups: %w", err)
	}
	defer rows.Close()

	var groups []ledger.CategoryGroup
	for rows.Next() {
		var g ledger.CategoryGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Type, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

const categoryColumns = `c.id, c.name, c.group_id, g.name, g.group_type, c.created_at`

const categoryFrom = ` FROM categories c JOIN category_groups g ON g.id = c.group_id`

func (t *sqlTx) scanCategory(row scanner, id string) (*ledger.Category, error) {
	c := &ledger.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.GroupID, &c.GroupName, &c.Type, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (t *sqlTx) InsertCategory(ctx context.Context, c *ledger.Category) error {
	_, err := t.exec(ctx, `INSERT INTO categories (id, name, group_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.GroupID, c.CreatedAt)
	return err
}

func (t *sqlTx) GetCategory(ctx context.Context, id string) (*ledger.Category, error) {
	row := t.queryRow(ctx, `SELECT `+categoryColumns+categoryFrom+` WHERE c.id = ?`, id)
	return t.scanCategory(row, id)
}

func (t *sqlTx) FindCategory(ctx context.Context, groupID, name string) (*ledger.Category, error) {
	row := t.queryRow(ctx, `SELECT `+categoryColumns+categoryFrom+` WHERE c.group_id = ? AND c.name = ?`, groupID, name)
	return t.scanCategory(row, name)
}

func (t *sqlTx) UpdateCategory(ctx context.Context, c *ledger.Category) error {
	res, err := t.exec(ctx, `UPDATE categories SET name = ?, group_id = ? WHERE id = ?`, c.Name, c.GroupID, c.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "category", c.ID)
}

func (t *sqlTx) DeleteCategory(ctx context.Context, id string) error {
	res, err := t.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectOne(res, "category", id)
}

func (t *sqlTx) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := t.query(ctx, `SELECT `+categoryColumns+categoryFrom+` ORDER BY g.name, c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.GroupID, &c.GroupName, &c.Type, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (t *sqlTx) CountCategoryEntries(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE category_id = ?`, categoryID).Scan(&n)
	return n, err
}

package ledger

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// UncategorizedName is the display name for entries without a resolvable category
const UncategorizedName = "Uncategorized"

// Names of the TRANSFER-group categories the ledger creates on demand
const (
	SystemGroupName            = "Transfers"
	TransferCategoryName       = "Transfer"
	OpeningBalanceCategoryName = "Opening Balance"
)

// CategoryGroup owns categories and determines their type
type CategoryGroup struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// Category is a leaf of the catalog. GroupName and Type are denormalised from the group.
type Category struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	GroupID   string       `json:"group_id"`
	GroupName string       `json:"group_name"`
	Type      CategoryType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// CatalogSnapshot is the serialisable form of a Catalog
type CatalogSnapshot struct {
	Groups     []CategoryGroup `json:"groups"`
	Categories []Category      `json:"categories"`
}

// Catalog is an immutable lookup view over category groups and categories
type Catalog struct {
	groups     map[string]CategoryGroup
	categories map[string]Category
	ordered    []Category
}

// NewCatalog indexes a snapshot. Category type and group name always come from the group.
func NewCatalog(snap CatalogSnapshot) *Catalog {
	c := &Catalog{
		groups:     make(map[string]CategoryGroup, len(snap.Groups)),
		categories: make(map[string]Category, len(snap.Categories)),
	}
	for _, g := range snap.Groups {
		c.groups[g.ID] = g
	}
	for _, cat := range snap.Categories {
		if g, ok := c.groups[cat.GroupID]; ok {
			cat.GroupName = g.Name
			cat.Type = g.Type
		}
		c.categories[cat.ID] = cat
		c.ordered = append(c.ordered, cat)
	}
	SortCategories(c.ordered)
	return c
}

// Lookup returns the category with id
func (c *Catalog) Lookup(id string) (Category, bool) {
	if c == nil || id == "" {
		return Category{}, false
	}
	cat, ok := c.categories[id]
	return cat, ok
}

// Group returns the group with id
func (c *Catalog) Group(id string) (CategoryGroup, bool) {
	if c == nil {
		return CategoryGroup{}, false
	}
	g, ok := c.groups[id]
	return g, ok
}

// Categories returns all categories in presentation order, optionally limited to one type
func (c *Catalog) Categories(t CategoryType) []Category {
	if c == nil {
		return nil
	}
	out := make([]Category, 0, len(c.ordered))
	for _, cat := range c.ordered {
		if t == "" || cat.Type == t {
			out = append(out, cat)
		}
	}
	return out
}

// Snapshot returns the serialisable form of the catalog
func (c *Catalog) Snapshot() CatalogSnapshot {
	snap := CatalogSnapshot{}
	if c == nil {
		return snap
	}
	for _, g := range c.groups {
		snap.Groups = append(snap.Groups, g)
	}
	slices.SortFunc(snap.Groups, compareGroups)
	snap.Categories = append(snap.Categories, c.ordered...)
	return snap
}

// EffectiveCategory is the display-ready category view of an entry
type EffectiveCategory struct {
	Kind         string       `json:"type"`
	CategoryID   string       `json:"category_id,omitempty"`
	CategoryName string       `json:"category_name"`
	CategoryType CategoryType `json:"category_type,omitempty"`
	GroupName    string       `json:"group_name,omitempty"`
}

const (
	EffectiveDirect        = "direct"
	EffectiveUncategorized = "uncategorized"
)

// ResolveCategory derives the effective category of an entry. A category id
// missing from the catalog resolves to uncategorized.
func ResolveCategory(e *Entry, catalog *Catalog) EffectiveCategory {
	if e != nil {
		if cat, ok := catalog.Lookup(e.CategoryID); ok {
			return EffectiveCategory{
				Kind:         EffectiveDirect,
				CategoryID:   cat.ID,
				CategoryName: cat.Name,
				CategoryType: cat.Type,
				GroupName:    cat.GroupName,
			}
		}
	}
	return EffectiveCategory{Kind: EffectiveUncategorized, CategoryName: UncategorizedName}
}

// CategoryTypeRank gives the fixed presentation order INCOME, EXPENSE, TRANSFER
func CategoryTypeRank(t CategoryType) int {
	switch t {
	case CategoryTypeIncome:
		return 0
	case CategoryTypeExpense:
		return 1
	case CategoryTypeTransfer:
		return 2
	default:
		return 3
	}
}

// CompareCategories orders by group type rank, then group name, then category name
func CompareCategories(a, b Category) int {
	if c := cmp.Compare(CategoryTypeRank(a.Type), CategoryTypeRank(b.Type)); c != 0 {
		return c
	}
	if c := compareNames(a.GroupName, b.GroupName); c != 0 {
		return c
	}
	return compareNames(a.Name, b.Name)
}

// SortCategories sorts in place with CompareCategories, keeping ties in input order
func SortCategories(cats []Category) {
	slices.SortStableFunc(cats, CompareCategories)
}

func compareGroups(a, b CategoryGroup) int {
	if c := cmp.Compare(CategoryTypeRank(a.Type), CategoryTypeRank(b.Type)); c != 0 {
		return c
	}
	if c := compareNames(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareNames(a, b string) int {
	if c := cmp.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// EntryFilter narrows entry listings. The same shape drives bulk selections.
type EntryFilter struct {
	AccountIDs        []string            `json:"account_ids,omitempty"`
	CategoryIDs       []string            `json:"category_ids,omitempty"`
	DateFrom          string              `json:"date_from,omitempty"`
	DateTo            string              `json:"date_to,omitempty"`
	Search            string              `json:"search,omitempty"`
	TransfersOnly     bool                `json:"transfers_only,omitempty"`
	UncategorizedOnly bool                `json:"uncategorized_only,omitempty"`
	IncludeReconciled *bool               `json:"include_reconciled,omitempty"`
	Direction         Direction           `json:"direction,omitempty"`
	AmountMin         decimal.NullDecimal `json:"amount_min"`
	AmountMax         decimal.NullDecimal `json:"amount_max"`
}

// ExcludesReconciled reports whether matched and cleared entries are filtered out
func (f EntryFilter) ExcludesReconciled() bool {
	return f.IncludeReconciled != nil && !*f.IncludeReconciled
}

// Normalize validates the filter and returns a cleaned copy
func (f EntryFilter) Normalize() (EntryFilter, error) {
	out := f
	out.AccountIDs = dedupe(f.AccountIDs)
	out.CategoryIDs = dedupe(f.CategoryIDs)
	out.Search = strings.TrimSpace(f.Search)

	if f.DateFrom != "" {
		d, err := NormalizeDate(f.DateFrom)
		if err != nil {
			return EntryFilter{}, InvalidInput("date_from", err.Error())
		}
		out.DateFrom = d
	}
	if f.DateTo != "" {
		d, err := NormalizeDate(f.DateTo)
		if err != nil {
			return EntryFilter{}, InvalidInput("date_to", err.Error())
		}
		out.DateTo = d
	}
	if out.DateFrom != "" && out.DateTo != "" && out.DateFrom > out.DateTo {
		return EntryFilter{}, InvalidInput("date_from", "date_from must not be after date_to")
	}
	if f.Direction != "" && f.Direction != DirectionIn && f.Direction != DirectionOut {
		return EntryFilter{}, InvalidInput("direction", fmt.Sprintf("unknown direction %q", f.Direction))
	}
	if f.AmountMin.Valid && f.AmountMax.Valid && f.AmountMin.Decimal.GreaterThan(f.AmountMax.Decimal) {
		return EntryFilter{}, InvalidInput("amount_min", "amount_min must not exceed amount_max")
	}
	return out, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Cursor is the keyset position of the last entry on a page. Listings are
// ordered by effective date then id, both descending.
type Cursor struct {
	Date string `json:"d"`
	ID   string `json:"id"`
}

// CursorAfter returns the cursor that resumes after e
func CursorAfter(e *Entry) Cursor {
	return Cursor{Date: e.EffectiveDate, ID: e.ID}
}

// EncodeCursor encodes a cursor as an opaque base64 JSON token
func EncodeCursor(c Cursor) (string, error) {
	if c.ID == "" || c.Date == "" {
		return "", ErrInvalidCursor
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a token produced by EncodeCursor
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &Error{Code: CodeInvalidCursor, Message: "cursor is not valid base64"}
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, &Error{Code: CodeInvalidCursor, Message: "cursor is malformed"}
	}
	if c.ID == "" {
		return Cursor{}, &Error{Code: CodeInvalidCursor, Message: "cursor is missing an entry id"}
	}
	if _, err := NormalizeDate(c.Date); err != nil {
		return Cursor{}, &Error{Code: CodeInvalidCursor, Message: "cursor carries an invalid date"}
	}
	return c, nil
}

// ClampLimit applies the default and maximum page sizes
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// EntryPage is one page of a filtered listing
type EntryPage struct {
	Entries    []*Entry `json:"entries"`
	HasMore    bool     `json:"has_more"`
	NextCursor string   `json:"next_cursor,omitempty"`
	TotalCount int      `json:"total_count"`
}

// FilterSummary describes the population matched by a filter
type FilterSummary struct {
	EarliestDate     string   `json:"earliest_date,omitempty"`
	LatestDate       string   `json:"latest_date,omitempty"`
	AffectedAccounts []string `json:"affected_accounts"`
}

// MaxSummaryAccounts caps the account names reported in a FilterSummary
const MaxSummaryAccounts = 10

// FilteredIDs is every entry id matching a filter, in listing order
type FilteredIDs struct {
	IDs        []string      `json:"ids"`
	TotalCount int           `json:"total_count"`
	Summary    FilterSummary `json:"summary"`
}

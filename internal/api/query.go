package api

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/example/ledger-core/internal/ledger"
)

// entryFilterFromQuery reads a listing filter from query parameters.
// account_id and category_id may repeat.
func entryFilterFromQuery(q url.Values) (ledger.EntryFilter, error) {
	f := ledger.EntryFilter{
		AccountIDs:  q["account_id"],
		CategoryIDs: q["category_id"],
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
		Search:      q.Get("search"),
		Direction:   ledger.Direction(q.Get("direction")),
	}

	var err error
	if f.TransfersOnly, err = queryBool(q, "transfers_only"); err != nil {
		return f, err
	}
	if f.UncategorizedOnly, err = queryBool(q, "uncategorized_only"); err != nil {
		return f, err
	}
	if q.Has("include_reconciled") {
		v, err := queryBool(q, "include_reconciled")
		if err != nil {
			return f, err
		}
		f.IncludeReconciled = &v
	}
	if f.AmountMin, err = queryDecimal(q, "amount_min"); err != nil {
		return f, err
	}
	if f.AmountMax, err = queryDecimal(q, "amount_max"); err != nil {
		return f, err
	}
	return f, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ledger.InvalidInput(key, fmt.Sprintf("%s must be true or false", key))
	}
	return b, nil
}

func queryDecimal(q url.Values, key string) (decimal.NullDecimal, error) {
	v := q.Get(key)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, ledger.InvalidInput(key, fmt.Sprintf("%s must be a decimal number", key))
	}
	return decimal.NewNullDecimal(d), nil
}

func queryLimit(q url.Values) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, ledger.InvalidInput("limit", "limit must be a positive integer")
	}
	return n, nil
}

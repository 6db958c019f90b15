package ledger_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/store"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.SQLStore
	svc   *ledger.LedgerService
	cache *memoryCache
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	st, err := store.OpenSQLite(store.MemoryDSN)
	s.Require().NoError(err)
	s.Require().NoError(st.Migrate(context.Background()))

	s.ctx = ledger.WithCaller(context.Background(), "user-1")
	s.store = st
	s.cache = &memoryCache{}
	s.svc = ledger.NewLedgerService(st,
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithCatalogCache(s.cache),
		ledger.WithClock(func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) }),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// memoryCache is an in-process CatalogCache that records invalidations.
// beforeSet, when set, runs once just before a catalog is stored.
type memoryCache struct {
	generation  int64
	catalogs    map[int64]*ledger.Catalog
	hits        int
	invalidated int
	beforeSet   func()
}

func (c *memoryCache) Get(ctx context.Context) (*ledger.Catalog, int64, bool, error) {
	cat, ok := c.catalogs[c.generation]
	if !ok {
		return nil, c.generation, false, nil
	}
	c.hits++
	return cat, c.generation, true, nil
}

func (c *memoryCache) Set(ctx context.Context, generation int64, catalog *ledger.Catalog) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	if c.catalogs == nil {
		c.catalogs = map[int64]*ledger.Catalog{}
	}
	c.catalogs[generation] = catalog
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context) error {
	c.generation++
	c.invalidated++
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *ServiceSuite) checking(name string) *ledger.Account {
	a, err := s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: name, Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeChecking,
	})
	s.Require().NoError(err)
	return a
}

func (s *ServiceSuite) post(accountID, date, amount string, dir ledger.Direction, desc string) *ledger.Entry {
	e, err := s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: accountID, EffectiveDate: date, Amount: dec(amount), Direction: dir, Description: desc,
	})
	s.Require().NoError(err)
	return e
}

func (s *ServiceSuite) balance(accountID string) decimal.Decimal {
	a, err := s.svc.GetAccount(s.ctx, accountID)
	s.Require().NoError(err)
	return a.CurrentBalance.Decimal
}

func (s *ServiceSuite) assertBalance(accountID, want string) {
	got := s.balance(accountID)
	s.True(got.Equal(dec(want)), "balance: got %s want %s", got, want)
}

func (s *ServiceSuite) TestCreateAccountDefaults() {
	a := s.checking("Everyday")
	s.Equal("USD", a.Currency)
	s.Equal("user-1", a.CreatedBy)
	s.True(a.CurrentBalance.IsZero())

	_, err := s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Card", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeCredit,
	})
	s.ErrorIs(err, ledger.ErrInvalidInput)

	_, err = s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Euro", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeSavings, Currency: "euro",
	})
	s.ErrorIs(err, ledger.ErrInvalidInput)
}

func (s *ServiceSuite) TestOpeningBalancePostsEntry() {
	a, err := s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Savings", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeSavings,
		OpeningBalance: dec("1000.00"), OpeningDate: "2024-01-01",
	})
	s.Require().NoError(err)
	s.True(a.CurrentBalance.Equal(dec("1000")))

	page, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{AccountIDs: []string{a.ID}}, "", 0)
	s.Require().NoError(err)
	s.Require().Len(page.Entries, 1)
	opening := page.Entries[0]
	s.Equal("2024-01-01", opening.EffectiveDate)
	s.Equal(ledger.DirectionIn, opening.Direction)

	catalog, err := s.svc.Catalog(s.ctx)
	s.Require().NoError(err)
	eff := ledger.ResolveCategory(opening, catalog)
	s.Equal(ledger.OpeningBalanceCategoryName, eff.CategoryName)
	s.Equal(ledger.CategoryTypeTransfer, eff.CategoryType)
}

func (s *ServiceSuite) TestEntrySignsByAccountType() {
	asset := s.checking("Checking")
	card, err := s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Visa", Type: ledger.AccountTypeLiability, Subtype: ledger.SubtypeCredit,
		CreditLimit: decimal.NewNullDecimal(dec("5000")),
	})
	s.Require().NoError(err)

	out := s.post(asset.ID, "2024-03-01", "50.00", ledger.DirectionOut, "groceries")
	s.True(out.SignedAmount.Equal(dec("-50.00")))
	s.True(out.RawAmount.Equal(dec("50.00")))

	charge := s.post(card.ID, "2024-03-01", "50.00", ledger.DirectionIn, "charge")
	s.True(charge.SignedAmount.Equal(dec("50.00")))

	s.assertBalance(asset.ID, "-50")
	s.assertBalance(card.ID, "50")

	_, err = s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: asset.ID, EffectiveDate: "2024-03-01", Amount: decimal.Zero, Direction: ledger.DirectionIn,
	})
	s.ErrorIs(err, ledger.ErrInvalidAmount)
}

func (s *ServiceSuite) TestMoneyRendersWithTwoDecimals() {
	a := s.checking("Checking")
	out := s.post(a.ID, "2024-03-01", "50.00", ledger.DirectionOut, "groceries")

	raw, err := json.Marshal(out)
	s.Require().NoError(err)
	var rendered map[string]any
	s.Require().NoError(json.Unmarshal(raw, &rendered))
	s.Equal("-50.00", rendered["signed_amount"])
	s.Equal("50.00", rendered["raw_amount"])

	acc, err := s.svc.GetAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	raw, err = json.Marshal(acc)
	s.Require().NoError(err)
	s.Contains(string(raw), `"current_balance":"-50.00"`)
	s.Contains(string(raw), `"credit_limit":null`)
}

func (s *ServiceSuite) TestSubCentAmountsAreRejected() {
	a, b := s.checking("Checking"), s.checking("Savings")

	_, err := s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: a.ID, EffectiveDate: "2024-03-01", Amount: dec("0.001"), Direction: ledger.DirectionOut,
	})
	s.ErrorIs(err, ledger.ErrInvalidAmount)

	_, err = s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec("10.005"), EffectiveDate: "2024-03-01",
	})
	s.ErrorIs(err, ledger.ErrInvalidAmount)

	_, err = s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Odd", Type: ledger.AccountTypeAsset, Subtype: ledger.SubtypeSavings, OpeningBalance: dec("1.999"),
	})
	s.ErrorIs(err, ledger.ErrInvalidAmount)

	_, err = s.svc.CreateAccount(s.ctx, ledger.CreateAccountRequest{
		Name: "Card", Type: ledger.AccountTypeLiability, Subtype: ledger.SubtypeCredit,
		CreditLimit: decimal.NewNullDecimal(dec("100.001")),
	})
	s.ErrorIs(err, ledger.ErrInvalidInput)

	// trailing zeros are not extra precision
	e := s.post(a.ID, "2024-03-01", "1.500", ledger.DirectionIn, "refund")
	s.Equal("1.50", e.RawAmount.StringFixed(ledger.MoneyScale))
	s.assertBalance(a.ID, "1.5")
	s.assertBalance(b.ID, "0")
}

func (s *ServiceSuite) TestCreateEntryUnknownReferences() {
	a := s.checking("Checking")

	_, err := s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: "missing", EffectiveDate: "2024-03-01", Amount: dec("1"), Direction: ledger.DirectionIn,
	})
	s.ErrorIs(err, ledger.ErrNotFound)

	_, err = s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: a.ID, EffectiveDate: "2024-03-01", Amount: dec("1"), Direction: ledger.DirectionIn, CategoryID: "missing",
	})
	s.ErrorIs(err, ledger.ErrNotFound)
	s.assertBalance(a.ID, "0")
}

func (s *ServiceSuite) TestRecomputeBalanceIsIdempotent() {
	a := s.checking("Checking")
	s.post(a.ID, "2024-01-01", "100.10", ledger.DirectionIn, "pay")
	s.post(a.ID, "2024-01-02", "40.05", ledger.DirectionOut, "bill")

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SetBalance(ctx, a.ID, dec("999"))
	})
	s.Require().NoError(err)

	first, err := s.svc.RecomputeBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(first.Changed)
	s.True(first.Previous.Equal(dec("999")))
	s.True(first.Current.Equal(dec("60.05")))

	second, err := s.svc.RecomputeBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(second.Changed)
	s.True(second.Current.Equal(first.Current.Decimal))

	refresh, err := s.svc.RefreshBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(refresh.WasUpdated)
	s.True(refresh.Difference.IsZero())
}

func (s *ServiceSuite) TestRefreshBalanceToleratesOneCent() {
	a := s.checking("Checking")
	s.post(a.ID, "2024-01-01", "100.00", ledger.DirectionIn, "pay")

	setBalance := func(v string) {
		err := s.store.WithTx(s.ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.SetBalance(ctx, a.ID, dec(v))
		})
		s.Require().NoError(err)
	}

	setBalance("100.005")
	refresh, err := s.svc.RefreshBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(refresh.WasUpdated)
	s.True(refresh.Difference.Equal(dec("-0.005")), "difference %s", refresh.Difference)
	s.assertBalance(a.ID, "100.005")

	setBalance("99.99")
	refresh, err = s.svc.RefreshBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(refresh.WasUpdated)
	s.assertBalance(a.ID, "99.99")

	setBalance("99.50")
	refresh, err = s.svc.RefreshBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(refresh.WasUpdated)
	s.True(refresh.Previous.Equal(dec("99.50")))
	s.True(refresh.Current.Equal(dec("100")))
	s.True(refresh.Difference.Equal(dec("0.50")))
	s.assertBalance(a.ID, "100")

	// recompute stays exact
	setBalance("100.005")
	recomputed, err := s.svc.RecomputeBalance(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(recomputed.Changed)
	s.assertBalance(a.ID, "100")
}

func (s *ServiceSuite) TestTransferPair() {
	from := s.checking("Checking")
	to := s.checking("Savings")

	tr, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("250.00"), EffectiveDate: "2024-04-01",
	})
	s.Require().NoError(err)

	s.True(tr.Out.SignedAmount.Equal(dec("-250")))
	s.True(tr.In.SignedAmount.Equal(dec("250")))
	s.Equal(tr.Out.EffectiveDate, tr.In.EffectiveDate)
	s.Equal(tr.In.ID, tr.Out.Transfer.CounterpartEntryID)
	s.Equal(tr.Out.ID, tr.In.Transfer.CounterpartEntryID)
	s.Equal(tr.Out.CategoryID, tr.In.CategoryID)
	s.Equal("Transfer to Savings", tr.Out.Description)
	s.Equal("Transfer from Checking", tr.In.Description)
	s.assertBalance(from.ID, "-250")
	s.assertBalance(to.ID, "250")

	got, err := s.svc.GetTransfer(s.ctx, tr.ID)
	s.Require().NoError(err)
	s.Equal(tr.Out.ID, got.Out.ID)
	s.Equal(tr.In.ID, got.In.ID)

	listed, err := s.svc.ListTransfers(s.ctx, to.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(tr.ID, listed[0].ID)

	report, err := ledger.NewValidator(s.store).ValidateTransferPairs(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(report, 1)
	s.True(report[0].IsValid, report[0].Message)
}

func (s *ServiceSuite) TestTransferRejectsSameAccount() {
	a := s.checking("Checking")

	_, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: a.ID, ToAccountID: a.ID, Amount: dec("10"), EffectiveDate: "2024-04-01",
	})
	s.ErrorIs(err, ledger.ErrSameAccount)

	n, err := s.svc.CountEntries(s.ctx, ledger.EntryFilter{})
	s.Require().NoError(err)
	s.Zero(n)
	s.assertBalance(a.ID, "0")
}

func (s *ServiceSuite) TestTransferRejectsNonTransferCategory() {
	from, to := s.checking("A"), s.checking("B")
	g, err := s.svc.CreateGroup(s.ctx, "Living", ledger.CategoryTypeExpense)
	s.Require().NoError(err)
	rent, err := s.svc.CreateCategory(s.ctx, "Rent", g.ID)
	s.Require().NoError(err)

	_, err = s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("10"), EffectiveDate: "2024-04-01", CategoryID: rent.ID,
	})
	s.ErrorIs(err, ledger.ErrInvalidInput)

	_, err = s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("-10"), EffectiveDate: "2024-04-01",
	})
	s.ErrorIs(err, ledger.ErrInvalidAmount)
}

func (s *ServiceSuite) TestDeleteTransferSideOrphansCounterpart() {
	from, to := s.checking("Checking"), s.checking("Savings")
	tr, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("80"), EffectiveDate: "2024-04-02",
	})
	s.Require().NoError(err)

	res, err := s.svc.DeleteEntry(s.ctx, tr.Out.ID)
	s.Require().NoError(err)
	s.Equal(tr.In.ID, res.OrphanedEntryID)

	in, err := s.svc.GetEntry(s.ctx, tr.In.ID)
	s.Require().NoError(err)
	s.Require().NotNil(in.Transfer)
	s.True(in.Transfer.Orphaned)
	s.Empty(in.Transfer.CounterpartEntryID)

	s.assertBalance(from.ID, "0")
	s.assertBalance(to.ID, "80")

	report, err := ledger.NewValidator(s.store).ValidateTransferPairs(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(report, 1)
	s.False(report[0].IsValid)
	s.Equal(true, report[0].Details["orphaned"])
}

func (s *ServiceSuite) TestDeleteTransferRemovesBothSides() {
	from, to := s.checking("Checking"), s.checking("Savings")
	tr, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("80"), EffectiveDate: "2024-04-02",
	})
	s.Require().NoError(err)

	del, err := s.svc.DeleteTransfer(s.ctx, tr.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{tr.Out.ID, tr.In.ID}, del.DeletedEntryIDs)
	s.assertBalance(from.ID, "0")
	s.assertBalance(to.ID, "0")

	_, err = s.svc.GetTransfer(s.ctx, tr.ID)
	s.ErrorIs(err, ledger.ErrNotFound)
}

func (s *ServiceSuite) TestUpdateEntryImmutableFields() {
	a := s.checking("Checking")
	e := s.post(a.ID, "2024-05-01", "12.00", ledger.DirectionOut, "lunch")

	other := dec("13.00")
	_, err := s.svc.UpdateEntry(s.ctx, e.ID, ledger.UpdateEntryRequest{Amount: &other})
	s.ErrorIs(err, ledger.ErrImmutableField)

	in := ledger.DirectionIn
	_, err = s.svc.UpdateEntry(s.ctx, e.ID, ledger.UpdateEntryRequest{Direction: &in})
	s.ErrorIs(err, ledger.ErrImmutableField)

	same := dec("12")
	desc := "team lunch"
	got, err := s.svc.UpdateEntry(s.ctx, e.ID, ledger.UpdateEntryRequest{Amount: &same, Description: &desc})
	s.Require().NoError(err)
	s.Equal("team lunch", got.Description)
	s.assertBalance(a.ID, "-12")
}

func (s *ServiceSuite) TestUpdateTransferDateMovesCounterpart() {
	from, to := s.checking("A"), s.checking("B")
	tr, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("5"), EffectiveDate: "2024-04-02",
	})
	s.Require().NoError(err)

	date := "2024-04-09"
	_, err = s.svc.UpdateEntry(s.ctx, tr.In.ID, ledger.UpdateEntryRequest{EffectiveDate: &date})
	s.Require().NoError(err)

	out, err := s.svc.GetEntry(s.ctx, tr.Out.ID)
	s.Require().NoError(err)
	s.Equal(date, out.EffectiveDate)
}

func (s *ServiceSuite) TestPaginationIsStable() {
	a := s.checking("Checking")
	for _, d := range []string{"2024-01-03", "2024-01-01", "2024-01-03", "2024-01-02", "2024-01-02"} {
		s.post(a.ID, d, "1", ledger.DirectionOut, "x")
	}

	whole, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, "", 4)
	s.Require().NoError(err)
	s.True(whole.HasMore)
	s.Equal(5, whole.TotalCount)

	first, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, "", 2)
	s.Require().NoError(err)
	s.Require().True(first.HasMore)
	second, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, first.NextCursor, 2)
	s.Require().NoError(err)

	joined := append(entryIDs(first.Entries), entryIDs(second.Entries)...)
	s.Equal(entryIDs(whole.Entries), joined)

	third, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, second.NextCursor, 2)
	s.Require().NoError(err)
	s.Len(third.Entries, 1)
	s.False(third.HasMore)
	s.Empty(third.NextCursor)

	_, err = s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, "not-a-cursor", 2)
	s.ErrorIs(err, ledger.ErrInvalidCursor)
}

func (s *ServiceSuite) TestPaginationSurvivesConcurrentInserts() {
	a := s.checking("Checking")
	var existing []string
	for _, d := range []string{"2024-01-05", "2024-01-04", "2024-01-04", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"} {
		existing = append(existing, s.post(a.ID, d, "1", ledger.DirectionOut, "x").ID)
	}

	first, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, "", 3)
	s.Require().NoError(err)
	s.Require().True(first.HasMore)
	boundary := first.Entries[len(first.Entries)-1].EffectiveDate
	s.Equal("2024-01-04", boundary)

	// one insert lands on the boundary date, one after everything seen so far
	s.post(a.ID, boundary, "2", ledger.DirectionOut, "same day")
	s.post(a.ID, "2024-02-01", "3", ledger.DirectionOut, "later")

	seen := map[string]int{}
	for _, e := range first.Entries {
		seen[e.ID]++
	}
	cursor := first.NextCursor
	for cursor != "" {
		page, err := s.svc.ListEntries(s.ctx, ledger.EntryFilter{}, cursor, 3)
		s.Require().NoError(err)
		for _, e := range page.Entries {
			seen[e.ID]++
		}
		cursor = page.NextCursor
	}

	for _, id := range existing {
		s.Equal(1, seen[id], "entry %s", id)
	}
}

func (s *ServiceSuite) TestFilteredIDs() {
	a, b := s.checking("Alpha"), s.checking("Beta")
	s.post(a.ID, "2024-02-01", "5", ledger.DirectionOut, "Coffee shop")
	s.post(b.ID, "2024-02-10", "7", ledger.DirectionOut, "coffee beans")
	s.post(b.ID, "2024-02-11", "9", ledger.DirectionOut, "rent")

	got, err := s.svc.GetFilteredIDs(s.ctx, ledger.EntryFilter{Search: "COFFEE"})
	s.Require().NoError(err)
	s.Equal(2, got.TotalCount)
	s.Len(got.IDs, 2)
	s.Equal("2024-02-01", got.Summary.EarliestDate)
	s.Equal("2024-02-10", got.Summary.LatestDate)
	s.Equal([]string{"Alpha", "Beta"}, got.Summary.AffectedAccounts)
}

func (s *ServiceSuite) TestBulkReconcileIncludesTransferCounterpart() {
	from, to := s.checking("Checking"), s.checking("Savings")
	tr, err := s.svc.CreateTransfer(s.ctx, ledger.CreateTransferRequest{
		FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("30"), EffectiveDate: "2024-04-02",
	})
	s.Require().NoError(err)

	res, err := s.svc.BulkReconcile(s.ctx, []string{tr.Out.ID}, ledger.ActionMarkCleared)
	s.Require().NoError(err)
	s.Equal(2, res.UpdatedCount)
	s.Equal(1, res.TotalRequested)
	s.Equal([]string{tr.In.ID}, res.TransferEntriesIncluded)
	s.Zero(res.SkippedCount)

	for _, id := range []string{tr.Out.ID, tr.In.ID} {
		e, err := s.svc.GetEntry(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(ledger.StatusManuallyCleared, e.ReconciliationStatus())
	}
}

func (s *ServiceSuite) TestBulkReconcileSkipsMatched() {
	a := s.checking("Checking")
	matched := s.post(a.ID, "2024-05-01", "10", ledger.DirectionOut, "matched")
	plain := s.post(a.ID, "2024-05-02", "10", ledger.DirectionOut, "plain")
	_, err := s.svc.MarkMatched(s.ctx, matched.ID)
	s.Require().NoError(err)

	res, err := s.svc.BulkReconcile(s.ctx, []string{matched.ID, plain.ID}, ledger.ActionMarkCleared)
	s.Require().NoError(err)
	s.Equal(1, res.UpdatedCount)
	s.Equal(1, res.SkippedCount)
	s.Require().Len(res.SkippedEntries, 1)
	s.Equal(matched.ID, res.SkippedEntries[0].ID)
	s.Equal(ledger.CodeAlreadyMatched, res.SkippedEntries[0].Reason)

	e, err := s.svc.GetEntry(s.ctx, matched.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusMatched, e.ReconciliationStatus())

	e, err = s.svc.Unmatch(s.ctx, matched.ID)
	s.Require().NoError(err)
	s.Equal(ledger.StatusUnmatched, e.ReconciliationStatus())
}

func (s *ServiceSuite) TestBulkReconcileErrors() {
	a := s.checking("Checking")
	e := s.post(a.ID, "2024-05-01", "10", ledger.DirectionOut, "x")

	_, err := s.svc.BulkReconcile(s.ctx, nil, ledger.ActionMarkCleared)
	s.ErrorIs(err, ledger.ErrEmptySelection)

	_, err = s.svc.BulkReconcile(s.ctx, []string{e.ID, "ghost"}, ledger.ActionMarkCleared)
	s.ErrorIs(err, ledger.ErrNotFound)
	s.Contains(err.Error(), "ghost")

	got, err := s.svc.GetEntry(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(got.IsCleared)

	_, err = s.svc.BulkReconcile(s.ctx, []string{e.ID}, "mark_matched")
	s.ErrorIs(err, ledger.ErrInvalidInput)
}

func (s *ServiceSuite) TestBulkUpdateAllFilteredExcept() {
	a, b := s.checking("Alpha"), s.checking("Beta")
	e1 := s.post(a.ID, "2024-05-01", "10", ledger.DirectionOut, "one")
	e2 := s.post(a.ID, "2024-05-02", "10", ledger.DirectionOut, "two")
	e3 := s.post(a.ID, "2024-05-03", "10", ledger.DirectionOut, "three")
	other := s.post(b.ID, "2024-05-03", "10", ledger.DirectionOut, "other")

	g, err := s.svc.CreateGroup(s.ctx, "Living", ledger.CategoryTypeExpense)
	s.Require().NoError(err)
	cat, err := s.svc.CreateCategory(s.ctx, "Food", g.ID)
	s.Require().NoError(err)

	sel := ledger.SelectionDescriptor{
		Mode:     ledger.SelectionAllFilteredExcept,
		Filter:   ledger.EntryFilter{AccountIDs: []string{a.ID}},
		Excluded: []string{e2.ID, other.ID},
	}
	n, err := s.svc.CountSelection(s.ctx, sel)
	s.Require().NoError(err)
	s.Equal(2, n)

	res, err := s.svc.BulkUpdate(s.ctx, sel, ledger.Changeset{
		Category:             &ledger.CategoryChange{CategoryID: cat.ID},
		ReconciliationStatus: ledger.StatusManuallyCleared,
	})
	s.Require().NoError(err)
	s.Equal(2, res.UpdatedCount)
	s.Equal("Updated 2 entries", res.Message)

	for _, e := range []*ledger.Entry{e1, e3} {
		got, err := s.svc.GetEntry(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(cat.ID, got.CategoryID)
		s.True(got.IsCleared)
	}
	untouched, err := s.svc.GetEntry(s.ctx, e2.ID)
	s.Require().NoError(err)
	s.Empty(untouched.CategoryID)
	s.False(untouched.IsCleared)
}

func (s *ServiceSuite) TestBulkUpdateRejections() {
	a := s.checking("Checking")
	e := s.post(a.ID, "2024-05-01", "10", ledger.DirectionOut, "x")

	_, err := s.svc.BulkUpdate(s.ctx, ledger.SelectionDescriptor{Mode: ledger.SelectionIndividual, IDs: []string{e.ID}}, ledger.Changeset{})
	s.ErrorIs(err, ledger.ErrNoChanges)

	cleared := ledger.Changeset{ReconciliationStatus: ledger.StatusManuallyCleared}
	_, err = s.svc.BulkUpdate(s.ctx, ledger.SelectionDescriptor{Mode: ledger.SelectionIndividual}, cleared)
	s.ErrorIs(err, ledger.ErrEmptySelection)

	_, err = s.svc.BulkUpdate(s.ctx, ledger.SelectionDescriptor{
		Mode: ledger.SelectionAllFilteredExcept, Filter: ledger.EntryFilter{}, Excluded: []string{e.ID},
	}, cleared)
	s.ErrorIs(err, ledger.ErrEmptySelection)

	_, err = s.svc.BulkUpdate(s.ctx, ledger.SelectionDescriptor{Mode: ledger.SelectionIndividual, IDs: []string{e.ID}},
		ledger.Changeset{ReconciliationStatus: ledger.StatusMatched})
	s.ErrorIs(err, ledger.ErrInvalidInput)
}

func (s *ServiceSuite) TestCategoryLifecycle() {
	a := s.checking("Checking")
	g, err := s.svc.CreateGroup(s.ctx, "Living", ledger.CategoryTypeExpense)
	s.Require().NoError(err)
	rent, err := s.svc.CreateCategory(s.ctx, "Rent", g.ID)
	s.Require().NoError(err)
	s.Equal(ledger.CategoryTypeExpense, rent.Type)

	_, err = s.svc.CreateCategory(s.ctx, "Rent", g.ID)
	s.ErrorIs(err, ledger.ErrInvalidInput)

	e, err := s.svc.CreateEntry(s.ctx, ledger.CreateEntryRequest{
		AccountID: a.ID, EffectiveDate: "2024-05-01", Amount: dec("900"), Direction: ledger.DirectionOut, CategoryID: rent.ID,
	})
	s.Require().NoError(err)

	err = s.svc.DeleteCategory(s.ctx, rent.ID)
	s.ErrorIs(err, ledger.ErrReferencedEntity)

	usage, err := s.svc.CategoryUsage(s.ctx, rent.ID)
	s.Require().NoError(err)
	s.Equal(1, usage.EntryCount)
	s.False(usage.Deletable)

	err = s.svc.DeleteAccount(s.ctx, a.ID)
	s.ErrorIs(err, ledger.ErrReferencedEntity)

	none := ""
	_, err = s.svc.UpdateEntry(s.ctx, e.ID, ledger.UpdateEntryRequest{CategoryID: &none})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.DeleteCategory(s.ctx, rent.ID))

	cats, err := s.svc.ListByType(s.ctx, ledger.CategoryTypeExpense)
	s.Require().NoError(err)
	s.Empty(cats)
}

func (s *ServiceSuite) TestCatalogCacheIsInvalidatedOnChange() {
	g, err := s.svc.CreateGroup(s.ctx, "Salary", ledger.CategoryTypeIncome)
	s.Require().NoError(err)

	_, err = s.svc.ListByType(s.ctx, "")
	s.Require().NoError(err)
	_, err = s.svc.ListByType(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(1, s.cache.hits)

	before := s.cache.invalidated
	_, err = s.svc.CreateCategory(s.ctx, "Paycheck", g.ID)
	s.Require().NoError(err)
	s.Equal(before+1, s.cache.invalidated)

	cats, err := s.svc.ListByType(s.ctx, ledger.CategoryTypeIncome)
	s.Require().NoError(err)
	s.Require().Len(cats, 1)
	s.Equal("Paycheck", cats[0].Name)
}

func (s *ServiceSuite) TestCatalogLoadRacingAWriteIsNotServed() {
	g, err := s.svc.CreateGroup(s.ctx, "Salary", ledger.CategoryTypeIncome)
	s.Require().NoError(err)

	// the write lands after the reader loaded the catalog but before it cached it
	s.cache.beforeSet = func() {
		_, err := s.svc.CreateCategory(s.ctx, "Bonus", g.ID)
		s.Require().NoError(err)
	}
	stale, err := s.svc.ListByType(s.ctx, ledger.CategoryTypeIncome)
	s.Require().NoError(err)
	s.Empty(stale)

	cats, err := s.svc.ListByType(s.ctx, ledger.CategoryTypeIncome)
	s.Require().NoError(err)
	s.Require().Len(cats, 1)
	s.Equal("Bonus", cats[0].Name)
}

func (s *ServiceSuite) TestEnsureCatalogIsIdempotent() {
	specs := []ledger.GroupSpec{
		{Name: "Income", Type: ledger.CategoryTypeIncome, Categories: []string{"Salary", "Interest"}},
		{Name: "Living", Type: ledger.CategoryTypeExpense, Categories: []string{"Rent"}},
	}
	n, err := s.svc.EnsureCatalog(s.ctx, specs)
	s.Require().NoError(err)
	s.Equal(5, n)

	n, err = s.svc.EnsureCatalog(s.ctx, specs)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestBalanceConsistencyReport() {
	a := s.checking("Checking")
	s.post(a.ID, "2024-01-01", "10", ledger.DirectionIn, "x")

	err := s.store.WithTx(s.ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SetBalance(ctx, a.ID, dec("10.005"))
	})
	s.Require().NoError(err)

	v := ledger.NewValidator(s.store)
	report, err := v.ValidateBalanceConsistency(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(report, 1)
	s.True(report[0].IsValid)

	err = s.store.WithTx(s.ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SetBalance(ctx, a.ID, dec("11"))
	})
	s.Require().NoError(err)
	report, err = v.ValidateBalanceConsistency(s.ctx)
	s.Require().NoError(err)
	s.False(report[0].IsValid)
}

func entryIDs(entries []*ledger.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

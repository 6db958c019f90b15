package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSignedAmount(t *testing.T) {
	tests := []struct {
		name      string
		typ       AccountType
		direction Direction
		raw       string
		want      string
	}{
		{"asset outflow", AccountTypeAsset, DirectionOut, "50.00", "-50.00"},
		{"asset inflow", AccountTypeAsset, DirectionIn, "50.00", "50.00"},
		{"liability payment", AccountTypeLiability, DirectionOut, "50.00", "-50.00"},
		{"liability charge", AccountTypeLiability, DirectionIn, "50.00", "50.00"},
		{"negative raw uses magnitude", AccountTypeAsset, DirectionOut, "-12.34", "-12.34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSignedAmount(tt.typ, tt.direction, decimal.RequireFromString(tt.raw))
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
			assert.Equal(t, tt.direction, DirectionOf(got))
		})
	}
}

func TestResolveSignedAmountRejectsZero(t *testing.T) {
	_, err := ResolveSignedAmount(AccountTypeAsset, DirectionIn, decimal.Zero)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestDirectionSignRejectsUnknownInputs(t *testing.T) {
	_, err := DirectionSign("EQUITY", DirectionIn)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DirectionSign(AccountTypeAsset, "sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 1234.50")
	require.NoError(t, err)
	assert.Equal(t, "1234.5", d.String())

	d, err = ParseAmount("7.100")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("7.1")))

	for _, bad := range []string{"12,00", "abc", "", "0.001", "1234.5678"} {
		_, err = ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestResolveSignedAmountRejectsSubCent(t *testing.T) {
	_, err := ResolveSignedAmount(AccountTypeAsset, DirectionOut, decimal.RequireFromString("0.001"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoneyJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Signed Money     `json:"signed"`
		Limit  NullMoney `json:"limit"`
		None   NullMoney `json:"none"`
	}{
		Signed: NewMoney(decimal.RequireFromString("-50")),
		Limit:  NewNullMoney(decimal.NewNullDecimal(decimal.RequireFromString("2500.5"))),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"signed":"-50.00","limit":"2500.50","none":null}`, string(raw))

	var back struct {
		Signed Money `json:"signed"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"signed":"-50.00"}`), &back))
	assert.True(t, back.Signed.Equal(decimal.NewFromInt(-50)))
}

func TestDecimalSumsAreExact(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(decimal.RequireFromString("0.10"))
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(1)))
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionIn, DirectionOut.Opposite())
	assert.Equal(t, DirectionOut, DirectionIn.Opposite())
}

func TestNormalizeDate(t *testing.T) {
	d, err := NormalizeDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d)

	_, err = NormalizeDate("2023-02-29")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NormalizeDate("03/01/2024")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEntryReconciliationStatus(t *testing.T) {
	e := &Entry{}
	assert.Equal(t, StatusUnmatched, e.ReconciliationStatus())
	assert.False(t, e.IsReconciled())

	e.IsCleared = true
	assert.Equal(t, StatusManuallyCleared, e.ReconciliationStatus())
	assert.True(t, e.IsReconciled())

	e.IsMatched = true
	assert.Equal(t, StatusMatched, e.ReconciliationStatus())
}

func TestErrorMatchesByCode(t *testing.T) {
	err := NotFound("entry", "e-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Equal(t, "entry e-1 not found", err.Error())

	batch := &BatchError{Operation: "bulk_update", FailedID: "e-2", Unresolved: []string{"e-1", "e-2"}, Err: ImmutableField("amount")}
	assert.ErrorIs(t, batch, ErrImmutableField)
	assert.Equal(t, CodeImmutableField, CodeOf(batch))
	assert.Contains(t, batch.Error(), "bulk_update failed at entry e-2 (2 unresolved)")
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

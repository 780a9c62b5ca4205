package discount

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var evalTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func twoLines() []Line {
	return []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 2, Subtotal: 6_000},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 4_000},
	}
}

func TestEvaluatePercent(t *testing.T) {
	codes := []Code{{Code: "TEN", Kind: KindPercent, Percent: decimal.NewFromInt(10)}}
	out, err := Evaluate(codes, twoLines(), "", evalTime)
	require.NoError(t, err)
	require.Len(t, out.Applied, 1)
	require.Equal(t, int64(1_000), out.TotalDiscount)
	// Proportional to line subtotals: 600 and 400.
	require.Equal(t, int64(600), out.Applied[0].Shares[0].Amount)
	require.Equal(t, int64(400), out.Applied[0].Shares[1].Amount)
}

func TestEvaluateDuplicateCodesFailBatch(t *testing.T) {
	codes := []Code{
		{Code: "PROMO", Kind: KindPercent, Percent: decimal.NewFromInt(10)},
		{Code: "promo", Kind: KindPercent, Percent: decimal.NewFromInt(5)},
	}
	_, err := Evaluate(codes, twoLines(), "", evalTime)
	require.ErrorIs(t, err, ErrDuplicateCodes)
}

func TestValidateGates(t *testing.T) {
	expired := evalTime.Add(-time.Hour)
	limit := int32(3)
	minSpend := int64(20_000)
	maxSpend := int64(5_000)
	cases := []struct {
		name string
		code Code
		want error
	}{
		{"expired", Code{ExpiresAt: &expired}, ErrExpired},
		{"usage limit", Code{UsageLimit: &limit, UsedCount: 3}, ErrUsageLimitReached},
		{"email", Code{AllowedEmails: []string{"vip@example.com"}}, ErrEmailNotAllowed},
		{"min spend", Code{MinSpend: &minSpend}, ErrMinimumSpendUnmet},
		{"max spend", Code{MaxSpend: &maxSpend}, ErrMaximumSpendExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.code.Validate(evalTime, 10_000, "someone@example.com")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidateEmailCaseInsensitive(t *testing.T) {
	code := Code{AllowedEmails: []string{"VIP@Example.com"}}
	require.NoError(t, code.Validate(evalTime, 10_000, "vip@example.com"))
}

func TestEvaluateRejectionsAreNonFatal(t *testing.T) {
	expired := evalTime.Add(-time.Minute)
	codes := []Code{
		{Code: "DEAD", Kind: KindPercent, Percent: decimal.NewFromInt(50), ExpiresAt: &expired},
		{Code: "TEN", Kind: KindPercent, Percent: decimal.NewFromInt(10)},
	}
	out, err := Evaluate(codes, twoLines(), "", evalTime)
	require.NoError(t, err)
	require.Len(t, out.Rejections, 1)
	require.Equal(t, "DEAD", out.Rejections[0].Code)
	require.Len(t, out.Applied, 1)
	require.Equal(t, int64(1_000), out.TotalDiscount)
}

func TestMatchesExclusionPrecedence(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()
	code := Code{
		ProductIDs:         []uuid.UUID{productID},
		ExcludedProductIDs: []uuid.UUID{productID},
	}
	require.False(t, code.Matches(Line{ProductID: productID}))

	code = Code{
		CategoryIDs:         []uuid.UUID{categoryID},
		ExcludedCategoryIDs: []uuid.UUID{categoryID},
	}
	require.False(t, code.Matches(Line{ProductID: productID, CategoryIDs: []uuid.UUID{categoryID}}))
}

func TestMatchesScope(t *testing.T) {
	inScope := uuid.New()
	outOfScope := uuid.New()
	code := Code{ProductIDs: []uuid.UUID{inScope}}
	require.True(t, code.Matches(Line{ProductID: inScope}))
	require.False(t, code.Matches(Line{ProductID: outOfScope}))

	// No scope at all matches every line.
	require.True(t, Code{}.Matches(Line{ProductID: outOfScope}))
}

func TestEvaluateScopedCodeRejectedWhenNothingMatches(t *testing.T) {
	codes := []Code{{
		Code:       "SCOPED",
		Kind:       KindPercent,
		Percent:    decimal.NewFromInt(10),
		ProductIDs: []uuid.UUID{uuid.New()},
	}}
	out, err := Evaluate(codes, twoLines(), "", evalTime)
	require.NoError(t, err)
	require.Empty(t, out.Applied)
	require.Len(t, out.Rejections, 1)
}

func TestEvaluateFixedProductCappedPerLine(t *testing.T) {
	lines := []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 3, Subtotal: 1_500},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 10_000},
	}
	codes := []Code{{Code: "OFF", Kind: KindFixedProduct, Amount: 1_000}}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	require.Len(t, out.Applied, 1)
	// Line 0 caps 3*1000 at its 1500 subtotal; line 1 takes the full 1000.
	require.Equal(t, int64(1_500), out.Applied[0].Shares[0].Amount)
	require.Equal(t, int64(1_000), out.Applied[0].Shares[1].Amount)
	require.Equal(t, int64(2_500), out.TotalDiscount)
}

func TestEvaluateFixedCartClampedToSubtotal(t *testing.T) {
	codes := []Code{{Code: "BIG", Kind: KindFixedCart, Amount: 50_000}}
	out, err := Evaluate(codes, twoLines(), "", evalTime)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), out.TotalDiscount)
}

func TestEvaluateAllocationResidualOnLastLine(t *testing.T) {
	lines := []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 1, Subtotal: 3_333},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 3_333},
		{Index: 2, ProductID: uuid.New(), Qty: 1, Subtotal: 3_334},
	}
	codes := []Code{{Code: "FLAT", Kind: KindFixedCart, Amount: 1_000}}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	shares := out.Applied[0].Shares
	require.Len(t, shares, 3)
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	require.Equal(t, int64(1_000), sum)
	// Rounded shares settle the residual unit on the final matched line.
	require.Equal(t, int64(333), shares[0].Amount)
	require.Equal(t, int64(333), shares[1].Amount)
	require.Equal(t, int64(334), shares[2].Amount)
}

func TestEvaluateAllocationCappedAtLineSubtotal(t *testing.T) {
	lines := []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 2, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
	}
	codes := []Code{{Code: "TWO", Kind: KindFixedCart, Amount: 2}}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	require.Equal(t, int64(2), out.TotalDiscount)
	var sum int64
	for _, s := range out.Applied[0].Shares {
		require.LessOrEqual(t, s.Amount, lines[s.LineIndex].Subtotal)
		sum += s.Amount
	}
	require.Equal(t, int64(2), sum)
}

func TestEvaluateAllocationResidualRespectsCapacity(t *testing.T) {
	// Every proportional share rounds to zero, so the whole amount is
	// settled through the residual pass.
	lines := []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 2, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
	}
	codes := []Code{{Code: "ONE", Kind: KindFixedCart, Amount: 1}}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	require.Equal(t, int64(1), out.TotalDiscount)
	for _, s := range out.Applied[0].Shares {
		require.LessOrEqual(t, s.Amount, int64(1))
		require.GreaterOrEqual(t, s.Amount, int64(0))
	}
}

func TestEvaluateStackedFixedCartNeverExceedsSubtotal(t *testing.T) {
	lines := []Line{
		{Index: 0, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 1, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
		{Index: 2, ProductID: uuid.New(), Qty: 1, Subtotal: 1},
	}
	codes := []Code{
		{Code: "FIRST", Kind: KindFixedCart, Amount: 2},
		{Code: "SECOND", Kind: KindFixedCart, Amount: 2},
	}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	require.Len(t, out.Applied, 2)
	require.Equal(t, int64(3), out.TotalDiscount)
	remaining := []int64{1, 1, 1}
	for _, app := range out.Applied {
		for _, s := range app.Shares {
			remaining[s.LineIndex] -= s.Amount
			require.GreaterOrEqual(t, remaining[s.LineIndex], int64(0))
		}
	}
}

func TestEvaluateStackingAgainstRemaining(t *testing.T) {
	lines := twoLines()
	codes := []Code{
		{Code: "HALF", Kind: KindPercent, Percent: decimal.NewFromInt(50)},
		{Code: "REST", Kind: KindFixedCart, Amount: 100_000},
	}
	out, err := Evaluate(codes, lines, "", evalTime)
	require.NoError(t, err)
	require.Len(t, out.Applied, 2)
	// 50% takes 5000; the fixed code can only consume the remaining 5000.
	require.Equal(t, int64(5_000), out.Applied[0].Amount)
	require.Equal(t, int64(5_000), out.Applied[1].Amount)
	require.Equal(t, int64(10_000), out.TotalDiscount)
}

func TestEvaluateFreeShippingFlag(t *testing.T) {
	codes := []Code{{Code: "SHIP", Kind: KindPercent, Percent: decimal.NewFromInt(5), FreeShipping: true}}
	out, err := Evaluate(codes, twoLines(), "", evalTime)
	require.NoError(t, err)
	require.True(t, out.FreeShipping)
	require.True(t, out.Applied[0].FreeShipping)
}

func TestCheckDuplicates(t *testing.T) {
	require.NoError(t, CheckDuplicates([]string{"A", "B"}))
	require.ErrorIs(t, CheckDuplicates([]string{"A", " a "}), ErrDuplicateCodes)
}

// Package settle splits amounts across partners by ownership share and
// computes partner-to-partner rebalancing. All functions are pure; turning
// results into ledger transfers is the caller's responsibility.
package settle

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

// shareSumEpsilon is the tolerance when checking that a share group sums
// to 100.
var shareSumEpsilon = decimal.RequireFromString("0.01")

var oneHundred = decimal.NewFromInt(100)

// ValidateShares checks that the share group is non-empty, has unique owner
// IDs, and sums to 100 within epsilon.
func ValidateShares(shares []models.OwnershipShare) error {
	if len(shares) == 0 {
		return errs.NewValidation("shares", "must not be empty")
	}
	seen := make(map[string]bool, len(shares))
	sum := decimal.Zero
	for _, s := range shares {
		if s.OwnerID == "" {
			return errs.NewValidation("shares", "owner id must not be empty")
		}
		if seen[s.OwnerID] {
			return errs.NewValidation("shares", "duplicate owner %s", s.OwnerID)
		}
		seen[s.OwnerID] = true
		sum = sum.Add(s.Percentage.Decimal())
	}
	if sum.Sub(oneHundred).Abs().GreaterThan(shareSumEpsilon) {
		return errs.NewValidation("shares", "percentages must sum to 100, got %s", sum)
	}
	return nil
}

// Distribute splits amount across the share group so that the per-owner
// amounts sum back to amount exactly. Raw shares are computed against the
// group's actual percentage sum (which ValidateShares allows to drift from
// 100 by epsilon) and floored to Money's scale; the leftover minor units are
// then handed out one each to the owners with the largest fractional
// remainders (largest-remainder apportionment), ties broken by owner ID so
// the result is deterministic.
func Distribute(amount money.Money, shares []models.OwnershipShare) (map[string]money.Money, error) {
	if amount.IsNegative() {
		return nil, errs.NewValidation("amount", "must not be negative, got %s", amount)
	}
	if err := ValidateShares(shares); err != nil {
		return nil, err
	}

	pctSum := decimal.Zero
	for _, s := range shares {
		pctSum = pctSum.Add(s.Percentage.Decimal())
	}

	type allocation struct {
		ownerID   string
		floored   decimal.Decimal
		remainder decimal.Decimal
	}

	allocs := make([]allocation, len(shares))
	flooredSum := decimal.Zero
	for i, s := range shares {
		raw := amount.Decimal().Mul(s.Percentage.Decimal()).Div(pctSum)
		floored := raw.RoundFloor(money.Scale)
		allocs[i] = allocation{
			ownerID:   s.OwnerID,
			floored:   floored,
			remainder: raw.Sub(floored),
		}
		flooredSum = flooredSum.Add(floored)
	}

	// Residual is a whole number of minor units, at most len(shares)-1,
	// because the raw shares sum back to amount by construction.
	residualUnits := amount.Decimal().Sub(flooredSum).Shift(money.Scale).IntPart()

	sort.Slice(allocs, func(i, j int) bool {
		if c := allocs[i].remainder.Cmp(allocs[j].remainder); c != 0 {
			return c > 0
		}
		return allocs[i].ownerID < allocs[j].ownerID
	})

	oneUnit := decimal.New(1, -money.Scale)
	result := make(map[string]money.Money, len(allocs))
	check := money.Zero
	for i, a := range allocs {
		share := a.floored
		if int64(i) < residualUnits {
			share = share.Add(oneUnit)
		}
		m := money.FromDecimal(share)
		result[a.ownerID] = m
		check = check.Add(m)
	}

	if !check.Equal(amount) {
		return nil, errs.NewInvariant("distribute", "shares sum to %s, want %s", check, amount)
	}
	return result, nil
}

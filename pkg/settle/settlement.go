package settle

import (
	"sort"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

// classify builds a SettlementResult from an owner's target and actual
// amounts. A positive difference means the owner put in more than their
// share and is owed money back (CREDIT); negative means they must pay in
// (DEBIT).
func classify(ownerID string, target, actual money.Money) models.SettlementResult {
	diff := actual.Sub(target)
	res := models.SettlementResult{
		OwnerID:          ownerID,
		Target:           target,
		Actual:           actual,
		Difference:       diff,
		SettlementAmount: diff.Abs(),
	}
	switch {
	case diff.IsPositive():
		res.Type = models.SettlementCredit
	case diff.IsNegative():
		res.Type = models.SettlementDebit
	default:
		res.Type = models.SettlementBalanced
	}
	return res
}

// SettleByTarget rebalances partners against what each should have
// contributed to a shared expense. Each owner's target is their distributed
// share of the total; the difference against their actual contribution
// determines the settlement. The actual contributions must sum to the total
// expense (the expense was in fact paid), which guarantees the signed
// differences net to zero; that conservation is re-checked and a violation
// reported as an internal error. Results are ordered by owner ID.
func SettleByTarget(totalExpense money.Money, shares []models.OwnershipShare, actual map[string]money.Money) ([]models.SettlementResult, error) {
	targets, err := Distribute(totalExpense, shares)
	if err != nil {
		return nil, err
	}

	actualSum := money.Zero
	for ownerID, amt := range actual {
		if _, ok := targets[ownerID]; !ok {
			return nil, errs.NewValidation("actual_contributions", "unknown owner %s", ownerID)
		}
		if amt.IsNegative() {
			return nil, errs.NewValidation("actual_contributions", "contribution for %s must not be negative, got %s", ownerID, amt)
		}
		actualSum = actualSum.Add(amt)
	}
	if !actualSum.Equal(totalExpense) {
		return nil, errs.NewValidation("actual_contributions", "must sum to total expense %s, got %s", totalExpense, actualSum)
	}

	results := make([]models.SettlementResult, 0, len(shares))
	net := money.Zero
	for _, s := range shares {
		res := classify(s.OwnerID, targets[s.OwnerID], actual[s.OwnerID])
		net = net.Add(res.Difference)
		results = append(results, res)
	}
	if !net.IsZero() {
		return nil, errs.NewInvariant("settle_by_target", "differences net to %s, want 0", net)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].OwnerID < results[j].OwnerID })
	return results, nil
}

// SettleByAverage rebalances partner wallets to a common level: each owner's
// target is an even split of the combined balance, so owners above the mean
// end up CREDIT (owed their excess back out of the pool) and owners below it
// DEBIT. The even split assigns the indivisible remainder to the first owner
// in ID order, which makes the targets — and therefore the differences — sum
// out exactly; a nonzero net is reported as an internal error. Results are
// ordered by owner ID.
func SettleByAverage(balances map[string]money.Money) ([]models.SettlementResult, error) {
	if len(balances) == 0 {
		return nil, errs.NewValidation("balances", "must not be empty")
	}

	ownerIDs := make([]string, 0, len(balances))
	total := money.Zero
	for ownerID, b := range balances {
		if ownerID == "" {
			return nil, errs.NewValidation("balances", "owner id must not be empty")
		}
		ownerIDs = append(ownerIDs, ownerID)
		total = total.Add(b)
	}
	sort.Strings(ownerIDs)

	targets, err := total.SplitEven(len(ownerIDs))
	if err != nil {
		return nil, errs.NewInvariant("settle_by_average", "%v", err)
	}

	results := make([]models.SettlementResult, 0, len(ownerIDs))
	net := money.Zero
	for i, ownerID := range ownerIDs {
		res := classify(ownerID, targets[i], balances[ownerID])
		net = net.Add(res.Difference)
		results = append(results, res)
	}
	if !net.IsZero() {
		return nil, errs.NewInvariant("settle_by_average", "differences net to %s, want 0", net)
	}
	return results, nil
}

package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

// feePeriodDays is the accrual period for late fees. The fee percentage is
// charged once per complete 30-day period elapsed after the due date.
const feePeriodDays = 30

// ComputeLateFee returns the penalty accrued on an overdue installment as of
// the given date: remaining * feePct/100 per complete 30-day period past the
// due date. Partial periods charge nothing. Paid installments and dates on or
// before the due date return zero. The installment itself is not modified;
// applying the fee is the caller's decision.
func ComputeLateFee(line models.InstallmentLine, asOf time.Time, feePct money.Percentage) money.Money {
	if line.Status == models.InstallmentPaid || !asOf.After(line.DueDate) {
		return money.Zero
	}

	periods := daysBetween(line.DueDate, asOf) / feePeriodDays
	if periods == 0 {
		return money.Zero
	}

	perPeriod := line.RemainingAmount.MulPercent(feePct)
	return money.FromDecimal(perPeriod.Mul(decimal.NewFromInt(int64(periods))))
}

// daysBetween counts calendar days from a to b in each date's own location.
// Counting by calendar date rather than elapsed wall-clock time keeps a DST
// transition inside the window from shaving a day off the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

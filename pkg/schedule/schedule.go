// Package schedule generates installment schedules and computes late fees.
// Everything here is a pure function: same input, same output, no I/O.
package schedule

import (
	"time"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

// Request describes the schedule to generate for a contract.
type Request struct {
	TotalPrice       money.Money      `json:"total_price"`
	DownPayment      money.Money      `json:"down_payment"`
	InstallmentCount int              `json:"installment_count"`
	Frequency        models.Frequency `json:"frequency"`
	StartDate        time.Time        `json:"start_date"`
}

// Validate checks the request, returning a ValidationError naming the first
// offending field.
func (r Request) Validate() error {
	if !r.TotalPrice.IsPositive() {
		return errs.NewValidation("total_price", "must be positive, got %s", r.TotalPrice)
	}
	if r.DownPayment.IsNegative() {
		return errs.NewValidation("down_payment", "must not be negative, got %s", r.DownPayment)
	}
	if r.DownPayment.Cmp(r.TotalPrice) >= 0 {
		return errs.NewValidation("down_payment", "must be less than total price %s, got %s", r.TotalPrice, r.DownPayment)
	}
	if r.InstallmentCount < 1 {
		return errs.NewValidation("installment_count", "must be at least 1, got %d", r.InstallmentCount)
	}
	if _, ok := r.Frequency.Months(); !ok {
		return errs.NewValidation("frequency", "unknown frequency %q", r.Frequency)
	}
	if r.StartDate.IsZero() {
		return errs.NewValidation("start_date", "must be set")
	}
	return nil
}

// Generate builds the installment lines for a request. The financed amount
// (total price minus down payment) is split evenly; when it does not divide
// exactly, the remainder goes to the first installment, so the line amounts
// always sum back to the financed amount. Due dates advance from the start
// date by one period per line, clamping to the last day of shorter months
// (Jan 31 + 1 month = Feb 28/29). Lines start PENDING with the full amount
// remaining; ContractID and ID are left for the caller to assign.
func Generate(req Request) ([]models.InstallmentLine, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	financed := req.TotalPrice.Sub(req.DownPayment)
	parts, err := financed.SplitEven(req.InstallmentCount)
	if err != nil {
		return nil, errs.NewValidation("installment_count", "%v", err)
	}

	months, _ := req.Frequency.Months()
	lines := make([]models.InstallmentLine, req.InstallmentCount)
	for i, amount := range parts {
		lines[i] = models.InstallmentLine{
			Sequence:        i + 1,
			Amount:          amount,
			DueDate:         addMonthsClamped(req.StartDate, months*(i+1)),
			RemainingAmount: amount,
			Status:          models.InstallmentPending,
		}
	}
	return lines, nil
}

// addMonthsClamped advances t by the given number of calendar months,
// clamping the day of month to the last valid day of the target month
// instead of letting it wrap into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

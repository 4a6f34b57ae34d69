package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

func overdueLine(remaining string) models.InstallmentLine {
	return models.InstallmentLine{
		Sequence:        1,
		Amount:          money.MustFromString(remaining),
		DueDate:         date(2024, time.January, 1),
		RemainingAmount: money.MustFromString(remaining),
		Status:          models.InstallmentOverdue,
	}
}

func TestComputeLateFeeZeroCases(t *testing.T) {
	line := overdueLine("1000.00")
	feePct := money.PercentFromInt(5)

	// On or before the due date.
	assert.True(t, ComputeLateFee(line, line.DueDate, feePct).IsZero())
	assert.True(t, ComputeLateFee(line, line.DueDate.AddDate(0, 0, -10), feePct).IsZero())

	// Paid installments never accrue, however late.
	paid := line
	paid.Status = models.InstallmentPaid
	paid.RemainingAmount = money.Zero
	assert.True(t, ComputeLateFee(paid, line.DueDate.AddDate(0, 6, 0), feePct).IsZero())

	// A partial 30-day period charges nothing.
	assert.True(t, ComputeLateFee(line, line.DueDate.AddDate(0, 0, 29), feePct).IsZero())
}

func TestComputeLateFeeWholePeriods(t *testing.T) {
	line := overdueLine("1000.00")
	feePct := money.PercentFromInt(5)

	// One complete 30-day period: 1000 * 5% = 50.
	fee := ComputeLateFee(line, line.DueDate.AddDate(0, 0, 30), feePct)
	assert.Equal(t, "50.00", fee.String())

	// Day 59 is still one period; day 60 starts the second.
	fee = ComputeLateFee(line, line.DueDate.AddDate(0, 0, 59), feePct)
	assert.Equal(t, "50.00", fee.String())
	fee = ComputeLateFee(line, line.DueDate.AddDate(0, 0, 60), feePct)
	assert.Equal(t, "100.00", fee.String())
}

func TestComputeLateFeeMonotonic(t *testing.T) {
	line := overdueLine("12345.67")
	feePct := money.MustPercentFromString("2.5")

	previous := money.Zero
	for days := 1; days <= 365; days += 7 {
		fee := ComputeLateFee(line, line.DueDate.AddDate(0, 0, days), feePct)
		assert.False(t, fee.LessThan(previous), "fee must never decrease as time passes (day %d)", days)
		previous = fee
	}
	assert.True(t, previous.IsPositive())
}

func TestComputeLateFeeAcrossDSTTransition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	line := overdueLine("1000.00")
	line.DueDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, ny)
	feePct := money.PercentFromInt(5)

	// DST starts Mar 10, so Mar 1 to Mar 31 is only 719 wall-clock hours.
	// The count is by calendar date, so 30 days have still passed and the
	// first period charges.
	asOf := time.Date(2024, time.March, 31, 0, 0, 0, 0, ny)
	fee := ComputeLateFee(line, asOf, feePct)
	assert.Equal(t, "50.00", fee.String())

	// Day 29 stays a partial period.
	assert.True(t, ComputeLateFee(line, time.Date(2024, time.March, 30, 0, 0, 0, 0, ny), feePct).IsZero())
}

func TestComputeLateFeeUsesRemainingAmount(t *testing.T) {
	line := overdueLine("1000.00")
	line.RemainingAmount = money.MustFromString("400.00")
	line.Status = models.InstallmentPartial
	feePct := money.PercentFromInt(5)

	// 400 * 5% * 2 periods = 40.
	fee := ComputeLateFee(line, line.DueDate.AddDate(0, 0, 65), feePct)
	assert.Equal(t, "40.00", fee.String())
}

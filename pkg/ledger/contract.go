package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/schedule"
)

// ContractInput describes a new unit sale. The down payment, if any, is
// credited to the given cashbox when the contract is created.
type ContractInput struct {
	UnitID           string           `json:"unit_id"`
	ClientID         string           `json:"client_id"`
	TotalPrice       money.Money      `json:"total_price"`
	DownPayment      money.Money      `json:"down_payment"`
	InstallmentCount int              `json:"installment_count"`
	Frequency        models.Frequency `json:"frequency"`
	StartDate        time.Time        `json:"start_date"`
	CashboxID        uuid.UUID        `json:"cashbox_id"`
}

// CreateContract validates the input, generates the installment schedule,
// persists contract and lines, and books the down payment as revenue into
// the cashbox.
func (l *Ledger) CreateContract(input ContractInput) (*models.Contract, []*models.InstallmentLine, error) {
	if input.UnitID == "" {
		return nil, nil, errs.NewValidation("unit_id", "must not be empty")
	}
	if input.ClientID == "" {
		return nil, nil, errs.NewValidation("client_id", "must not be empty")
	}

	lines, err := schedule.Generate(schedule.Request{
		TotalPrice:       input.TotalPrice,
		DownPayment:      input.DownPayment,
		InstallmentCount: input.InstallmentCount,
		Frequency:        input.Frequency,
		StartDate:        input.StartDate,
	})
	if err != nil {
		return nil, nil, err
	}

	// Resolve the cashbox before anything is persisted so a bad account ID
	// cannot leave a contract behind with no down payment booked.
	if input.DownPayment.IsPositive() {
		if _, err := l.storage.GetAccount(input.CashboxID); err != nil {
			return nil, nil, fmt.Errorf("failed to load cashbox %s: %w", input.CashboxID, err)
		}
	}

	now := time.Now()
	contract := &models.Contract{
		ID:               uuid.New(),
		UnitID:           input.UnitID,
		ClientID:         input.ClientID,
		TotalPrice:       input.TotalPrice,
		DownPayment:      input.DownPayment,
		InstallmentCount: input.InstallmentCount,
		Frequency:        input.Frequency,
		StartDate:        input.StartDate,
		Status:           models.ContractActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.storage.CreateContract(contract); err != nil {
		return nil, nil, fmt.Errorf("failed to store contract: %w", err)
	}

	stored := make([]*models.InstallmentLine, len(lines))
	for i := range lines {
		line := lines[i]
		line.ID = uuid.New()
		line.ContractID = contract.ID
		stored[i] = &line
	}
	if err := l.storage.CreateInstallments(stored); err != nil {
		return nil, nil, fmt.Errorf("failed to store installments: %w", err)
	}

	if input.DownPayment.IsPositive() {
		if _, err := l.ApplyTransaction(input.CashboxID, input.DownPayment, models.DirectionCredit); err != nil {
			return nil, nil, err
		}
		description := fmt.Sprintf("down payment for unit %s", input.UnitID)
		if err := l.recordEntry(input.CashboxID, &contract.ID, input.DownPayment,
			models.DirectionCredit, models.CategoryRevenue, description, now); err != nil {
			return nil, nil, err
		}
	}

	l.logger.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("unit_id", input.UnitID),
		zap.Int("installments", len(stored)))
	return contract, stored, nil
}

// GetContract retrieves a contract by its ID.
func (l *Ledger) GetContract(id uuid.UUID) (*models.Contract, error) {
	return l.storage.GetContract(id)
}

// GetAllContracts retrieves all contracts.
func (l *Ledger) GetAllContracts() ([]*models.Contract, error) {
	return l.storage.GetAllContracts()
}

// GetSchedule retrieves the installment lines of a contract.
func (l *Ledger) GetSchedule(contractID uuid.UUID) ([]*models.InstallmentLine, error) {
	return l.storage.GetInstallmentsForContract(contractID)
}

// RecordPayment applies a client payment to a contract's unpaid installments
// oldest-due-first, credits the cashbox, and appends a revenue entry. A
// payment exceeding the outstanding balance is rejected. When the last
// installment is settled the contract is marked completed.
func (l *Ledger) RecordPayment(contractID, cashboxID uuid.UUID, amount money.Money, paidAt time.Time) ([]*models.InstallmentLine, error) {
	if !amount.IsPositive() {
		return nil, errs.NewValidation("amount", "must be positive, got %s", amount)
	}

	contract, err := l.storage.GetContract(contractID)
	if err != nil {
		return nil, err
	}
	// Resolve the cashbox before any installment is mutated so a bad account
	// ID cannot leave lines marked paid with no money booked.
	if _, err := l.storage.GetAccount(cashboxID); err != nil {
		return nil, fmt.Errorf("failed to load cashbox %s: %w", cashboxID, err)
	}
	lines, err := l.storage.GetInstallmentsForContract(contractID)
	if err != nil {
		return nil, err
	}

	outstanding := money.Zero
	for _, line := range lines {
		if line.Status.Unpaid() {
			outstanding = outstanding.Add(line.RemainingAmount)
		}
	}
	if amount.GreaterThan(outstanding) {
		return nil, errs.NewValidation("amount", "exceeds outstanding balance %s, got %s", outstanding, amount)
	}

	remaining := amount
	var touched []*models.InstallmentLine
	for _, line := range lines {
		if remaining.IsZero() {
			break
		}
		if !line.Status.Unpaid() {
			continue
		}
		applied := line.RemainingAmount
		if remaining.LessThan(applied) {
			applied = remaining
		}
		line.RemainingAmount = line.RemainingAmount.Sub(applied)
		if line.RemainingAmount.IsZero() {
			line.Status = models.InstallmentPaid
		} else {
			line.Status = models.InstallmentPartial
		}
		remaining = remaining.Sub(applied)
		if err := l.storage.UpdateInstallment(line); err != nil {
			return nil, fmt.Errorf("failed to update installment %d: %w", line.Sequence, err)
		}
		touched = append(touched, line)
	}

	if _, err := l.ApplyTransaction(cashboxID, amount, models.DirectionCredit); err != nil {
		return nil, err
	}
	description := fmt.Sprintf("installment payment for unit %s", contract.UnitID)
	if err := l.recordEntry(cashboxID, &contract.ID, amount,
		models.DirectionCredit, models.CategoryRevenue, description, paidAt); err != nil {
		return nil, err
	}

	if amount.Equal(outstanding) {
		contract.Status = models.ContractCompleted
		contract.UpdatedAt = time.Now()
		if err := l.storage.UpdateContract(contract); err != nil {
			return nil, fmt.Errorf("failed to complete contract: %w", err)
		}
	}

	l.logger.Info("payment recorded",
		zap.String("contract_id", contractID.String()),
		zap.String("amount", amount.String()),
		zap.Int("installments_touched", len(touched)))
	return touched, nil
}

// MarkOverdue flips pending or partial installments whose due date has
// passed to OVERDUE and returns how many were updated. Intended to run from
// a periodic job.
func (l *Ledger) MarkOverdue(asOf time.Time) (int, error) {
	lines, err := l.storage.GetUnpaidInstallmentsDueBefore(asOf)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, line := range lines {
		if line.Status == models.InstallmentOverdue {
			continue
		}
		line.Status = models.InstallmentOverdue
		if err := l.storage.UpdateInstallment(line); err != nil {
			return updated, fmt.Errorf("failed to mark installment %s overdue: %w", line.ID, err)
		}
		updated++
	}
	if updated > 0 {
		l.logger.Info("installments marked overdue", zap.Int("count", updated))
	}
	return updated, nil
}

// OutstandingLateFees computes the accrued late fees across a contract's
// installments as of the given date. Nothing is applied to the lines; the
// result is for the caller to bill.
func (l *Ledger) OutstandingLateFees(contractID uuid.UUID, asOf time.Time, feePct money.Percentage) (money.Money, error) {
	lines, err := l.storage.GetInstallmentsForContract(contractID)
	if err != nil {
		return money.Zero, err
	}
	total := money.Zero
	for _, line := range lines {
		total = total.Add(schedule.ComputeLateFee(*line, asOf, feePct))
	}
	return total, nil
}

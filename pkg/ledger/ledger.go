// Package ledger implements the balance-mutating operations and the contract
// workflow on top of the Storage interface. It is the only stateful surface;
// the calculation packages it calls are pure.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/store"
)

// lockStripes is the size of the fixed lock table; memory use stays constant
// no matter how many accounts the process ever touches.
const lockStripes = 64

// Ledger handles the business logic for contracts, accounts and entries.
type Ledger struct {
	storage store.Storage
	logger  *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		storage: s,
		logger:  logger,
	}
}

// lockFor returns the stripe mutex serializing transactions on one account.
// Accounts hashing to different stripes proceed in parallel; two accounts
// sharing a stripe serialize against each other, which is harmless.
func (l *Ledger) lockFor(accountID uuid.UUID) *sync.Mutex {
	var h uint32
	for _, b := range accountID {
		h = h*31 + uint32(b)
	}
	return &l.locks[h%lockStripes]
}

// CreateAccount initializes a new cashbox or partner wallet. Cashboxes never
// allow overdraft regardless of the flag passed in.
func (l *Ledger) CreateAccount(name string, accountType models.AccountType, allowOverdraft bool) (*models.Account, error) {
	if name == "" {
		return nil, errs.NewValidation("name", "must not be empty")
	}
	if accountType != models.AccountCashbox && accountType != models.AccountWallet {
		return nil, errs.NewValidation("type", "unknown account type %q", accountType)
	}
	if accountType == models.AccountCashbox {
		allowOverdraft = false
	}

	now := time.Now()
	account := &models.Account{
		ID:             uuid.New(),
		Name:           name,
		Type:           accountType,
		Balance:        money.Zero,
		AllowOverdraft: allowOverdraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.storage.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by its ID.
func (l *Ledger) GetAccount(id uuid.UUID) (*models.Account, error) {
	return l.storage.GetAccount(id)
}

// ApplyTransaction credits or debits an account and returns the new balance.
// The read-check-write sequence is serialized per account, and a debit that
// would drive a no-overdraft account negative fails with
// InsufficientBalanceError, leaving the balance untouched.
func (l *Ledger) ApplyTransaction(accountID uuid.UUID, amount money.Money, direction models.EntryDirection) (money.Money, error) {
	if !amount.IsPositive() {
		return money.Zero, errs.NewValidation("amount", "must be positive, got %s", amount)
	}
	if direction != models.DirectionCredit && direction != models.DirectionDebit {
		return money.Zero, errs.NewValidation("direction", "unknown direction %q", direction)
	}

	lock := l.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.storage.GetAccount(accountID)
	if err != nil {
		return money.Zero, err
	}

	candidate := account.Balance.Add(amount)
	if direction == models.DirectionDebit {
		candidate = account.Balance.Sub(amount)
	}
	if candidate.IsNegative() && !account.AllowOverdraft {
		return money.Zero, &errs.InsufficientBalanceError{
			AccountID: accountID.String(),
			Balance:   account.Balance,
			Requested: amount,
		}
	}

	if err := l.storage.UpdateAccountBalance(accountID, candidate, time.Now()); err != nil {
		return money.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return candidate, nil
}

// recordEntry appends a ledger entry for a completed transaction.
func (l *Ledger) recordEntry(accountID uuid.UUID, contractID *uuid.UUID, amount money.Money,
	direction models.EntryDirection, category models.EntryCategory, description string, entryDate time.Time) error {
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		ContractID:  contractID,
		Amount:      amount,
		Direction:   direction,
		Category:    category,
		Description: description,
		EntryDate:   entryDate,
		CreatedAt:   time.Now(),
	}
	if err := l.storage.CreateEntry(entry); err != nil {
		return fmt.Errorf("failed to store ledger entry: %w", err)
	}
	return nil
}

// Transfer applies a standalone credit or debit (a cash deposit or
// withdrawal) and books it as a transfer entry.
func (l *Ledger) Transfer(accountID uuid.UUID, amount money.Money, direction models.EntryDirection, description string, entryDate time.Time) (money.Money, error) {
	balance, err := l.ApplyTransaction(accountID, amount, direction)
	if err != nil {
		return money.Zero, err
	}
	if err := l.recordEntry(accountID, nil, amount, direction, models.CategoryTransfer, description, entryDate); err != nil {
		return money.Zero, err
	}
	return balance, nil
}

// RecordExpense debits a cashbox and appends an expense entry.
func (l *Ledger) RecordExpense(cashboxID uuid.UUID, amount money.Money, description string, entryDate time.Time) (money.Money, error) {
	balance, err := l.ApplyTransaction(cashboxID, amount, models.DirectionDebit)
	if err != nil {
		return money.Zero, err
	}
	if err := l.recordEntry(cashboxID, nil, amount, models.DirectionDebit, models.CategoryExpense, description, entryDate); err != nil {
		return money.Zero, err
	}
	l.logger.Info("expense recorded",
		zap.String("account_id", cashboxID.String()),
		zap.String("amount", amount.String()))
	return balance, nil
}

// TotalRevenue sums revenue entries with entry dates in [from, to).
func (l *Ledger) TotalRevenue(from, to time.Time) (money.Money, error) {
	return l.sumEntries(models.CategoryRevenue, from, to)
}

// TotalExpenses sums expense entries with entry dates in [from, to).
func (l *Ledger) TotalExpenses(from, to time.Time) (money.Money, error) {
	return l.sumEntries(models.CategoryExpense, from, to)
}

// NetProfit is TotalRevenue minus TotalExpenses over the same range.
func (l *Ledger) NetProfit(from, to time.Time) (money.Money, error) {
	revenue, err := l.TotalRevenue(from, to)
	if err != nil {
		return money.Zero, err
	}
	expenses, err := l.TotalExpenses(from, to)
	if err != nil {
		return money.Zero, err
	}
	return revenue.Sub(expenses), nil
}

func (l *Ledger) sumEntries(category models.EntryCategory, from, to time.Time) (money.Money, error) {
	entries, err := l.storage.GetEntriesByCategory(category, from, to)
	if err != nil {
		return money.Zero, err
	}
	total := money.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	return total, nil
}

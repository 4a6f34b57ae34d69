package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage interface
// for testing.
type MockStore struct {
	mu           sync.Mutex
	contracts    map[uuid.UUID]*models.Contract
	installments map[uuid.UUID]*models.InstallmentLine
	accounts     map[uuid.UUID]*models.Account
	entries      []*models.LedgerEntry
}

func NewMockStore() *MockStore {
	return &MockStore{
		contracts:    make(map[uuid.UUID]*models.Contract),
		installments: make(map[uuid.UUID]*models.InstallmentLine),
		accounts:     make(map[uuid.UUID]*models.Account),
	}
}

func (m *MockStore) CreateContract(c *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.contracts[c.ID] = &copied
	return nil
}

func (m *MockStore) GetContract(id uuid.UUID) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *MockStore) UpdateContract(c *models.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[c.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *c
	m.contracts[c.ID] = &copied
	return nil
}

func (m *MockStore) GetAllContracts() ([]*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Contract{}
	for _, c := range m.contracts {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockStore) CreateInstallments(lines []*models.InstallmentLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		copied := *line
		m.installments[line.ID] = &copied
	}
	return nil
}

func (m *MockStore) GetInstallmentsForContract(contractID uuid.UUID) ([]*models.InstallmentLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.InstallmentLine{}
	for _, line := range m.installments {
		if line.ContractID == contractID {
			copied := *line
			out = append(out, &copied)
		}
	}
	sortInstallments(out)
	return out, nil
}

func (m *MockStore) UpdateInstallment(line *models.InstallmentLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.installments[line.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *line
	m.installments[line.ID] = &copied
	return nil
}

func (m *MockStore) GetUnpaidInstallmentsDueBefore(cutoff time.Time) ([]*models.InstallmentLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.InstallmentLine{}
	for _, line := range m.installments {
		unpaid := line.Status == models.InstallmentPending || line.Status == models.InstallmentPartial
		if unpaid && line.DueDate.Before(cutoff) {
			copied := *line
			out = append(out, &copied)
		}
	}
	sortInstallments(out)
	return out, nil
}

func (m *MockStore) CreateAccount(a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *a
	m.accounts[a.ID] = &copied
	return nil
}

func (m *MockStore) GetAccount(id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *MockStore) GetAccountsByType(accountType models.AccountType) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Account{}
	for _, a := range m.accounts {
		if a.Type == accountType {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateAccountBalance(id uuid.UUID, balance money.Money, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Balance = balance
	a.UpdatedAt = updatedAt
	return nil
}

func (m *MockStore) CreateEntry(e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *e
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *MockStore) GetEntriesByCategory(category models.EntryCategory, from, to time.Time) ([]*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.LedgerEntry{}
	for _, e := range m.entries {
		if e.Category != category {
			continue
		}
		if e.EntryDate.Before(from) || !e.EntryDate.Before(to) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockStore) GetEntriesForAccount(accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.LedgerEntry{}
	for _, e := range m.entries {
		if e.AccountID == accountID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }

func sortInstallments(lines []*models.InstallmentLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].Sequence < lines[j-1].Sequence; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

func newTestLedger() (*Ledger, *MockStore) {
	mockStore := NewMockStore()
	return NewLedger(mockStore, nil), mockStore
}

func mustCashbox(t *testing.T, l *Ledger) *models.Account {
	t.Helper()
	account, err := l.CreateAccount("main cashbox", models.AccountCashbox, false)
	require.NoError(t, err)
	return account
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyTransactionCreditAndDebit(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)

	balance, err := l.ApplyTransaction(cashbox.ID, money.MustFromString("100.00"), models.DirectionCredit)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.String())

	balance, err = l.ApplyTransaction(cashbox.ID, money.MustFromString("40.50"), models.DirectionDebit)
	require.NoError(t, err)
	assert.Equal(t, "59.50", balance.String())
}

func TestApplyTransactionOverdraftRejected(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)

	_, err := l.ApplyTransaction(cashbox.ID, money.MustFromString("30000.00"), models.DirectionCredit)
	require.NoError(t, err)

	_, err = l.ApplyTransaction(cashbox.ID, money.MustFromString("50000.00"), models.DirectionDebit)
	var balanceErr *errs.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.Equal(t, "30000.00", balanceErr.Balance.String())
	assert.Equal(t, "50000.00", balanceErr.Requested.String())

	// Balance unchanged after the rejected debit.
	account, err := l.GetAccount(cashbox.ID)
	require.NoError(t, err)
	assert.Equal(t, "30000.00", account.Balance.String())
}

func TestApplyTransactionOverdraftPermitted(t *testing.T) {
	l, _ := newTestLedger()
	wallet, err := l.CreateAccount("partner wallet", models.AccountWallet, true)
	require.NoError(t, err)

	balance, err := l.ApplyTransaction(wallet.ID, money.MustFromString("25.00"), models.DirectionDebit)
	require.NoError(t, err)
	assert.Equal(t, "-25.00", balance.String())
}

func TestCashboxNeverAllowsOverdraft(t *testing.T) {
	l, _ := newTestLedger()
	cashbox, err := l.CreateAccount("box", models.AccountCashbox, true)
	require.NoError(t, err)
	assert.False(t, cashbox.AllowOverdraft)
}

func TestApplyTransactionValidation(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)

	var validationErr *errs.ValidationError
	_, err := l.ApplyTransaction(cashbox.ID, money.Zero, models.DirectionCredit)
	require.ErrorAs(t, err, &validationErr)

	_, err = l.ApplyTransaction(cashbox.ID, money.MustFromString("1.00"), "sideways")
	require.ErrorAs(t, err, &validationErr)
}

func TestApplyTransactionConcurrent(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)

	const workers = 50
	amount := money.MustFromString("1.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyTransaction(cashbox.ID, amount, models.DirectionCredit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	account, err := l.GetAccount(cashbox.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", account.Balance.String(), "concurrent credits must all be applied exactly once")
}

func TestCreateContract(t *testing.T) {
	l, mockStore := newTestLedger()
	cashbox := mustCashbox(t, l)

	contract, lines, err := l.CreateContract(ContractInput{
		UnitID:           "unit-7",
		ClientID:         "client-1",
		TotalPrice:       money.MustFromString("500000.00"),
		DownPayment:      money.MustFromString("50000.00"),
		InstallmentCount: 12,
		Frequency:        models.FrequencyMonthly,
		StartDate:        date(2024, time.January, 1),
		CashboxID:        cashbox.ID,
	})
	require.NoError(t, err)
	require.Len(t, lines, 12)
	assert.Equal(t, models.ContractActive, contract.Status)
	assert.Equal(t, "37500.00", lines[0].Amount.String())

	// Down payment landed in the cashbox as revenue.
	account, err := l.GetAccount(cashbox.ID)
	require.NoError(t, err)
	assert.Equal(t, "50000.00", account.Balance.String())
	require.Len(t, mockStore.entries, 1)
	assert.Equal(t, models.CategoryRevenue, mockStore.entries[0].Category)
	require.NotNil(t, mockStore.entries[0].ContractID)
	assert.Equal(t, contract.ID, *mockStore.entries[0].ContractID)
}

func TestCreateContractValidation(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)

	input := ContractInput{
		UnitID:           "",
		ClientID:         "client-1",
		TotalPrice:       money.MustFromString("1000.00"),
		InstallmentCount: 2,
		Frequency:        models.FrequencyMonthly,
		StartDate:        date(2024, time.January, 1),
		CashboxID:        cashbox.ID,
	}
	_, _, err := l.CreateContract(input)
	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "unit_id", validationErr.Field)

	input.UnitID = "unit-1"
	input.DownPayment = money.MustFromString("1000.00")
	_, _, err = l.CreateContract(input)
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "down_payment", validationErr.Field)
}

func createTestContract(t *testing.T, l *Ledger, cashboxID uuid.UUID) *models.Contract {
	t.Helper()
	contract, _, err := l.CreateContract(ContractInput{
		UnitID:           "unit-9",
		ClientID:         "client-2",
		TotalPrice:       money.MustFromString("1200.00"),
		DownPayment:      money.MustFromString("200.00"),
		InstallmentCount: 4, // 250.00 each
		Frequency:        models.FrequencyMonthly,
		StartDate:        date(2024, time.January, 15),
		CashboxID:        cashboxID,
	})
	require.NoError(t, err)
	return contract
}

func TestRecordPaymentPartialAndPaid(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)

	// 300 covers the first installment (250) and part of the second.
	touched, err := l.RecordPayment(contract.ID, cashbox.ID, money.MustFromString("300.00"), date(2024, time.February, 10))
	require.NoError(t, err)
	require.Len(t, touched, 2)

	assert.Equal(t, models.InstallmentPaid, touched[0].Status)
	assert.True(t, touched[0].RemainingAmount.IsZero())
	assert.Equal(t, models.InstallmentPartial, touched[1].Status)
	assert.Equal(t, "200.00", touched[1].RemainingAmount.String())

	account, err := l.GetAccount(cashbox.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", account.Balance.String(), "down payment plus installment payment")
}

func TestRecordPaymentCompletesContract(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)

	_, err := l.RecordPayment(contract.ID, cashbox.ID, money.MustFromString("1000.00"), date(2024, time.June, 1))
	require.NoError(t, err)

	updated, err := l.GetContract(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractCompleted, updated.Status)

	lines, err := l.GetSchedule(contract.ID)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, models.InstallmentPaid, line.Status)
	}
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)

	_, err := l.RecordPayment(contract.ID, cashbox.ID, money.MustFromString("1000.01"), date(2024, time.June, 1))
	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "amount", validationErr.Field)
}

func TestRecordPaymentUnknownCashboxLeavesScheduleUntouched(t *testing.T) {
	l, mockStore := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)
	entriesBefore := len(mockStore.entries)

	_, err := l.RecordPayment(contract.ID, uuid.New(), money.MustFromString("300.00"), date(2024, time.February, 10))
	require.ErrorIs(t, err, store.ErrNotFound)

	// No installment may have been marked paid or partial by the failed
	// payment, and no entry booked.
	lines, err := l.GetSchedule(contract.ID)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, models.InstallmentPending, line.Status)
		assert.True(t, line.RemainingAmount.Equal(line.Amount))
	}
	assert.Len(t, mockStore.entries, entriesBefore)
}

func TestCreateContractUnknownCashbox(t *testing.T) {
	l, _ := newTestLedger()

	_, _, err := l.CreateContract(ContractInput{
		UnitID:           "unit-7",
		ClientID:         "client-1",
		TotalPrice:       money.MustFromString("1200.00"),
		DownPayment:      money.MustFromString("200.00"),
		InstallmentCount: 4,
		Frequency:        models.FrequencyMonthly,
		StartDate:        date(2024, time.January, 15),
		CashboxID:        uuid.New(),
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	// Nothing persisted for the rejected contract.
	contracts, err := l.GetAllContracts()
	require.NoError(t, err)
	assert.Empty(t, contracts)
}

func TestMarkOverdue(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)

	// Two of the four installments (due Feb 15, Mar 15) are past mid-April.
	count, err := l.MarkOverdue(date(2024, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	lines, err := l.GetSchedule(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentOverdue, lines[0].Status)
	assert.Equal(t, models.InstallmentOverdue, lines[1].Status)
	assert.Equal(t, models.InstallmentPending, lines[2].Status)

	// Idempotent: a second run finds nothing new.
	count, err = l.MarkOverdue(date(2024, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOutstandingLateFees(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID)

	_, err := l.MarkOverdue(date(2024, time.June, 1))
	require.NoError(t, err)

	// First installment due Feb 15: 105 days overdue by May 30 = 3 periods.
	// Second due Mar 15: 76 days = 2 periods. Third due Apr 15: 45 days =
	// 1 period. Fourth due May 15: 15 days = 0 periods.
	// 250 * 5% * (3+2+1) = 75.
	total, err := l.OutstandingLateFees(contract.ID, date(2024, time.May, 30), money.PercentFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, "75.00", total.String())
}

func TestRevenueExpenseProfit(t *testing.T) {
	l, _ := newTestLedger()
	cashbox := mustCashbox(t, l)
	contract := createTestContract(t, l, cashbox.ID) // books 200 down payment revenue

	_, err := l.RecordPayment(contract.ID, cashbox.ID, money.MustFromString("250.00"), time.Now())
	require.NoError(t, err)

	_, err = l.RecordExpense(cashbox.ID, money.MustFromString("120.00"), "commission", time.Now())
	require.NoError(t, err)

	from := time.Now().AddDate(0, 0, -1)
	to := time.Now().AddDate(0, 0, 1)

	revenue, err := l.TotalRevenue(from, to)
	require.NoError(t, err)
	assert.Equal(t, "450.00", revenue.String())

	expenses, err := l.TotalExpenses(from, to)
	require.NoError(t, err)
	assert.Equal(t, "120.00", expenses.String())

	profit, err := l.NetProfit(from, to)
	require.NoError(t, err)
	assert.Equal(t, "330.00", profit.String())
}

func TestTransferBooksEntry(t *testing.T) {
	l, mockStore := newTestLedger()
	cashbox := mustCashbox(t, l)

	balance, err := l.Transfer(cashbox.ID, money.MustFromString("75.00"), models.DirectionCredit, "opening float", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "75.00", balance.String())
	require.Len(t, mockStore.entries, 1)
	assert.Equal(t, models.CategoryTransfer, mockStore.entries[0].Category)
}

func TestRebalanceWallets(t *testing.T) {
	l, _ := newTestLedger()

	w1, err := l.CreateAccount("partner A", models.AccountWallet, true)
	require.NoError(t, err)
	w2, err := l.CreateAccount("partner B", models.AccountWallet, true)
	require.NoError(t, err)
	w3, err := l.CreateAccount("partner C", models.AccountWallet, true)
	require.NoError(t, err)

	_, err = l.ApplyTransaction(w1.ID, money.MustFromString("900.00"), models.DirectionCredit)
	require.NoError(t, err)
	_, err = l.ApplyTransaction(w2.ID, money.MustFromString("300.00"), models.DirectionCredit)
	require.NoError(t, err)
	_, err = l.ApplyTransaction(w3.ID, money.MustFromString("600.00"), models.DirectionCredit)
	require.NoError(t, err)

	results, err := l.RebalanceWallets(time.Now())
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, id := range []uuid.UUID{w1.ID, w2.ID, w3.ID} {
		account, err := l.GetAccount(id)
		require.NoError(t, err)
		assert.Equal(t, "600.00", account.Balance.String(), "every wallet ends at the mean")
	}
}

func TestGetContractNotFound(t *testing.T) {
	l, _ := newTestLedger()
	_, err := l.GetContract(uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

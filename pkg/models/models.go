package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mfuentes/unitledger/pkg/money"
)

// Frequency is how often an installment falls due.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Months returns the period length in calendar months, and whether the
// frequency is one of the known values.
func (f Frequency) Months() (int, bool) {
	switch f {
	case FrequencyMonthly:
		return 1, true
	case FrequencyQuarterly:
		return 3, true
	case FrequencyYearly:
		return 12, true
	default:
		return 0, false
	}
}

// InstallmentStatus tracks the lifecycle of a single installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPartial InstallmentStatus = "partial"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
)

// Unpaid reports whether the installment still carries a remaining amount.
func (s InstallmentStatus) Unpaid() bool {
	return s == InstallmentPending || s == InstallmentPartial || s == InstallmentOverdue
}

// InstallmentLine is one scheduled payment of a contract.
type InstallmentLine struct {
	ID              uuid.UUID         `json:"id"`
	ContractID      uuid.UUID         `json:"contract_id"`
	Sequence        int               `json:"sequence"` // 1..N
	Amount          money.Money       `json:"amount"`
	DueDate         time.Time         `json:"due_date"`
	RemainingAmount money.Money       `json:"remaining_amount"`
	Status          InstallmentStatus `json:"status"`
}

// ContractStatus tracks the lifecycle of a contract.
type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
)

// Contract is a unit sale paid via down payment plus fixed installments.
type Contract struct {
	ID               uuid.UUID      `json:"id"`
	UnitID           string         `json:"unit_id"`   // Link to external inventory system
	ClientID         string         `json:"client_id"` // Link to external customer system
	TotalPrice       money.Money    `json:"total_price"`
	DownPayment      money.Money    `json:"down_payment"`
	InstallmentCount int            `json:"installment_count"`
	Frequency        Frequency      `json:"frequency"`
	StartDate        time.Time      `json:"start_date"`
	Status           ContractStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// OwnershipShare is one partner's percentage stake in a unit. The shares of
// one unit must sum to 100.
type OwnershipShare struct {
	OwnerID    string           `json:"owner_id"`
	Percentage money.Percentage `json:"percentage"`
}

// AccountType distinguishes cashboxes from partner wallets. Cashboxes never
// allow a negative balance; wallets may, depending on configuration.
type AccountType string

const (
	AccountCashbox AccountType = "cashbox"
	AccountWallet  AccountType = "wallet"
)

// Account is a cashbox or partner wallet holding a signed balance.
type Account struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Type           AccountType `json:"type"`
	Balance        money.Money `json:"balance"`
	AllowOverdraft bool        `json:"allow_overdraft"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// EntryDirection is the side of a ledger entry.
type EntryDirection string

const (
	DirectionCredit EntryDirection = "credit"
	DirectionDebit  EntryDirection = "debit"
)

// EntryCategory classifies entries for revenue/expense reporting.
type EntryCategory string

const (
	CategoryRevenue  EntryCategory = "revenue"
	CategoryExpense  EntryCategory = "expense"
	CategoryTransfer EntryCategory = "transfer"
)

// LedgerEntry is one money movement on an account.
type LedgerEntry struct {
	ID          uuid.UUID      `json:"id"`
	AccountID   uuid.UUID      `json:"account_id"`
	ContractID  *uuid.UUID     `json:"contract_id,omitempty"`
	Amount      money.Money    `json:"amount"`
	Direction   EntryDirection `json:"direction"`
	Category    EntryCategory  `json:"category"`
	Description string         `json:"description"`
	EntryDate   time.Time      `json:"entry_date"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SettlementType classifies one owner's side of a settlement: CREDIT means
// the owner is owed money back, DEBIT means the owner must pay in.
type SettlementType string

const (
	SettlementCredit   SettlementType = "credit"
	SettlementDebit    SettlementType = "debit"
	SettlementBalanced SettlementType = "balanced"
)

// SettlementResult is one owner's line of a computed rebalancing. It is
// derived data; turning it into actual ledger transfers is the caller's call.
type SettlementResult struct {
	OwnerID          string         `json:"owner_id"`
	Target           money.Money    `json:"target"`
	Actual           money.Money    `json:"actual"`
	Difference       money.Money    `json:"difference"` // actual - target, signed
	SettlementAmount money.Money    `json:"settlement_amount"`
	Type             SettlementType `json:"type"`
}

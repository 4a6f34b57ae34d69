package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for database operations on contracts,
// installments, accounts and ledger entries. The calculation packages never
// touch it; only pkg/ledger and the API layer do.
type Storage interface {
	CreateContract(contract *models.Contract) error
	GetContract(id uuid.UUID) (*models.Contract, error)
	UpdateContract(contract *models.Contract) error
	GetAllContracts() ([]*models.Contract, error)

	CreateInstallments(lines []*models.InstallmentLine) error
	GetInstallmentsForContract(contractID uuid.UUID) ([]*models.InstallmentLine, error)
	UpdateInstallment(line *models.InstallmentLine) error
	GetUnpaidInstallmentsDueBefore(cutoff time.Time) ([]*models.InstallmentLine, error)

	CreateAccount(account *models.Account) error
	GetAccount(id uuid.UUID) (*models.Account, error)
	GetAccountsByType(accountType models.AccountType) ([]*models.Account, error)
	UpdateAccountBalance(id uuid.UUID, balance money.Money, updatedAt time.Time) error

	CreateEntry(entry *models.LedgerEntry) error
	GetEntriesByCategory(category models.EntryCategory, from, to time.Time) ([]*models.LedgerEntry, error)
	GetEntriesForAccount(accountID uuid.UUID) ([]*models.LedgerEntry, error)

	Close() error
}

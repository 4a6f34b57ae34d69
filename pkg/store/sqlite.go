package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		total_price TEXT NOT NULL,
		down_payment TEXT NOT NULL,
		installment_count INTEGER NOT NULL,
		frequency TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		remaining_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		FOREIGN KEY(contract_id) REFERENCES contracts(id)
	);
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		balance TEXT NOT NULL,
		allow_overdraft INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		contract_id TEXT,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		entry_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_installments_contract ON installments(contract_id);
	CREATE INDEX IF NOT EXISTS idx_entries_category_date ON ledger_entries(category, entry_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateContract inserts a new contract into the database.
func (s *SQLiteStore) CreateContract(contract *models.Contract) error {
	_, err := s.db.Exec(
		`INSERT INTO contracts (id, unit_id, client_id, total_price, down_payment, installment_count, frequency, start_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contract.ID.String(), contract.UnitID, contract.ClientID, contract.TotalPrice, contract.DownPayment,
		contract.InstallmentCount, string(contract.Frequency), contract.StartDate, string(contract.Status),
		contract.CreatedAt, contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

// GetContract retrieves a contract by its ID.
func (s *SQLiteStore) GetContract(id uuid.UUID) (*models.Contract, error) {
	row := s.db.QueryRow(
		`SELECT id, unit_id, client_id, total_price, down_payment, installment_count, frequency, start_date, status, created_at, updated_at
		FROM contracts WHERE id = ?`, id.String())
	contract, err := scanContract(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

// UpdateContract updates an existing contract in the database.
func (s *SQLiteStore) UpdateContract(contract *models.Contract) error {
	result, err := s.db.Exec(
		`UPDATE contracts SET unit_id = ?, client_id = ?, total_price = ?, down_payment = ?, installment_count = ?, frequency = ?, start_date = ?, status = ?, updated_at = ? WHERE id = ?`,
		contract.UnitID, contract.ClientID, contract.TotalPrice, contract.DownPayment, contract.InstallmentCount,
		string(contract.Frequency), contract.StartDate, string(contract.Status), contract.UpdatedAt, contract.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return checkRowsAffected(result)
}

// GetAllContracts retrieves all contracts.
func (s *SQLiteStore) GetAllContracts() ([]*models.Contract, error) {
	rows, err := s.db.Query(
		`SELECT id, unit_id, client_id, total_price, down_payment, installment_count, frequency, start_date, status, created_at, updated_at
		FROM contracts ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract row: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return contracts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var contract models.Contract
	var idStr, frequency, status string
	if err := row.Scan(&idStr, &contract.UnitID, &contract.ClientID, &contract.TotalPrice, &contract.DownPayment,
		&contract.InstallmentCount, &frequency, &contract.StartDate, &status, &contract.CreatedAt, &contract.UpdatedAt); err != nil {
		return nil, err
	}
	contract.ID = uuid.MustParse(idStr)
	contract.Frequency = models.Frequency(frequency)
	contract.Status = models.ContractStatus(status)
	return &contract, nil
}

// CreateInstallments inserts the installment lines of a contract within a
// single transaction.
func (s *SQLiteStore) CreateInstallments(lines []*models.InstallmentLine) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		_, err := tx.Exec(
			`INSERT INTO installments (id, contract_id, sequence, amount, due_date, remaining_amount, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID.String(), line.ContractID.String(), line.Sequence, line.Amount, line.DueDate,
			line.RemainingAmount, string(line.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", line.Sequence, err)
		}
	}
	return tx.Commit()
}

// GetInstallmentsForContract retrieves the installments of a contract in
// sequence order.
func (s *SQLiteStore) GetInstallmentsForContract(contractID uuid.UUID) ([]*models.InstallmentLine, error) {
	rows, err := s.db.Query(
		`SELECT id, contract_id, sequence, amount, due_date, remaining_amount, status
		FROM installments WHERE contract_id = ? ORDER BY sequence ASC`, contractID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for contract %s: %w", contractID, err)
	}
	defer rows.Close()

	return scanInstallments(rows)
}

// GetUnpaidInstallmentsDueBefore retrieves pending or partial installments
// whose due date is before the cutoff, across all contracts.
func (s *SQLiteStore) GetUnpaidInstallmentsDueBefore(cutoff time.Time) ([]*models.InstallmentLine, error) {
	rows, err := s.db.Query(
		`SELECT id, contract_id, sequence, amount, due_date, remaining_amount, status
		FROM installments WHERE status IN ('pending', 'partial') AND due_date < ? ORDER BY due_date ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get unpaid installments: %w", err)
	}
	defer rows.Close()

	return scanInstallments(rows)
}

func scanInstallments(rows *sql.Rows) ([]*models.InstallmentLine, error) {
	var lines []*models.InstallmentLine
	for rows.Next() {
		var line models.InstallmentLine
		var idStr, contractIDStr, status string
		if err := rows.Scan(&idStr, &contractIDStr, &line.Sequence, &line.Amount, &line.DueDate,
			&line.RemainingAmount, &status); err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		line.ID = uuid.MustParse(idStr)
		line.ContractID = uuid.MustParse(contractIDStr)
		line.Status = models.InstallmentStatus(status)
		lines = append(lines, &line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return lines, nil
}

// UpdateInstallment updates an installment's remaining amount and status.
func (s *SQLiteStore) UpdateInstallment(line *models.InstallmentLine) error {
	result, err := s.db.Exec(
		`UPDATE installments SET remaining_amount = ?, status = ? WHERE id = ?`,
		line.RemainingAmount, string(line.Status), line.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return checkRowsAffected(result)
}

// CreateAccount inserts a new account into the database.
func (s *SQLiteStore) CreateAccount(account *models.Account) error {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, name, type, balance, allow_overdraft, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID.String(), account.Name, string(account.Type), account.Balance,
		account.AllowOverdraft, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its ID.
func (s *SQLiteStore) GetAccount(id uuid.UUID) (*models.Account, error) {
	row := s.db.QueryRow(
		`SELECT id, name, type, balance, allow_overdraft, created_at, updated_at FROM accounts WHERE id = ?`, id.String())
	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccountsByType retrieves all accounts of the given type.
func (s *SQLiteStore) GetAccountsByType(accountType models.AccountType) ([]*models.Account, error) {
	rows, err := s.db.Query(
		`SELECT id, name, type, balance, allow_overdraft, created_at, updated_at FROM accounts WHERE type = ? ORDER BY name ASC`,
		string(accountType))
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts by type: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return accounts, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var idStr, accountType string
	if err := row.Scan(&idStr, &account.Name, &accountType, &account.Balance,
		&account.AllowOverdraft, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	account.ID = uuid.MustParse(idStr)
	account.Type = models.AccountType(accountType)
	return &account, nil
}

// UpdateAccountBalance writes a new balance for an account.
func (s *SQLiteStore) UpdateAccountBalance(id uuid.UUID, balance money.Money, updatedAt time.Time) error {
	result, err := s.db.Exec(
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, updatedAt, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return checkRowsAffected(result)
}

// CreateEntry inserts a new ledger entry into the database.
func (s *SQLiteStore) CreateEntry(entry *models.LedgerEntry) error {
	var contractID interface{}
	if entry.ContractID != nil {
		contractID = entry.ContractID.String()
	}
	_, err := s.db.Exec(
		`INSERT INTO ledger_entries (id, account_id, contract_id, amount, direction, category, description, entry_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.AccountID.String(), contractID, entry.Amount,
		string(entry.Direction), string(entry.Category), entry.Description, entry.EntryDate, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetEntriesByCategory retrieves entries of one category whose entry date
// falls within [from, to).
func (s *SQLiteStore) GetEntriesByCategory(category models.EntryCategory, from, to time.Time) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, contract_id, amount, direction, category, description, entry_date, created_at
		FROM ledger_entries WHERE category = ? AND entry_date >= ? AND entry_date < ? ORDER BY entry_date ASC`,
		string(category), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by category: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetEntriesForAccount retrieves all entries of an account in entry order.
func (s *SQLiteStore) GetEntriesForAccount(accountID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, contract_id, amount, direction, category, description, entry_date, created_at
		FROM ledger_entries WHERE account_id = ? ORDER BY entry_date ASC`, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get entries for account %s: %w", accountID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var idStr, accountIDStr, direction, category string
		var contractIDStr sql.NullString
		if err := rows.Scan(&idStr, &accountIDStr, &contractIDStr, &entry.Amount,
			&direction, &category, &entry.Description, &entry.EntryDate, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		entry.ID = uuid.MustParse(idStr)
		entry.AccountID = uuid.MustParse(accountIDStr)
		if contractIDStr.Valid {
			contractID := uuid.MustParse(contractIDStr.String)
			entry.ContractID = &contractID
		}
		entry.Direction = models.EntryDirection(direction)
		entry.Category = models.EntryCategory(category)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

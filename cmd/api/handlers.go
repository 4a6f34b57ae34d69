package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mfuentes/unitledger/pkg/errs"
	"github.com/mfuentes/unitledger/pkg/ledger"
	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/settle"
	"github.com/mfuentes/unitledger/pkg/store"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses: validation 400, not found
// 404, overdraft 422. Invariant violations are bugs and surface as 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *errs.ValidationError
	var balanceErr *errs.InsufficientBalanceError
	var invariantErr *errs.InvariantViolation

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.As(err, &balanceErr):
		http.Error(w, balanceErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &invariantErr):
		s.logger.Error("invariant violation", zap.Error(err))
		http.Error(w, "internal calculation error", http.StatusInternalServerError)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func (s *Server) createContractHandler(w http.ResponseWriter, r *http.Request) {
	var input ledger.ContractInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	contract, lines, err := s.ledger.CreateContract(input)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"contract": contract,
		"schedule": lines,
	})
}

func (s *Server) listContractsHandler(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.ledger.GetAllContracts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contracts)
}

func (s *Server) getContractHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}
	contract, err := s.ledger.GetContract(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contract)
}

func (s *Server) getScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}
	lines, err := s.ledger.GetSchedule(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lines)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount    money.Money `json:"amount"`
		CashboxID uuid.UUID   `json:"cashbox_id"`
		PaidAt    *time.Time  `json:"paid_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	lines, err := s.ledger.RecordPayment(id, req.CashboxID, req.Amount, paidAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, lines)
}

func (s *Server) lateFeesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid contract ID", http.StatusBadRequest)
		return
	}

	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "as_of must be RFC3339", http.StatusBadRequest)
			return
		}
		asOf = parsed
	}

	total, err := s.ledger.OutstandingLateFees(id, asOf, s.cfg.LateFeePercent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"contract_id":         id,
		"as_of":               asOf,
		"fee_percent":         s.cfg.LateFeePercent,
		"outstanding_latefee": total,
	})
}

func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string             `json:"name"`
		Type           models.AccountType `json:"type"`
		AllowOverdraft *bool              `json:"allow_overdraft,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Wallets fall back to the configured overdraft policy; cashboxes never
	// allow overdraft regardless.
	allowOverdraft := s.cfg.WalletOverdraft
	if req.AllowOverdraft != nil {
		allowOverdraft = *req.AllowOverdraft
	}

	account, err := s.ledger.CreateAccount(req.Name, req.Type, allowOverdraft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) getAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}
	account, err := s.ledger.GetAccount(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) listEntriesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}
	entries, err := s.storage.GetEntriesForAccount(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) applyTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount      money.Money           `json:"amount"`
		Direction   models.EntryDirection `json:"direction"`
		Description string                `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := s.ledger.Transfer(id, req.Amount, req.Direction, req.Description, time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account_id": id,
		"balance":    balance,
	})
}

func (s *Server) recordExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount      money.Money `json:"amount"`
		Description string      `json:"description"`
		EntryDate   *time.Time  `json:"entry_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entryDate := time.Now()
	if req.EntryDate != nil {
		entryDate = *req.EntryDate
	}

	balance, err := s.ledger.RecordExpense(id, req.Amount, req.Description, entryDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"account_id": id,
		"balance":    balance,
	})
}

// settleByTargetHandler previews a target-vs-actual settlement without
// touching any balance.
func (s *Server) settleByTargetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TotalExpense        money.Money             `json:"total_expense"`
		Shares              []models.OwnershipShare `json:"shares"`
		ActualContributions map[string]money.Money  `json:"actual_contributions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := settle.SettleByTarget(req.TotalExpense, req.Shares, req.ActualContributions)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

// settleByAverageHandler previews a wallet rebalance without touching any
// balance.
func (s *Server) settleByAverageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Balances map[string]money.Money `json:"balances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := settle.SettleByAverage(req.Balances)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) rebalanceWalletsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.ledger.RebalanceWallets(time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) profitReportHandler(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	revenue, err := s.ledger.TotalRevenue(from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	expenses, err := s.ledger.TotalExpenses(from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":       from,
		"to":         to,
		"revenue":    revenue,
		"expenses":   expenses,
		"net_profit": revenue.Sub(expenses),
	})
}

// dateRange parses from/to query parameters, defaulting to the last 30 days.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
		to = parsed
	}
	return from, to, nil
}

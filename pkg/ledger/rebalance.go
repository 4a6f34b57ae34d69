package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/mfuentes/unitledger/pkg/models"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/settle"
)

// RebalanceWallets settles all partner wallets to a common balance: wallets
// above the mean are debited by their excess, wallets below it credited.
// The computed settlement is materialized as balance changes plus transfer
// entries. A wallet that cannot go negative can make an otherwise valid
// rebalance fail partway; callers wanting a dry run should preview with
// settle.SettleByAverage instead.
func (l *Ledger) RebalanceWallets(asOf time.Time) ([]models.SettlementResult, error) {
	wallets, err := l.storage.GetAccountsByType(models.AccountWallet)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Account, len(wallets))
	balances := make(map[string]money.Money, len(wallets))
	for _, w := range wallets {
		byID[w.ID.String()] = w
		balances[w.ID.String()] = w.Balance
	}

	results, err := settle.SettleByAverage(balances)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Type == models.SettlementBalanced {
			continue
		}
		wallet := byID[res.OwnerID]
		direction := models.DirectionCredit
		description := "rebalance transfer in"
		if res.Type == models.SettlementCredit {
			// Above the mean: the excess leaves this wallet.
			direction = models.DirectionDebit
			description = "rebalance transfer out"
		}
		if _, err := l.ApplyTransaction(wallet.ID, res.SettlementAmount, direction); err != nil {
			return nil, err
		}
		if err := l.recordEntry(wallet.ID, nil, res.SettlementAmount,
			direction, models.CategoryTransfer, description, asOf); err != nil {
			return nil, err
		}
	}

	l.logger.Info("wallets rebalanced", zap.Int("wallets", len(wallets)))
	return results, nil
}

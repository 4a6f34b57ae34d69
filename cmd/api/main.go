package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mfuentes/unitledger/pkg/ledger"
	"github.com/mfuentes/unitledger/pkg/money"
	"github.com/mfuentes/unitledger/pkg/store"
)

// Config carries the runtime settings read from the environment.
type Config struct {
	Port                 string
	DBPath               string
	LateFeePercent       money.Percentage // per 30-day period on overdue remaining amounts
	WalletOverdraft      bool             // default overdraft policy for new partner wallets
	OverdueCheckInterval time.Duration
}

// loadConfig reads settings from the environment, with a local .env file
// loaded first when present.
func loadConfig() (Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := Config{
		Port:                 envOr("PORT", "8080"),
		DBPath:               envOr("DB_PATH", "unitledger.db"),
		OverdueCheckInterval: time.Hour,
	}

	feePct, err := money.PercentFromString(envOr("LATE_FEE_PERCENT", "5"))
	if err != nil {
		return Config{}, err
	}
	cfg.LateFeePercent = feePct

	overdraft, err := strconv.ParseBool(envOr("WALLET_OVERDRAFT", "true"))
	if err != nil {
		return Config{}, err
	}
	cfg.WalletOverdraft = overdraft

	if v := os.Getenv("OVERDUE_CHECK_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, err
		}
		cfg.OverdueCheckInterval = interval
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Server holds the ledger instance and runtime configuration.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage
	logger  *zap.Logger
	cfg     Config
}

func NewServer(s store.Storage, logger *zap.Logger, cfg Config) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		storage: s,
		logger:  logger,
		cfg:     cfg,
	}
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/contracts", s.listContractsHandler).Methods("GET")
	router.HandleFunc("/contracts", s.createContractHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}", s.getContractHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}/schedule", s.getScheduleHandler).Methods("GET")
	router.HandleFunc("/contracts/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/contracts/{id}/latefees", s.lateFeesHandler).Methods("GET")

	router.HandleFunc("/accounts", s.createAccountHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}", s.getAccountHandler).Methods("GET")
	router.HandleFunc("/accounts/{id}/entries", s.listEntriesHandler).Methods("GET")
	router.HandleFunc("/accounts/{id}/transactions", s.applyTransactionHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}/expenses", s.recordExpenseHandler).Methods("POST")

	router.HandleFunc("/settlements/target", s.settleByTargetHandler).Methods("POST")
	router.HandleFunc("/settlements/average", s.settleByAverageHandler).Methods("POST")
	router.HandleFunc("/wallets/rebalance", s.rebalanceWalletsHandler).Methods("POST")

	router.HandleFunc("/reports/profit", s.profitReportHandler).Methods("GET")

	return router
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger, cfg)

	// Periodically flip past-due installments to overdue.
	go func() {
		ticker := time.NewTicker(cfg.OverdueCheckInterval)
		defer ticker.Stop()

		for range ticker.C {
			count, err := server.ledger.MarkOverdue(time.Now())
			if err != nil {
				logger.Error("overdue check failed", zap.Error(err))
				continue
			}
			logger.Info("overdue check complete", zap.Int("marked", count))
		}
	}()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, server.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

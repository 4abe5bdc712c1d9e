package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/auth"
	"github.com/debtsettle/backend/internal/infrastructure/config"
	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"github.com/debtsettle/backend/internal/infrastructure/persistence"
	"github.com/debtsettle/backend/internal/infrastructure/seed"
	"go.uber.org/zap"
)

func main() {
	var (
		customers int
		debts     int
		seedValue uint64
		token     bool
		tokenTTL  time.Duration
		logLevel  string
	)
	flag.IntVar(&customers, "customers", 10, "Number of customers to create")
	flag.IntVar(&debts, "debts", 5, "Debts per customer")
	flag.Uint64Var(&seedValue, "seed", 0, "Random seed (0 = random)")
	flag.BoolVar(&token, "token", false, "Print a signed operator token for local testing")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of the printed token")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.NewCLI(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.App.Env == "production" {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seeder := seed.NewSeeder(persistence.NewGormTransactionScope(db.DB), log)
	result, err := seeder.Run(ctx, seed.Options{
		Customers:        customers,
		DebtsPerCustomer: debts,
		Seed:             seedValue,
		Currency:         valueobject.Currency(cfg.Settlement.Currency),
	})
	if err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}

	for _, c := range result.Customers {
		fmt.Printf("%s  %-40s  %d debts\n", c.TaxpayerID, c.Name, c.Debts)
	}

	if token {
		signed, err := auth.NewJWTService(cfg.JWT).IssueToken("seed-operator", "seed-operator", []string{"operator"}, tokenTTL)
		if err != nil {
			log.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Printf("\nAuthorization: Bearer %s\n", signed)
	}
}

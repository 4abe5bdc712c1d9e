package main

import (
	"fmt"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/config"
)

// settlementRules maps the settlement section of the configuration onto the
// rules the application services enforce. Zero values fall back to defaults.
func settlementRules(cfg config.SettlementConfig) (appsettlement.Config, error) {
	rules := appsettlement.DefaultConfig()
	if cfg.Currency != "" {
		rules.Currency = valueobject.Currency(cfg.Currency)
	}
	if cfg.MinimumInstallment.IsPositive() {
		minimum, err := valueobject.NewMoney(cfg.MinimumInstallment, rules.Currency)
		if err != nil {
			return appsettlement.Config{}, fmt.Errorf("minimum installment: %w", err)
		}
		rules.MinimumInstallment = minimum
	} else if rules.MinimumInstallment.Currency() != rules.Currency {
		return appsettlement.Config{}, fmt.Errorf("minimum installment must be set for currency %s", rules.Currency)
	}
	if cfg.MaxInstallments > 0 {
		rules.MaxInstallments = cfg.MaxInstallments
	}
	if cfg.DueInDays > 0 {
		rules.DueInDays = cfg.DueInDays
	}
	if cfg.MaxIdentifierAttempts > 0 {
		rules.MaxIdentifierAttempts = cfg.MaxIdentifierAttempts
	}
	if cfg.CacheTTL > 0 {
		rules.CacheTTL = cfg.CacheTTL
	}
	return rules, nil
}

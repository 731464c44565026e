package billing

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
)

// PlanDetails describes the single one-time product shown on the paywall.
type PlanDetails struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
	Description string `json:"description"`
}

func PlanFromConfig(p config.ProductConfig) PlanDetails {
	return PlanDetails{
		Name:        p.Name,
		Price:       formatMinorUnits(p.Amount),
		Amount:      p.Amount,
		Currency:    normalizeCurrency(p.Currency),
		Interval:    "one_time",
		Description: p.Description,
	}
}

// formatMinorUnits renders cents as a decimal string, 2499 -> "24.99".
func formatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

func normalizeCurrency(currency string) string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if len(c) != 3 {
		return "usd"
	}
	return c
}

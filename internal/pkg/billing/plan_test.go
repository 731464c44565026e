package billing

import (
	"testing"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
)

func TestFormatMinorUnits(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 2499, want: "24.99"},
		{in: 100, want: "1.00"},
		{in: 5, want: "0.05"},
		{in: 0, want: "0.00"},
		{in: -250, want: "-2.50"},
	}

	for _, tt := range tests {
		if got := formatMinorUnits(tt.in); got != tt.want {
			t.Fatalf("formatMinorUnits(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := normalizeCurrency(" EUR "); got != "eur" {
		t.Fatalf("normalizeCurrency(EUR) = %q, want eur", got)
	}
	if got := normalizeCurrency("dollars"); got != "usd" {
		t.Fatalf("expected fallback to usd, got %q", got)
	}
}

func TestPlanFromConfig(t *testing.T) {
	plan := PlanFromConfig(config.ProductConfig{
		Name:        "BookfoldAR Full Access",
		Description: "One-time payment for lifetime access to all AR features",
		Amount:      2499,
		Currency:    "USD",
	})

	if plan.Price != "24.99" || plan.Currency != "usd" || plan.Interval != "one_time" {
		t.Fatalf("unexpected plan details: %+v", plan)
	}
}

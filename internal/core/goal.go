package core

import "github.com/shopspring/decimal"

// DefaultSavingsGoal is used until the user sets a goal.
var DefaultSavingsGoal = Money{Cents: 100000}

// SavingsGoal is the user's single savings target.
type SavingsGoal struct {
	Target Money `json:"target"`
}

// DefaultGoal returns the goal a new user starts with.
func DefaultGoal() SavingsGoal {
	return SavingsGoal{Target: DefaultSavingsGoal}
}

// Set replaces the target when raw is a positive decimal amount, read the
// same way as ParseAmount. Any other input leaves the goal untouched and
// reports false.
func (g SavingsGoal) Set(raw string) (SavingsGoal, bool) {
	m, err := ParseAmount(raw)
	if err != nil {
		return g, false
	}
	return SavingsGoal{Target: m}, true
}

func (g SavingsGoal) Validate() error {
	return g.Target.Validate()
}

// Progress returns balance as a percentage of goal, clamped to [0, 100].
// A non-positive goal yields 0.
func Progress(balance, goal Money) float64 {
	if goal.Cents <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(balance.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(goal.Cents))
	switch {
	case pct.IsNegative():
		return 0
	case pct.GreaterThan(decimal.NewFromInt(100)):
		return 100
	}
	f, _ := pct.Round(2).Float64()
	return f
}

package achievement

import (
	"ecocommunity-gamification/services/stats"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Progress struct {
	Definition
	Current    float64 `json:"current"`
	Required   float64 `json:"required"`
	Percent    int64   `json:"progress"`
	Applicable bool    `json:"applicable"`
	Satisfied  bool    `json:"satisfied"`
}

// Evaluate scores one definition against a stats snapshot. It has no side
// effects. A stat missing from the snapshot scores 0 and never satisfies,
// while a zero threshold is satisfied as soon as the stat exists.
func Evaluate(def Definition, values stats.Values) Progress {
	p := Progress{Definition: def}

	crit, err := def.Criterion()
	if err != nil {
		return p
	}
	p.Applicable = true
	p.Required = crit.Required.InexactFloat64()

	current, ok := values.Get(crit.Stat)
	if !ok {
		return p
	}
	p.Current = current.InexactFloat64()

	if crit.Required.IsZero() {
		p.Percent = 100
		p.Satisfied = true
		return p
	}

	percent := current.Mul(hundred).Div(crit.Required).Floor()
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	if percent.IsNegative() {
		percent = decimal.Zero
	}
	p.Percent = percent.IntPart()
	p.Satisfied = p.Percent == 100
	return p
}

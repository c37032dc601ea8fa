package achievement

import (
	"errors"
	"fmt"
	"strconv"

	"ecocommunity-gamification/services/stats"

	"github.com/shopspring/decimal"
)

var ErrMalformedCriterion = errors.New("malformed criterion")

// Criterion is the single threshold an achievement is judged on.
type Criterion struct {
	Stat     string
	Required decimal.Decimal
}

// ParseCriterion resolves a raw criteria document. The threshold lives
// under count, except login_streak may use days and account_age months.
func ParseCriterion(raw map[string]any) (Criterion, error) {
	stat, ok := raw["type"].(string)
	if !ok || stat == "" {
		return Criterion{}, fmt.Errorf("%w: missing type", ErrMalformedCriterion)
	}

	key := "count"
	if _, ok := raw[key]; !ok {
		switch stat {
		case stats.LoginStreak:
			key = "days"
		case stats.AccountAge:
			key = "months"
		}
	}

	v, ok := raw[key]
	if !ok {
		return Criterion{}, fmt.Errorf("%w: %s has no threshold", ErrMalformedCriterion, stat)
	}

	required, err := toDecimal(v)
	if err != nil {
		return Criterion{}, fmt.Errorf("%w: %s %s: %v", ErrMalformedCriterion, stat, key, err)
	}
	if required.IsNegative() {
		return Criterion{}, fmt.Errorf("%w: %s threshold is negative", ErrMalformedCriterion, stat)
	}

	return Criterion{Stat: stat, Required: required}, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint64:
		return decimal.NewFromUint64(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %v", v)
	}
}

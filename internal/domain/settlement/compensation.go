package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Calculator computes per-employee daily earnings.
type Calculator struct {
	Policy        string
	ClampNegative bool
	Scale         int32
}

func NewCalculator(policy string, clampNegative bool, scale int32) (Calculator, error) {
	switch policy {
	case "":
		policy = SplitEqual
	case SplitEqual, SplitWeighted:
	default:
		return Calculator{}, fmt.Errorf("%w: %q", ErrUnknownSplitPolicy, policy)
	}
	if scale < 0 {
		return Calculator{}, fmt.Errorf("percent scale must not be negative, got %d", scale)
	}
	return Calculator{Policy: policy, ClampNegative: clampNegative, Scale: scale}, nil
}

func DefaultCalculator() Calculator {
	return Calculator{Policy: SplitEqual, Scale: DefaultPercentScale}
}

// Compute returns the fixed and percent components of every credited
// employee for day. Only credited employees appear in the result.
func (c Calculator) Compute(day DayAggregate, base decimal.Decimal, roster Roster) (map[string]Compensation, error) {
	out := make(map[string]Compensation, len(day.Credited))
	if len(day.Credited) == 0 {
		return out, nil
	}
	for _, employeeID := range day.Credited {
		if err := roster.require(employeeID, SourceCredit, day.Date); err != nil {
			return nil, err
		}
	}
	if c.ClampNegative && base.IsNegative() {
		base = decimal.Zero
	}

	shares, err := c.percentShares(day.Credited, base, roster)
	if err != nil {
		return nil, err
	}
	for _, employeeID := range day.Credited {
		out[employeeID] = Compensation{
			Fixed:   roster[employeeID].FixedRate,
			Percent: shares[employeeID].Round(c.Scale),
		}
	}
	return out, nil
}

func (c Calculator) percentShares(credited []string, base decimal.Decimal, roster Roster) (map[string]decimal.Decimal, error) {
	shares := make(map[string]decimal.Decimal, len(credited))
	n := decimal.NewFromInt(int64(len(credited)))

	switch c.Policy {
	case "", SplitEqual:
		for _, employeeID := range credited {
			rate := roster[employeeID].PercentRate
			shares[employeeID] = rate.Div(hundred).Mul(base).Div(n)
		}
	case SplitWeighted:
		sum := decimal.Zero
		highest := decimal.Zero
		for _, employeeID := range credited {
			rate := roster[employeeID].PercentRate
			sum = sum.Add(rate)
			if rate.GreaterThan(highest) {
				highest = rate
			}
		}
		if sum.IsZero() {
			for _, employeeID := range credited {
				shares[employeeID] = decimal.Zero
			}
			return shares, nil
		}
		pool := base.Mul(highest).Div(hundred)
		for _, employeeID := range credited {
			rate := roster[employeeID].PercentRate
			shares[employeeID] = pool.Mul(rate).Div(sum)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplitPolicy, c.Policy)
	}
	return shares, nil
}

package core

import "github.com/shopspring/decimal"

// MonthAmount is one month's share of a distributed total.
type MonthAmount struct {
	Month  string
	Amount decimal.Decimal
}

// Distribution is an ordered month -> amount split.
type Distribution []MonthAmount

// Total sums every month of the distribution.
func (d Distribution) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range d {
		sum = sum.Add(m.Amount)
	}
	return sum
}

// Map returns the distribution keyed by month.
func (d Distribution) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(d))
	for _, m := range d {
		out[m.Month] = m.Amount
	}
	return out
}

// DistributeEvenly splits total across months. Every month gets total/n rounded to cents
// except the last, which takes whatever makes the sum equal total exactly. When rounding
// pushes the other months past total, the last month goes negative (0.13 over eight
// months is seven months of 0.02 and -0.01).
func DistributeEvenly(total decimal.Decimal, months []string) (Distribution, error) {
	if len(months) == 0 {
		return nil, &ValidationError{Field: "months", Reason: "at least one month is required", Err: ErrNoMonths}
	}
	if total.IsNegative() {
		return nil, &ValidationError{Field: "amount", Reason: "amount to distribute must not be negative", Err: ErrInvalidAmount}
	}

	total = RoundCents(total)
	n := int64(len(months))
	base := RoundCents(total.Div(decimal.NewFromInt(n)))

	out := make(Distribution, len(months))
	for i, m := range months {
		out[i] = MonthAmount{Month: m, Amount: base}
	}
	out[n-1].Amount = total.Sub(base.Mul(decimal.NewFromInt(n - 1)))
	return out, nil
}

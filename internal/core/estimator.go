package core

import "github.com/shopspring/decimal"

// Estimator answers "can I afford this?" for a sticker price against a
// category balance, using a fixed sales tax rate and hourly wage.
type Estimator struct {
	taxRate    decimal.Decimal
	hourlyRate decimal.Decimal
}

// EstimatorResult is derived on every price change and never stored.
// Shortfall and LaborHoursNeeded are zero when the purchase is affordable.
type EstimatorResult struct {
	StickerPrice     decimal.Decimal
	TaxAmount        decimal.Decimal
	TotalCost        decimal.Decimal
	ResultingBalance decimal.Decimal
	Affordable       bool
	LaborHours       decimal.Decimal
	Shortfall        decimal.Decimal
	LaborHoursNeeded decimal.Decimal
}

// NewEstimator validates the configured rates. The hourly rate is a divisor
// and must be strictly positive.
func NewEstimator(taxRate, hourlyRate decimal.Decimal) (Estimator, error) {
	if taxRate.IsNegative() {
		return Estimator{}, ErrInvalidTaxRate
	}
	if !hourlyRate.IsPositive() {
		return Estimator{}, ErrInvalidHourlyRate
	}
	return Estimator{taxRate: taxRate, hourlyRate: hourlyRate}, nil
}

func (e Estimator) TaxRate() decimal.Decimal    { return e.taxRate }
func (e Estimator) HourlyRate() decimal.Decimal { return e.hourlyRate }

// Active reports whether an estimate should be shown for price. Zero and
// negative prices leave the estimator inert.
func (e Estimator) Active(price decimal.Decimal) bool {
	return price.IsPositive()
}

// Estimate computes the cost breakdown and verdict for price against the
// available balance. It is pure; callers gate on Active first.
func (e Estimator) Estimate(price, available decimal.Decimal) EstimatorResult {
	tax := price.Mul(e.taxRate)
	total := price.Add(tax)
	resulting := available.Sub(total)

	res := EstimatorResult{
		StickerPrice:     price,
		TaxAmount:        tax,
		TotalCost:        total,
		ResultingBalance: resulting,
		Affordable:       !resulting.IsNegative(),
		LaborHours:       total.Div(e.hourlyRate),
	}
	if !res.Affordable {
		res.Shortfall = resulting.Abs()
		res.LaborHoursNeeded = res.Shortfall.Div(e.hourlyRate)
	}
	return res
}

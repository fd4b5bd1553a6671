package inventory

import "github.com/shopspring/decimal"

// WeightedAverage returns the moving average unit cost after receiving qty
// units at unitCost on top of stock units valued at cost. The result is not
// rounded; callers round when storing. A zero resulting quantity keeps cost.
func WeightedAverage(stock, cost, qty, unitCost float64) float64 {
	return weightedAverage(decimal.NewFromFloat(stock), decimal.NewFromFloat(cost), decimal.NewFromFloat(qty), decimal.NewFromFloat(unitCost)).InexactFloat64()
}

func weightedAverage(stock, cost, qty, unitCost decimal.Decimal) decimal.Decimal {
	total := stock.Add(qty)
	if total.IsZero() || qty.IsZero() {
		return cost
	}
	value := stock.Mul(cost).Add(qty.Mul(unitCost))
	return value.DivRound(total, 8)
}

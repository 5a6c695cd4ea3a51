package utils

import (
	"go-farmmarket/models"

	"github.com/shopspring/decimal"
)

// OrderTotal sums unit price times quantity over the items, rounded to cents
func OrderTotal(items []models.OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

// AverageRating returns the mean of the rating values rounded to two places
func AverageRating(ratings []models.ProductRating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Value)))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(ratings))), 2).InexactFloat64()
}

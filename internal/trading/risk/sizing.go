package risk

import (
	"errors"
	"math"
)

var (
	// ErrZeroQuantity means the adjusted notional buys less than one share
	ErrZeroQuantity = errors.New("adjusted amount too small for one share")
	// ErrInsufficientBuyingPower means the account cannot cover the adjusted notional
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
)

// SizingDecision holds position sizing calculation results
type SizingDecision struct {
	Quantity   int64   `json:"quantity"`
	Notional   float64 `json:"notional"`
	Multiplier float64 `json:"multiplier"`
	WinRate    float64 `json:"win_rate"`
}

// SizeMultiplier maps a rolling win rate (fraction in [0,1]) to a
// position size multiplier. Band lower bounds are inclusive: exactly
// 60% earns the 1.20 band, exactly 40% the 0.80 band.
func SizeMultiplier(winRate float64) float64 {
	switch {
	case winRate >= 0.6:
		return 1.2
	case winRate >= 0.5:
		return 1.0
	case winRate >= 0.4:
		return 0.8
	default:
		return 0.6
	}
}

// SizePosition turns the base notional amount into an order quantity,
// scaled by the win-rate band. The buy is rejected outright when the
// quantity floors to zero or the adjusted amount exceeds the available
// buying power; no partial position is ever created.
func SizePosition(baseAmount, winRate, currentPrice, buyingPower float64) (SizingDecision, error) {
	multiplier := SizeMultiplier(winRate)
	adjusted := baseAmount * multiplier

	decision := SizingDecision{
		Notional:   adjusted,
		Multiplier: multiplier,
		WinRate:    winRate,
	}

	if adjusted > buyingPower {
		return decision, ErrInsufficientBuyingPower
	}
	if currentPrice <= 0 {
		return decision, ErrZeroQuantity
	}

	quantity := int64(math.Floor(adjusted / currentPrice))
	if quantity < 1 {
		return decision, ErrZeroQuantity
	}

	decision.Quantity = quantity
	return decision, nil
}

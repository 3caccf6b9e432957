package indicators

import (
	"errors"
	"math"

	"github.com/Alias1177/Trader/models"
)

// ErrInsufficientHistory is returned when an instrument has fewer bars
// than the configured lookback window. Not a failure: the instrument is
// simply skipped this tick and retried once enough history accumulates.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Compute derives an IndicatorSnapshot from an instrument's rolling
// history and its latest quote. Pure function of its inputs.
func Compute(inst models.Instrument, lookback, rsiPeriod int) (models.IndicatorSnapshot, error) {
	if len(inst.History) < lookback {
		return models.IndicatorSnapshot{}, ErrInsufficientHistory
	}

	window := inst.History[len(inst.History)-lookback:]
	price := inst.Quote.Price

	mean := 0.0
	for _, c := range window {
		mean += c.Close
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, c := range window {
		variance += math.Pow(c.Close-mean, 2)
	}
	variance /= float64(len(window))
	stdDev := math.Sqrt(variance)

	// Degenerate stddev contributes no anomaly rather than failing
	zScore := 0.0
	if stdDev > 0 {
		zScore = (price - mean) / stdDev
	}

	prevClose := inst.History[len(inst.History)-1].Close
	priceChangePct := 0.0
	gapPct := 0.0
	if prevClose > 0 {
		priceChangePct = (price - prevClose) / prevClose * 100
		if inst.Quote.Open > 0 {
			gapPct = (inst.Quote.Open - prevClose) / prevClose * 100
		}
	}

	// Missing volume data yields a neutral ratio, not a skipped symbol
	volumeRatio := 1.0
	var totalVolume int64
	for _, c := range window {
		totalVolume += c.Volume
	}
	avgVolume := float64(totalVolume) / float64(len(window))
	if avgVolume > 0 && inst.Quote.Volume > 0 {
		volumeRatio = float64(inst.Quote.Volume) / avgVolume
	}

	return models.IndicatorSnapshot{
		Symbol:         inst.Symbol,
		Mean:           mean,
		StdDev:         stdDev,
		ZScore:         zScore,
		RSI:            calculateRSI(inst.History, price, rsiPeriod),
		PriceChangePct: priceChangePct,
		GapPct:         gapPct,
		VolumeRatio:    volumeRatio,
		CurrentPrice:   price,
	}, nil
}

// calculateRSI computes the standard average-gain/average-loss RSI over
// the closing series plus the current price.
func calculateRSI(history []models.Candle, currentPrice float64, period int) float64 {
	closes := make([]float64, 0, len(history)+1)
	for _, c := range history {
		closes = append(closes, c.Close)
	}
	closes = append(closes, currentPrice)

	if len(closes) < period+1 {
		return 50.0 // Neutral value when there is not enough data
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change >= 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		return 100.0
	}

	rs := gains / losses
	return 100.0 - (100.0 / (1.0 + rs))
}

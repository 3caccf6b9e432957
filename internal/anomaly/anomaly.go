package anomaly

import (
	"math"

	"github.com/Alias1177/Trader/models"
)

// Detection thresholds. A condition only starts contributing severity
// once its statistic moves beyond the threshold, and the contribution
// grows with the size of the breach.
const (
	zScoreThreshold      = 2.0
	priceChangeThreshold = 3.0 // percent
	gapThreshold         = 2.0 // percent
	rsiOversold          = 30.0
	rsiOverbought        = 70.0
	volumeSpikeRatio     = 2.0

	priceChangeWeight = 1.0 / 3.0
	gapWeight         = 1.0 / 2.0
	rsiWeight         = 1.0 / 10.0
	volumeSpikeBonus  = 1.0
)

// Detect classifies a snapshot as a buy candidate (oversold), a sell
// candidate (overbought) or neither, with an additive severity score.
// Buy and sell conditions accumulate separately; the higher side wins
// and an exact tie yields no signal. A volume spike amplifies an
// already-directional signal but never creates one by itself.
// Pure function: same snapshot, same signal.
func Detect(snap models.IndicatorSnapshot) models.AnomalySignal {
	var buySeverity, sellSeverity float64
	var buyConditions, sellConditions []string

	if snap.ZScore < -zScoreThreshold {
		buySeverity += math.Abs(snap.ZScore) - zScoreThreshold
		buyConditions = append(buyConditions, "oversold")
	}
	if snap.PriceChangePct < -priceChangeThreshold {
		buySeverity += (math.Abs(snap.PriceChangePct) - priceChangeThreshold) * priceChangeWeight
		buyConditions = append(buyConditions, "extreme_drop")
	}
	if snap.GapPct < -gapThreshold {
		buySeverity += (math.Abs(snap.GapPct) - gapThreshold) * gapWeight
		buyConditions = append(buyConditions, "gap_down")
	}
	if snap.RSI < rsiOversold {
		buySeverity += (rsiOversold - snap.RSI) * rsiWeight
		buyConditions = append(buyConditions, "rsi_oversold")
	}

	if snap.ZScore > zScoreThreshold {
		sellSeverity += snap.ZScore - zScoreThreshold
		sellConditions = append(sellConditions, "overbought")
	}
	if snap.PriceChangePct > priceChangeThreshold {
		sellSeverity += (snap.PriceChangePct - priceChangeThreshold) * priceChangeWeight
		sellConditions = append(sellConditions, "extreme_rise")
	}
	if snap.GapPct > gapThreshold {
		sellSeverity += (snap.GapPct - gapThreshold) * gapWeight
		sellConditions = append(sellConditions, "gap_up")
	}
	if snap.RSI > rsiOverbought {
		sellSeverity += (snap.RSI - rsiOverbought) * rsiWeight
		sellConditions = append(sellConditions, "rsi_overbought")
	}

	if snap.VolumeRatio > volumeSpikeRatio {
		if buySeverity > 0 {
			buySeverity += volumeSpikeBonus
			buyConditions = append(buyConditions, "volume_spike")
		}
		if sellSeverity > 0 {
			sellSeverity += volumeSpikeBonus
			sellConditions = append(sellConditions, "volume_spike")
		}
	}

	signal := models.AnomalySignal{
		Symbol:    snap.Symbol,
		Direction: models.SignalNone,
		Price:     snap.CurrentPrice,
	}

	// Contradictory inputs can trigger both sides (e.g. a gap up into an
	// oversold RSI). Higher severity wins; an exact tie means no trade.
	switch {
	case buySeverity > sellSeverity:
		signal.Direction = models.SignalBuy
		signal.Severity = buySeverity
		signal.Conditions = buyConditions
	case sellSeverity > buySeverity:
		signal.Direction = models.SignalSell
		signal.Severity = sellSeverity
		signal.Conditions = sellConditions
	default:
		signal.Severity = buySeverity
	}

	return signal
}

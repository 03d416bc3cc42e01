package backtesting

import "github.com/guyghost/backtester/internal/market"

// NewFrame indexes the candles of one pair for the simulator. Candles must
// arrive in file order: a timestamp going backwards aborts with a
// KindSimulationInvariant error located at the offending candle.
func NewFrame(pair string, candles []market.Candle, tf market.Timeframe) (*market.PairFrame, error) {
	f, err := market.NewPairFrame(pair, candles, tf)
	if err != nil {
		return nil, newError(KindSimulationInvariant, pair, regressionAt(candles), err)
	}
	return f, nil
}

func regressionAt(candles []market.Candle) int64 {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp < candles[i-1].Timestamp {
			return candles[i].Timestamp
		}
	}
	return 0
}

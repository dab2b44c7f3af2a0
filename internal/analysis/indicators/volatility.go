package indicators

import (
	"pattern-scanner/internal/models"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	n := minLen(high, low, close)
	tr := make([]float64, n)
	if n == 0 {
		return tr
	}
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		tr[i] = trueRange(high[i], low[i], close[i-1])
	}
	return tr
}

// ATR calculates the Average True Range as a simple moving average of true
// range over period bars. Positions before the first full window are missing.
func ATR(high, low, close []float64, period int) Series {
	n := minLen(high, low, close)
	result := NewSeries(n)
	if period <= 0 || n < period {
		return result
	}

	tr := TrueRange(high, low, close)
	var window float64
	for i := 0; i < n; i++ {
		window += tr[i]
		if i >= period {
			window -= tr[i-period]
		}
		if i >= period-1 {
			result[i] = window / float64(period)
		}
	}
	return result
}

// CandleATR is ATR over a candle slice.
func CandleATR(candles []models.Candle, period int) Series {
	return ATR(Highs(candles), Lows(candles), Closes(candles), period)
}

func minLen(a, b, c []float64) int {
	return min(len(a), len(b), len(c))
}

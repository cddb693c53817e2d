package indicators

import "math"

// SMA calculates the Simple Moving Average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average for the given period. The
// first period values seed the average with their simple mean.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	ema := sma / float64(period)

	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema
}

// Slope compares the SMA over the whole series with the SMA one bar
// earlier. It returns +1 when rising, -1 when falling and 0 when flat or
// not computable.
func Slope(values []float64, period int) int {
	if len(values) < period+1 {
		return 0
	}
	now := SMA(values, period)
	prev := SMA(values[:len(values)-1], period)
	switch {
	case !Ready(now, prev):
		return 0
	case now > prev:
		return 1
	case now < prev:
		return -1
	}
	return 0
}

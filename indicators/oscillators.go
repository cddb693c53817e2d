package indicators

// RSISeries returns Wilder-smoothed RSI values, one for every close after
// the seed window. The seed averages the first period gains and losses.
func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			gains = append(gains, ch)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -ch)
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := []float64{rsi(avgGain, avgLoss)}
	p := float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		out = append(out, rsi(avgGain, avgLoss))
	}
	return out
}

func rsi(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// Stochastic returns aligned %K and %D series. %K is the close position
// within the k-bar high/low range, %D is the d-bar simple mean of %K.
func Stochastic(closes, highs, lows []float64, k, d int) (kVals, dVals []float64) {
	n := len(closes)
	if k <= 0 || d <= 0 || n < k || len(highs) != n || len(lows) != n {
		return nil, nil
	}

	raw := make([]float64, 0, n-k+1)
	for i := k - 1; i < n; i++ {
		hi, lo := highs[i-k+1], lows[i-k+1]
		for j := i - k + 2; j <= i; j++ {
			hi = max(hi, highs[j])
			lo = min(lo, lows[j])
		}
		val := 0.0
		if hi != lo {
			val = 100 * (closes[i] - lo) / (hi - lo)
		}
		raw = append(raw, val)
	}
	if len(raw) < d {
		return nil, nil
	}

	for i := d - 1; i < len(raw); i++ {
		sum := 0.0
		for _, v := range raw[i-d+1 : i+1] {
			sum += v
		}
		dVals = append(dVals, sum/float64(d))
	}
	return raw[len(raw)-len(dVals):], dVals
}

// ParabolicSAR returns one SAR value per bar. The initial trend is up when
// the second close is not below the first. The SAR never moves inside the
// prior two bars' range; when price pierces it the trend flips, the SAR
// jumps to the prior extreme point and the acceleration factor resets to af.
func ParabolicSAR(highs, lows, closes []float64, af, afMax float64) []float64 {
	n := len(highs)
	if n < 5 || len(lows) != n {
		return nil
	}

	up := true
	if len(closes) >= 2 {
		up = closes[1] >= closes[0]
	}
	ep, s := highs[0], lows[0]
	if !up {
		ep, s = lows[0], highs[0]
	}
	sar := make([]float64, 1, n)
	sar[0] = s
	a := af

	for i := 1; i < n; i++ {
		s = sar[i-1] + a*(ep-sar[i-1])
		prior := i - 2
		if prior < 0 {
			prior = 0
		}
		if up {
			s = min(s, lows[i-1], lows[prior])
			if lows[i] < s {
				up = false
				s, ep, a = ep, lows[i], af
			} else if highs[i] > ep {
				ep = highs[i]
				a = min(afMax, a+af)
			}
		} else {
			s = max(s, highs[i-1], highs[prior])
			if highs[i] > s {
				up = true
				s, ep, a = ep, highs[i], af
			} else if lows[i] < ep {
				ep = lows[i]
				a = min(afMax, a+af)
			}
		}
		sar = append(sar, s)
	}
	return sar
}

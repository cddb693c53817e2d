// Package indicators provides technical analysis indicators for trading.
//
// Every function is pure. When there is not enough data the scalar
// functions return NaN and the series functions return an empty slice;
// callers must treat either as "no signal".
package indicators

import "math"

// Ready reports whether every value is a usable number.
func Ready(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

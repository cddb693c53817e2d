package market

import (
	"strconv"
	"strings"
	"time"
)

// Resolution is the bar period in the broker's naming (MINUTE, MINUTE_5, HOUR, ...).
type Resolution string

const (
	Second   Resolution = "SECOND"
	Minute   Resolution = "MINUTE"
	Minute5  Resolution = "MINUTE_5"
	Minute15 Resolution = "MINUTE_15"
	Hour     Resolution = "HOUR"
	Day      Resolution = "DAY"
)

// Period returns the bar duration. Unknown resolutions fall back to one minute.
func (r Resolution) Period() time.Duration {
	s := strings.ToUpper(string(r))
	switch {
	case s == "SECOND":
		return time.Second
	case s == "" || s == "MINUTE":
		return time.Minute
	case strings.HasPrefix(s, "MINUTE_"):
		return multiple(s, "MINUTE_", time.Minute)
	case s == "HOUR":
		return time.Hour
	case strings.HasPrefix(s, "HOUR_"):
		return multiple(s, "HOUR_", time.Hour)
	case s == "DAY":
		return 24 * time.Hour
	}
	return time.Minute
}

func multiple(s, prefix string, unit time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
	if err != nil || n <= 0 {
		return unit
	}
	return time.Duration(n) * unit
}

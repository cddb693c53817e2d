package risk

import "fmt"

// Violation codes reported by Evaluate.
const (
	CodeDailyTarget = "DAILY_TARGET_REACHED"
	CodeDailyLoss   = "DAILY_LOSS_LIMIT"
	CodeLossStreak  = "MAX_CONSECUTIVE_LOSSES"
)

// Limits are the stop conditions checked before and after every trade.
// A zero DailyMaxLoss or MaxConsecutiveLosses disables that guard.
type Limits struct {
	DailyTarget          float64
	DailyMaxLoss         float64
	MaxConsecutiveLosses int
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Has reports whether code is among the violations.
func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Evaluate decides whether another trade may be attempted today.
func Evaluate(l Limits, dayNet float64, streak int) Decision {
	d := Decision{Allowed: true}

	if l.DailyTarget > 0 && dayNet+1e-6 >= l.DailyTarget {
		d.add(CodeDailyTarget, fmt.Sprintf("day net %.2f >= target %.2f", dayNet, l.DailyTarget))
	}
	if l.DailyMaxLoss > 0 && dayNet <= -l.DailyMaxLoss {
		d.add(CodeDailyLoss, fmt.Sprintf("day net %.2f <= limit %.2f", dayNet, -l.DailyMaxLoss))
	}
	if l.MaxConsecutiveLosses > 0 && streak >= l.MaxConsecutiveLosses {
		d.add(CodeLossStreak, fmt.Sprintf("consecutive losses %d >= max %d", streak, l.MaxConsecutiveLosses))
	}
	return d
}

// LossStreak counts consecutive non-winning trades. A zero P&L trade counts
// as a loss.
type LossStreak struct {
	n int
}

func (s *LossStreak) Record(pnl float64) int {
	if pnl > 0 {
		s.n = 0
	} else {
		s.n++
	}
	return s.n
}

func (s *LossStreak) Count() int { return s.n }

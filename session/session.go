// Package session decides whether the current wall-clock time falls inside
// one of the configured local trading windows.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWindows are the Xetra morning and afternoon sessions.
const DefaultWindows = "09:05,11:15;15:30,17:05"

// Window is an inclusive local time-of-day range, stored as seconds since
// midnight. A window whose start is after its end wraps past midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) contains(sec int) bool {
	if w.Start <= w.End {
		return sec >= w.Start && sec <= w.End
	}
	return sec >= w.Start || sec <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", clock(w.Start), clock(w.End))
}

// Gate is a pure predicate over time. The zero value with Enabled false
// admits every instant.
type Gate struct {
	Enabled      bool
	SkipWeekends bool
	Windows      []Window
	Location     *time.Location
}

// New builds an enabled gate from a window list such as
// "09:05,11:15;15:30,17:05" and an IANA zone name.
func New(windows, tz string, skipWeekends bool) (Gate, error) {
	ws, err := ParseWindows(windows)
	if err != nil {
		return Gate{}, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Gate{}, fmt.Errorf("session zone %q: %w", tz, err)
	}
	return Gate{Enabled: true, SkipWeekends: skipWeekends, Windows: ws, Location: loc}, nil
}

// Within reports whether t falls inside any window, evaluated in the gate's
// zone at one-second granularity.
func (g Gate) Within(t time.Time) bool {
	if !g.Enabled {
		return true
	}
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if g.SkipWeekends {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, w := range g.Windows {
		if w.contains(sec) {
			return true
		}
	}
	return false
}

// ParseWindows parses "HH:MM,HH:MM;HH:MM,HH:MM". Empty segments are ignored.
func ParseWindows(s string) ([]Window, error) {
	var out []Window
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.Split(part, ",")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("session window %q: want start,end", part)
		}
		start, err := parseClock(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := parseClock(bounds[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Window{Start: start, End: end})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no session windows in %q", s)
	}
	return out, nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("bad time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*3600 + m*60, nil
}

func clock(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/3600, sec%3600/60)
}

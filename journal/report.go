package journal

import (
	"bytes"
	"text/template"
)

// DayReport summarises one trading day.
type DayReport struct {
	Day          string
	Epic         string
	Strategy     string
	Currency     string
	StartBalance float64
	EndBalance   float64
	NetPL        float64
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	BestPL       float64
	WorstPL      float64
	Records      []TradeRecord
}

// Summarise builds a report from the trades of one day. The start balance
// is taken from the first trade (balance after minus its P&L).
func Summarise(day string, recs []TradeRecord) DayReport {
	r := DayReport{Day: day, Records: recs, Trades: len(recs)}
	for i, t := range recs {
		if i == 0 {
			r.Epic, r.Currency = t.Epic, t.Currency
			r.StartBalance = t.BalanceAfter - t.PnL
			r.BestPL, r.WorstPL = t.PnL, t.PnL
		}
		r.NetPL += t.PnL
		r.EndBalance = t.BalanceAfter
		r.BestPL = max(r.BestPL, t.PnL)
		r.WorstPL = min(r.WorstPL, t.PnL)
		if t.PnL > 0 {
			r.Wins++
		} else {
			r.Losses++
		}
	}
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	}
	return r
}

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"org":    FormatTradeOrg,
}

// Org renders the report as an Org-mode document.
func (r DayReport) Org() (string, error) {
	t, err := template.New("day").Funcs(reportFuncs).Parse(dayOrgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const dayOrgTemplate = `* DAY: {{.Day}}{{if .Epic}} {{.Epic}}{{end}}
:PROPERTIES:
:DAY:         {{.Day}}
:STRATEGY:    {{if .Strategy}}{{.Strategy}}{{else}}(strategy?){{end}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:END:

** Summary
| Metric   | Value |
|----------+-------|
| Net P/L  | {{printf "%.2f" .NetPL}} {{.Currency}} |
| Best     | {{printf "%.2f" .BestPL}} |
| Worst    | {{printf "%.2f" .WorstPL}} |
| Win rate | {{printf "%.1f" (mul100 .WinRate)}}% |
{{- if .Records }}

{{ range .Records }}{{ org . }}{{ end }}
{{- end }}
`

package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in the PROPERTIES drawer, the Review heading is left for notes.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Epic, t.Direction, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":EPIC: %s\n", t.Epic)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", t.Direction)
	fmt.Fprintf(&b, ":SIZE: %.2f\n", t.Size)
	fmt.Fprintf(&b, ":ENTRY: %.2f\n", t.Entry)
	fmt.Fprintf(&b, ":EXIT: %s\n", orNA(t.Exit))
	fmt.Fprintf(&b, ":MOVE_POINTS: %s\n", orNA(t.MovePoints))
	fmt.Fprintf(&b, ":TP_POINTS: %.2f\n", t.TPPoints)
	fmt.Fprintf(&b, ":SL_POINTS: %.2f\n", t.SLPoints)
	fmt.Fprintf(&b, ":TIME: %s\n", t.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":PNL: %.2f %s\n", t.PnL, t.Currency)
	fmt.Fprintf(&b, ":BALANCE_AFTER: %.2f\n", t.BalanceAfter)
	fmt.Fprintf(&b, ":NOTES: %s\n", t.Notes)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if full == "" {
		return "-"
	}
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}

func orNA(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *p)
}

package notifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"KabuSentinel/internal/model"
)

var directionIcon = map[model.Direction]string{
	model.DirectionBuy:  "✨",
	model.DirectionSell: "📉",
	model.DirectionWarn: "⚠️",
}

// FormatPrice renders a yen price with thousand separators ("2,345円").
func FormatPrice(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return humanize.CommafWithDigits(v, 1) + "円"
}

// FormatSignal renders one alert line. Watchlist tickers carry their reason as a
// 【reason】 header and a 💎 or 🔔 label depending on trend strength.
func FormatSignal(sig model.Signal) string {
	var b strings.Builder
	if sig.Reason != "" {
		if sig.Strong {
			b.WriteString("💎【超王道】 ")
		} else {
			b.WriteString("🔔 ")
		}
		fmt.Fprintf(&b, "**【%s】%s**", sig.Reason, sig.Ticker)
	} else {
		icon := directionIcon[sig.Direction]
		if icon == "" {
			icon = "🔔"
		}
		if sig.Strong {
			icon = "💎" + icon
		}
		fmt.Fprintf(&b, "%s **%s**", icon, sig.Ticker)
	}
	if sig.Name != "" {
		fmt.Fprintf(&b, " %s", sig.Name)
	}
	fmt.Fprintf(&b, " %s (%s)", sig.Message, FormatPrice(sig.Snapshot.Close))
	return b.String()
}

// FormatReport joins the pass's signals into one message prefixed with the mode icon.
// It returns "" when there is nothing to report.
func FormatReport(mode model.Mode, signals []model.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	lines := make([]string, len(signals))
	for i, s := range signals {
		lines[i] = FormatSignal(s)
	}
	return mode.Icon() + " " + strings.Join(lines, "\n")
}

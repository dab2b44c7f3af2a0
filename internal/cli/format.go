package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatNumber formats an integer string with thousands separators.
func FormatNumber(s string) string {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	n := len(s)
	if n <= 3 {
		if negative {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatDollars formats a whole-dollar amount with separators.
func FormatDollars(v float64) string {
	return "$" + FormatNumber(fmt.Sprintf("%.0f", v))
}

// FormatPrice formats a price with two decimals, four below 10.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}
	if math.Abs(price) < 10 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatLevel formats an optional plan level; nil renders as "-".
func FormatLevel(level *float64) string {
	if level == nil {
		return "-"
	}
	return FormatPrice(*level)
}

// FormatRewardRisk formats a reward/risk ratio as "1:R".
func FormatRewardRisk(rr *float64) string {
	if rr == nil {
		return "-"
	}
	return fmt.Sprintf("1:%.2f", *rr)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatVolume formats volume in compact form (K, M, B).
func FormatVolume(volume float64) string {
	abs := math.Abs(volume)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", volume/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", volume/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", volume/1e3)
	}
	return fmt.Sprintf("%.0f", volume)
}

// FormatConfidence formats a [0,1] confidence as a percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf*100)
}

// FormatScore formats a score to one decimal.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// FormatDate formats a date with the given layout, falling back to ISO dates.
func FormatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = "2006-01-02"
	}
	return t.Format(layout)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBars formats a window length.
func FormatBars(n int) string {
	if n == 1 {
		return "1 bar"
	}
	return fmt.Sprintf("%d bars", n)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// Package render turns candles and volumes into terminal text.
package render

import (
	"fmt"
	"math"
	"strings"

	"mmtrade/pkg/exchange"

	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultMaxRows = 20
	NoData         = "No data."
	header         = "  Time     Open      High       Low     Close"
)

var (
	rule = "  " + strings.Repeat("-", 52)

	headerStyle = lipgloss.NewStyle().Bold(true)
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7acc7a"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e06c75"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// FormatVolume abbreviates v with a B, M or K suffix and one decimal.
func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func row(c exchange.Candle) string {
	return fmt.Sprintf("  %s   %9.2f  %9.2f  %9.2f  %9.2f",
		c.Time().Format("15:04"), c.Open, c.High, c.Low, c.Close)
}

// OHLCVTable renders the newest maxRows candles as a plain text table.
func OHLCVTable(candles []exchange.Candle, maxRows int) string {
	if len(candles) == 0 {
		return NoData
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	rows := exchange.Tail(candles, maxRows)

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, header, rule)
	for _, c := range rows {
		lines = append(lines, row(c))
	}
	return strings.Join(lines, "\n")
}

// OHLCVColored is OHLCVTable with rows green when close >= open and red otherwise.
func OHLCVColored(candles []exchange.Candle, maxRows int) string {
	if len(candles) == 0 {
		return dimStyle.Render(NoData)
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	rows := exchange.Tail(candles, maxRows)

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, headerStyle.Render(header), rule)
	for _, c := range rows {
		if c.Bullish() {
			lines = append(lines, upStyle.Render(row(c)))
		} else {
			lines = append(lines, downStyle.Render(row(c)))
		}
	}
	return strings.Join(lines, "\n")
}

// Stats summarises a candle series.
type Stats struct {
	Last      float64
	High      float64
	Low       float64
	ChangePct float64 // first open to last close
	Volume    float64
}

// Summarize computes Stats. ok is false for an empty series.
func Summarize(candles []exchange.Candle) (s Stats, ok bool) {
	if len(candles) == 0 {
		return Stats{}, false
	}
	s.High = math.Inf(-1)
	s.Low = math.Inf(1)
	for _, c := range candles {
		s.High = max(s.High, c.High)
		s.Low = min(s.Low, c.Low)
		s.Volume += c.Volume
	}
	first, last := candles[0], candles[len(candles)-1]
	s.Last = last.Close
	if first.Open != 0 {
		s.ChangePct = (last.Close - first.Open) / first.Open * 100
	}
	return s, true
}

// Summary renders one line: last, high, low, change and volume.
func Summary(candles []exchange.Candle) string {
	s, ok := Summarize(candles)
	if !ok {
		return NoData
	}
	return fmt.Sprintf("last %.2f  high %.2f  low %.2f  chg %+.2f%%  vol %s",
		s.Last, s.High, s.Low, s.ChangePct, FormatVolume(s.Volume))
}

// TickerLine renders 24h stats on one line. Missing values print as "-".
func TickerLine(t exchange.Ticker) string {
	num := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	change := "-"
	if t.ChangePct != nil {
		change = fmt.Sprintf("%+.2f%%", *t.ChangePct)
	}
	volume := "-"
	if t.QuoteVolume != nil {
		volume = FormatVolume(*t.QuoteVolume)
	} else if t.BaseVolume != nil {
		volume = FormatVolume(*t.BaseVolume)
	}
	return fmt.Sprintf("%s  last %s  high %s  low %s  24h %s  vol %s",
		t.Symbol, num(t.Last), num(t.High), num(t.Low), change, volume)
}

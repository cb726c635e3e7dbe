package tui

import (
	"fmt"
	"strings"

	"mmtrade/internal/market"
	"mmtrade/internal/render"
	"mmtrade/pkg/exchange"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
)

const (
	defaultListWidth  = 48
	defaultListHeight = 16
)

// listItem implements list.Item for the exchange, symbol and timeframe lists.
type listItem struct {
	name        string
	value       string
	description string
}

func (i listItem) Title() string       { return i.name }
func (i listItem) Description() string { return i.description }
func (i listItem) FilterValue() string { return i.name }

func newList(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, defaultListWidth, defaultListHeight)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}

// NewExchangeList lists the supported exchanges.
func NewExchangeList() list.Model {
	opts := market.Exchanges()
	items := make([]list.Item, len(opts))
	for i, o := range opts {
		items[i] = listItem{name: o.Name, value: string(o.ID), description: "public spot market data"}
	}
	return newList("Select Exchange", items)
}

// NewSymbolList creates an empty list; items arrive with symbolsMsg.
func NewSymbolList() list.Model {
	return newList("Top Symbols", nil)
}

func symbolItems(symbols []market.RankedSymbol) []list.Item {
	items := make([]list.Item, len(symbols))
	for i, s := range symbols {
		items[i] = listItem{
			name:        s.Symbol,
			value:       s.Symbol,
			description: "24h vol " + render.FormatVolume(s.Volume),
		}
	}
	return items
}

// NewTimeframeList lists the supported timeframes.
func NewTimeframeList() list.Model {
	tfs := exchange.Timeframes()
	items := make([]list.Item, len(tfs))
	for i, tf := range tfs {
		items[i] = listItem{
			name:        string(tf),
			value:       string(tf),
			description: fmt.Sprintf("%d minute candles", tf.Meta().Minutes),
		}
	}
	return newList("Select Timeframe", items)
}

// NewAPIKeyInput creates the masked MMT key input.
func NewAPIKeyInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "your-mmt-api-key"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 128
	ti.Width = 60
	ti.Prompt = "> "
	return ti
}

// Settings field order.
const (
	fieldExchange = iota
	fieldSymbol
	fieldTF
	fieldRegion
	fieldCount
)

var settingLabels = [fieldCount]string{"Exchange", "Symbol", "Timeframe", "Region"}

// NewSettingsInputs creates the MMT settings inputs filled with s.
func NewSettingsInputs(s MMTSettings) []textinput.Model {
	values := [fieldCount]string{s.Exchange, s.Symbol, s.TF, s.Region}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 32
		ti.Width = 24
		ti.Prompt = "> "
		ti.SetValue(values[i])
		inputs[i] = ti
	}
	return inputs
}

func renderLogLines(lines []LogMsg, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(logTimeStyle.Render(l.At.Format("15:04:05")))
		b.WriteString(" ")
		switch l.Level {
		case levelErr:
			b.WriteString(logErrStyle.Render(l.Text))
		case levelWarn:
			b.WriteString(logWarnStyle.Render(l.Text))
		default:
			b.WriteString(logInfoStyle.Render(l.Text))
		}
	}
	return b.String()
}

// Package tui is the terminal dashboard: market data, MMT requests and settings.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mmtrade/internal/market"
	"mmtrade/internal/render"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/mmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Tabs.
const (
	TabData = iota
	TabMMT
	TabSettings
	tabCount
)

var tabNames = [tabCount]string{"F1 Data", "F2 MMT", "F3 Settings"}

// Data tab stages.
const (
	StageExchange = iota
	StageSymbols
	StageTimeframe
	StageChart
)

const (
	StatusReady          = "● READY"
	StatusLoadingSymbols = "● LOADING SYMBOLS…"
	StatusLoadingChart   = "● LOADING CHART…"
	StatusCheck          = "● CHECK…"
	StatusFetch          = "● FETCH…"
	StatusLive           = "● LIVE"

	previewLimit = 800
	maxLogLines  = 200
	logPanelRows = 6
	chartRows    = 20
)

// MMTSettings are the query parameters used by the MMT tab.
type MMTSettings struct {
	Exchange string
	Symbol   string
	TF       string
	Region   string
}

// DefaultMMTSettings returns binancef, btc/usd, 1m in the default region.
func DefaultMMTSettings() MMTSettings {
	return MMTSettings{Exchange: "binancef", Symbol: "btc/usd", TF: "1m", Region: mmt.DefaultRegion}
}

// Options configures a Model.
type Options struct {
	Market      MarketService
	NewMMT      MMTFactory
	Settings    MMTSettings
	APIKey      string
	TopLimit    int
	CandleLimit int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	svc         MarketService
	newMMT      MMTFactory
	logger      *zap.Logger
	now         func() time.Time
	topLimit    int
	candleLimit int

	tab    int
	status string
	logs   []LogMsg
	width  int
	height int

	// data tab
	stage      int
	seq        int
	loading    bool
	exchanges  list.Model
	symbols    list.Model
	timeframes list.Model
	exchangeID string
	symbol     string
	timeframe  string
	candles    []exchange.Candle
	dataErr    error
	live       bool
	liveCancel context.CancelFunc
	liveCh     <-chan exchange.KlineUpdate

	// mmt tab
	keyInput    textinput.Model
	mmtClient   MMTClient
	mmtKey      string
	mmtRegion   string
	mmtResponse string

	// settings tab
	settings      MMTSettings
	inputs        []textinput.Model
	settingsFocus int
}

// NewModel creates a Model on the data tab with the exchange list showing.
func NewModel(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TopLimit <= 0 {
		opts.TopLimit = market.DefaultTopLimit
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = market.DefaultCandleLimit
	}
	if opts.Settings == (MMTSettings{}) {
		opts.Settings = DefaultMMTSettings()
	}

	keyInput := NewAPIKeyInput()
	keyInput.SetValue(opts.APIKey)

	m := Model{
		svc:         opts.Market,
		newMMT:      opts.NewMMT,
		logger:      opts.Logger,
		now:         opts.Now,
		topLimit:    opts.TopLimit,
		candleLimit: opts.CandleLimit,
		status:      StatusReady,
		exchanges:   NewExchangeList(),
		symbols:     NewSymbolList(),
		timeframes:  NewTimeframeList(),
		keyInput:    keyInput,
		settings:    opts.Settings,
		inputs:      NewSettingsInputs(opts.Settings),
	}
	m.log(levelInfo, "Ready. Market data uses public endpoints, no API key needed.")
	m.log(levelInfo, "Data: pick an exchange, then a symbol and a timeframe.")
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stopLive()
			return m, tea.Quit
		case "q":
			if !m.typing() {
				m.stopLive()
				return m, tea.Quit
			}
		case "f1":
			return m.setTab(TabData)
		case "f2":
			return m.setTab(TabMMT)
		case "f3":
			return m.setTab(TabSettings)
		case "tab":
			return m.setTab((m.tab + 1) % tabCount)
		}

		switch m.tab {
		case TabData:
			return m.updateData(msg)
		case TabMMT:
			return m.updateMMT(msg)
		case TabSettings:
			return m.updateSettings(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := max(msg.Height-logPanelRows-8, 6)
		m.exchanges.SetSize(msg.Width, h)
		m.symbols.SetSize(msg.Width, h)
		m.timeframes.SetSize(msg.Width, h)
		return m, nil

	case LogMsg:
		m.appendLog(msg)
		return m, nil

	case symbolsMsg:
		return m.handleSymbols(msg)

	case candlesMsg:
		return m.handleCandles(msg)

	case liveStartedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.live = true
		m.liveCh = msg.updates
		m.status = StatusLive
		m.log(levelInfo, fmt.Sprintf("Live: %s %s streaming.", m.symbol, m.timeframe))
		return m, waitLive(msg.seq, msg.updates)

	case liveMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.candles = exchange.MergeUpdate(m.candles, msg.update.Candle, m.candleLimit)
		return m, waitLive(msg.seq, m.liveCh)

	case liveClosedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		if msg.err != nil {
			m.log(levelWarn, fmt.Sprintf("Live: %v", msg.err))
		}
		m.live = false
		if m.status == StatusLive {
			m.status = StatusReady
		}
		return m, nil

	case mmtResultMsg:
		return m.handleMMTResult(msg)
	}

	// cursor blink and other component messages
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	cmds = append(cmds, cmd)
	for i := range m.inputs {
		m.inputs[i], cmd = m.inputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// typing reports whether key presses go to a text input.
func (m Model) typing() bool {
	switch m.tab {
	case TabMMT:
		return m.keyInput.Focused()
	case TabSettings:
		return true
	default:
		return false
	}
}

func (m Model) setTab(tab int) (tea.Model, tea.Cmd) {
	m.tab = tab
	m.keyInput.Blur()
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	switch tab {
	case TabMMT:
		return m, m.keyInput.Focus()
	case TabSettings:
		return m, m.inputs[m.settingsFocus].Focus()
	}
	return m, nil
}

func (m Model) updateData(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.dataBack(), nil
	case "enter":
		return m.dataSelect()
	case "r":
		if m.stage == StageChart && !m.loading {
			return m.loadChart()
		}
	}

	var cmd tea.Cmd
	switch m.stage {
	case StageExchange:
		m.exchanges, cmd = m.exchanges.Update(msg)
	case StageSymbols:
		m.symbols, cmd = m.symbols.Update(msg)
	case StageTimeframe:
		m.timeframes, cmd = m.timeframes.Update(msg)
	}
	return m, cmd
}

func (m Model) dataSelect() (tea.Model, tea.Cmd) {
	switch m.stage {
	case StageExchange:
		item, ok := m.exchanges.SelectedItem().(listItem)
		if !ok {
			return m, nil
		}
		m.exchangeID = item.value
		m.stage = StageSymbols
		m.seq++
		m.loading = true
		m.dataErr = nil
		m.status = StatusLoadingSymbols
		cmd := m.symbols.SetItems(nil)
		m.log(levelInfo, fmt.Sprintf("Loading symbols for %s (markets + tickers, rate limited).", item.name))
		return m, tea.Batch(cmd, loadSymbolsCmd(m.svc, m.seq, m.exchangeID, m.topLimit))

	case StageSymbols:
		if m.loading {
			return m, nil
		}
		item, ok := m.symbols.SelectedItem().(listItem)
		if !ok {
			m.log(levelWarn, "Select a symbol from the list first.")
			return m, nil
		}
		m.symbol = item.value
		m.stage = StageTimeframe
		return m, nil

	case StageTimeframe:
		item, ok := m.timeframes.SelectedItem().(listItem)
		if !ok {
			return m, nil
		}
		m.timeframe = item.value
		m.stage = StageChart
		return m.loadChart()
	}
	return m, nil
}

func (m Model) loadChart() (tea.Model, tea.Cmd) {
	m.stopLive()
	m.seq++
	m.loading = true
	m.dataErr = nil
	m.candles = nil
	m.status = StatusLoadingChart
	m.log(levelInfo, fmt.Sprintf("OHLCV %s %s %s.", m.exchangeID, m.symbol, m.timeframe))
	return m, loadCandlesCmd(m.svc, m.seq, m.exchangeID, m.symbol, m.timeframe, m.candleLimit)
}

// dataBack moves one stage back and invalidates in-flight results.
func (m Model) dataBack() Model {
	m.seq++
	m.loading = false
	m.stopLive()
	switch m.stage {
	case StageSymbols:
		m.stage = StageExchange
	case StageTimeframe:
		m.stage = StageSymbols
	case StageChart:
		m.candles = nil
		m.dataErr = nil
		m.stage = StageTimeframe
	}
	m.status = StatusReady
	return m
}

func (m Model) handleSymbols(msg symbolsMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		return m, nil
	}
	m.loading = false
	m.status = StatusReady
	if msg.err != nil {
		m.dataErr = msg.err
		m.log(levelErr, fmt.Sprintf("Symbols failed: %v", msg.err))
		return m, nil
	}
	if len(msg.symbols) == 0 {
		m.log(levelWarn, "No symbols received (check exchange or network).")
		return m, nil
	}
	m.log(levelInfo, fmt.Sprintf("%d symbols loaded.", len(msg.symbols)))
	return m, m.symbols.SetItems(symbolItems(msg.symbols))
}

func (m Model) handleCandles(msg candlesMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq {
		return m, nil
	}
	m.loading = false
	m.status = StatusReady
	if msg.err != nil {
		m.dataErr = msg.err
		m.log(levelErr, fmt.Sprintf("Chart failed: %v", msg.err))
		return m, nil
	}
	m.candles = msg.candles
	if len(msg.candles) == 0 {
		m.log(levelWarn, "No candles returned.")
		return m, nil
	}
	m.log(levelInfo, fmt.Sprintf("%d candles loaded.", len(msg.candles)))

	if m.svc.SupportsLive(m.exchangeID) {
		ctx, cancel := context.WithCancel(context.Background())
		m.liveCancel = cancel
		return m, startLiveCmd(ctx, m.svc, m.seq, m.exchangeID, m.symbol, m.timeframe)
	}
	return m, nil
}

func (m *Model) stopLive() {
	if m.liveCancel != nil {
		m.liveCancel()
		m.liveCancel = nil
	}
	m.live = false
	m.liveCh = nil
}

func (m Model) updateMMT(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.keyInput.Focused() {
		switch msg.String() {
		case "enter", "esc":
			m.keyInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", "i":
		return m, m.keyInput.Focus()
	case "t":
		client, ok := m.mmtRequestClient()
		if !ok {
			return m, nil
		}
		m.status = StatusCheck
		m.log(levelInfo, "MMT: test…")
		return m, mmtPingCmd(client)
	case "c":
		client, ok := m.mmtRequestClient()
		if !ok {
			return m, nil
		}
		m.status = StatusFetch
		m.log(levelInfo, fmt.Sprintf("MMT: candles %s %s…", m.settings.Exchange, m.settings.Symbol))
		return m, mmtCandlesCmd(client, m.settings)
	}
	return m, nil
}

// mmtRequestClient returns a client for the current key and region, or false
// when no key is set.
func (m *Model) mmtRequestClient() (MMTClient, bool) {
	key := strings.TrimSpace(m.keyInput.Value())
	if key == "" {
		m.log(levelErr, "MMT: no API key")
		return nil, false
	}
	if m.newMMT == nil {
		m.log(levelErr, "MMT: client not configured")
		return nil, false
	}
	if m.mmtClient == nil || key != m.mmtKey || m.settings.Region != m.mmtRegion {
		m.rebuildMMT(key)
	}
	return m.mmtClient, true
}

func (m *Model) rebuildMMT(key string) {
	if m.mmtClient != nil {
		m.mmtClient.Close()
	}
	m.mmtClient = m.newMMT(m.settings.Region, key)
	m.mmtKey = key
	m.mmtRegion = m.settings.Region
}

func (m Model) handleMMTResult(msg mmtResultMsg) (tea.Model, tea.Cmd) {
	m.status = StatusReady
	m.mmtResponse = msg.resp.Preview(previewLimit)
	if msg.resp.OK() {
		m.log(levelInfo, fmt.Sprintf("MMT: %s OK.", msg.op))
		return m, nil
	}
	m.mmtResponse = fmt.Sprintf("%d: %s", msg.resp.Status, m.mmtResponse)
	m.log(levelErr, fmt.Sprintf("MMT: %s error %d.", msg.op, msg.resp.Status))
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "shift+tab":
		return m.focusSetting(m.settingsFocus - 1)
	case "down":
		return m.focusSetting(m.settingsFocus + 1)
	case "enter":
		m.applySettings()
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.settingsFocus], cmd = m.inputs[m.settingsFocus].Update(msg)
	return m, cmd
}

func (m Model) focusSetting(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.settingsFocus].Blur()
	m.settingsFocus = (i + fieldCount) % fieldCount
	return m, m.inputs[m.settingsFocus].Focus()
}

func (m *Model) applySettings() {
	value := func(i int, def string) string {
		if v := strings.TrimSpace(m.inputs[i].Value()); v != "" {
			return v
		}
		return def
	}
	def := DefaultMMTSettings()
	m.settings = MMTSettings{
		Exchange: value(fieldExchange, def.Exchange),
		Symbol:   value(fieldSymbol, def.Symbol),
		TF:       value(fieldTF, def.TF),
		Region:   value(fieldRegion, def.Region),
	}
	if key := strings.TrimSpace(m.keyInput.Value()); key != "" && m.newMMT != nil {
		m.rebuildMMT(key)
	}
	m.log(levelInfo, fmt.Sprintf("Settings: %s %s %s %s",
		m.settings.Exchange, m.settings.Symbol, m.settings.TF, m.settings.Region))
}

func (m *Model) log(level, text string) {
	m.appendLog(LogMsg{At: m.now(), Level: level, Text: text})
	switch level {
	case levelErr:
		m.logger.Error(text)
	case levelWarn:
		m.logger.Warn(text)
	default:
		m.logger.Info(text)
	}
}

func (m *Model) appendLog(l LogMsg) {
	m.logs = append(m.logs, l)
	if len(m.logs) > maxLogLines {
		m.logs = append([]LogMsg(nil), m.logs[len(m.logs)-maxLogLines:]...)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("MMT-Trade │ Dashboard"))
	s.WriteString("  ")
	s.WriteString(StatusStyle.Render(m.status))
	s.WriteString("\n")
	for i, name := range tabNames {
		if i == m.tab {
			s.WriteString(ActiveTabStyle.Render(name))
		} else {
			s.WriteString(TabStyle.Render(name))
		}
	}
	s.WriteString("\n\n")

	switch m.tab {
	case TabData:
		s.WriteString(m.viewData())
	case TabMMT:
		s.WriteString(m.viewMMT())
	case TabSettings:
		s.WriteString(m.viewSettings())
	}

	s.WriteString("\n\n")
	s.WriteString(PanelStyle.Render(renderLogLines(m.logs, logPanelRows)))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(m.help()))
	return s.String()
}

func (m Model) viewData() string {
	switch m.stage {
	case StageExchange:
		return m.exchanges.View()
	case StageSymbols:
		if m.loading {
			return "Loading symbols…"
		}
		if m.dataErr != nil {
			return ErrorStyle.Render("No data / error: " + m.dataErr.Error())
		}
		if len(m.symbols.Items()) == 0 {
			return render.NoData
		}
		return m.symbols.View()
	case StageTimeframe:
		return m.timeframes.View()
	}

	var s strings.Builder
	title := fmt.Sprintf("%s · %s · %s", m.symbol, m.timeframe, exchange.ID(m.exchangeID).DisplayName())
	if m.live {
		title += " · live"
	}
	s.WriteString(TitleStyle.Render(title))
	s.WriteString("\n\n")
	switch {
	case m.loading:
		s.WriteString("Loading chart…")
	case m.dataErr != nil:
		s.WriteString(ErrorStyle.Render("No data / error: " + m.dataErr.Error()))
	default:
		s.WriteString(render.OHLCVColored(m.candles, chartRows))
		if len(m.candles) > 0 {
			s.WriteString("\n\n")
			s.WriteString(render.Summary(m.candles))
		}
	}
	return s.String()
}

func (m Model) viewMMT() string {
	var s strings.Builder
	s.WriteString("MMT API key\n")
	s.WriteString(m.keyInput.View())
	s.WriteString("\n\n")
	fmt.Fprintf(&s, "%s %s %s @ %s\n\n", m.settings.Exchange, m.settings.Symbol, m.settings.TF, mmt.BaseURLForRegion(m.settings.Region))
	if m.mmtResponse == "" {
		s.WriteString(HelpStyle.Render("No response yet."))
	} else {
		s.WriteString(m.mmtResponse)
	}
	return s.String()
}

func (m Model) viewSettings() string {
	var s strings.Builder
	s.WriteString("MMT query settings\n\n")
	for i, in := range m.inputs {
		fmt.Fprintf(&s, "%-10s %s\n", settingLabels[i], in.View())
	}
	return s.String()
}

func (m Model) help() string {
	switch m.tab {
	case TabMMT:
		if m.keyInput.Focused() {
			return "enter: done | tab/F1-F3: switch | ctrl+c: quit"
		}
		return "t: test | c: candles | i: edit key | tab/F1-F3: switch | q: quit"
	case TabSettings:
		return "up/down: field | enter: apply | tab/F1-F3: switch | ctrl+c: quit"
	}
	switch m.stage {
	case StageChart:
		return "r: reload | esc: back | tab/F1-F3: switch | q: quit"
	case StageExchange:
		return "enter: select | tab/F1-F3: switch | q: quit"
	}
	return "enter: select | esc: back | tab/F1-F3: switch | q: quit"
}

package tui

import (
	"time"

	"mmtrade/internal/market"
	"mmtrade/pkg/exchange"
	"mmtrade/pkg/mmt"
)

// symbolsMsg carries the result of a top-symbols load.
type symbolsMsg struct {
	seq      int
	exchange string
	symbols  []market.RankedSymbol
	err      error
}

// candlesMsg carries the result of a candle load.
type candlesMsg struct {
	seq     int
	candles []exchange.Candle
	err     error
}

// liveStartedMsg signals that a kline subscription is open.
type liveStartedMsg struct {
	seq     int
	updates <-chan exchange.KlineUpdate
}

// liveMsg is one live kline push.
type liveMsg struct {
	seq    int
	update exchange.KlineUpdate
}

// liveClosedMsg signals that the subscription ended or failed.
type liveClosedMsg struct {
	seq int
	err error
}

// mmtResultMsg carries one MMT response.
type mmtResultMsg struct {
	op   string
	resp mmt.Response
}

// LogMsg appends a line to the log panel.
type LogMsg struct {
	At    time.Time
	Level string
	Text  string
}

package bybit

import "encoding/json"

// Response is the V5 REST envelope shared by every endpoint.
type Response struct {
	RetCode    int             `json:"retCode"` // 0 means success
	RetMsg     string          `json:"retMsg"`
	Result     json.RawMessage `json:"result"` // decoded per endpoint
	RetExtInfo map[string]any  `json:"retExtInfo"`
	Time       int64           `json:"time"` // server time, ms
}

type instrumentList struct {
	Category       string `json:"category"`
	NextPageCursor string `json:"nextPageCursor"`
	List           []struct {
		Symbol    string `json:"symbol"`    // "BTCUSDT"
		BaseCoin  string `json:"baseCoin"`  // "BTC"
		QuoteCoin string `json:"quoteCoin"` // "USDT"
		Status    string `json:"status"`    // "Trading"
	} `json:"list"`
}

type tickerList struct {
	Category string `json:"category"`
	List     []struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		Volume24h   string `json:"volume24h"`   // base
		Turnover24h string `json:"turnover24h"` // quote
		HighPrice   string `json:"highPrice24h"`
		LowPrice    string `json:"lowPrice24h"`
		Change      string `json:"price24hPcnt"` // fraction, "0.0123"
	} `json:"list"`
}

type klineList struct {
	Category string     `json:"category"`
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"` // newest first
}

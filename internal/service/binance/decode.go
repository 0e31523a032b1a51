package binance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"KlineFeed/internal/domain/models"
)

// wsKlineMsg is the kline stream message envelope. Prices and volumes
// arrive as strings and stay exact through decimal parsing.
type wsKlineMsg struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime   int64  `json:"t"`
		CloseTime   int64  `json:"T"`
		Interval    string `json:"i"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		BaseVolume  string `json:"v"`
		QuoteVolume string `json:"q"`
		IsClosed    bool   `json:"x"`
	} `json:"k"`
}

// DecodeEvent parses one raw frame. Frames without a kline event type
// (subscription acks, other stream kinds) and frames that fail to parse
// return (nil, false); the provider interleaves them freely and the
// pipeline discards them silently.
func DecodeEvent(b []byte) (*models.CandleEvent, bool) {
	var m wsKlineMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	if m.EventType != "kline" {
		return nil, false
	}

	k := m.Kline
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return nil, false
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return nil, false
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return nil, false
	}
	cls, err := decimal.NewFromString(k.Close)
	if err != nil {
		return nil, false
	}
	baseVol, err := decimal.NewFromString(k.BaseVolume)
	if err != nil {
		return nil, false
	}
	quoteVol, err := decimal.NewFromString(k.QuoteVolume)
	if err != nil {
		return nil, false
	}

	return &models.CandleEvent{
		Symbol:      m.Symbol,
		Interval:    models.Interval(k.Interval),
		EventTime:   time.UnixMilli(m.EventTime).UTC(),
		StartTime:   time.UnixMilli(k.StartTime).UTC(),
		CloseTime:   time.UnixMilli(k.CloseTime).UTC(),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       cls,
		BaseVolume:  baseVol,
		QuoteVolume: quoteVol,
		IsClosed:    k.IsClosed,
	}, true
}

package coinbase

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Candle is one bucket of GET /products/{id}/candles, which the exchange
// encodes as [time, low, high, open, close, volume].
type Candle struct {
	Time   int64
	Low    decimal.Decimal
	High   decimal.Decimal
	Open   decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func (c *Candle) UnmarshalJSON(b []byte) error {
	var raw []decimal.Decimal
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("invalid candle %s: %w", b, err)
	}
	if len(raw) < 6 {
		return fmt.Errorf("invalid candle %s: expected 6 fields, got %d", b, len(raw))
	}

	c.Time = raw[0].IntPart()
	c.Low = raw[1]
	c.High = raw[2]
	c.Open = raw[3]
	c.Close = raw[4]
	c.Volume = raw[5]
	return nil
}

// TradeID accepts both numeric and string identifiers.
type TradeID string

func (id *TradeID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TradeID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid trade id %s: %w", b, err)
	}
	*id = TradeID(n.String())
	return nil
}

type Trade struct {
	TradeID TradeID         `json:"trade_id"`
	Size    decimal.Decimal `json:"size"`
	Price   decimal.Decimal `json:"price"`
	Time    string          `json:"time"`
	Side    string          `json:"side"`
}

type CurrencyDetails struct {
	Type string `json:"type"`
}

type Currency struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	MinSize string          `json:"min_size"`
	Status  string          `json:"status"`
	Details CurrencyDetails `json:"details"`
}

type Product struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	QuoteIncrement  string `json:"quote_increment"`
	BaseIncrement   string `json:"base_increment"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// BookLevel is one [price, size, num-orders|order-id] entry of an order book.
type BookLevel struct {
	Price     decimal.Decimal
	Size      decimal.Decimal
	NumOrders int64
	OrderID   string
}

func (l *BookLevel) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("invalid book level %s: %w", b, err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("invalid book level %s", b)
	}
	if err := json.Unmarshal(raw[0], &l.Price); err != nil {
		return fmt.Errorf("invalid book price: %w", err)
	}
	if err := json.Unmarshal(raw[1], &l.Size); err != nil {
		return fmt.Errorf("invalid book size: %w", err)
	}
	if len(raw) > 2 {
		// level 3 books carry an order id instead of an order count
		if err := json.Unmarshal(raw[2], &l.NumOrders); err != nil {
			if err := json.Unmarshal(raw[2], &l.OrderID); err != nil {
				return fmt.Errorf("invalid book order field: %w", err)
			}
		}
	}
	return nil
}

type OrderBook struct {
	Sequence int64       `json:"sequence"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

type SpotPrice struct {
	Base     string          `json:"base"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	ISO      string          `json:"iso"`
	Epoch    int64           `json:"epoch"`
}

type ServerTime struct {
	ISO   string  `json:"iso"`
	Epoch float64 `json:"epoch"`
}

type OrderRequest struct {
	ClientOid string `json:"client_oid,omitempty"`
	Side      string `json:"side"`
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Price     string `json:"price,omitempty"`
	Size      string `json:"size,omitempty"`
}

type Order struct {
	ID            string `json:"id"`
	ClientOid     string `json:"client_oid,omitempty"`
	Price         string `json:"price,omitempty"`
	Size          string `json:"size,omitempty"`
	ProductID     string `json:"product_id"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Settled       bool   `json:"settled"`
	CreatedAt     string `json:"created_at"`
	FilledSize    string `json:"filled_size,omitempty"`
	ExecutedValue string `json:"executed_value,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

// dataEnvelope wraps every response of the public v2 API.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

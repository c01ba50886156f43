package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	BaseURL    = "https://api.exchange.coinbase.com"
	SandboxURL = "https://api-public.sandbox.exchange.coinbase.com"
	PublicURL  = "https://api.coinbase.com/v2"
)

type Client struct {
	client      *resty.Client
	public      *resty.Client
	signer      *Signer
	logger      *logrus.Logger
	rateLimiter *RateLimiter
}

type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string
	Sandbox    bool

	// Overrides for the exchange and public price API base URLs.
	BaseURL   string
	PublicURL string
}

// NewClient builds a client. Credentials are optional: without them only
// the unauthenticated endpoints are usable.
func NewClient(config Config, logger *logrus.Logger) (*Client, error) {
	var signer *Signer
	creds := Credentials{APIKey: config.APIKey, Secret: config.APISecret, Passphrase: config.Passphrase}
	if !creds.empty() {
		s, err := NewSigner(creds)
		if err != nil {
			return nil, err
		}
		signer = s
	}

	baseURL := BaseURL
	if config.Sandbox {
		baseURL = SandboxURL
	}
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	publicURL := PublicURL
	if config.PublicURL != "" {
		publicURL = config.PublicURL
	}

	return &Client{
		client:      newRestyClient(baseURL),
		public:      newRestyClient(publicURL),
		signer:      signer,
		logger:      logger,
		rateLimiter: NewRateLimiter(defaultPublicRPS, defaultPrivateRPS),
	}, nil
}

func newRestyClient(baseURL string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "coinbase-mirror")
	return client
}

// request is the single builder every endpoint goes through.
type request struct {
	method   string
	endpoint string // path plus query, exactly as signed
	body     interface{}
	private  bool
}

func (c *Client) do(ctx context.Context, rc *resty.Client, r request, out interface{}) error {
	wait := c.rateLimiter.WaitForPublic
	if r.private {
		wait = c.rateLimiter.WaitForPrivate
	}
	if err := wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrFetch, err)
	}

	req := rc.R().SetContext(ctx)

	var body []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = b
		req.SetBody(body)
		req.SetHeader("Content-Type", "application/json")
	}

	if r.private {
		headers, err := c.signer.Sign(r.method, r.endpoint, string(body))
		if err != nil {
			return err
		}
		for key := range headers {
			req.SetHeader(key, headers.Get(key))
		}
	}

	resp, err := req.Execute(r.method, r.endpoint)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method":   r.method,
			"endpoint": r.endpoint,
		}).Error("Request to exchange failed")
		return fmt.Errorf("%w: %s %s: %v", ErrFetch, r.method, r.endpoint, err)
	}

	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Body: resp.Body()}
		var eb errorBody
		if json.Unmarshal(resp.Body(), &eb) == nil {
			apiErr.Message = eb.Message
		}

		c.logger.WithFields(logrus.Fields{
			"method":   r.method,
			"endpoint": r.endpoint,
			"status":   apiErr.StatusCode,
			"message":  apiErr.Message,
		}).Warn("Exchange returned an error response")

		// Market data failures are fetch errors; order payloads pass through as is.
		if !r.private {
			return fmt.Errorf("%w: %w", ErrFetch, apiErr)
		}
		return apiErr
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response of %s: %v", ErrFetch, r.endpoint, err)
	}
	return nil
}

// GetCandles returns the bounded recent window of candles, newest first.
func (c *Client) GetCandles(ctx context.Context, pair string, granularity int64) ([]Candle, error) {
	endpoint := fmt.Sprintf("/products/%s/candles?granularity=%d", url.PathEscape(pair), granularity)

	var candles []Candle
	if err := c.do(ctx, c.client, request{method: http.MethodGet, endpoint: endpoint}, &candles); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"pair":         pair,
		"granularity":  granularity,
		"candle_count": len(candles),
	}).Debug("Fetched candles")
	return candles, nil
}

// GetTrades returns the most recent trades for pair in exchange order.
func (c *Client) GetTrades(ctx context.Context, pair string) ([]Trade, error) {
	endpoint := fmt.Sprintf("/products/%s/trades", url.PathEscape(pair))

	var trades []Trade
	if err := c.do(ctx, c.client, request{method: http.MethodGet, endpoint: endpoint}, &trades); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"pair":        pair,
		"trade_count": len(trades),
	}).Debug("Fetched trades")
	return trades, nil
}

func (c *Client) ListCurrencies(ctx context.Context) ([]Currency, error) {
	var currencies []Currency
	if err := c.do(ctx, c.client, request{method: http.MethodGet, endpoint: "/currencies"}, &currencies); err != nil {
		return nil, err
	}

	c.logger.WithField("currency_count", len(currencies)).Info("Successfully fetched currencies")
	return currencies, nil
}

// ListCryptoCurrencies returns the ids of crypto-type currencies only.
func (c *Client) ListCryptoCurrencies(ctx context.Context) ([]string, error) {
	currencies, err := c.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(currencies))
	for _, currency := range currencies {
		if currency.Details.Type == "crypto" {
			ids = append(ids, currency.ID)
		}
	}
	return ids, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, c.client, request{method: http.MethodGet, endpoint: "/products"}, &products); err != nil {
		return nil, err
	}

	c.logger.WithField("product_count", len(products)).Info("Successfully fetched products")
	return products, nil
}

func (c *Client) GetOrderBook(ctx context.Context, pair string, level int) (*OrderBook, error) {
	endpoint := fmt.Sprintf("/products/%s/book?level=%s", url.PathEscape(pair), strconv.Itoa(level))

	var book OrderBook
	if err := c.do(ctx, c.client, request{method: http.MethodGet, endpoint: endpoint}, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

var depthSides = map[string]string{
	"mid": "spot",
	"bid": "sell",
	"ask": "buy",
}

// GetSpotPrice returns the public mid, bid or ask price of pair stamped with
// the server time.
func (c *Client) GetSpotPrice(ctx context.Context, pair, direction string) (*SpotPrice, error) {
	side, ok := depthSides[direction]
	if !ok {
		return nil, fmt.Errorf("unknown price direction %q (want mid, bid or ask)", direction)
	}

	var env dataEnvelope
	endpoint := fmt.Sprintf("/prices/%s/%s", url.PathEscape(pair), side)
	if err := c.do(ctx, c.public, request{method: http.MethodGet, endpoint: endpoint}, &env); err != nil {
		return nil, err
	}

	var price SpotPrice
	if err := json.Unmarshal(env.Data, &price); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal price: %v", ErrFetch, err)
	}

	var timeEnv dataEnvelope
	if err := c.do(ctx, c.public, request{method: http.MethodGet, endpoint: "/time"}, &timeEnv); err != nil {
		return nil, err
	}

	var st ServerTime
	if err := json.Unmarshal(timeEnv.Data, &st); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal server time: %v", ErrFetch, err)
	}
	price.ISO = st.ISO
	price.Epoch = int64(st.Epoch)

	return &price, nil
}

// PlaceOrder submits a signed order. A rejected order comes back as *APIError.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) (*Order, error) {
	var placed Order
	err := c.do(ctx, c.client, request{
		method:   http.MethodPost,
		endpoint: "/orders",
		body:     order,
		private:  true,
	}, &placed)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			c.logger.WithError(err).Error("Failed to place order")
		}
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":   placed.ID,
		"product_id": order.ProductID,
		"side":       order.Side,
	}).Info("Order placed successfully")
	return &placed, nil
}

// CancelOrder submits a signed cancellation and returns the raw response.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("/orders/%s", url.PathEscape(orderID))

	var raw json.RawMessage
	err := c.do(ctx, c.client, request{
		method:   http.MethodDelete,
		endpoint: endpoint,
		private:  true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("order_id", orderID).Info("Order cancelled successfully")
	return raw, nil
}

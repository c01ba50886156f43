package coinbase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSign       = "CB-ACCESS-SIGN"
	HeaderTimestamp  = "CB-ACCESS-TIMESTAMP"
	HeaderKey        = "CB-ACCESS-KEY"
	HeaderPassphrase = "CB-ACCESS-PASSPHRASE"
)

type Credentials struct {
	APIKey     string
	Secret     string // base64 encoded
	Passphrase string
}

func (c Credentials) empty() bool {
	return c.APIKey == "" && c.Secret == "" && c.Passphrase == ""
}

// Signer produces the authentication headers for private endpoints.
type Signer struct {
	apiKey     string
	passphrase string
	key        []byte
	now        func() time.Time
}

func NewSigner(creds Credentials) (*Signer, error) {
	if creds.APIKey == "" || creds.Passphrase == "" {
		return nil, fmt.Errorf("%w: api key and passphrase are required", ErrAuth)
	}

	key, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not valid base64: %v", ErrAuth, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: secret is empty", ErrAuth)
	}

	return &Signer{
		apiKey:     creds.APIKey,
		passphrase: creds.Passphrase,
		key:        key,
		now:        time.Now,
	}, nil
}

// Sign returns the headers authorizing a request. The clock is sampled on
// every call; timestamps are never reused.
func (s *Signer) Sign(method, path, body string) (http.Header, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no credentials configured", ErrAuth)
	}

	timestamp := formatTimestamp(s.now())

	h := make(http.Header, 5)
	h.Set(HeaderSign, s.signature(timestamp, method, path, body))
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderKey, s.apiKey)
	h.Set(HeaderPassphrase, s.passphrase)
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (s *Signer) signature(timestamp, method, path, body string) string {
	message := timestamp + strings.ToUpper(method) + path + body
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// formatTimestamp renders epoch seconds with a microsecond fraction.
func formatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

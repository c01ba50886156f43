// Package orders places and cancels orders through signed exchange calls.
// It keeps no local order state; the exchange is the source of truth.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/paaavkata/coinbase-mirror/pkg/coinbase"
	"github.com/paaavkata/coinbase-mirror/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrValidation = errors.New("invalid order parameters")

const (
	SideBuy  = "buy"
	SideSell = "sell"

	TypeLimit  = "limit"
	TypeMarket = "market"
)

// Exchange is the signed order endpoint set of the exchange client.
type Exchange interface {
	PlaceOrder(ctx context.Context, order coinbase.OrderRequest) (*coinbase.Order, error)
	CancelOrder(ctx context.Context, orderID string) (json.RawMessage, error)
}

type OrderParams struct {
	Side  string
	Type  string
	Pair  string
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderHandle references an order the exchange accepted.
type OrderHandle struct {
	ID        string
	ClientOid string
	Status    string
}

type CancelResult struct {
	OrderID string
	Raw     json.RawMessage
}

type Service struct {
	exchange Exchange
	logger   *logrus.Logger
	newID    func() string
}

func NewService(exchange Exchange, logger *logrus.Logger) *Service {
	return &Service{
		exchange: exchange,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Place validates the order shape and submits it. Exchange rejections are
// returned as *coinbase.APIError without interpretation.
func (s *Service) Place(ctx context.Context, params OrderParams) (*OrderHandle, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	req := coinbase.OrderRequest{
		ClientOid: s.newID(),
		Side:      strings.ToLower(params.Side),
		ProductID: params.Pair,
		Type:      strings.ToLower(params.Type),
		Size:      utils.DecimalToString(params.Size),
	}
	if req.Type == TypeLimit {
		req.Price = utils.DecimalToString(params.Price)
	}

	order, err := s.exchange.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"client_oid": req.ClientOid,
		"pair":       req.ProductID,
		"side":       req.Side,
		"type":       req.Type,
		"size":       req.Size,
		"price":      req.Price,
	}).Info("Order submitted")

	return &OrderHandle{
		ID:        order.ID,
		ClientOid: req.ClientOid,
		Status:    order.Status,
	}, nil
}

func (s *Service) Cancel(ctx context.Context, handle OrderHandle) (*CancelResult, error) {
	if strings.TrimSpace(handle.ID) == "" {
		return nil, fmt.Errorf("%w: order handle has no id", ErrValidation)
	}

	raw, err := s.exchange.CancelOrder(ctx, handle.ID)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("order_id", handle.ID).Info("Order cancellation submitted")
	return &CancelResult{OrderID: handle.ID, Raw: raw}, nil
}

func (p OrderParams) validate() error {
	switch strings.ToLower(p.Side) {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("%w: side must be buy or sell, got %q", ErrValidation, p.Side)
	}

	orderType := strings.ToLower(p.Type)
	switch orderType {
	case TypeLimit, TypeMarket:
	default:
		return fmt.Errorf("%w: type must be limit or market, got %q", ErrValidation, p.Type)
	}

	if strings.TrimSpace(p.Pair) == "" {
		return fmt.Errorf("%w: pair is required", ErrValidation)
	}
	if !p.Size.IsPositive() {
		return fmt.Errorf("%w: size must be positive, got %s", ErrValidation, p.Size)
	}
	if orderType == TypeLimit && !p.Price.IsPositive() {
		return fmt.Errorf("%w: limit price must be positive, got %s", ErrValidation, p.Price)
	}
	return nil
}

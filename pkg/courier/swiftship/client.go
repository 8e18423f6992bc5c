// Package swiftship provides integration with the SwiftShip courier API:
// token lifecycle, location resolution, and shipment submission.
package swiftship

import (
	"context"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/cache"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "swiftship"

// Config holds SwiftShip configuration.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	CityCacheTTL time.Duration
	UseMock      bool // When true, uses mock API client
}

// Client is the SwiftShip courier client. It wires the token manager
// and location cache over a shared APIClient and owns shipment
// submission. Shipment creation is not deduplicated here; preventing
// double submission is the caller's responsibility.
type Client struct {
	config    Config
	apiClient APIClient
	creds     *courier.CredentialStore
	tokens    *TokenManager
	locations *LocationCache
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new SwiftShip client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, settings courier.Settings, cacheStore cache.Store, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, settings, cacheStore, logger, tracer)
}

// NewWithAPIClient creates a new SwiftShip client with a custom API
// client. This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, settings courier.Settings, cacheStore cache.Store, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	creds := courier.NewCredentialStore(settings)
	tokens := NewTokenManager(creds, apiClient, logger)
	locations := NewLocationCache(apiClient, tokens, cacheStore, logger, cfg.CityCacheTTL)

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		creds:     creds,
		tokens:    tokens,
		locations: locations,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Tokens returns the token manager.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Locations returns the location cache.
func (c *Client) Locations() *LocationCache {
	return c.locations
}

// CreateShipment assembles and submits a shipment for the order using
// the operator's location selection. City and zone must be resolved
// before any network call happens; a missing one fails fast with
// courier.ErrMissingLocation. Carrier rejections come back as a
// *courier.ShipmentError preserving the raw response body.
func (c *Client) CreateShipment(ctx context.Context, order *courier.Order, sel courier.LocationSelection) (*courier.ShipmentResult, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "swiftship.CreateShipment",
			trace.WithAttributes(attribute.String("order.number", order.Number)))
		defer span.End()
	}

	if !sel.Complete() {
		return nil, courier.ErrMissingLocation
	}

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	req := c.buildOrderRequest(order, sel, creds)

	c.logger.Info("Submitting shipment",
		zap.String("merchant_order_id", req.MerchantOrderID),
		zap.Int("recipient_city", req.RecipientCity),
		zap.Int("recipient_zone", req.RecipientZone),
		zap.Int("recipient_area", req.RecipientArea),
	)

	result, err := c.apiClient.CreateOrder(ctx, token, req)
	if err != nil {
		c.logger.Error("SwiftShip API error", zap.Error(err))
		return nil, &courier.ShipmentError{Message: err.Error()}
	}

	if !result.Success {
		c.logger.Warn("Shipment rejected by courier",
			zap.String("merchant_order_id", req.MerchantOrderID),
			zap.String("message", result.Message),
		)
		return nil, &courier.ShipmentError{
			Message: result.Message,
			RawBody: result.RawBody,
		}
	}

	status := result.OrderStatus
	if status == "" {
		status = "Pending"
	}

	c.logger.Info("Shipment created",
		zap.String("merchant_order_id", req.MerchantOrderID),
		zap.String("consignment_id", result.ConsignmentID),
		zap.String("carrier_status", status),
	)

	return &courier.ShipmentResult{
		ConsignmentID: result.ConsignmentID,
		CarrierStatus: status,
		Success:       true,
		SubmittedAt:   time.Now(),
	}, nil
}

// buildOrderRequest maps the order and selection onto the carrier's
// wire fields, applying the bridge's defaults.
func (c *Client) buildOrderRequest(order *courier.Order, sel courier.LocationSelection, creds *courier.Credentials) *OrderRequest {
	weight := order.ItemWeight
	if weight <= 0 {
		weight = courier.DefaultItemWeight
	}

	deliveryType := order.DeliveryType
	if deliveryType == 0 {
		deliveryType = courier.DeliveryNormal
	}

	areaID := sel.AreaID
	if areaID < 0 {
		areaID = courier.AreaUnspecified
	}

	return &OrderRequest{
		StoreID:            creds.StoreID,
		MerchantOrderID:    order.Number,
		SenderName:         creds.Username,
		SenderPhone:        creds.SenderPhone,
		RecipientName:      order.RecipientName,
		RecipientPhone:     order.RecipientPhone,
		RecipientAddress:   order.RecipientAddress,
		RecipientCity:      sel.CityID,
		RecipientZone:      sel.ZoneID,
		RecipientArea:      areaID,
		DeliveryType:       int(deliveryType),
		ItemType:           courier.ItemTypeParcel,
		SpecialInstruction: order.SpecialInstruction,
		ItemQuantity:       order.ItemQuantity(),
		ItemWeight:         weight,
		AmountToCollect:    order.AmountToCollect,
		ItemDescription:    order.ItemDescription(),
	}
}

package swiftship

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/threadline/courier-bridge/pkg/courier"
)

// APIClient defines the interface for SwiftShip API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// IssueToken performs the credential exchange / refresh call.
	IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error)

	// GetCities fetches the city list.
	GetCities(ctx context.Context, token string) ([]courier.City, error)

	// GetZones fetches the zones of a city.
	GetZones(ctx context.Context, token string, cityID int) ([]courier.Zone, error)

	// GetAreas fetches the areas of a zone.
	GetAreas(ctx context.Context, token string, zoneID int) ([]courier.Area, error)

	// CreateOrder submits a shipment. Transport failures return an
	// error; carrier rejections come back as a parsed OrderResult with
	// Success false.
	CreateOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResult, error)
}

// ============================================================================
// API Request/Response Types (match the SwiftShip merchant REST API)
// ============================================================================

// Grant types accepted by the token endpoint.
const (
	GrantPassword     = "password"
	GrantRefreshToken = "refresh_token"
)

// TokenRequest is the POST /issue-token body.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	GrantType    string `json:"grant_type"`
}

// TokenResponse is the POST /issue-token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// locationEnvelope is the double-nested list envelope the location
// endpoints use: {"data": {"data": [...]}}.
type locationEnvelope[T any] struct {
	Data struct {
		Data []T `json:"data"`
	} `json:"data"`
}

// OrderRequest is the POST /orders body. Field names follow the
// carrier's API exactly.
type OrderRequest struct {
	StoreID            string  `json:"store_id"`
	MerchantOrderID    string  `json:"merchant_order_id"`
	SenderName         string  `json:"sender_name"`
	SenderPhone        string  `json:"sender_phone"`
	RecipientName      string  `json:"recipient_name"`
	RecipientPhone     string  `json:"recipient_phone"`
	RecipientAddress   string  `json:"recipient_address"`
	RecipientCity      int     `json:"recipient_city"`
	RecipientZone      int     `json:"recipient_zone"`
	RecipientArea      int     `json:"recipient_area"`
	DeliveryType       int     `json:"delivery_type"`
	ItemType           int     `json:"item_type"`
	SpecialInstruction string  `json:"special_instruction"`
	ItemQuantity       int     `json:"item_quantity"`
	ItemWeight         float64 `json:"item_weight"`
	AmountToCollect    float64 `json:"amount_to_collect"`
	ItemDescription    string  `json:"item_description"`
}

// OrderResult is the parsed outcome of a POST /orders call: either a
// success carrying the consignment id, or a carrier rejection carrying
// the extracted message and the verbatim response body.
type OrderResult struct {
	Success       bool
	ConsignmentID string
	OrderStatus   string
	Message       string
	RawBody       string
}

// ============================================================================
// Order response parsing
// ============================================================================

// orderSuccessBody covers the success shape, with the payload either at
// the top level or nested under "data".
type orderSuccessBody struct {
	ConsignmentID string `json:"consignment_id"`
	OrderStatus   string `json:"order_status"`
	Data          *struct {
		ConsignmentID string `json:"consignment_id"`
		OrderStatus   string `json:"order_status"`
	} `json:"data"`
}

// ParseOrderResponse decides success or failure for a POST /orders
// response. The carrier's shapes are not uniform: success is HTTP 2xx
// AND no error marker in the body; failures populate one of several
// message fields depending on the failure mode.
func ParseOrderResponse(statusCode int, body []byte) *OrderResult {
	raw := string(body)

	if statusCode >= 200 && statusCode < 300 && !hasErrorMarker(body) {
		var ok orderSuccessBody
		if err := json.Unmarshal(body, &ok); err != nil {
			return &OrderResult{
				Message: fmt.Sprintf("unreadable courier response: %v", err),
				RawBody: raw,
			}
		}
		consignment := ok.ConsignmentID
		status := ok.OrderStatus
		if ok.Data != nil {
			if consignment == "" {
				consignment = ok.Data.ConsignmentID
			}
			if status == "" {
				status = ok.Data.OrderStatus
			}
		}
		if consignment == "" {
			return &OrderResult{
				Message: "courier accepted the request but returned no consignment id",
				RawBody: raw,
			}
		}
		if status == "" {
			status = "Pending"
		}
		return &OrderResult{
			Success:       true,
			ConsignmentID: consignment,
			OrderStatus:   status,
			RawBody:       raw,
		}
	}

	return &OrderResult{
		Message: extractErrorMessage(body),
		RawBody: raw,
	}
}

// hasErrorMarker reports whether a 2xx body still signals failure via
// the carrier's {"type": "error"} marker.
func hasErrorMarker(body []byte) bool {
	var marker struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &marker); err != nil {
		return false
	}
	return marker.Type == "error"
}

// extractErrorMessage pulls a human-readable message out of whichever
// field the carrier populated, falling back to a generic message.
func extractErrorMessage(body []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return courier.GenericShipmentMessage
	}
	for _, field := range []string{"message", "error", "errors"} {
		raw, ok := envelope[field]
		if !ok {
			continue
		}
		if msg := flattenMessage(raw); msg != "" {
			return msg
		}
	}
	return courier.GenericShipmentMessage
}

// flattenMessage renders a message field that may be a plain string, a
// field->errors map, or a list of strings.
func flattenMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var fields map[string][]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(fields))
		for _, k := range keys {
			parts = append(parts, fields[k]...)
		}
		return strings.TrimSpace(strings.Join(parts, "; "))
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}

	return ""
}

// Package courier provides the domain model for the storefront's
// carrier shipment bridge.
package courier

import (
	"fmt"
	"strings"
	"time"
)

// TokenUsableMargin is the safety margin applied when deciding whether a
// stored access token can still be used. A token whose expiry is closer
// than this is refreshed rather than risked mid-flight.
const TokenUsableMargin = time.Hour

// Credentials holds the carrier API credentials and store identity.
// They are externally supplied and immutable for the life of a session.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	StoreID      string
	SenderPhone  string
}

// TokenState is the persisted bearer-token session with the carrier.
// It is created by an initial credential exchange, superseded in place
// by refreshes, and never deleted.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Usable reports whether the access token is safe to use at the given
// instant, applying TokenUsableMargin against the stored expiry.
func (t TokenState) Usable(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.Sub(now) > TokenUsableMargin
}

// City is a top-level node in the carrier's location hierarchy.
type City struct {
	ID   int    `json:"city_id"`
	Name string `json:"city_name"`
}

// Zone is a second-level node, scoped to a city.
type Zone struct {
	ID     int    `json:"zone_id"`
	Name   string `json:"zone_name"`
	CityID int    `json:"city_id,omitempty"`
}

// Area is a leaf node, scoped to a zone.
type Area struct {
	ID     int    `json:"area_id"`
	Name   string `json:"area_name"`
	ZoneID int    `json:"zone_id,omitempty"`
}

// AreaUnspecified is the sentinel area id sent to the carrier when the
// operator leaves the area selection empty.
const AreaUnspecified = 0

// LocationSelection is the operator's resolved city/zone/area choice for
// a shipment. City and zone are required; area may stay AreaUnspecified.
type LocationSelection struct {
	CityID int `json:"city_id"`
	ZoneID int `json:"zone_id"`
	AreaID int `json:"area_id"`
}

// Complete reports whether the selection carries the required city and
// zone identifiers.
func (s LocationSelection) Complete() bool {
	return s.CityID != 0 && s.ZoneID != 0
}

// DeliveryType is the carrier's delivery speed selector.
type DeliveryType int

const (
	// DeliveryNormal is the carrier's 48-hour service.
	DeliveryNormal DeliveryType = 48
	// DeliveryExpress is the carrier's 12-hour service.
	DeliveryExpress DeliveryType = 12
)

// ItemTypeParcel is the only item type this bridge ships.
const ItemTypeParcel = 2

// DefaultItemWeight is the parcel weight (kg) used when the order does
// not carry one.
const DefaultItemWeight = 0.5

// LineItem is a single order line as seen by the shipment builder.
type LineItem struct {
	Name     string
	Size     string
	Quantity int
}

// Order is the bridge's view of a storefront order: just the fields a
// shipment needs. The full order record lives with the orders collaborator.
type Order struct {
	ID                  int64
	Number              string // merchant order id, human readable
	RecipientName       string
	RecipientPhone      string
	RecipientAddress    string
	Items               []LineItem
	DescriptionOverride string
	AmountToCollect     float64
	ItemWeight          float64
	DeliveryType        DeliveryType
	SpecialInstruction  string
}

// ItemQuantity sums the line-item quantities, never below 1.
func (o *Order) ItemQuantity() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	if total < 1 {
		return 1
	}
	return total
}

// ItemDescription renders the line items as "<name> (<size>) x<qty>"
// joined by commas, unless the order carries an explicit override.
func (o *Order) ItemDescription() string {
	if o.DescriptionOverride != "" {
		return o.DescriptionOverride
	}
	parts := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		if it.Size != "" {
			parts = append(parts, fmt.Sprintf("%s (%s) x%d", it.Name, it.Size, qty))
		} else {
			parts = append(parts, fmt.Sprintf("%s x%d", it.Name, qty))
		}
	}
	return strings.Join(parts, ", ")
}

// ShipmentResult is the normalized outcome of a shipment submission.
type ShipmentResult struct {
	ConsignmentID string
	CarrierStatus string
	Success       bool
	RawError      string
	SubmittedAt   time.Time
}

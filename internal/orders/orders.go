// Package orders holds the storefront order model as the courier bridge
// sees it, the persistence ports it talks through, and the sync service
// that writes shipment results back onto orders.
package orders

import (
	"context"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
)

// Workflow statuses touched by the bridge. The only transition this
// service performs is into StatusSentToCourier, and it is one-way.
const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusSentToCourier = "sent_to_courier"
)

// Item is an order line item.
type Item struct {
	Name     string
	Size     string
	Quantity int
}

// Order is the storefront order record, restricted to the fields the
// courier bridge reads and writes. Courier fields are nil until a
// shipment is sent and are never reset once set.
type Order struct {
	ID               int64
	Number           string
	CustomerName     string
	CustomerPhone    string
	ShippingAddress  string
	Items            []Item
	Total            float64
	WorkflowStatus   string
	ShippingNote     string
	CreatedAt        time.Time

	RecipientCityID *int
	RecipientZoneID *int
	RecipientAreaID *int
	ItemWeight      *float64
	AmountToCollect *float64
	DeliveryType    *int
	ConsignmentID   *string
	CarrierStatus   *string
	SentAt          *time.Time
}

// Shipped reports whether the order already carries a consignment id.
func (o *Order) Shipped() bool {
	return o.ConsignmentID != nil && *o.ConsignmentID != ""
}

// CourierOrder converts the order record into the bridge's domain view.
func (o *Order) CourierOrder() *courier.Order {
	items := make([]courier.LineItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = courier.LineItem{Name: it.Name, Size: it.Size, Quantity: it.Quantity}
	}
	return &courier.Order{
		ID:                 o.ID,
		Number:             o.Number,
		RecipientName:      o.CustomerName,
		RecipientPhone:     o.CustomerPhone,
		RecipientAddress:   o.ShippingAddress,
		Items:              items,
		AmountToCollect:    o.Total,
		SpecialInstruction: o.ShippingNote,
	}
}

// ShipmentUpdate is the set of courier fields written onto an order
// after a successful shipment.
type ShipmentUpdate struct {
	Selection       courier.LocationSelection
	ItemWeight      float64
	AmountToCollect float64
	DeliveryType    courier.DeliveryType
	ConsignmentID   string
	CarrierStatus   string
	SentAt          time.Time
}

// Repository is the orders persistence port.
type Repository interface {
	Get(ctx context.Context, id int64) (*Order, error)
	ApplyShipment(ctx context.Context, id int64, upd ShipmentUpdate) error
}

// NoteRepository appends immutable audit notes to an order.
type NoteRepository interface {
	Append(ctx context.Context, orderID int64, body string) error
}

package orders

import (
	"context"
	"fmt"

	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Sync persists shipment results back onto order records and appends an
// audit note. The note is best-effort: if the order update lands and
// the note insert fails, the order is still shipped.
type Sync struct {
	orders Repository
	notes  NoteRepository
	logger *otelzap.Logger
}

// NewSync creates an order sync service.
func NewSync(orders Repository, notes NoteRepository, logger *otelzap.Logger) *Sync {
	return &Sync{
		orders: orders,
		notes:  notes,
		logger: logger,
	}
}

// ApplyShipmentResult writes the consignment id, carrier status and
// sent timestamp onto the order, transitions its workflow status to
// sent_to_courier, and appends the audit note. An order that already
// carries a consignment id is refused with courier.ErrAlreadyShipped;
// the transition is one-way and never overwritten.
func (s *Sync) ApplyShipmentResult(ctx context.Context, orderID int64, upd ShipmentUpdate) error {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Shipped() {
		return fmt.Errorf("%w: consignment %s", courier.ErrAlreadyShipped, *order.ConsignmentID)
	}

	if err := s.orders.ApplyShipment(ctx, orderID, upd); err != nil {
		return fmt.Errorf("updating order %d: %w", orderID, err)
	}

	note := fmt.Sprintf("Sent to courier. Consignment: %s", upd.ConsignmentID)
	if err := s.notes.Append(ctx, orderID, note); err != nil {
		// Best-effort audit trail; the shipment itself already landed.
		s.logger.Warn("Failed to append shipment note",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}

	s.logger.Info("Order marked as sent to courier",
		zap.Int64("order_id", orderID),
		zap.String("consignment_id", upd.ConsignmentID),
		zap.String("carrier_status", upd.CarrierStatus),
	)
	return nil
}

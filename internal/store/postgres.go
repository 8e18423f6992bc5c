// Package store provides the postgres-backed implementations of the
// bridge's persistence ports: the settings collaborator and the orders
// repository.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/threadline/courier-bridge/internal/orders"
	"github.com/threadline/courier-bridge/pkg/courier"
)

// Open connects to postgres and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// SettingsRepository implements courier.Settings over a settings table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value under key, or courier.ErrSettingNotFound.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", courier.ErrSettingNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts the value under key.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

// Delete removes key.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = $1", key)
	return err
}

var _ courier.Settings = (*SettingsRepository)(nil)

// OrderRepository implements orders.Repository and orders.NoteRepository.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates an order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Get loads an order with its line items.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*orders.Order, error) {
	o := &orders.Order{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, number, customer_name, customer_phone, shipping_address,
			total, workflow_status, COALESCE(shipping_note, ''), created_at,
			recipient_city_id, recipient_zone_id, recipient_area_id,
			item_weight, amount_to_collect, delivery_type,
			consignment_id, carrier_status, sent_at
		FROM orders WHERE id = $1
	`, id).Scan(
		&o.ID, &o.Number, &o.CustomerName, &o.CustomerPhone, &o.ShippingAddress,
		&o.Total, &o.WorkflowStatus, &o.ShippingNote, &o.CreatedAt,
		&o.RecipientCityID, &o.RecipientZoneID, &o.RecipientAreaID,
		&o.ItemWeight, &o.AmountToCollect, &o.DeliveryType,
		&o.ConsignmentID, &o.CarrierStatus, &o.SentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", courier.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_name, COALESCE(size, ''), quantity
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.Item
		if err := rows.Scan(&it.Name, &it.Size, &it.Quantity); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

// ApplyShipment writes the courier fields and the one-way workflow
// transition onto the order. The WHERE clause refuses orders that
// already carry a consignment id, so a concurrent double-apply loses.
func (r *OrderRepository) ApplyShipment(ctx context.Context, id int64, upd orders.ShipmentUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			recipient_city_id = $1,
			recipient_zone_id = $2,
			recipient_area_id = $3,
			item_weight = $4,
			amount_to_collect = $5,
			delivery_type = $6,
			consignment_id = $7,
			carrier_status = $8,
			sent_at = $9,
			workflow_status = $10
		WHERE id = $11 AND consignment_id IS NULL
	`,
		upd.Selection.CityID, upd.Selection.ZoneID, upd.Selection.AreaID,
		upd.ItemWeight, upd.AmountToCollect, int(upd.DeliveryType),
		upd.ConsignmentID, upd.CarrierStatus, upd.SentAt,
		orders.StatusSentToCourier, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return courier.ErrAlreadyShipped
	}
	return nil
}

// Append inserts an immutable audit note for the order.
func (r *OrderRepository) Append(ctx context.Context, orderID int64, body string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_notes (id, order_id, body, created_at)
		VALUES ($1, $2, $3, NOW())
	`, uuid.New().String(), orderID, body)
	return err
}

var (
	_ orders.Repository     = (*OrderRepository)(nil)
	_ orders.NoteRepository = (*OrderRepository)(nil)
)

// Package server exposes the bridge to the back-office over HTTP:
// location resolution for the shipment form and shipment submission.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/threadline/courier-bridge/internal/orders"
	"github.com/threadline/courier-bridge/internal/telemetry"
	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/swiftship"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the courier bridge.
type Server struct {
	port    int
	bridge  *swiftship.Client
	orders  orders.Repository
	sync    *orders.Sync
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, bridge *swiftship.Client, orderRepo orders.Repository, sync *orders.Sync, logger *otelzap.Logger) *Server {
	return &Server{
		port:    cfg.Port,
		bridge:  bridge,
		orders:  orderRepo,
		sync:    sync,
		logger:  logger,
		metrics: telemetry.NewMetrics(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/locations/cities", s.handleCities)
	mux.HandleFunc("GET /api/locations/zones", s.handleZones)
	mux.HandleFunc("GET /api/locations/areas", s.handleAreas)
	mux.HandleFunc("POST /api/orders/{id}/ship", s.handleShip)

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cities, err := s.bridge.Locations().Cities(r.Context())
	if err != nil {
		s.metrics.RecordRequest("cities", "error", time.Since(start).Seconds())
		s.writeError(w, "cities", err)
		return
	}
	s.metrics.RecordRequest("cities", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]any{"cities": cities})
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	cityID, err := queryID(r, "city_id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}

	start := time.Now()
	loc := s.bridge.Locations()
	gen := loc.SelectCity(cityID)
	zones, ok, err := loc.ZonesFor(r.Context(), gen, cityID)
	if err != nil {
		s.metrics.RecordRequest("zones", "error", time.Since(start).Seconds())
		s.writeError(w, "zones", err)
		return
	}
	if !ok {
		// A newer selection superseded this fetch; tell the client to retry.
		s.writeJSON(w, http.StatusConflict, errorBody("selection changed, retry", ""))
		return
	}
	s.metrics.RecordRequest("zones", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (s *Server) handleAreas(w http.ResponseWriter, r *http.Request) {
	zoneID, err := queryID(r, "zone_id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), ""))
		return
	}

	start := time.Now()
	loc := s.bridge.Locations()
	gen := loc.SelectZone(zoneID)
	areas, ok, err := loc.AreasFor(r.Context(), gen, zoneID)
	if err != nil {
		s.metrics.RecordRequest("areas", "error", time.Since(start).Seconds())
		s.writeError(w, "areas", err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusConflict, errorBody("selection changed, retry", ""))
		return
	}
	s.metrics.RecordRequest("areas", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
}

// shipRequest is the operator's confirmed shipment form.
type shipRequest struct {
	CityID          int     `json:"city_id"`
	ZoneID          int     `json:"zone_id"`
	AreaID          int     `json:"area_id"`
	ItemWeight      float64 `json:"item_weight"`
	AmountToCollect float64 `json:"amount_to_collect"`
	DeliveryType    int     `json:"delivery_type"`
}

// shipResponse reports the shipment outcome.
type shipResponse struct {
	ConsignmentID string    `json:"consignment_id"`
	CarrierStatus string    `json:"carrier_status"`
	SentAt        time.Time `json:"sent_at"`
}

func (s *Server) handleShip(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid order id", ""))
		return
	}

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON: "+err.Error(), ""))
		return
	}

	order, err := s.orders.Get(r.Context(), orderID)
	if err != nil {
		s.writeError(w, "ship", err)
		return
	}
	if order.Shipped() {
		s.writeJSON(w, http.StatusConflict, errorBody("order already sent to courier", ""))
		return
	}

	courierOrder := order.CourierOrder()
	if req.ItemWeight > 0 {
		courierOrder.ItemWeight = req.ItemWeight
	}
	if req.AmountToCollect > 0 {
		courierOrder.AmountToCollect = req.AmountToCollect
	}
	if req.DeliveryType > 0 {
		courierOrder.DeliveryType = courier.DeliveryType(req.DeliveryType)
	}

	sel := courier.LocationSelection{CityID: req.CityID, ZoneID: req.ZoneID, AreaID: req.AreaID}

	result, err := s.bridge.CreateShipment(r.Context(), courierOrder, sel)
	if err != nil {
		s.metrics.RecordShipment("error")
		s.metrics.RecordRequest("ship", "error", time.Since(start).Seconds())
		s.writeError(w, "ship", err)
		return
	}

	upd := orders.ShipmentUpdate{
		Selection:       sel,
		ItemWeight:      weightOrDefault(req.ItemWeight),
		AmountToCollect: courierOrder.AmountToCollect,
		DeliveryType:    deliveryOrDefault(req.DeliveryType),
		ConsignmentID:   result.ConsignmentID,
		CarrierStatus:   result.CarrierStatus,
		SentAt:          result.SubmittedAt,
	}
	if err := s.sync.ApplyShipmentResult(r.Context(), orderID, upd); err != nil {
		// The consignment exists with the carrier; surface the sync
		// failure but include the id so the operator can reconcile.
		s.logger.Error("Shipment created but order sync failed",
			zap.Int64("order_id", orderID),
			zap.String("consignment_id", result.ConsignmentID),
			zap.Error(err),
		)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":          "shipment created but order update failed",
			"consignment_id": result.ConsignmentID,
		})
		return
	}

	s.metrics.RecordShipment("ok")
	s.metrics.RecordRequest("ship", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, shipResponse{
		ConsignmentID: result.ConsignmentID,
		CarrierStatus: result.CarrierStatus,
		SentAt:        result.SubmittedAt,
	})
}

// writeError maps the bridge's failure taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, operation string, err error) {
	var shipErr *courier.ShipmentError

	switch {
	case errors.Is(err, courier.ErrCredentialsMissing):
		s.writeJSON(w, http.StatusConflict, errorBody(
			"carrier integration is not configured: "+err.Error(), ""))
	case errors.Is(err, courier.ErrMissingLocation):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error(), ""))
	case errors.Is(err, courier.ErrAlreadyShipped):
		s.writeJSON(w, http.StatusConflict, errorBody(err.Error(), ""))
	case errors.Is(err, courier.ErrOrderNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody(err.Error(), ""))
	case errors.Is(err, courier.ErrRefreshFailed):
		s.writeJSON(w, http.StatusBadGateway, errorBody(
			"carrier session expired, re-authentication required: "+err.Error(), ""))
	case errors.Is(err, courier.ErrLocationFetch):
		s.writeJSON(w, http.StatusBadGateway, errorBody(err.Error(), ""))
	case errors.As(err, &shipErr):
		// Keep the carrier's raw body: it is the operator's only audit
		// trail for support escalation.
		s.writeJSON(w, http.StatusBadGateway, errorBody(shipErr.Message, shipErr.RawBody))
	default:
		s.logger.Error("Unhandled error", zap.String("operation", operation), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error", ""))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func errorBody(message, raw string) map[string]any {
	body := map[string]any{"error": message}
	if raw != "" {
		body["raw"] = raw
	}
	return body
}

func queryID(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func weightOrDefault(w float64) float64 {
	if w <= 0 {
		return courier.DefaultItemWeight
	}
	return w
}

func deliveryOrDefault(d int) courier.DeliveryType {
	if d <= 0 {
		return courier.DeliveryNormal
	}
	return courier.DeliveryType(d)
}

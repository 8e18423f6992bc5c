package swiftship

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/threadline/courier-bridge/pkg/courier"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnIssueToken  func(ctx context.Context, req *TokenRequest) (*TokenResponse, error)
	OnGetCities   func(ctx context.Context, token string) ([]courier.City, error)
	OnGetZones    func(ctx context.Context, token string, cityID int) ([]courier.Zone, error)
	OnGetAreas    func(ctx context.Context, token string, zoneID int) ([]courier.Area, error)
	OnCreateOrder func(ctx context.Context, token string, req *OrderRequest) (*OrderResult, error)

	issueTokenCalls  atomic.Int64
	getCitiesCalls   atomic.Int64
	getZonesCalls    atomic.Int64
	getAreasCalls    atomic.Int64
	createOrderCalls atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// IssueTokenCalls returns how many times IssueToken was invoked.
func (m *MockAPIClient) IssueTokenCalls() int64 { return m.issueTokenCalls.Load() }

// GetCitiesCalls returns how many times GetCities was invoked.
func (m *MockAPIClient) GetCitiesCalls() int64 { return m.getCitiesCalls.Load() }

// GetZonesCalls returns how many times GetZones was invoked.
func (m *MockAPIClient) GetZonesCalls() int64 { return m.getZonesCalls.Load() }

// GetAreasCalls returns how many times GetAreas was invoked.
func (m *MockAPIClient) GetAreasCalls() int64 { return m.getAreasCalls.Load() }

// CreateOrderCalls returns how many times CreateOrder was invoked.
func (m *MockAPIClient) CreateOrderCalls() int64 { return m.createOrderCalls.Load() }

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return courier.NewBridgeError("carrier", "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

// IssueToken returns a mock token grant.
func (m *MockAPIClient) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	m.issueTokenCalls.Add(1)
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnIssueToken != nil {
		return m.OnIssueToken(ctx, req)
	}

	return &TokenResponse{
		AccessToken:  "mock-access-" + uuid.New().String()[:8],
		RefreshToken: "mock-refresh-" + uuid.New().String()[:8],
		ExpiresIn:    432000, // 5 days
	}, nil
}

// GetCities returns a mock city list.
func (m *MockAPIClient) GetCities(ctx context.Context, token string) ([]courier.City, error) {
	m.getCitiesCalls.Add(1)
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetCities != nil {
		return m.OnGetCities(ctx, token)
	}

	return []courier.City{
		{ID: 1, Name: "Dhaka"},
		{ID: 2, Name: "Chattogram"},
		{ID: 3, Name: "Sylhet"},
	}, nil
}

// GetZones returns mock zones for a city.
func (m *MockAPIClient) GetZones(ctx context.Context, token string, cityID int) ([]courier.Zone, error) {
	m.getZonesCalls.Add(1)
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetZones != nil {
		return m.OnGetZones(ctx, token, cityID)
	}

	return []courier.Zone{
		{ID: cityID*100 + 1, Name: "Gulshan", CityID: cityID},
		{ID: cityID*100 + 2, Name: "Banani", CityID: cityID},
		{ID: cityID*100 + 3, Name: "Uttara", CityID: cityID},
	}, nil
}

// GetAreas returns mock areas for a zone.
func (m *MockAPIClient) GetAreas(ctx context.Context, token string, zoneID int) ([]courier.Area, error) {
	m.getAreasCalls.Add(1)
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetAreas != nil {
		return m.OnGetAreas(ctx, token, zoneID)
	}

	return []courier.Area{
		{ID: zoneID*10 + 1, Name: "Block A", ZoneID: zoneID},
		{ID: zoneID*10 + 2, Name: "Block B", ZoneID: zoneID},
	}, nil
}

// CreateOrder creates a mock shipment.
func (m *MockAPIClient) CreateOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResult, error) {
	m.createOrderCalls.Add(1)
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, token, req)
	}

	consignment := fmt.Sprintf("DL%d", 100000000+time.Now().UnixNano()%900000000)
	return &OrderResult{
		Success:       true,
		ConsignmentID: consignment,
		OrderStatus:   "Pending",
		RawBody:       fmt.Sprintf(`{"consignment_id":%q,"order_status":"Pending"}`, consignment),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)

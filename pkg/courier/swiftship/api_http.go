package swiftship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IssueToken performs the credential exchange or refresh.
// POST /issue-token
func (c *HTTPAPIClient) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/issue-token", "", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, courier.NewBridgeError("token", "EMPTY_TOKEN", "token endpoint returned no access token")
	}
	return &result, nil
}

// GetCities fetches the city list.
// GET /cities
func (c *HTTPAPIClient) GetCities(ctx context.Context, token string) ([]courier.City, error) {
	return getLocations[courier.City](c, ctx, "/cities", token)
}

// GetZones fetches the zones of a city.
// GET /zones?city_id=
func (c *HTTPAPIClient) GetZones(ctx context.Context, token string, cityID int) ([]courier.Zone, error) {
	path := "/zones?city_id=" + strconv.Itoa(cityID)
	return getLocations[courier.Zone](c, ctx, path, token)
}

// GetAreas fetches the areas of a zone.
// GET /areas?zone_id=
func (c *HTTPAPIClient) GetAreas(ctx context.Context, token string, zoneID int) ([]courier.Area, error) {
	path := "/areas?zone_id=" + strconv.Itoa(zoneID)
	return getLocations[courier.Area](c, ctx, path, token)
}

// getLocations fetches one of the location endpoints and unwraps the
// nested {"data": {"data": [...]}} envelope.
func getLocations[T any](c *HTTPAPIClient, ctx context.Context, path, token string) ([]T, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var envelope locationEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode location response: %w", err)
	}
	return envelope.Data.Data, nil
}

// CreateOrder submits a shipment.
// POST /orders
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, token string, req *OrderRequest) (*OrderResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/orders", token, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read order response: %w", err)
	}

	return ParseOrderResponse(resp.StatusCode, body), nil
}

// doRequest performs an HTTP request with proper headers and bearer auth.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path, token string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "threadline-courier-bridge/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		msg := simpleErr.Message
		if msg == "" {
			msg = simpleErr.Error
		}
		if msg != "" {
			return courier.NewBridgeError("carrier", fmt.Sprintf("HTTP_%d", resp.StatusCode), msg).
				WithStatusCode(resp.StatusCode)
		}
	}

	return courier.NewBridgeError("carrier", fmt.Sprintf("HTTP_%d", resp.StatusCode), string(body)).
		WithStatusCode(resp.StatusCode)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)

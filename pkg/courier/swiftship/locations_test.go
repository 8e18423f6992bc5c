package swiftship_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/cache"
	"github.com/threadline/courier-bridge/pkg/courier/swiftship"
)

func newLocationCache(t *testing.T, api *swiftship.MockAPIClient, store cache.Store) *swiftship.LocationCache {
	t.Helper()
	settings := courier.NewMemorySettings()
	seedCredentials(t, settings)
	seedTokenState(t, settings, courier.TokenState{
		AccessToken:  "token-abc",
		RefreshToken: "refresh-abc",
		ExpiresAt:    time.Now().Add(48 * time.Hour),
	})
	tokens := newTokenManager(t, settings, api)
	return swiftship.NewLocationCache(api, tokens, store, newTestLogger(), 0)
}

func seedCityCache(t *testing.T, store cache.Store, cities []courier.City, fetchedAt time.Time) {
	t.Helper()
	raw, err := json.Marshal(cities)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), swiftship.CityCacheKey, raw, fetchedAt))
}

func TestLocationCache_CitiesFreshCacheSkipsFetch(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	store := cache.NewMemory()
	seedCityCache(t, store, []courier.City{{ID: 7, Name: "Khulna"}}, time.Now().Add(-time.Hour))

	lc := newLocationCache(t, api, store)

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Khulna", cities[0].Name)
	assert.EqualValues(t, 0, api.GetCitiesCalls())
}

func TestLocationCache_CitiesMissFetchesAndPersists(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	store := cache.NewMemory()
	lc := newLocationCache(t, api, store)

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 3)
	assert.EqualValues(t, 1, api.GetCitiesCalls())

	// The fetched list is now cached; a second call stays local.
	_, err = lc.Cities(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.GetCitiesCalls())
}

func TestLocationCache_CitiesExpiredCacheRefetches(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	store := cache.NewMemory()
	seedCityCache(t, store, []courier.City{{ID: 7, Name: "Khulna"}}, time.Now().Add(-25*time.Hour))

	lc := newLocationCache(t, api, store)

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 3)
	assert.EqualValues(t, 1, api.GetCitiesCalls())
}

func TestLocationCache_CitiesStaleFallbackOnFetchError(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	api.OnGetCities = func(ctx context.Context, token string) ([]courier.City, error) {
		return nil, errors.New("upstream down")
	}
	store := cache.NewMemory()
	seedCityCache(t, store, []courier.City{{ID: 7, Name: "Khulna"}}, time.Now().Add(-72*time.Hour))

	lc := newLocationCache(t, api, store)

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Khulna", cities[0].Name)
}

func TestLocationCache_CitiesFetchErrorNoCache(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	api.SimulateErrors = true
	lc := newLocationCache(t, api, cache.NewMemory())

	_, err := lc.Cities(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, courier.ErrLocationFetch)
}

func TestLocationCache_CitiesCorruptCacheRefetches(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	store := cache.NewMemory()
	require.NoError(t, store.Set(context.Background(), swiftship.CityCacheKey, []byte("{not json"), time.Now()))

	lc := newLocationCache(t, api, store)

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 3)
	assert.EqualValues(t, 1, api.GetCitiesCalls())
}

func TestLocationCache_RefreshBypassesFreshness(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	store := cache.NewMemory()
	seedCityCache(t, store, []courier.City{{ID: 7, Name: "Khulna"}}, time.Now())

	lc := newLocationCache(t, api, store)

	require.NoError(t, lc.Refresh(context.Background()))
	assert.EqualValues(t, 1, api.GetCitiesCalls())

	cities, err := lc.Cities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 3)
}

func TestLocationCache_ZonesAndAreasLiveFetch(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	lc := newLocationCache(t, api, cache.NewMemory())

	zones, err := lc.Zones(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, 1, zones[0].CityID)

	areas, err := lc.Areas(context.Background(), 101)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, 101, areas[0].ZoneID)

	// Live fetches every time, no caching layer in between.
	_, err = lc.Zones(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, api.GetZonesCalls())
}

func TestLocationCache_SelectionCascade(t *testing.T) {
	lc := newLocationCache(t, swiftship.NewMockAPIClient(), cache.NewMemory())

	lc.SelectCity(1)
	lc.SelectZone(101)
	lc.SelectArea(1011)
	sel := lc.Selection()
	assert.Equal(t, courier.LocationSelection{CityID: 1, ZoneID: 101, AreaID: 1011}, sel)

	// Changing the zone clears the area but keeps the city.
	lc.SelectZone(102)
	sel = lc.Selection()
	assert.Equal(t, courier.LocationSelection{CityID: 1, ZoneID: 102, AreaID: courier.AreaUnspecified}, sel)

	// Changing the city clears everything below it.
	lc.SelectCity(2)
	sel = lc.Selection()
	assert.Equal(t, courier.LocationSelection{CityID: 2}, sel)
}

func TestLocationCache_SelectSameCityKeepsGeneration(t *testing.T) {
	lc := newLocationCache(t, swiftship.NewMockAPIClient(), cache.NewMemory())

	gen := lc.SelectCity(1)
	assert.Equal(t, gen, lc.SelectCity(1))
	assert.NotEqual(t, gen, lc.SelectCity(2))
}

func TestLocationCache_ZonesForDiscardsSupersededResponse(t *testing.T) {
	api := swiftship.NewMockAPIClient()
	lc := newLocationCache(t, api, cache.NewMemory())

	gen := lc.SelectCity(1)
	api.OnGetZones = func(ctx context.Context, token string, cityID int) ([]courier.Zone, error) {
		// The operator moves on while the fetch is in flight.
		lc.SelectCity(2)
		return []courier.Zone{{ID: 100, Name: "Gulshan", CityID: cityID}}, nil
	}

	zones, ok, err := lc.ZonesFor(context.Background(), gen, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, zones)
}

func TestLocationCache_AreasForCurrentGeneration(t *testing.T) {
	lc := newLocationCache(t, swiftship.NewMockAPIClient(), cache.NewMemory())

	lc.SelectCity(1)
	gen := lc.SelectZone(101)

	areas, ok, err := lc.AreasFor(context.Background(), gen, 101)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, areas, 2)
}

package swiftship

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
	"github.com/threadline/courier-bridge/pkg/courier/cache"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CityCacheKey is the durable cache slot for the city list.
const CityCacheKey = "carrier_cities_cache"

// DefaultCityCacheTTL is how long a cached city list counts as fresh.
const DefaultCityCacheTTL = 24 * time.Hour

// LocationCache resolves the carrier's city/zone/area hierarchy. Cities
// go through a TTL-based durable cache; zones and areas are live
// fetches scoped by the parent selection. It also tracks the operator's
// current selection, enforcing the cascade invariant (changing a parent
// clears its children) and a generation counter so responses for an
// abandoned selection are discarded instead of overwriting fresher data.
type LocationCache struct {
	api    APIClient
	tokens *TokenManager
	store  cache.Store
	logger *otelzap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu  sync.Mutex
	sel courier.LocationSelection
	gen uint64
}

// NewLocationCache creates a location cache. A zero ttl means
// DefaultCityCacheTTL.
func NewLocationCache(api APIClient, tokens *TokenManager, store cache.Store, logger *otelzap.Logger, ttl time.Duration) *LocationCache {
	if ttl == 0 {
		ttl = DefaultCityCacheTTL
	}
	return &LocationCache{
		api:    api,
		tokens: tokens,
		store:  store,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Cities returns the city list, from cache when a fresh entry exists.
// On fetch failure any cached payload, even a stale one, is preferred
// over surfacing the error: a transient carrier outage must not block
// the operator's selection flow.
func (l *LocationCache) Cities(ctx context.Context) ([]courier.City, error) {
	payload, fetchedAt, cacheErr := l.store.Get(ctx, CityCacheKey)

	if cacheErr == nil && l.now().Sub(fetchedAt) <= l.ttl {
		cities, err := decodeCities(payload)
		if err == nil {
			return cities, nil
		}
		l.logger.Warn("Corrupt city cache entry, refetching", zap.Error(err))
	}

	cities, err := l.fetchCities(ctx)
	if err != nil {
		if cacheErr == nil {
			if stale, decErr := decodeCities(payload); decErr == nil {
				l.logger.Warn("City fetch failed, serving stale cache",
					zap.Time("fetched_at", fetchedAt),
					zap.Error(err),
				)
				return stale, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}

	raw, err := json.Marshal(cities)
	if err == nil {
		if err := l.store.Set(ctx, CityCacheKey, raw, l.now()); err != nil {
			l.logger.Warn("Failed to persist city cache", zap.Error(err))
		}
	}
	return cities, nil
}

// Refresh forces a city fetch and cache write, bypassing freshness.
// Used by the scheduled cache warmer.
func (l *LocationCache) Refresh(ctx context.Context) error {
	cities, err := l.fetchCities(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}
	raw, err := json.Marshal(cities)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, CityCacheKey, raw, l.now()); err != nil {
		return fmt.Errorf("persisting city cache: %w", err)
	}
	l.logger.Info("City cache refreshed", zap.Int("cities", len(cities)))
	return nil
}

func (l *LocationCache) fetchCities(ctx context.Context) ([]courier.City, error) {
	token, err := l.tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return l.api.GetCities(ctx, token)
}

// Zones is a live fetch of the zones of a city.
func (l *LocationCache) Zones(ctx context.Context, cityID int) ([]courier.Zone, error) {
	token, err := l.tokens.ValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}
	zones, err := l.api.GetZones(ctx, token, cityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}
	return zones, nil
}

// Areas is a live fetch of the areas of a zone.
func (l *LocationCache) Areas(ctx context.Context, zoneID int) ([]courier.Area, error) {
	token, err := l.tokens.ValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}
	areas, err := l.api.GetAreas(ctx, token, zoneID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", courier.ErrLocationFetch, err)
	}
	return areas, nil
}

// ============================================================================
// Selection tracking
// ============================================================================

// SelectCity records a city choice. Changing the city clears the zone
// and area selections and bumps the generation; in-flight fetches for
// the previous selection become stale. The returned generation is
// passed back to ZonesFor to detect superseded responses.
func (l *LocationCache) SelectCity(cityID int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sel.CityID != cityID {
		l.sel = courier.LocationSelection{CityID: cityID}
		l.gen++
	}
	return l.gen
}

// SelectZone records a zone choice, clearing the area selection.
func (l *LocationCache) SelectZone(zoneID int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sel.ZoneID != zoneID {
		l.sel.ZoneID = zoneID
		l.sel.AreaID = courier.AreaUnspecified
		l.gen++
	}
	return l.gen
}

// SelectArea records an area choice.
func (l *LocationCache) SelectArea(areaID int) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sel.AreaID = areaID
	return l.gen
}

// Selection returns a copy of the current selection.
func (l *LocationCache) Selection() courier.LocationSelection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sel
}

// Generation returns the current selection generation.
func (l *LocationCache) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// ZonesFor fetches zones for the selection identified by gen. When the
// selection has since moved on, the fetched list is discarded and ok is
// false; the caller drops the response instead of rendering stale data.
func (l *LocationCache) ZonesFor(ctx context.Context, gen uint64, cityID int) (zones []courier.Zone, ok bool, err error) {
	zones, err = l.Zones(ctx, cityID)
	if err != nil {
		return nil, false, err
	}
	if l.Generation() != gen {
		return nil, false, nil
	}
	return zones, true, nil
}

// AreasFor fetches areas for the selection identified by gen, with the
// same stale-response discard as ZonesFor.
func (l *LocationCache) AreasFor(ctx context.Context, gen uint64, zoneID int) (areas []courier.Area, ok bool, err error) {
	areas, err = l.Areas(ctx, zoneID)
	if err != nil {
		return nil, false, err
	}
	if l.Generation() != gen {
		return nil, false, nil
	}
	return areas, true, nil
}

func decodeCities(payload []byte) ([]courier.City, error) {
	var cities []courier.City
	if err := json.Unmarshal(payload, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

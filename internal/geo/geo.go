package geo

import (
	"context"
	"math"
	"sync"

	"github.com/mmcloughlin/geohash"

	"github.com/example/ride-dispatch/internal/models"
)

// Geo answers "who is within radius R of point P" over last-reported
// driver positions. Results are a best-effort candidate set: there is no
// expiry, so a silent driver stays discoverable until removed.
type Geo interface {
	Upsert(ctx context.Context, loc models.DriverLocation) error
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]models.DriverLocation, error)
	Remove(ctx context.Context, driverID string) error
}

// cellPrecision is the geohash length used for bucketing. Precision 5
// cells are ~4.9x4.9km, so a cell plus its neighbors covers any radius
// up to roughly 5km without a full scan.
const cellPrecision = 5

// MemoryIndex is an in-process Geo keyed by geohash cell. It backs local
// runs and tests when no Redis is configured.
type MemoryIndex struct {
	mu         sync.RWMutex
	drivers    map[string]models.DriverLocation
	cells      map[string]map[string]struct{}
	maxResults int
}

func NewMemoryIndex(maxResults int) *MemoryIndex {
	if maxResults <= 0 {
		maxResults = 25
	}
	return &MemoryIndex{
		drivers:    make(map[string]models.DriverLocation),
		cells:      make(map[string]map[string]struct{}),
		maxResults: maxResults,
	}
}

// Upsert overwrites the driver's position; a repeated report never
// duplicates the entry.
func (g *MemoryIndex) Upsert(_ context.Context, loc models.DriverLocation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(loc.DriverID)
	cell := geohash.EncodeWithPrecision(loc.Coord.Lat, loc.Coord.Lon, cellPrecision)
	g.drivers[loc.DriverID] = loc
	if g.cells[cell] == nil {
		g.cells[cell] = make(map[string]struct{})
	}
	g.cells[cell][loc.DriverID] = struct{}{}
	return nil
}

func (g *MemoryIndex) Remove(_ context.Context, driverID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(driverID)
	return nil
}

func (g *MemoryIndex) removeLocked(driverID string) {
	loc, ok := g.drivers[driverID]
	if !ok {
		return
	}
	cell := geohash.EncodeWithPrecision(loc.Coord.Lat, loc.Coord.Lon, cellPrecision)
	delete(g.drivers, driverID)
	if ids := g.cells[cell]; ids != nil {
		delete(ids, driverID)
		if len(ids) == 0 {
			delete(g.cells, cell)
		}
	}
}

// Nearby returns up to maxResults drivers within radiusKm of the point,
// in no particular order.
func (g *MemoryIndex) Nearby(_ context.Context, lat, lon, radiusKm float64) ([]models.DriverLocation, error) {
	p := searchPrecision(radiusKm)
	center := geohash.EncodeWithPrecision(lat, lon, uint(p))
	prefixes := map[string]struct{}{center: {}}
	for _, n := range geohash.Neighbors(center) {
		prefixes[n] = struct{}{}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.DriverLocation, 0, g.maxResults)
	for cell, ids := range g.cells {
		if _, ok := prefixes[cell[:p]]; !ok {
			continue
		}
		for id := range ids {
			loc := g.drivers[id]
			if Haversine(lat, lon, loc.Coord.Lat, loc.Coord.Lon) <= radiusKm*1000 {
				out = append(out, loc)
				if len(out) >= g.maxResults {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

// searchPrecision picks a geohash length whose cell-plus-neighbors block
// is guaranteed to cover the radius.
func searchPrecision(radiusKm float64) int {
	switch {
	case radiusKm <= 2:
		return 5 // ~4.9km cells
	case radiusKm <= 19:
		return 4 // ~39x19.5km cells
	default:
		return 3
	}
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

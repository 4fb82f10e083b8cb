package geo

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisGeo implements Geo on a Redis GEO set. This is the production
// index: every process sharing the same key sees the same positions.
type RedisGeo struct {
	client     *redis.Client
	key        string
	maxResults int
}

func NewRedisGeo(addr, password, key string, maxResults int) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisGeoWithClient(c, key, maxResults)
}

func NewRedisGeoWithClient(c *redis.Client, key string, maxResults int) *RedisGeo {
	if maxResults <= 0 {
		maxResults = 25
	}
	return &RedisGeo{client: c, key: key, maxResults: maxResults}
}

func (r *RedisGeo) Upsert(ctx context.Context, loc models.DriverLocation) error {
	_, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      loc.DriverID,
		Longitude: loc.Coord.Lon,
		Latitude:  loc.Coord.Lat,
	}).Result()
	return err
}

func (r *RedisGeo) Remove(ctx context.Context, driverID string) error {
	return r.client.ZRem(ctx, r.key, driverID).Err()
}

// Nearby queries GEORADIUS with the count cap. Errors are returned so the
// caller can degrade to an empty candidate set.
func (r *RedisGeo) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]models.DriverLocation, error) {
	res, err := r.client.GeoRadius(ctx, r.key, lon, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Count:     r.maxResults,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.DriverLocation, 0, len(res))
	for _, g := range res {
		out = append(out, models.DriverLocation{
			DriverID: g.Name,
			Coord:    models.Coord{Lat: g.Latitude, Lon: g.Longitude},
		})
	}
	return out, nil
}

func (r *RedisGeo) Close() error { return r.client.Close() }

package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"deliveryTracking/models"
)

// DriversKey holds every driver's last accepted position.
const DriversKey = "tracking:drivers:locations"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	GeoAdd(context.Context, string, ...*redis.GeoLocation) *redis.IntCmd
	GeoRadius(context.Context, string, float64, float64, *redis.GeoRadiusQuery) *redis.GeoLocationCmd
	ZRem(context.Context, string, ...interface{}) *redis.IntCmd
}

// RedisGeoIndex mirrors driver positions into a Redis GEO set.
type RedisGeoIndex struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisGeoIndex connects to url and verifies connectivity.
func NewRedisGeoIndex(ctx context.Context, url string) (*RedisGeoIndex, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisGeoIndex{store: raw, raw: raw}, nil
}

func newWithStore(store cmdable) *RedisGeoIndex {
	return &RedisGeoIndex{store: store}
}

func (r *RedisGeoIndex) UpdateDriver(ctx context.Context, driverID string, p models.GeoPoint) error {
	return r.store.GeoAdd(ctx, DriversKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: p.Lng(),
		Latitude:  p.Lat(),
	}).Err()
}

func (r *RedisGeoIndex) RemoveDriver(ctx context.Context, driverID string) error {
	return r.store.ZRem(ctx, DriversKey, driverID).Err()
}

func (r *RedisGeoIndex) Nearby(ctx context.Context, center models.GeoPoint, radiusKm float64, limit int) ([]NearbyDriver, error) {
	locs, err := r.store.GeoRadius(ctx, DriversKey, center.Lng(), center.Lat(), &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithDist:  true,
		WithCoord: true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("searching drivers: %w", err)
	}
	out := make([]NearbyDriver, 0, len(locs))
	for _, l := range locs {
		out = append(out, NearbyDriver{
			DriverID:   l.Name,
			DistanceKm: l.Dist,
			Location:   models.NewGeoPoint(l.Latitude, l.Longitude),
		})
	}
	return out, nil
}

func (r *RedisGeoIndex) Ping(ctx context.Context) error {
	return r.store.Ping(ctx).Err()
}

func (r *RedisGeoIndex) Close() error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Close()
}

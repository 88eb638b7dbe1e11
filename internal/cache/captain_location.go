package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	geoKeyPrefix     = "captains:geo:"
	metaKeyPrefix    = "captain:meta:"
	locationTTL      = 5 * time.Minute
	nearbyScanLimit  = 50
)

// LastKnownLocation is the location-feed snapshot for one captain.
type LastKnownLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Heading   float64 `json:"heading,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	UpdatedAt int64   `json:"updated_at"`
}

// NearbyCaptain is a GEO radius hit with its distance from the query point.
type NearbyCaptain struct {
	CaptainID  string
	DistanceKm float64
}

// CaptainLocationCache keeps last-known captain coordinates in Redis GEO
// sets, one set per vehicle type, plus a small meta hash per captain.
type CaptainLocationCache interface {
	UpdateLocation(ctx context.Context, captainID, vehicleType string, lat, lng float64, heading, accuracy *float64) error
	GetLocation(ctx context.Context, captainID string) (*LastKnownLocation, error)
	GetNearby(ctx context.Context, lat, lng, radiusKm float64, vehicleType string) ([]NearbyCaptain, error)
	Remove(ctx context.Context, captainID, vehicleType string) error
	SetMeta(ctx context.Context, captainID, status, vehicleType string) error
	GetMeta(ctx context.Context, captainID string) (map[string]string, error)
}

type captainLocationCache struct {
	redis *redis.Client
}

func NewCaptainLocationCache(redisClient *redis.Client) CaptainLocationCache {
	return &captainLocationCache{redis: redisClient}
}

func (c *captainLocationCache) UpdateLocation(ctx context.Context, captainID, vehicleType string, lat, lng float64, heading, accuracy *float64) error {
	geoKey := geoKeyPrefix + vehicleType
	if err := c.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      captainID,
		Longitude: lng,
		Latitude:  lat,
	}).Err(); err != nil {
		return err
	}

	loc := LastKnownLocation{
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: time.Now().Unix(),
	}
	if heading != nil {
		loc.Heading = *heading
	}
	if accuracy != nil {
		loc.Accuracy = *accuracy
	}

	locJSON, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, locationKey(captainID), locJSON, locationTTL).Err()
}

func (c *captainLocationCache) GetLocation(ctx context.Context, captainID string) (*LastKnownLocation, error) {
	data, err := c.redis.Get(ctx, locationKey(captainID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loc LastKnownLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *captainLocationCache) GetNearby(ctx context.Context, lat, lng, radiusKm float64, vehicleType string) ([]NearbyCaptain, error) {
	geoKey := geoKeyPrefix + vehicleType

	locations, err := c.redis.GeoRadius(ctx, geoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Count:    nearbyScanLimit,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]NearbyCaptain, 0, len(locations))
	for _, loc := range locations {
		result = append(result, NearbyCaptain{
			CaptainID:  loc.Name,
			DistanceKm: loc.Dist,
		})
	}
	return result, nil
}

func (c *captainLocationCache) Remove(ctx context.Context, captainID, vehicleType string) error {
	if err := c.redis.ZRem(ctx, geoKeyPrefix+vehicleType, captainID).Err(); err != nil {
		return err
	}
	return c.redis.Del(ctx, locationKey(captainID)).Err()
}

func (c *captainLocationCache) SetMeta(ctx context.Context, captainID, status, vehicleType string) error {
	return c.redis.HSet(ctx, metaKeyPrefix+captainID, map[string]interface{}{
		"status":       status,
		"vehicle_type": vehicleType,
	}).Err()
}

func (c *captainLocationCache) GetMeta(ctx context.Context, captainID string) (map[string]string, error) {
	return c.redis.HGetAll(ctx, metaKeyPrefix+captainID).Result()
}

func locationKey(captainID string) string {
	return fmt.Sprintf("%s%s:location", metaKeyPrefix, captainID)
}

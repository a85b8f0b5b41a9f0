package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Project-Caravana/telemetry-service/config"
	"github.com/Project-Caravana/telemetry-service/internal/model"
)

// SnapshotCache defines the interface for the latest-snapshot cache. It is a
// read acceleration layer only; the database remains the source of truth.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, vehicleID string) (*model.VehicleSnapshot, error)
	SetSnapshot(ctx context.Context, snapshot *model.VehicleSnapshot) error
	DeleteSnapshot(ctx context.Context, vehicleID string) error
	Close() error
}

// RedisClient implements SnapshotCache using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client. A disabled cache behaves as a
// permanent miss.
func NewRedisClient(cfg *config.RedisConfig) (SnapshotCache, error) {
	if !cfg.Enabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

func snapshotKey(vehicleID string) string {
	return fmt.Sprintf("vehicle_snapshot:%s", vehicleID)
}

// GetSnapshot retrieves a vehicle snapshot from cache
func (c *RedisClient) GetSnapshot(ctx context.Context, vehicleID string) (*model.VehicleSnapshot, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, snapshotKey(vehicleID)).Bytes()
	if err != nil {
		return nil, err
	}

	var snapshot model.VehicleSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// SetSnapshot caches a vehicle snapshot
func (c *RedisClient) SetSnapshot(ctx context.Context, snapshot *model.VehicleSnapshot) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, snapshotKey(snapshot.VehicleID), data, c.ttl).Err()
}

// DeleteSnapshot removes a vehicle snapshot from cache
func (c *RedisClient) DeleteSnapshot(ctx context.Context, vehicleID string) error {
	if !c.enabled {
		return nil
	}

	return c.client.Del(ctx, snapshotKey(vehicleID)).Err()
}

// Close closes the underlying connection
func (c *RedisClient) Close() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}

// IsMiss reports whether an error from GetSnapshot is a cache miss.
func IsMiss(err error) bool {
	return err == redis.Nil
}

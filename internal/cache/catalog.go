// Package cache keeps the read-mostly training catalog in Redis. Entries are
// dropped on every catalog write and otherwise expire after their TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prolean/ProleanBack/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss          = errors.New("cache: key not found")
	ErrCacheConnection    = errors.New("cache: connection failed")
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

const (
	PrefixCatalog = "catalog:"

	DefaultTTL = 5 * time.Minute
)

func ActiveTrainingsKey() string {
	return PrefixCatalog + "trainings:active"
}

func TrainingKey(slug string) string {
	return PrefixCatalog + "training:" + strings.ToLower(strings.TrimSpace(slug))
}

func CitiesKey() string {
	return PrefixCatalog + "cities"
}

type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return client, nil
}

func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

func (c *CatalogCache) GetActiveTrainings(ctx context.Context) ([]models.Training, error) {
	var trainings []models.Training
	if err := c.get(ctx, ActiveTrainingsKey(), &trainings); err != nil {
		return nil, err
	}
	return trainings, nil
}

func (c *CatalogCache) SetActiveTrainings(ctx context.Context, trainings []models.Training) error {
	return c.set(ctx, ActiveTrainingsKey(), trainings)
}

func (c *CatalogCache) GetTraining(ctx context.Context, slug string) (*models.Training, error) {
	var training models.Training
	if err := c.get(ctx, TrainingKey(slug), &training); err != nil {
		return nil, err
	}
	return &training, nil
}

func (c *CatalogCache) SetTraining(ctx context.Context, training *models.Training) error {
	return c.set(ctx, TrainingKey(training.Slug), training)
}

func (c *CatalogCache) GetCities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	if err := c.get(ctx, CitiesKey(), &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

func (c *CatalogCache) SetCities(ctx context.Context, cities []models.City) error {
	return c.set(ctx, CitiesKey(), cities)
}

// InvalidateTrainings drops the active list and the given slugs.
func (c *CatalogCache) InvalidateTrainings(ctx context.Context, slugs ...string) error {
	keys := make([]string, 0, len(slugs)+1)
	keys = append(keys, ActiveTrainingsKey())
	for _, slug := range slugs {
		if strings.TrimSpace(slug) != "" {
			keys = append(keys, TrainingKey(slug))
		}
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CatalogCache) get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

func (c *CatalogCache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ridehail/internal/models"
	"ridehail/pkg/logger"
)

type mapCache struct {
	values map[string][]byte
	sets   int
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.sets++
	return nil
}

func (m *mapCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestCountAvailableDriversIsCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cache := &mapCache{values: map[string][]byte{}}
	discovery := NewDiscoveryService(env.users, env.rides, cache, DiscoveryConfig{}, logger.NewNop())

	env.createDriver(t, "dora", 0, 0)
	n, err := discovery.CountAvailableDrivers(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 driver, got %d (%v)", n, err)
	}

	env.createDriver(t, "dan", 0, 0)
	n, err = discovery.CountAvailableDrivers(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected cached count 1, got %d (%v)", n, err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}
}

func TestFindNearbyDriversClampsRadius(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	discovery := NewDiscoveryService(env.users, env.rides, nil, DiscoveryConfig{}, logger.NewNop())

	near := env.createDriver(t, "near", -49.2560, -16.6790)
	env.createDriver(t, "far", -48.0, -16.6790)

	drivers, err := discovery.FindNearbyDrivers(ctx, models.NewPoint(-49.2567, -16.6799), 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(drivers) != 1 || drivers[0].ID != near.ID {
		t.Fatalf("expected only the near driver, got %+v", drivers)
	}

	_, err = discovery.FindNearbyDrivers(ctx, models.NewPoint(-200, 0), 0)
	requireAppError(t, err, KindValidation, "")
}

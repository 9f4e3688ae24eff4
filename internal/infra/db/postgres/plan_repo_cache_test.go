//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
	red "gym-membership/internal/infra/redis"
)

func TestPlanRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	plan := &model.Plan{ID: "plan-123", Name: "Monthly", Duration: model.DurationMonth, Price: 39000, Status: model.PlanStatusActive}
	planJSON, _ := json.Marshal(plan)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		// Arrange
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(planJSON), nil // Simulate cache hit
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
				innerRepoCalled = true // This should not be called
				return nil, nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, &logger)

		// Act
		result, err := decorator.FindByID(ctx, nil, "plan-123")

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.ID != "plan-123" || result.Price != 39000 {
			t.Error("did not return the correct plan from cache")
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		// Arrange
		var setKey string
		var setTTL time.Duration
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey, setTTL = key, expiration
				return nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
				return plan, nil
			},
		}
		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, &logger)

		// Act
		result, err := decorator.FindByID(ctx, nil, "plan-123")

		// Assert
		if err != nil || result.ID != "plan-123" {
			t.Fatalf("expected plan from inner repo, got %v, %v", result, err)
		}
		if setKey != "plan:plan-123" || setTTL != time.Minute {
			t.Errorf("expected plan:plan-123 cached for 1m, got %q for %v", setKey, setTTL)
		}
	})

	t.Run("FindByID should not cache a missing plan", func(t *testing.T) {
		// Arrange
		cached := false
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cached = true
				return nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, &logger)

		// Act
		_, err := decorator.FindByID(ctx, nil, "nope")

		// Assert
		if err != domain.ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if cached {
			t.Error("a miss must not be cached")
		}
	})

	t.Run("Save should invalidate the plan and both lists", func(t *testing.T) {
		// Arrange
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerPlanRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
				return nil
			},
		}

		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, &logger)

		// Act
		err := decorator.Save(ctx, nil, plan)

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := map[string]bool{"plan:plan-123": true, "plans:all": true, "plans:active": true}
		if len(deletedKeys) != len(want) {
			t.Fatalf("expected %d keys deleted, got %v", len(want), deletedKeys)
		}
		for _, k := range deletedKeys {
			if !want[k] {
				t.Errorf("unexpected key invalidated: %s", k)
			}
		}
	})

	t.Run("ListActive should serve repeated reads from cache", func(t *testing.T) {
		// Arrange
		store := map[string]string{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				v, ok := store[key]
				if !ok {
					return "", red.Nil
				}
				return v, nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				store[key] = string(value.([]byte))
				return nil
			},
		}
		calls := 0
		mockInnerRepo := &mockInnerPlanRepo{
			ListActiveFunc: func(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
				calls++
				return []*model.Plan{plan}, nil
			},
		}
		decorator := NewPlanRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute, &logger)

		// Act
		_, _ = decorator.ListActive(ctx, nil)
		plans, err := decorator.ListActive(ctx, nil)

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected one database read, got %d", calls)
		}
		if len(plans) != 1 || plans[0].ID != "plan-123" {
			t.Errorf("unexpected cached list %+v", plans)
		}
	})
}

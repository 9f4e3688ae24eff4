package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/domain/model"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/metrics"
	red "gym-membership/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const (
	planListAllKey    = "plans:all"
	planListActiveKey = "plans:active"
)

// planRepoCacheDecorator serves plan reads from Redis. Reads inside a
// transaction bypass the cache so row locks still apply.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "PlanCache").Logger()
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func planKey(id string) string { return fmt.Sprintf("plan:%s", id) }

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if inTx(tx) {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := planKey(id)
	var plan model.Plan
	if d.get(ctx, "plan", key, &plan) {
		return &plan, nil
	}
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, p)
	return p, nil
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.list(ctx, tx, planListAllKey, d.inner.ListAll)
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.list(ctx, tx, planListActiveKey, d.inner.ListActive)
}

// For write operations, we must invalidate the cache.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Save(ctx, tx, plan); err != nil {
		return err
	}
	d.invalidate(ctx, plan.ID)
	return nil
}

func (d *planRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.Delete(ctx, tx, id); err != nil {
		return err
	}
	d.invalidate(ctx, id)
	return nil
}

func (d *planRepoCacheDecorator) list(ctx context.Context, tx repository.Tx, key string, load func(context.Context, repository.Tx) ([]*model.Plan, error)) ([]*model.Plan, error) {
	if inTx(tx) {
		return load(ctx, tx)
	}
	var plans []*model.Plan
	if d.get(ctx, "plan_list", key, &plans) {
		return plans, nil
	}
	plans, err := load(ctx, tx)
	if err != nil {
		return nil, err
	}
	d.set(ctx, key, plans)
	return plans, nil
}

func (d *planRepoCacheDecorator) get(ctx context.Context, cacheName, key string, dst interface{}) bool {
	val, err := d.cache.Get(ctx, key)
	if err == nil && json.Unmarshal([]byte(val), dst) == nil {
		metrics.IncCacheRequest(cacheName, "hit")
		return true
	}
	if err != nil && !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
	}
	metrics.IncCacheRequest(cacheName, "miss")
	return false
}

func (d *planRepoCacheDecorator) set(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
	}
}

func (d *planRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, planKey(id), planListAllKey, planListActiveKey); err != nil {
		d.log.Warn().Err(err).Str("plan_id", id).Msg("plan cache invalidation failed")
	}
}

package cache

import (
	"context"
	"fmt"
	"time"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Store is a settlement cache that owns resources
type Store interface {
	appsettlement.Cache
	Close() error
}

// Factory builds the settlement cache from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	cleanupInterval       time.Duration
	connectRedis          func(config.RedisConfig) (*RedisCache, error)
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to memory.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithCleanupInterval sets how often the in-memory cache sweeps expired entries
func WithCleanupInterval(d time.Duration) FactoryOption {
	return func(f *Factory) {
		f.cleanupInterval = d
	}
}

// NewFactory creates a new cache factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		cleanupInterval:       time.Minute,
		connectRedis:          NewRedisCache,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis cache when a host is configured, otherwise an in-memory cache.
// A configured but unreachable Redis falls back to memory unless fallback is disabled.
func (f *Factory) Create() (Store, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory settlement cache")
		return NewMemoryCache(f.cleanupInterval), nil
	}

	store, err := f.connectRedis(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis settlement cache", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for the settlement cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory settlement cache. "+
		"Instances will not share invalidations.",
		zap.String("addr", f.redisConfig.Addr()),
		zap.Error(err),
	)
	return NewMemoryCache(f.cleanupInterval), nil
}

// HealthCheck pings the store when it supports it
func HealthCheck(ctx context.Context, store Store) error {
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

package sessionx

import (
	"context"

	"go.uber.org/zap"
)

// Open wires a Controller from cfg: the storage backend, the HTTP auth client
// and the expiry policy. Close the returned Store when done.
func Open(ctx context.Context, cfg Config, log *zap.Logger, metrics *Metrics, opts ...ControllerOption) (*Controller, *Store, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log = orNop(log)

	policy, err := NewPolicy(cfg.Policy)
	if err != nil {
		return nil, nil, err
	}
	backend, err := OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	store := NewStore(backend, WithStoreLogger(log), WithStoreMetrics(metrics))

	base := []ControllerOption{
		WithLogger(log),
		WithMetrics(metrics),
		WithPolicy(policy),
		WithRoutes(cfg.Routes),
		WithTokenKey(cfg.Store.TokenKey),
	}
	ctrl := NewController(NewAuthClient(cfg.API), store, append(base, opts...)...)
	log.Debug("session controller ready",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("api", cfg.API.BaseURL),
	)
	return ctrl, store, nil
}

// internal/platform/di/mall/container.go
package mall

import (
	"context"
	"errors"
	"log"

	usecase "thriftmall/internal/application/usecase"
	"thriftmall/internal/infra/metrics"
	shared "thriftmall/internal/platform/di/shared"
)

// Container is Mall DI container.
// Pure DI: build deps only. No routing branching, no reflection tricks.
type Container struct {
	Infra   *shared.Infra
	Stores  *shared.Stores
	Metrics *metrics.Metrics

	// Usecases (mall-facing)
	LimiterUC *usecase.UserActionLimiter
	CartUC    *usecase.CartUsecase
}

// NewContainer builds the mall container on top of inf.
// Infra ownership stays with the caller only until NewContainer succeeds;
// afterwards Container.Close closes it.
func NewContainer(ctx context.Context, inf *shared.Infra) (*Container, error) {
	if inf == nil {
		return nil, errors.New("di.mall: infra is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stores, err := shared.NewStores(inf)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	limiter := usecase.NewUserActionLimiter(stores.Usage, stores.Profiles, m)
	if stores.Archive != nil {
		limiter.SetArchive(stores.Archive)
	}

	c := &Container{
		Infra:     inf,
		Stores:    stores,
		Metrics:   m,
		LimiterUC: limiter,
		CartUC:    usecase.NewCartUsecase(stores.Carts, m),
	}
	log.Printf("[di.mall] container ready backend=%s cartThrottle=%+v", inf.Settings.Backend, inf.Settings.CartThrottle)
	return c, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return c.Infra.Close()
}

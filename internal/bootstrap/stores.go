// Package bootstrap opens the stores shared by the API server and the operator CLI.
package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/persistence"
	"github.com/citydesk/emergency-portal/internal/repository"
	"github.com/citydesk/emergency-portal/internal/repository/memory"
)

// Stores are the repositories backing one process. Postgres and Redis are nil when
// the in-memory implementations are in use.
type Stores struct {
	Postgres *persistence.Postgres
	Redis    *persistence.Redis

	Services      repository.ServiceRepository
	Roles         repository.RoleRepository
	Staff         repository.StaffRepository
	Tickets       repository.TicketRepository
	Actions       repository.TicketActionRepository
	DeletionQueue repository.DeletionQueue
}

// OpenStores connects to PostgreSQL when a DSN is configured and to Redis for the
// deletion queue. Without a DSN everything lives in memory; an unreachable Redis falls
// back to an in-memory queue, leaving restarts to the deletion worker's reconcile sweep.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}

	if !pg.Enabled() {
		store := memory.NewStore()
		return &Stores{
			Services:      store.Services(),
			Roles:         store.Roles(),
			Staff:         store.Staff(),
			Tickets:       store.Tickets(),
			Actions:       store.Actions(),
			DeletionQueue: store.DeletionQueue(),
		}, nil
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	pool := pg.PoolHandle()
	stores := &Stores{
		Postgres: pg,
		Services: repository.NewServiceRepository(pool),
		Roles:    repository.NewRoleRepository(pool),
		Staff:    repository.NewStaffRepository(pool),
		Tickets:  repository.NewTicketRepository(pool),
		Actions:  repository.NewTicketActionRepository(pool),
	}

	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable; pending deletions will not survive a restart",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		stores.DeletionQueue = memory.NewStore().DeletionQueue()
		return stores, nil
	}
	stores.Redis = rdb
	stores.DeletionQueue = repository.NewRedisDeletionQueue(rdb.Client, cfg.Redis.DeletionQueueKey)
	return stores, nil
}

// Close releases connections.
func (s *Stores) Close() {
	s.Redis.Close()
	s.Postgres.Close()
}

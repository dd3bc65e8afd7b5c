package memory

import (
	"context"

	"go.uber.org/zap"

	"prdigest/server/internal/agent"
)

// Store is a conversation store the server can health-check and close.
type Store interface {
	agent.Store
	HealthCheck(ctx context.Context) error
	Close()
}

// Open returns the Postgres store for dsn, or an in-memory store when dsn is
// empty.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (Store, error) {
	if dsn == "" {
		return NewInMemory(), nil
	}
	return OpenPostgres(ctx, dsn, logger)
}

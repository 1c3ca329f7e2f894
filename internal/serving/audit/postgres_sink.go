// Package audit implements the Model Manager's AuditSink as a durable
// PostgreSQL insert, grounded on the platform's pgxpool connection-pool
// conventions: the sink is handed an already-open *pgxpool.Pool (built by
// postgres.NewConnectionPool) and never manages the pool's lifecycle itself.
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
)

const insertTransitionSQL = `
INSERT INTO model_lifecycle_audit (model_name, version, from_state, to_state, error_code, recorded_at)
VALUES ($1, $2, $3, $4, $5, now())`

// PostgresSink durably records every committed lifecycle transition for
// compliance queries.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresSink builds a PostgresSink over an already-open connection pool.
func NewPostgresSink(pool *pgxpool.Pool, logger logging.Logger) *PostgresSink {
	return &PostgresSink{pool: pool, logger: logger}
}

// Record implements manager.AuditSink. A failed insert is logged, not
// returned — like EventSink, the manager invokes this fire-and-forget and
// a lost audit row must never roll back the transition itself.
func (s *PostgresSink) Record(ctx context.Context, evt manager.TransitionEvent) {
	_, err := s.pool.Exec(ctx, insertTransitionSQL,
		evt.ModelName, evt.Version, evt.From.String(), evt.To.String(), evt.Code.String())
	if err != nil {
		s.logger.Error("audit: failed to record transition",
			logging.String("model", evt.ModelName), logging.Int64("version", evt.Version), logging.Err(err))
		return
	}
	s.logger.Debug("audit: recorded transition",
		logging.String("model", evt.ModelName), logging.Int64("version", evt.Version), logging.String("to", evt.To.String()))
}

var _ manager.AuditSink = (*PostgresSink)(nil)

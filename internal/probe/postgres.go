package probe

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"monitoring-service/internal/models"
)

// PostgresProbe pings a database through the native driver, the same way
// the sink connection does. A fresh connection per check keeps the probe
// stateless and catches auth and pool-exhaustion failures a bare TCP
// check would miss.
type PostgresProbe struct{}

func (p *PostgresProbe) Check(ctx context.Context, target models.Target) models.ProbeResult {
	start := time.Now()

	conn, err := pgx.Connect(ctx, target.DSN)
	if err != nil {
		return failure(target, start, err)
	}
	defer conn.Close(ctx)

	if err := conn.Ping(ctx); err != nil {
		return failure(target, start, err)
	}
	return success(target, start)
}

// v1
// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

var _ ReadingStore = (*PostgresStore)(nil)

// PostgresStore persists readings in a telemetry_readings table indexed by
// (device_id, observed_at). Scans stream rows instead of materializing the
// result set, so aggregation stays single-pass even for large windows.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
	skew  time.Duration
}

// NewPostgresStore wraps an open database handle. clock may be nil to use
// time.Now.
func NewPostgresStore(db *sql.DB, clock func() time.Time, skew time.Duration) *PostgresStore {
	if clock == nil {
		clock = time.Now
	}
	return &PostgresStore{db: db, clock: clock, skew: skew}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS telemetry_readings (
	id          BIGSERIAL PRIMARY KEY,
	device_id   TEXT NOT NULL,
	power_watts DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_readings_device_observed
	ON telemetry_readings (device_id, observed_at);
`

// EnsureSchema creates the readings table and its composite index when they
// do not exist yet.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure telemetry schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Record(ctx context.Context, r core.Reading) error {
	if err := core.ValidateReading(r, p.clock(), p.skew); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO telemetry_readings (device_id, power_watts, observed_at) VALUES ($1, $2, $3)`,
		r.DeviceID, r.PowerWatts, r.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (p *PostgresStore) Scan(ctx context.Context, deviceIDs []string, w core.Window, fn func(core.Reading) error) error {
	if len(deviceIDs) == 0 {
		return nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT device_id, power_watts, observed_at
		 FROM telemetry_readings
		 WHERE device_id = ANY($1) AND observed_at >= $2 AND observed_at < $3
		 ORDER BY observed_at ASC`,
		pq.Array(deviceIDs), w.Start, w.End,
	)
	if err != nil {
		return fmt.Errorf("query readings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var r core.Reading
		if err := rows.Scan(&r.DeviceID, &r.PowerWatts, &r.ObservedAt); err != nil {
			return fmt.Errorf("scan reading row: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate readings: %w", err)
	}
	return nil
}

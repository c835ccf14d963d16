// v1
// internal/store/store.go
package store

import (
	"context"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

// ReadingStore is the pluggable append-only storage behind the aggregation
// core. The in-memory implementation backs tests and standalone runs; the
// Postgres implementation backs production deployments.
type ReadingStore interface {
	// Record appends a reading after validation. It fails with
	// core.ErrInvalidReading for negative power or timestamps beyond the
	// configured clock-skew tolerance. Appends are atomic: a concurrent Scan
	// never observes a partially written reading.
	Record(ctx context.Context, r core.Reading) error

	// Scan streams every reading whose device id is in deviceIDs and whose
	// observation time falls inside the half-open window, ordered by
	// observation time ascending. fn returning an error aborts the scan and
	// propagates that error; a context deadline aborts it with the context's
	// error. An empty device set matches nothing.
	Scan(ctx context.Context, deviceIDs []string, w core.Window, fn func(core.Reading) error) error
}

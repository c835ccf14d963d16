// v1
// internal/store/postgres_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

func TestPostgresStoreRecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	s := NewPostgresStore(db, fixedClock, 2*time.Minute)
	r := core.Reading{DeviceID: "d1", PowerWatts: 42.5, ObservedAt: base}

	mock.ExpectExec("INSERT INTO telemetry_readings").
		WithArgs(r.DeviceID, r.PowerWatts, r.ObservedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Record(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRecordValidatesBeforeTouchingDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	s := NewPostgresStore(db, fixedClock, 0)
	err = s.Record(context.Background(), core.Reading{DeviceID: "d1", PowerWatts: -1, ObservedAt: base})
	require.ErrorIs(t, err, core.ErrInvalidReading)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreScanStreamsRowsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	s := NewPostgresStore(db, fixedClock, 0)
	w := testWindow(t, base, base.Add(time.Hour))

	rows := sqlmock.NewRows([]string{"device_id", "power_watts", "observed_at"}).
		AddRow("d1", 100.0, base.Add(time.Minute)).
		AddRow("d2", 200.0, base.Add(2*time.Minute))
	mock.ExpectQuery("SELECT device_id, power_watts, observed_at").
		WithArgs(pq.Array([]string{"d1", "d2"}), w.Start, w.End).
		WillReturnRows(rows)

	got := collect(t, s, []string{"d1", "d2"}, w)
	require.Len(t, got, 2)
	require.Equal(t, "d1", got[0].DeviceID)
	require.Equal(t, 200.0, got[1].PowerWatts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreScanEmptyScopeSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	s := NewPostgresStore(db, fixedClock, 0)
	require.NoError(t, s.Scan(context.Background(), nil, testWindow(t, base, base.Add(time.Hour)), func(core.Reading) error {
		t.Fatal("no rows expected")
		return nil
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "fleet.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.sql":    {Data: []byte("SELECT 1;")},
		"002_second.sql":  {Data: []byte("SELECT 1;")},
		"001_initial.sql": {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial", migrations[0].Name)
	assert.Equal(t, 10, migrations[2].Version)
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"bad name", fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}}},
		{"duplicate version", fstest.MapFS{
			"001_a.sql": {Data: []byte("SELECT 1;")},
			"1_b.sql":   {Data: []byte("SELECT 1;")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_EmbeddedSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db, zap.NewNop()))
	require.NoError(t, Migrate(db, zap.NewNop()))

	applied, err := NewMigrator(db, zap.NewNop()).Applied()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	for _, table := range []string{"drivers", "vehicles", "user_links", "shifts", "deliveries", "delivery_photos", "vehicle_reports"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrate_OneOpenShiftPerDriver(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db, zap.NewNop()))

	_, err := db.Exec(`INSERT INTO vehicles (model, license_plate, created_at, updated_at) VALUES ('Van', 'A123BC77', datetime('now'), datetime('now'))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO drivers (name, phone, created_at, updated_at) VALUES ('Ann', '+79990000000', datetime('now'), datetime('now'))`)
	require.NoError(t, err)

	open := `INSERT INTO shifts (driver_id, vehicle_id, started_at, start_photo, mileage_start) VALUES (1, 1, datetime('now'), 'img', 10)`
	_, err = db.Exec(open)
	require.NoError(t, err)
	_, err = db.Exec(open)
	assert.Error(t, err)

	_, err = db.Exec(`UPDATE shifts SET ended_at = datetime('now')`)
	require.NoError(t, err)
	_, err = db.Exec(open)
	assert.NoError(t, err)
}

func TestInTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE notes (body TEXT NOT NULL)`)
	require.NoError(t, err)

	insert := func(body string) func(*sql.Tx) error {
		return func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO notes (body) VALUES (?)`, body)
			return err
		}
	}
	count := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n))
		return n
	}

	require.NoError(t, db.InTx(ctx, insert("kept")))
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = db.InTx(ctx, func(tx *sql.Tx) error {
		require.NoError(t, insert("dropped")(tx))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	assert.Panics(t, func() {
		_ = db.InTx(ctx, func(tx *sql.Tx) error {
			require.NoError(t, insert("dropped")(tx))
			panic("boom")
		})
	})
	assert.Equal(t, 1, count())
}

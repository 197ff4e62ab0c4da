package service

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fleetbot/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// keyTexts renders "key" or "key{a=1,b=2}" so tests can assert on parameters
type keyTexts struct{}

func (keyTexts) Text(key string, params map[string]string) string {
	if len(params) == 0 {
		return key
	}
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return key + "{" + strings.Join(pairs, ",") + "}"
}

func setupRepos(t *testing.T) CommandRepositories {
	t.Helper()
	logger := zap.NewNop()
	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "fleet.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.Migrate(raw, logger))

	return CommandRepositories{
		Drivers:    repository.NewDriverRepository(raw.DB, logger),
		Vehicles:   repository.NewVehicleRepository(raw.DB, logger),
		Shifts:     repository.NewShiftRepository(raw.DB, logger),
		Deliveries: repository.NewDeliveryRepository(raw.DB, logger),
		Reports:    repository.NewReportRepository(raw.DB, logger),
		Links:      repository.NewUserLinkRepository(raw.DB, logger),
		Stats:      repository.NewStatsRepository(raw.DB, logger),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

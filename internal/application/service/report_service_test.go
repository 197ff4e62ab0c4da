package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/fleetbot/internal/domain/entity"
)

func TestReportService_ExportShifts(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	d, v := seedDriver(t, repos)
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	closed := &entity.Shift{DriverID: d.ID, VehicleID: v.ID, StartedAt: now.Add(-10 * time.Hour), MileageStart: 1000}
	require.NoError(t, repos.Shifts.Open(ctx, closed))
	require.NoError(t, repos.Shifts.Close(ctx, entity.ShiftClose{
		ShiftID: closed.ID, EndedAt: now.Add(-8 * time.Hour), MileageEnd: 1120, Condition: entity.ConditionGood,
	}))
	open := &entity.Shift{DriverID: d.ID, VehicleID: v.ID, StartedAt: now.Add(-time.Hour), MileageStart: 1120}
	require.NoError(t, repos.Shifts.Open(ctx, open))

	svc := NewReportService(repos.Drivers, repos.Vehicles, repos.Shifts, repos.Stats, fixedClock(now), nopLogger{})

	var buf bytes.Buffer
	n, err := svc.ExportShifts(ctx, now.Add(-24*time.Hour), now, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(shiftSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Driver", rows[0][1])
	assert.Equal(t, []string{
		"1", "Ann", "+79991234567", "A123BC77", "2026-03-02 08:00", "2026-03-02 10:00",
		"120", "1000", "1120", "120", "good",
	}, rows[1])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "60", rows[2][6])

	distance, err := f.GetCellValue(summarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "120", distance)
}

func TestReportService_ExportRejectsEmptyRange(t *testing.T) {
	repos := setupRepos(t)
	svc := NewReportService(repos.Drivers, repos.Vehicles, repos.Shifts, repos.Stats, nil, nopLogger{})

	now := time.Now()
	var buf bytes.Buffer
	_, err := svc.ExportShifts(context.Background(), now, now, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestReportService_Stats(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	d, v := seedDriver(t, repos)
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Shifts.Open(ctx, &entity.Shift{DriverID: d.ID, VehicleID: v.ID, StartedAt: now.Add(-time.Hour)}))

	svc := NewReportService(repos.Drivers, repos.Vehicles, repos.Shifts, repos.Stats, fixedClock(now), nopLogger{})

	stats, err := svc.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Drivers)
	assert.Equal(t, 1, stats.ActiveShifts)
	assert.Equal(t, 1, stats.ShiftsToday)

	ds, err := svc.DriverStats(ctx, d.ID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, ds.Shifts)
}

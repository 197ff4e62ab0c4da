package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
)

// StatsRepository implements port.StatsRepository
type StatsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatsRepository creates a new statistics repository
func NewStatsRepository(db *sql.DB, logger *zap.Logger) port.StatsRepository {
	return &StatsRepository{
		db:     db,
		logger: logger,
	}
}

// SystemStats counts fleet-wide totals; "today" starts at dayStart
func (r *StatsRepository) SystemStats(ctx context.Context, dayStart time.Time) (*entity.SystemStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM drivers),
			(SELECT COUNT(*) FROM vehicles),
			(SELECT COUNT(*) FROM vehicles WHERE status = 'needs_repair'),
			(SELECT COUNT(*) FROM shifts WHERE ended_at IS NULL),
			(SELECT COUNT(*) FROM shifts WHERE started_at >= ?),
			(SELECT COALESCE(SUM(mileage_end - mileage_start), 0) FROM shifts
				WHERE ended_at >= ? AND mileage_end IS NOT NULL)
	`

	exec := executor(ctx, r.db)
	dayStart = dayStart.UTC()
	stats := &entity.SystemStats{Deliveries: make(map[string]int)}
	err := exec.QueryRowContext(ctx, query, dayStart, dayStart).Scan(
		&stats.Drivers,
		&stats.Vehicles,
		&stats.VehiclesNeedRepair,
		&stats.ActiveShifts,
		&stats.ShiftsToday,
		&stats.DistanceToday,
	)
	if err != nil {
		r.logger.Error("Failed to query system stats", zap.Error(err))
		return nil, fmt.Errorf("failed to query system stats: %w", sqlite.Translate(err))
	}

	rows, err := exec.QueryContext(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to query delivery stats", zap.Error(err))
		return nil, fmt.Errorf("failed to query delivery stats: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan delivery stats: %w", err)
		}
		stats.Deliveries[status] = n
	}
	return stats, rows.Err()
}

// DriverStats summarizes the driver's shifts and deliveries since a point in time
func (r *StatsRepository) DriverStats(ctx context.Context, driverID int64, since time.Time) (*entity.DriverStats, error) {
	exec := executor(ctx, r.db)
	since = since.UTC()
	stats := &entity.DriverStats{DriverID: driverID}

	rows, err := exec.QueryContext(ctx, `
		SELECT started_at, ended_at, mileage_start, mileage_end
		FROM shifts
		WHERE driver_id = ? AND started_at >= ? AND ended_at IS NOT NULL
	`, driverID, since)
	if err != nil {
		r.logger.Error("Failed to query driver shifts",
			zap.Int64("driver_id", driverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query driver stats: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		var s entity.Shift
		var endedAt sql.NullTime
		var mileageEnd sql.NullInt64
		if err := rows.Scan(&s.StartedAt, &endedAt, &s.MileageStart, &mileageEnd); err != nil {
			return nil, fmt.Errorf("failed to scan driver shift: %w", err)
		}
		s.EndedAt = timePtr(endedAt)
		s.MileageEnd = int64Ptr(mileageEnd)

		stats.Shifts++
		stats.TotalDistance += s.Distance()
		stats.TotalMinutes += int64(s.Duration(since).Minutes())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = exec.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM deliveries WHERE driver_id = ? AND status = 'delivered' AND finished_at >= ?),
			(SELECT COUNT(*) FROM deliveries WHERE driver_id = ? AND status IN ('pending', 'in_progress'))
	`, driverID, since, driverID).Scan(&stats.DeliveriesDone, &stats.DeliveriesOpen)
	if err != nil {
		r.logger.Error("Failed to query driver deliveries",
			zap.Int64("driver_id", driverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query driver stats: %w", sqlite.Translate(err))
	}
	return stats, nil
}

// VehicleStats counts the vehicle's reports per type and its closed shifts
func (r *StatsRepository) VehicleStats(ctx context.Context, vehicleID int64) (*entity.VehicleStats, error) {
	exec := executor(ctx, r.db)
	stats := &entity.VehicleStats{VehicleID: vehicleID, Reports: make(map[string]int)}

	rows, err := exec.QueryContext(ctx, `
		SELECT report_type, COUNT(*)
		FROM vehicle_reports
		WHERE vehicle_id = ?
		GROUP BY report_type
	`, vehicleID)
	if err != nil {
		r.logger.Error("Failed to query vehicle reports",
			zap.Int64("vehicle_id", vehicleID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query vehicle stats: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	for rows.Next() {
		var reportType string
		var n int
		if err := rows.Scan(&reportType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle stats: %w", err)
		}
		stats.Reports[reportType] = n
		stats.TotalReports += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = exec.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(mileage_end - mileage_start), 0)
		FROM shifts
		WHERE vehicle_id = ? AND ended_at IS NOT NULL AND mileage_end IS NOT NULL
	`, vehicleID).Scan(&stats.Shifts, &stats.TotalDistance)
	if err != nil {
		r.logger.Error("Failed to query vehicle shifts",
			zap.Int64("vehicle_id", vehicleID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query vehicle stats: %w", sqlite.Translate(err))
	}
	return stats, nil
}

// Verify interface compliance
var _ port.StatsRepository = (*StatsRepository)(nil)

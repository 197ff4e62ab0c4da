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

// ReportRepository implements port.ReportRepository
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new vehicle report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a parking, fuel or damage report
func (r *ReportRepository) Create(ctx context.Context, report *entity.VehicleReport) error {
	query := `
		INSERT INTO vehicle_reports (vehicle_id, driver_id, report_type, photo_key, fuel_level, fuel_band, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		report.VehicleID,
		report.DriverID,
		report.ReportType,
		nullString(report.PhotoKey),
		nullInt(report.FuelLevel),
		nullString(report.FuelBand),
		nullString(report.Description),
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create vehicle report",
			zap.Int64("vehicle_id", report.VehicleID),
			zap.String("report_type", report.ReportType),
			zap.Error(err))
		return fmt.Errorf("failed to create vehicle report: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	report.ID = id
	report.CreatedAt = now
	return nil
}

// ListByVehicle returns the vehicle's most recent reports, newest first
func (r *ReportRepository) ListByVehicle(ctx context.Context, vehicleID int64, limit int) ([]*entity.VehicleReport, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, vehicle_id, driver_id, report_type, photo_key, fuel_level, fuel_band, description, created_at
		FROM vehicle_reports
		WHERE vehicle_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, vehicleID, limit)
	if err != nil {
		r.logger.Error("Failed to list vehicle reports",
			zap.Int64("vehicle_id", vehicleID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list vehicle reports: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	var reports []*entity.VehicleReport
	for rows.Next() {
		var rep entity.VehicleReport
		var photo, band, description sql.NullString
		var fuel sql.NullInt64
		err := rows.Scan(
			&rep.ID,
			&rep.VehicleID,
			&rep.DriverID,
			&rep.ReportType,
			&photo,
			&fuel,
			&band,
			&description,
			&rep.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle report: %w", err)
		}
		rep.PhotoKey = photo.String
		rep.FuelLevel = intPtr(fuel)
		rep.FuelBand = band.String
		rep.Description = description.String
		reports = append(reports, &rep)
	}
	return reports, rows.Err()
}

// Verify interface compliance
var _ port.ReportRepository = (*ReportRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
)

const vehicleColumns = `id, model, license_plate, status, condition, mileage, fuel_level, last_shift_end, created_at, updated_at`

// VehicleRepository implements port.VehicleRepository
type VehicleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *sql.DB, logger *zap.Logger) port.VehicleRepository {
	return &VehicleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a vehicle. A taken plate yields *port.ConstraintError.
func (r *VehicleRepository) Create(ctx context.Context, vehicle *entity.Vehicle) error {
	query := `
		INSERT INTO vehicles (model, license_plate, status, condition, mileage, fuel_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if vehicle.Status == "" {
		vehicle.Status = entity.VehicleStatusActive
	}
	now := time.Now().UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		vehicle.Model,
		vehicle.LicensePlate,
		vehicle.Status,
		nullString(vehicle.Condition),
		vehicle.Mileage,
		nullInt(vehicle.FuelLevel),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create vehicle",
			zap.String("license_plate", vehicle.LicensePlate),
			zap.Error(err))
		return fmt.Errorf("failed to create vehicle: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	vehicle.ID = id
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	return nil
}

// GetByID retrieves a vehicle by ID
func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*entity.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`

	v, err := scanVehicle(executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehicle by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get vehicle: %w", sqlite.Translate(err))
	}
	return v, nil
}

// GetByPlate retrieves a vehicle by normalized license plate
func (r *VehicleRepository) GetByPlate(ctx context.Context, plate string) (*entity.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE license_plate = ?`

	v, err := scanVehicle(executor(ctx, r.db).QueryRowContext(ctx, query, plate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehicle by plate",
			zap.String("license_plate", plate),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get vehicle: %w", sqlite.Translate(err))
	}
	return v, nil
}

// UpdateFuel stores the latest reported fuel level
func (r *VehicleRepository) UpdateFuel(ctx context.Context, id int64, level int) error {
	query := `UPDATE vehicles SET fuel_level = ?, updated_at = ? WHERE id = ?`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, level, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update fuel level",
			zap.Int64("vehicle_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to update fuel level: %w", sqlite.Translate(err))
	}
	return requireRow(result, "vehicle", id)
}

// UpdateStatus sets the vehicle status
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE vehicles SET status = ?, updated_at = ? WHERE id = ?`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update vehicle status",
			zap.Int64("vehicle_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update vehicle status: %w", sqlite.Translate(err))
	}
	return requireRow(result, "vehicle", id)
}

// RecordShiftEnd stores mileage and condition from a closed shift. A
// needs_repair condition also flags the vehicle status.
func (r *VehicleRepository) RecordShiftEnd(ctx context.Context, id int64, mileage int64, condition string, at time.Time) error {
	query := `
		UPDATE vehicles
		SET mileage = ?, condition = ?, last_shift_end = ?, updated_at = ?,
			status = CASE WHEN ? = 'needs_repair' THEN 'needs_repair' ELSE status END
		WHERE id = ?
	`

	at = at.UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query, mileage, condition, at, at, condition, id)
	if err != nil {
		r.logger.Error("Failed to record shift end",
			zap.Int64("vehicle_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to record shift end: %w", sqlite.Translate(err))
	}
	return requireRow(result, "vehicle", id)
}

// List returns all vehicles ordered by plate
func (r *VehicleRepository) List(ctx context.Context) ([]*entity.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY license_plate`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list vehicles", zap.Error(err))
		return nil, fmt.Errorf("failed to list vehicles: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	var vehicles []*entity.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func scanVehicle(row scanner) (*entity.Vehicle, error) {
	var v entity.Vehicle
	var condition sql.NullString
	var fuel sql.NullInt64
	var lastShiftEnd sql.NullTime
	err := row.Scan(
		&v.ID,
		&v.Model,
		&v.LicensePlate,
		&v.Status,
		&condition,
		&v.Mileage,
		&fuel,
		&lastShiftEnd,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Condition = condition.String
	v.FuelLevel = intPtr(fuel)
	v.LastShiftEnd = timePtr(lastShiftEnd)
	return &v, nil
}

// Verify interface compliance
var _ port.VehicleRepository = (*VehicleRepository)(nil)

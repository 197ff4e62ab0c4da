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
	"github.com/garyjia/fleetbot/internal/domain/workflow"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
)

const driverColumns = `id, name, phone, vehicle_id, created_at, updated_at`

// DriverRepository implements port.DriverRepository
type DriverRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db *sql.DB, logger *zap.Logger) port.DriverRepository {
	return &DriverRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a driver. A taken phone or vehicle yields *port.ConstraintError.
func (r *DriverRepository) Create(ctx context.Context, driver *entity.Driver) error {
	query := `
		INSERT INTO drivers (name, phone, vehicle_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		driver.Name,
		driver.Phone,
		nullInt64(driver.VehicleID),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create driver",
			zap.String("phone", driver.Phone),
			zap.Error(err))
		return fmt.Errorf("failed to create driver: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	driver.ID = id
	driver.CreatedAt = now
	driver.UpdatedAt = now
	return nil
}

// GetByID retrieves a driver by ID
func (r *DriverRepository) GetByID(ctx context.Context, id int64) (*entity.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = ?`

	driver, err := scanDriver(executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get driver by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get driver: %w", sqlite.Translate(err))
	}
	return driver, nil
}

// GetByPhone retrieves a driver by normalized phone
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*entity.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE phone = ?`

	driver, err := scanDriver(executor(ctx, r.db).QueryRowContext(ctx, query, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get driver by phone",
			zap.String("phone", phone),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get driver: %w", sqlite.Translate(err))
	}
	return driver, nil
}

// AssignVehicle sets the driver's vehicle. A vehicle already held by another
// driver yields *port.ConstraintError on drivers.vehicle_id.
func (r *DriverRepository) AssignVehicle(ctx context.Context, driverID, vehicleID int64) error {
	query := `UPDATE drivers SET vehicle_id = ?, updated_at = ? WHERE id = ?`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, vehicleID, time.Now().UTC(), driverID)
	if err != nil {
		r.logger.Error("Failed to assign vehicle",
			zap.Int64("driver_id", driverID),
			zap.Int64("vehicle_id", vehicleID),
			zap.Error(err))
		return fmt.Errorf("failed to assign vehicle: %w", sqlite.Translate(err))
	}
	return requireRow(result, "driver", driverID)
}

// List returns all drivers ordered by name
func (r *DriverRepository) List(ctx context.Context) ([]*entity.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers ORDER BY name, id`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list drivers", zap.Error(err))
		return nil, fmt.Errorf("failed to list drivers: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	var drivers []*entity.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func scanDriver(row scanner) (*entity.Driver, error) {
	var d entity.Driver
	var vehicleID sql.NullInt64
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &vehicleID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.VehicleID = int64Ptr(vehicleID)
	return &d, nil
}

// requireRow turns a zero-row guarded update into workflow.ErrNotFound
func requireRow(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, workflow.ErrNotFound)
	}
	return nil
}

// Verify interface compliance
var _ port.DriverRepository = (*DriverRepository)(nil)

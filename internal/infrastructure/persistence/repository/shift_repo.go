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

const shiftColumns = `id, driver_id, vehicle_id, started_at, ended_at, start_photo, end_photo,
	mileage_start, mileage_end, condition, reminded_at`

// ShiftRepository implements port.ShiftRepository
type ShiftRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewShiftRepository creates a new shift repository
func NewShiftRepository(db *sql.DB, logger *zap.Logger) port.ShiftRepository {
	return &ShiftRepository{
		db:     db,
		logger: logger,
	}
}

// Open inserts a new shift. A second open shift for the same driver yields
// *port.ConstraintError on shifts.driver_id.
func (r *ShiftRepository) Open(ctx context.Context, shift *entity.Shift) error {
	query := `
		INSERT INTO shifts (driver_id, vehicle_id, started_at, start_photo, mileage_start)
		VALUES (?, ?, ?, ?, ?)
	`

	if shift.StartedAt.IsZero() {
		shift.StartedAt = time.Now()
	}
	shift.StartedAt = shift.StartedAt.UTC()

	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		shift.DriverID,
		shift.VehicleID,
		shift.StartedAt,
		shift.StartPhoto,
		shift.MileageStart,
	)
	if err != nil {
		r.logger.Error("Failed to open shift",
			zap.Int64("driver_id", shift.DriverID),
			zap.Error(err))
		return fmt.Errorf("failed to open shift: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	shift.ID = id
	return nil
}

// GetByID retrieves a shift by ID
func (r *ShiftRepository) GetByID(ctx context.Context, id int64) (*entity.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetActive retrieves the driver's open shift
func (r *ShiftRepository) GetActive(ctx context.Context, driverID int64) (*entity.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE driver_id = ? AND ended_at IS NULL`
	return r.getOne(ctx, query, driverID)
}

func (r *ShiftRepository) getOne(ctx context.Context, query string, arg int64) (*entity.Shift, error) {
	shift, err := scanShift(executor(ctx, r.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get shift",
			zap.Int64("key", arg),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get shift: %w", sqlite.Translate(err))
	}
	return shift, nil
}

// Close ends an open shift; a shift that is already closed is not found
func (r *ShiftRepository) Close(ctx context.Context, c entity.ShiftClose) error {
	query := `
		UPDATE shifts
		SET ended_at = ?, end_photo = ?, mileage_end = ?, condition = ?
		WHERE id = ? AND ended_at IS NULL
	`

	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		c.EndedAt.UTC(),
		c.EndPhoto,
		c.MileageEnd,
		c.Condition,
		c.ShiftID,
	)
	if err != nil {
		r.logger.Error("Failed to close shift",
			zap.Int64("shift_id", c.ShiftID),
			zap.Error(err))
		return fmt.Errorf("failed to close shift: %w", sqlite.Translate(err))
	}
	return requireRow(result, "open shift", c.ShiftID)
}

// ListByDriver returns the driver's most recent shifts, newest first
func (r *ShiftRepository) ListByDriver(ctx context.Context, driverID int64, limit int) ([]*entity.Shift, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE driver_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, driverID, limit)
}

// ListBetween returns shifts started in [from, to), oldest first
func (r *ShiftRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*entity.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE started_at >= ? AND started_at < ? ORDER BY started_at, id`
	return r.list(ctx, query, from.UTC(), to.UTC())
}

// ListOverdue returns open shifts started before the cutoff that have not been reminded
func (r *ShiftRepository) ListOverdue(ctx context.Context, startedBefore time.Time) ([]*entity.Shift, error) {
	query := `
		SELECT ` + shiftColumns + ` FROM shifts
		WHERE ended_at IS NULL AND reminded_at IS NULL AND started_at < ?
		ORDER BY started_at
	`
	return r.list(ctx, query, startedBefore.UTC())
}

// MarkReminded records that the driver was reminded about an open shift
func (r *ShiftRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE shifts SET reminded_at = ? WHERE id = ?`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark shift reminded",
			zap.Int64("shift_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark shift reminded: %w", sqlite.Translate(err))
	}
	return requireRow(result, "shift", id)
}

func (r *ShiftRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Shift, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list shifts", zap.Error(err))
		return nil, fmt.Errorf("failed to list shifts: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	var shifts []*entity.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func scanShift(row scanner) (*entity.Shift, error) {
	var s entity.Shift
	var endedAt, remindedAt sql.NullTime
	var endPhoto, condition sql.NullString
	var mileageEnd sql.NullInt64
	err := row.Scan(
		&s.ID,
		&s.DriverID,
		&s.VehicleID,
		&s.StartedAt,
		&endedAt,
		&s.StartPhoto,
		&endPhoto,
		&s.MileageStart,
		&mileageEnd,
		&condition,
		&remindedAt,
	)
	if err != nil {
		return nil, err
	}
	s.EndedAt = timePtr(endedAt)
	s.EndPhoto = endPhoto.String
	s.MileageEnd = int64Ptr(mileageEnd)
	s.Condition = condition.String
	s.RemindedAt = timePtr(remindedAt)
	return &s, nil
}

// Verify interface compliance
var _ port.ShiftRepository = (*ShiftRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/infrastructure/persistence/sqlite"
)

const deliveryColumns = `id, driver_id, shift_id, address, recipient, status, reason,
	scheduled_for, started_at, finished_at, created_at, updated_at`

// DeliveryRepository implements port.DeliveryRepository
type DeliveryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *sql.DB, logger *zap.Logger) port.DeliveryRepository {
	return &DeliveryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending delivery
func (r *DeliveryRepository) Create(ctx context.Context, d *entity.Delivery) error {
	query := `
		INSERT INTO deliveries (driver_id, address, recipient, status, scheduled_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if d.Status == "" {
		d.Status = entity.DeliveryStatusPending
	}
	now := time.Now().UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		d.DriverID,
		d.Address,
		nullString(d.Recipient),
		d.Status,
		nullTime(d.ScheduledFor),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create delivery",
			zap.Int64("driver_id", d.DriverID),
			zap.Error(err))
		return fmt.Errorf("failed to create delivery: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// GetByID retrieves a delivery by ID
func (r *DeliveryRepository) GetByID(ctx context.Context, id int64) (*entity.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = ?`

	d, err := scanDelivery(executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get delivery by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get delivery: %w", sqlite.Translate(err))
	}
	return d, nil
}

// ListByDriver returns the driver's deliveries in the given statuses (all
// statuses when none are given), scheduled ones first
func (r *DeliveryRepository) ListByDriver(ctx context.Context, driverID int64, statuses ...string) ([]*entity.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE driver_id = ?`
	args := []interface{}{driverID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY scheduled_for IS NULL, scheduled_for, id`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list deliveries",
			zap.Int64("driver_id", driverID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list deliveries: %w", sqlite.Translate(err))
	}
	defer rows.Close()

	var deliveries []*entity.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// Start moves a pending delivery to in_progress within a shift
func (r *DeliveryRepository) Start(ctx context.Context, id, shiftID int64, at time.Time) error {
	query := `
		UPDATE deliveries
		SET status = ?, shift_id = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	at = at.UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		entity.DeliveryStatusInProgress, shiftID, at, at, id, entity.DeliveryStatusPending)
	if err != nil {
		r.logger.Error("Failed to start delivery",
			zap.Int64("delivery_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to start delivery: %w", sqlite.Translate(err))
	}
	return requireRow(result, "pending delivery", id)
}

// Finish moves an in_progress delivery to a final status
func (r *DeliveryRepository) Finish(ctx context.Context, id int64, status, reason string, at time.Time) error {
	if !entity.IsFinalDeliveryStatus(status) {
		return fmt.Errorf("delivery status %q is not final", status)
	}
	query := `
		UPDATE deliveries
		SET status = ?, reason = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	at = at.UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		status, nullString(reason), at, at, id, entity.DeliveryStatusInProgress)
	if err != nil {
		r.logger.Error("Failed to finish delivery",
			zap.Int64("delivery_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to finish delivery: %w", sqlite.Translate(err))
	}
	return requireRow(result, "delivery in progress", id)
}

// AddPhoto stores a departure or proof photo key
func (r *DeliveryRepository) AddPhoto(ctx context.Context, photo *entity.DeliveryPhoto) error {
	query := `INSERT INTO delivery_photos (delivery_id, kind, photo_key, created_at) VALUES (?, ?, ?, ?)`

	now := time.Now().UTC()
	result, err := executor(ctx, r.db).ExecContext(ctx, query, photo.DeliveryID, photo.Kind, photo.PhotoKey, now)
	if err != nil {
		r.logger.Error("Failed to add delivery photo",
			zap.Int64("delivery_id", photo.DeliveryID),
			zap.Error(err))
		return fmt.Errorf("failed to add delivery photo: %w", sqlite.Translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	photo.ID = id
	photo.CreatedAt = now
	return nil
}

func scanDelivery(row scanner) (*entity.Delivery, error) {
	var d entity.Delivery
	var shiftID sql.NullInt64
	var recipient, reason sql.NullString
	var scheduledFor, startedAt, finishedAt sql.NullTime
	err := row.Scan(
		&d.ID,
		&d.DriverID,
		&shiftID,
		&d.Address,
		&recipient,
		&d.Status,
		&reason,
		&scheduledFor,
		&startedAt,
		&finishedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ShiftID = int64Ptr(shiftID)
	d.Recipient = recipient.String
	d.Reason = reason.String
	d.ScheduledFor = timePtr(scheduledFor)
	d.StartedAt = timePtr(startedAt)
	d.FinishedAt = timePtr(finishedAt)
	return &d, nil
}

// Verify interface compliance
var _ port.DeliveryRepository = (*DeliveryRepository)(nil)

package port

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

// DriverRepository defines persistence operations for Driver.
// Getters return nil, nil when the record does not exist.
type DriverRepository interface {
	Create(ctx context.Context, driver *entity.Driver) error
	GetByID(ctx context.Context, id int64) (*entity.Driver, error)
	GetByPhone(ctx context.Context, phone string) (*entity.Driver, error)
	AssignVehicle(ctx context.Context, driverID, vehicleID int64) error
	List(ctx context.Context) ([]*entity.Driver, error)
}

// VehicleRepository defines persistence operations for Vehicle
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *entity.Vehicle) error
	GetByID(ctx context.Context, id int64) (*entity.Vehicle, error)
	GetByPlate(ctx context.Context, plate string) (*entity.Vehicle, error)
	UpdateFuel(ctx context.Context, id int64, level int) error
	UpdateStatus(ctx context.Context, id int64, status string) error

	// RecordShiftEnd stores the mileage and condition reported when a shift closed
	RecordShiftEnd(ctx context.Context, id int64, mileage int64, condition string, at time.Time) error

	List(ctx context.Context) ([]*entity.Vehicle, error)
}

// ShiftRepository defines persistence operations for Shift
type ShiftRepository interface {
	Open(ctx context.Context, shift *entity.Shift) error
	GetByID(ctx context.Context, id int64) (*entity.Shift, error)
	GetActive(ctx context.Context, driverID int64) (*entity.Shift, error)

	// Close ends an open shift. Returns ErrNotFound if the shift is not open.
	Close(ctx context.Context, c entity.ShiftClose) error

	ListByDriver(ctx context.Context, driverID int64, limit int) ([]*entity.Shift, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*entity.Shift, error)

	// ListOverdue returns open shifts started before the cutoff that were not reminded yet
	ListOverdue(ctx context.Context, startedBefore time.Time) ([]*entity.Shift, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) error
}

// DeliveryRepository defines persistence operations for Delivery
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *entity.Delivery) error
	GetByID(ctx context.Context, id int64) (*entity.Delivery, error)
	ListByDriver(ctx context.Context, driverID int64, statuses ...string) ([]*entity.Delivery, error)

	// Start moves a pending delivery to in_progress. Returns ErrNotFound otherwise.
	Start(ctx context.Context, id, shiftID int64, at time.Time) error

	// Finish moves an in_progress delivery to a final status. Returns ErrNotFound otherwise.
	Finish(ctx context.Context, id int64, status, reason string, at time.Time) error

	AddPhoto(ctx context.Context, photo *entity.DeliveryPhoto) error
}

// ReportRepository defines persistence operations for VehicleReport
type ReportRepository interface {
	Create(ctx context.Context, report *entity.VehicleReport) error
	ListByVehicle(ctx context.Context, vehicleID int64, limit int) ([]*entity.VehicleReport, error)
}

// UserLinkRepository maps chat identities to drivers
type UserLinkRepository interface {
	Link(ctx context.Context, link *entity.UserLink) error
	GetByUserID(ctx context.Context, userID string) (*entity.UserLink, error)
	GetByDriverID(ctx context.Context, driverID int64) (*entity.UserLink, error)
	Unlink(ctx context.Context, userID string) error
}

// StatsRepository computes aggregate statistics
type StatsRepository interface {
	SystemStats(ctx context.Context, dayStart time.Time) (*entity.SystemStats, error)
	DriverStats(ctx context.Context, driverID int64, since time.Time) (*entity.DriverStats, error)
	VehicleStats(ctx context.Context, vehicleID int64) (*entity.VehicleStats, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ConstraintError reports a violated uniqueness constraint.
// It matches workflow.ErrDuplicate with errors.Is.
type ConstraintError struct {
	Table  string
	Column string
	Err    error
}

// Error implements error
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("unique constraint on %s.%s: %v", e.Table, e.Column, e.Err)
}

// Unwrap returns the driver error
func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Is reports whether target is workflow.ErrDuplicate
func (e *ConstraintError) Is(target error) bool {
	return target == workflow.ErrDuplicate
}

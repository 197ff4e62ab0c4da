package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// errRollback undoes a transaction whose commit produced a non-committed result
var errRollback = errors.New("rollback")

type commitFunc func(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error)

// transactional runs fn inside one transaction. Store errors are classified
// with workflow.FromError using columns and notFound; a non-committed result
// returned without error rolls back and is passed through.
func (c *Catalog) transactional(fn commitFunc, columns map[string]string, notFound string) workflow.Finalizer {
	return workflow.FinalizerFunc(func(ctx context.Context, req workflow.CommitRequest) workflow.CommitResult {
		var result workflow.CommitResult
		err := c.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			res, err := fn(ctx, req)
			if err != nil {
				return err
			}
			result = res
			if res.Kind != workflow.CommitCommitted {
				return errRollback
			}
			return nil
		})

		switch {
		case err == nil, errors.Is(err, errRollback):
			if result.Kind != workflow.CommitCommitted {
				c.logger.Info("Commit refused",
					zap.String("flow_id", req.FlowID.String()),
					zap.String("user_id", req.UserID),
					zap.String("kind", result.Kind.String()),
					zap.String("reason", result.Reason))
			}
			return result
		default:
			res := workflow.FromError(err, columns, notFound)
			c.logger.Error("Commit failed",
				zap.String("flow_id", req.FlowID.String()),
				zap.String("user_id", req.UserID),
				zap.String("kind", res.Kind.String()),
				zap.Error(err))
			return res
		}
	})
}

func seedIDs(req workflow.CommitRequest) (driverID, vehicleID int64, err error) {
	driverID, err = req.Seed.Int(domainwf.SeedDriverID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}
	vehicleID, err = req.Seed.Int(domainwf.SeedVehicleID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}
	return driverID, vehicleID, nil
}

func (c *Catalog) commitDriverLogin(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	phone := req.Fields["phone"]
	driver, err := c.store.Drivers.GetByPhone(ctx, phone)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if driver == nil {
		return workflow.NotFound(ReasonDriverNotFound), nil
	}

	if err := c.store.Links.Link(ctx, &entity.UserLink{UserID: req.UserID, DriverID: driver.ID}); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(driver.ID, map[string]string{"name": driver.Name}), nil
}

func (c *Catalog) commitOpenShift(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driverID, vehicleID, err := seedIDs(req)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	mileage, err := req.Fields.Int("mileage_start")
	if err != nil {
		return workflow.CommitResult{}, err
	}

	shift := &entity.Shift{
		DriverID:     driverID,
		VehicleID:    vehicleID,
		StartedAt:    req.Now,
		StartPhoto:   req.Fields["start_photo"],
		MileageStart: mileage,
	}
	if err := c.store.Shifts.Open(ctx, shift); err != nil {
		var ce *port.ConstraintError
		if errors.As(err, &ce) && ce.Table == "shifts" {
			// another shift was opened since the flow started
			return workflow.NotFound(ReasonShiftActive), nil
		}
		return workflow.CommitResult{}, err
	}

	return workflow.Committed(shift.ID, map[string]string{
		"mileage_start": strconv.FormatInt(mileage, 10),
		"started_at":    req.Now.Format("15:04"),
	}), nil
}

func (c *Catalog) commitCloseShift(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	shiftID, err := req.Seed.Int(SeedShiftID)
	if err != nil {
		return workflow.CommitResult{}, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}
	shift, err := c.store.Shifts.GetByID(ctx, shiftID)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if shift == nil || !shift.IsOpen() {
		return workflow.NotFound(ReasonNoActiveShift), nil
	}

	mileageEnd, err := req.Fields.Int("mileage_end")
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if mileageEnd <= shift.MileageStart {
		return workflow.Invalid("mileage_end", validator.ReasonMustExceedPrevious.String()), nil
	}

	closing := entity.ShiftClose{
		ShiftID:    shift.ID,
		EndedAt:    req.Now,
		EndPhoto:   req.Fields["end_photo"],
		MileageEnd: mileageEnd,
		Condition:  req.Fields["condition"],
	}
	if err := c.store.Shifts.Close(ctx, closing); err != nil {
		return workflow.CommitResult{}, err
	}
	if err := c.store.Vehicles.RecordShiftEnd(ctx, shift.VehicleID, mileageEnd, closing.Condition, req.Now); err != nil {
		return workflow.CommitResult{}, err
	}

	shift.EndedAt = &closing.EndedAt
	shift.MileageEnd = &mileageEnd
	return workflow.Committed(shift.ID, map[string]string{
		"duration":  formatDuration(shift.Duration(req.Now)),
		"distance":  strconv.FormatInt(shift.Distance(), 10),
		"condition": closing.Condition,
	}), nil
}

// ownDelivery loads the picked delivery and checks it belongs to the driver
func (c *Catalog) ownDelivery(ctx context.Context, req workflow.CommitRequest) (*entity.Delivery, error) {
	driverID, err := req.Seed.Int(domainwf.SeedDriverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}
	deliveryID, err := req.Fields.Int("delivery_id")
	if err != nil {
		return nil, err
	}
	d, err := c.store.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d == nil || d.DriverID != driverID {
		return nil, fmt.Errorf("delivery %d: %w", deliveryID, domainwf.ErrNotFound)
	}
	return d, nil
}

func (c *Catalog) commitStartDelivery(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	d, err := c.ownDelivery(ctx, req)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	shiftID, err := req.Seed.Int(SeedShiftID)
	if err != nil {
		return workflow.CommitResult{}, fmt.Errorf("%w: %v", domainwf.ErrNotFound, err)
	}

	if err := c.store.Deliveries.Start(ctx, d.ID, shiftID, req.Now); err != nil {
		return workflow.CommitResult{}, err
	}
	photo := &entity.DeliveryPhoto{DeliveryID: d.ID, Kind: entity.PhotoKindDeparture, PhotoKey: req.Fields["departure_photo"]}
	if err := c.store.Deliveries.AddPhoto(ctx, photo); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(d.ID, map[string]string{"delivery": d.Label()}), nil
}

func (c *Catalog) commitDeliveryStatus(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	d, err := c.ownDelivery(ctx, req)
	if err != nil {
		return workflow.CommitResult{}, err
	}

	status := req.Fields["status"]
	if err := c.store.Deliveries.Finish(ctx, d.ID, status, req.Fields["reason"], req.Now); err != nil {
		return workflow.CommitResult{}, err
	}
	if key := req.Fields["proof_photo"]; key != "" {
		photo := &entity.DeliveryPhoto{DeliveryID: d.ID, Kind: entity.PhotoKindProof, PhotoKey: key}
		if err := c.store.Deliveries.AddPhoto(ctx, photo); err != nil {
			return workflow.CommitResult{}, err
		}
	}
	return workflow.Committed(d.ID, map[string]string{"delivery": d.Label(), "status": status}), nil
}

func (c *Catalog) commitFuelReport(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driverID, vehicleID, err := seedIDs(req)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	level64, err := req.Fields.Int("fuel_level")
	if err != nil {
		return workflow.CommitResult{}, err
	}
	level := int(level64)

	report := &entity.VehicleReport{
		VehicleID:  vehicleID,
		DriverID:   driverID,
		ReportType: entity.ReportTypeFuel,
		FuelLevel:  &level,
		FuelBand:   entity.FuelBand(level),
	}
	if err := c.store.Reports.Create(ctx, report); err != nil {
		return workflow.CommitResult{}, err
	}
	if err := c.store.Vehicles.UpdateFuel(ctx, vehicleID, level); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(report.ID, map[string]string{
		"fuel_level": strconv.Itoa(level),
		"band":       report.FuelBand,
	}), nil
}

func (c *Catalog) commitParkingReport(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driverID, vehicleID, err := seedIDs(req)
	if err != nil {
		return workflow.CommitResult{}, err
	}

	report := &entity.VehicleReport{
		VehicleID:  vehicleID,
		DriverID:   driverID,
		ReportType: entity.ReportTypeParking,
		PhotoKey:   req.Fields["parking_photo"],
	}
	if err := c.store.Reports.Create(ctx, report); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(report.ID, nil), nil
}

func (c *Catalog) commitDamageReport(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driverID, vehicleID, err := seedIDs(req)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	vehicle, err := c.store.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if vehicle == nil {
		return workflow.NotFound(ReasonNoVehicle), nil
	}

	report := &entity.VehicleReport{
		VehicleID:   vehicleID,
		DriverID:    driverID,
		ReportType:  entity.ReportTypeDamage,
		Description: req.Fields["description"],
	}
	if err := c.store.Reports.Create(ctx, report); err != nil {
		return workflow.CommitResult{}, err
	}
	if err := c.store.Vehicles.UpdateStatus(ctx, vehicleID, entity.VehicleStatusNeedsRepair); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(report.ID, map[string]string{
		"plate":  vehicle.LicensePlate,
		"driver": req.Seed[domainwf.SeedName],
	}), nil
}

// commitPreTrip records the checklist. A reported problem takes the vehicle
// out of service until repaired.
func (c *Catalog) commitPreTrip(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driverID, vehicleID, err := seedIDs(req)
	if err != nil {
		return workflow.CommitResult{}, err
	}

	result := req.Fields["checklist"]
	report := &entity.VehicleReport{
		VehicleID:   vehicleID,
		DriverID:    driverID,
		ReportType:  entity.ReportTypePreTrip,
		Description: req.Fields["issue"],
	}
	if err := c.store.Reports.Create(ctx, report); err != nil {
		return workflow.CommitResult{}, err
	}
	if result == entity.PreTripProblem {
		if err := c.store.Vehicles.UpdateStatus(ctx, vehicleID, entity.VehicleStatusNeedsRepair); err != nil {
			return workflow.CommitResult{}, err
		}
	}
	return workflow.Committed(report.ID, map[string]string{"result": result}), nil
}

func (c *Catalog) commitAddDriver(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driver := &entity.Driver{Name: req.Fields["name"], Phone: req.Fields["phone"]}
	if err := c.store.Drivers.Create(ctx, driver); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(driver.ID, map[string]string{"name": driver.Name, "phone": driver.Phone}), nil
}

func (c *Catalog) commitAddVehicle(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	vehicle := &entity.Vehicle{Model: req.Fields["model"], LicensePlate: req.Fields["plate"]}
	if err := c.store.Vehicles.Create(ctx, vehicle); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(vehicle.ID, map[string]string{"model": vehicle.Model, "plate": vehicle.LicensePlate}), nil
}

func (c *Catalog) commitAssignVehicle(ctx context.Context, req workflow.CommitRequest) (workflow.CommitResult, error) {
	driver, err := c.store.Drivers.GetByPhone(ctx, req.Fields["phone"])
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if driver == nil {
		return workflow.NotFound(ReasonDriverNotFound), nil
	}
	vehicle, err := c.store.Vehicles.GetByPlate(ctx, req.Fields["plate"])
	if err != nil {
		return workflow.CommitResult{}, err
	}
	if vehicle == nil {
		return workflow.NotFound(ReasonVehicleNotFound), nil
	}

	if err := c.store.Drivers.AssignVehicle(ctx, driver.ID, vehicle.ID); err != nil {
		return workflow.CommitResult{}, err
	}
	return workflow.Committed(driver.ID, map[string]string{"name": driver.Name, "plate": vehicle.LicensePlate}), nil
}

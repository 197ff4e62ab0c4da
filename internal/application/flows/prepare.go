package flows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

func driverID(seed domainwf.Fields) (int64, error) {
	id, err := seed.Int(domainwf.SeedDriverID)
	if err != nil || id <= 0 {
		return 0, domainwf.Refuse(ReasonLoginRequired)
	}
	return id, nil
}

func requireVehicle(_ context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
	if _, err := driverID(seed); err != nil {
		return nil, err
	}
	if id, err := seed.Int(domainwf.SeedVehicleID); err != nil || id <= 0 {
		return nil, domainwf.Refuse(ReasonNoVehicle)
	}
	return seed, nil
}

func (c *Catalog) prepareOpenShift(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
	seed, err := requireVehicle(ctx, seed)
	if err != nil {
		return nil, err
	}
	id, _ := driverID(seed)

	active, err := c.store.Shifts.GetActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check active shift: %w", err)
	}
	if active != nil {
		return nil, domainwf.BusyWith(ReasonShiftActive)
	}
	return seed, nil
}

func (c *Catalog) prepareCloseShift(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
	active, err := c.activeShift(ctx, seed)
	if err != nil {
		return nil, err
	}
	seed[SeedShiftID] = strconv.FormatInt(active.ID, 10)
	seed[SeedMileageStart] = strconv.FormatInt(active.MileageStart, 10)
	return seed, nil
}

func (c *Catalog) prepareStartDelivery(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
	active, err := c.activeShift(ctx, seed)
	if err != nil {
		return nil, err
	}
	id, _ := driverID(seed)

	pending, err := c.store.Deliveries.ListByDriver(ctx, id, entity.DeliveryStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deliveries: %w", err)
	}
	if len(pending) == 0 {
		return nil, domainwf.Refuse(ReasonNoPendingDeliveries)
	}

	seed[SeedShiftID] = strconv.FormatInt(active.ID, 10)
	seed[SeedCandidates] = candidates(pending)
	return seed, nil
}

func (c *Catalog) prepareDeliveryStatus(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
	id, err := driverID(seed)
	if err != nil {
		return nil, err
	}

	started, err := c.store.Deliveries.ListByDriver(ctx, id, entity.DeliveryStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries in progress: %w", err)
	}
	if len(started) == 0 {
		return nil, domainwf.Refuse(ReasonNoActiveDeliveries)
	}

	seed[SeedCandidates] = candidates(started)
	return seed, nil
}

func (c *Catalog) activeShift(ctx context.Context, seed domainwf.Fields) (*entity.Shift, error) {
	id, err := driverID(seed)
	if err != nil {
		return nil, err
	}
	active, err := c.store.Shifts.GetActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check active shift: %w", err)
	}
	if active == nil {
		return nil, domainwf.Refuse(ReasonNoActiveShift)
	}
	return active, nil
}

func candidates(deliveries []*entity.Delivery) string {
	opts := make([]validator.Option, 0, len(deliveries))
	for _, d := range deliveries {
		opts = append(opts, validator.Opt(strconv.FormatInt(d.ID, 10), d.Label()))
	}
	return validator.EncodeOptions(opts)
}

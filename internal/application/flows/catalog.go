package flows

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Flow identifiers
const (
	DriverLogin    domainwf.FlowID = "driver_login"
	OpenShift      domainwf.FlowID = "open_shift"
	CloseShift     domainwf.FlowID = "close_shift"
	StartDelivery  domainwf.FlowID = "start_delivery"
	DeliveryStatus domainwf.FlowID = "delivery_status"
	FuelReport     domainwf.FlowID = "fuel_report"
	ParkingReport  domainwf.FlowID = "parking_report"
	DamageReport   domainwf.FlowID = "damage_report"
	PreTrip        domainwf.FlowID = "pre_trip"
	AddDriver      domainwf.FlowID = "add_driver"
	AddVehicle     domainwf.FlowID = "add_vehicle"
	AssignVehicle  domainwf.FlowID = "assign_vehicle"
)

// Seed keys filled by prepare hooks
const (
	SeedShiftID      = "shift_id"
	SeedMileageStart = "mileage_start"
	SeedCandidates   = "candidates"
)

// Refusal and abort reasons, rendered as message keys
const (
	ReasonLoginRequired       = "login_required"
	ReasonShiftActive         = "shift_active"
	ReasonNoActiveShift       = "no_active_shift"
	ReasonNoVehicle           = "no_vehicle"
	ReasonNoPendingDeliveries = "no_pending_deliveries"
	ReasonNoActiveDeliveries  = "no_active_deliveries"
	ReasonDeliveryUnavailable = "delivery_unavailable"
	ReasonDriverNotFound      = "driver_not_found"
	ReasonVehicleNotFound     = "vehicle_not_found"
)

// MaxMileage bounds odometer readings
const MaxMileage = 9999999

// Store groups the repositories the flows commit through
type Store struct {
	Drivers    port.DriverRepository
	Vehicles   port.VehicleRepository
	Shifts     port.ShiftRepository
	Deliveries port.DeliveryRepository
	Reports    port.ReportRepository
	Links      port.UserLinkRepository
	Tx         port.TransactionManager
}

func (s Store) validate() error {
	if s.Drivers == nil || s.Vehicles == nil || s.Shifts == nil || s.Deliveries == nil ||
		s.Reports == nil || s.Links == nil || s.Tx == nil {
		return errors.New("flows: incomplete store")
	}
	return nil
}

// Catalog defines every chat flow of the bot together with its prepare hook,
// finalizer and trigger phrases
type Catalog struct {
	store  Store
	logger *zap.Logger
}

// Option configures the catalog
type Option func(*Catalog)

// WithLogger sets the catalog logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog creates the flow catalog over store
func NewCatalog(store Store, opts ...Option) (*Catalog, error) {
	if err := store.validate(); err != nil {
		return nil, err
	}
	c := &Catalog{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func conditionOptions() *validator.ChoiceValidator {
	return validator.OneOf(
		validator.Opt(entity.ConditionExcellent, "Excellent"),
		validator.Opt(entity.ConditionGood, "Good"),
		validator.Opt(entity.ConditionSatisfactory, "Satisfactory"),
		validator.Opt(entity.ConditionNeedsRepair, "Needs repair"),
	)
}

func deliveryStatusOptions() *validator.ChoiceValidator {
	return validator.OneOf(
		validator.Opt(entity.DeliveryStatusDelivered, "Delivered"),
		validator.Opt(entity.DeliveryStatusFailed, "Failed"),
		validator.Opt(entity.DeliveryStatusRescheduled, "Rescheduled"),
		validator.Opt(entity.DeliveryStatusCancelled, "Cancelled"),
	)
}

func preTripOptions() *validator.ChoiceValidator {
	return validator.OneOf(
		validator.Opt(entity.PreTripPassed, "All checked, ready to go"),
		validator.Opt(entity.PreTripProblem, "Found a problem"),
	)
}

func confirmOptions() *validator.ChoiceValidator {
	return validator.OneOf(
		validator.Opt("yes", "Yes"),
		validator.Opt("no", "No, pick another"),
	)
}

// Registry builds the immutable flow registry
func (c *Catalog) Registry() (*domainwf.Registry, error) {
	b := domainwf.NewBuilder()

	b.Flow(DriverLogin).
		Step("phone", "phone", validator.Phone())

	b.Flow(OpenShift).
		Prepare(c.prepareOpenShift).
		Step("start_photo", "start_photo", validator.Photo()).
		Step("mileage_start", "mileage_start", validator.Integer(0, MaxMileage))

	b.Flow(CloseShift).
		Prepare(c.prepareCloseShift).
		Step("end_photo", "end_photo", validator.Photo()).
		Step("mileage_end", "mileage_end", validator.Integer(0, MaxMileage).Above(SeedMileageStart)).
		Step("condition", "condition", conditionOptions())

	b.Flow(StartDelivery).
		Prepare(c.prepareStartDelivery).
		Step("delivery", "delivery_id", validator.Pick(SeedCandidates)).
		Step("confirm", "confirm", confirmOptions()).
		Branch("yes", "departure_photo").
		Branch("no", "delivery").
		Step("departure_photo", "departure_photo", validator.Photo())

	b.Flow(DeliveryStatus).
		Prepare(c.prepareDeliveryStatus).
		Step("delivery", "delivery_id", validator.Pick(SeedCandidates)).
		Step("status", "status", deliveryStatusOptions()).
		Branch(entity.DeliveryStatusDelivered, "proof_photo").
		Otherwise("reason").
		Step("proof_photo", "proof_photo", validator.Photo()).Then(domainwf.Terminal).
		Step("reason", "reason", validator.MinLength(5))

	b.Flow(FuelReport).
		Prepare(requireVehicle).
		Step("fuel_level", "fuel_level", validator.Percentage())

	b.Flow(ParkingReport).
		Prepare(requireVehicle).
		Step("parking_photo", "parking_photo", validator.Photo())

	b.Flow(DamageReport).
		Prepare(requireVehicle).
		Step("description", "description", validator.MinLength(10))

	b.Flow(PreTrip).
		Prepare(requireVehicle).
		Step("checklist", "checklist", preTripOptions()).
		Branch(entity.PreTripPassed, domainwf.Terminal).
		Branch(entity.PreTripProblem, "issue").
		Step("issue", "issue", validator.MinLength(10))

	b.Flow(AddDriver).
		Step("name", "name", validator.MinLength(2)).
		Step("phone", "phone", validator.Phone())

	b.Flow(AddVehicle).
		Step("model", "model", validator.MinLength(2)).
		Step("plate", "plate", validator.Plate())

	b.Flow(AssignVehicle).
		Step("phone", "phone", validator.Phone()).
		Step("plate", "plate", validator.Plate())

	return b.Build()
}

// Finalizers returns the commit boundary of every flow
func (c *Catalog) Finalizers() map[domainwf.FlowID]workflow.Finalizer {
	return map[domainwf.FlowID]workflow.Finalizer{
		DriverLogin:    c.transactional(c.commitDriverLogin, map[string]string{"user_links.driver_id": "phone"}, ReasonDriverNotFound),
		OpenShift:      c.transactional(c.commitOpenShift, nil, ReasonNoVehicle),
		CloseShift:     c.transactional(c.commitCloseShift, nil, ReasonNoActiveShift),
		StartDelivery:  c.transactional(c.commitStartDelivery, nil, ReasonDeliveryUnavailable),
		DeliveryStatus: c.transactional(c.commitDeliveryStatus, nil, ReasonDeliveryUnavailable),
		FuelReport:     c.transactional(c.commitFuelReport, nil, ReasonNoVehicle),
		ParkingReport:  c.transactional(c.commitParkingReport, nil, ReasonNoVehicle),
		DamageReport:   c.transactional(c.commitDamageReport, nil, ReasonNoVehicle),
		PreTrip:        c.transactional(c.commitPreTrip, nil, ReasonNoVehicle),
		AddDriver:      c.transactional(c.commitAddDriver, map[string]string{"drivers.phone": "phone"}, ReasonDriverNotFound),
		AddVehicle:     c.transactional(c.commitAddVehicle, map[string]string{"vehicles.license_plate": "plate"}, ReasonVehicleNotFound),
		AssignVehicle:  c.transactional(c.commitAssignVehicle, map[string]string{"drivers.vehicle_id": "plate"}, ReasonDriverNotFound),
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh %02dm", int64(d/time.Hour), int64((d%time.Hour)/time.Minute))
}

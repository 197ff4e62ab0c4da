package entity

// Role constants for an Actor
const (
	RoleGuest  = "guest"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// Delivery status constants
const (
	DeliveryStatusPending     = "pending"
	DeliveryStatusInProgress  = "in_progress"
	DeliveryStatusDelivered   = "delivered"
	DeliveryStatusFailed      = "failed"
	DeliveryStatusRescheduled = "rescheduled"
	DeliveryStatusCancelled   = "cancelled"
)

// Vehicle condition constants reported when a shift closes
const (
	ConditionExcellent    = "excellent"
	ConditionGood         = "good"
	ConditionSatisfactory = "satisfactory"
	ConditionNeedsRepair  = "needs_repair"
)

// Vehicle status constants
const (
	VehicleStatusActive      = "active"
	VehicleStatusNeedsRepair = "needs_repair"
	VehicleStatusInactive    = "inactive"
)

// Report type constants for VehicleReport
const (
	ReportTypeParking = "parking"
	ReportTypeFuel    = "fuel"
	ReportTypeDamage  = "damage"
	ReportTypePreTrip = "pre_trip_inspection"
)

// Answers to the pre-trip checklist
const (
	PreTripPassed  = "passed"
	PreTripProblem = "problem"
)

// Delivery photo kinds
const (
	PhotoKindDeparture = "departure"
	PhotoKindProof     = "proof"
)

// Fuel band constants
const (
	FuelExcellent = "excellent"
	FuelGood      = "good"
	FuelLow       = "low"
	FuelCritical  = "critical"
)

// FuelBand classifies a fuel level percentage
func FuelBand(level int) string {
	switch {
	case level >= 75:
		return FuelExcellent
	case level >= 50:
		return FuelGood
	case level >= 25:
		return FuelLow
	default:
		return FuelCritical
	}
}

// IsFinalDeliveryStatus returns true if a delivery in this status can no longer change
func IsFinalDeliveryStatus(status string) bool {
	switch status {
	case DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusRescheduled, DeliveryStatusCancelled:
		return true
	}
	return false
}

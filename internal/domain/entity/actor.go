package entity

import "strconv"

// Actor is the resolved identity behind an inbound chat message
type Actor struct {
	UserID    string
	Role      string
	DriverID  int64
	VehicleID int64
	Name      string
}

// IsAdmin returns true for fleet administrators
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsDriver returns true for linked drivers
func (a Actor) IsDriver() bool {
	return a.Role == RoleDriver
}

// HasVehicle returns true if the driver has an assigned vehicle
func (a Actor) HasVehicle() bool {
	return a.VehicleID > 0
}

// Seed returns the values every flow started by this actor begins with
func (a Actor) Seed() map[string]string {
	seed := map[string]string{
		"user_id": a.UserID,
		"role":    a.Role,
	}
	if a.Name != "" {
		seed["name"] = a.Name
	}
	if a.DriverID > 0 {
		seed["driver_id"] = strconv.FormatInt(a.DriverID, 10)
	}
	if a.VehicleID > 0 {
		seed["vehicle_id"] = strconv.FormatInt(a.VehicleID, 10)
	}
	return seed
}

package entity

import "time"

// Driver is a field employee allowed to run driver flows
type Driver struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	VehicleID *int64    `json:"vehicle_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasVehicle returns true if a vehicle is assigned
func (d *Driver) HasVehicle() bool {
	return d.VehicleID != nil
}

// UserLink binds an external chat identity to a driver
type UserLink struct {
	UserID    string    `json:"user_id"`
	DriverID  int64     `json:"driver_id"`
	CreatedAt time.Time `json:"created_at"`
}

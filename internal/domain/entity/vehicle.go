package entity

import "time"

// Vehicle is a fleet vehicle
type Vehicle struct {
	ID           int64      `json:"id"`
	Model        string     `json:"model"`
	LicensePlate string     `json:"license_plate"`
	Status       string     `json:"status"`
	Condition    string     `json:"condition,omitempty"`
	Mileage      int64      `json:"mileage"`
	FuelLevel    *int       `json:"fuel_level,omitempty"`
	LastShiftEnd *time.Time `json:"last_shift_end,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// VehicleReport is a parking, fuel or damage report filed by a driver
type VehicleReport struct {
	ID          int64     `json:"id"`
	VehicleID   int64     `json:"vehicle_id"`
	DriverID    int64     `json:"driver_id"`
	ReportType  string    `json:"report_type"`
	PhotoKey    string    `json:"photo_key,omitempty"`
	FuelLevel   *int      `json:"fuel_level,omitempty"`
	FuelBand    string    `json:"fuel_band,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

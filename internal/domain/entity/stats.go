package entity

// SystemStats aggregates fleet-wide counters for admins
type SystemStats struct {
	Drivers            int            `json:"drivers"`
	Vehicles           int            `json:"vehicles"`
	VehiclesNeedRepair int            `json:"vehicles_need_repair"`
	ActiveShifts       int            `json:"active_shifts"`
	ShiftsToday        int            `json:"shifts_today"`
	DistanceToday      int64          `json:"distance_today"`
	Deliveries         map[string]int `json:"deliveries"`
}

// DriverStats summarizes one driver's recent activity
type DriverStats struct {
	DriverID       int64 `json:"driver_id"`
	Shifts         int   `json:"shifts"`
	TotalDistance  int64 `json:"total_distance"`
	TotalMinutes   int64 `json:"total_minutes"`
	DeliveriesDone int   `json:"deliveries_done"`
	DeliveriesOpen int   `json:"deliveries_open"`
}

// VehicleStats summarizes the reports and shifts logged against one vehicle
type VehicleStats struct {
	VehicleID     int64          `json:"vehicle_id"`
	TotalReports  int            `json:"total_reports"`
	Reports       map[string]int `json:"reports"`
	Shifts        int            `json:"shifts"`
	TotalDistance int64          `json:"total_distance"`
}

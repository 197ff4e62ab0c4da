package entity

import "time"

// Shift is one working period of a driver with a vehicle
type Shift struct {
	ID           int64      `json:"id"`
	DriverID     int64      `json:"driver_id"`
	VehicleID    int64      `json:"vehicle_id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	StartPhoto   string     `json:"start_photo"`
	EndPhoto     string     `json:"end_photo,omitempty"`
	MileageStart int64      `json:"mileage_start"`
	MileageEnd   *int64     `json:"mileage_end,omitempty"`
	Condition    string     `json:"condition,omitempty"`
	RemindedAt   *time.Time `json:"reminded_at,omitempty"`
}

// IsOpen returns true if the shift has not been closed
func (s *Shift) IsOpen() bool {
	return s.EndedAt == nil
}

// Duration returns the shift length; open shifts are measured up to now
func (s *Shift) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Distance returns the driven distance of a closed shift
func (s *Shift) Distance() int64 {
	if s.MileageEnd == nil {
		return 0
	}
	return *s.MileageEnd - s.MileageStart
}

// ShiftClose carries the values recorded when a shift ends
type ShiftClose struct {
	ShiftID    int64
	EndedAt    time.Time
	EndPhoto   string
	MileageEnd int64
	Condition  string
}

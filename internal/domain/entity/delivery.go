package entity

import "time"

// Delivery is an order assigned to a driver
type Delivery struct {
	ID           int64      `json:"id"`
	DriverID     int64      `json:"driver_id"`
	ShiftID      *int64     `json:"shift_id,omitempty"`
	Address      string     `json:"address"`
	Recipient    string     `json:"recipient,omitempty"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Label returns the short text shown when the driver picks a delivery
func (d *Delivery) Label() string {
	if d.Recipient == "" {
		return d.Address
	}
	return d.Address + " (" + d.Recipient + ")"
}

// DeliveryPhoto is a departure or proof-of-delivery photo
type DeliveryPhoto struct {
	ID         int64     `json:"id"`
	DeliveryID int64     `json:"delivery_id"`
	Kind       string    `json:"kind"`
	PhotoKey   string    `json:"photo_key"`
	CreatedAt  time.Time `json:"created_at"`
}

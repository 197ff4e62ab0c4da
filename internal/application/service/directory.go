package service

import (
	"context"
	"fmt"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Texts renders catalog messages
type Texts interface {
	Text(key string, params map[string]string) string
}

type directoryImpl struct {
	admins  map[string]bool
	drivers port.DriverRepository
	links   port.UserLinkRepository
	logger  Logger
}

// NewDirectory creates a Directory. Admin user ids come from configuration;
// everyone else is a driver when their chat is linked, otherwise a guest.
func NewDirectory(
	admins []string,
	drivers port.DriverRepository,
	links port.UserLinkRepository,
	logger Logger,
) port.Directory {
	set := make(map[string]bool, len(admins))
	for _, id := range admins {
		if id != "" {
			set[id] = true
		}
	}
	return &directoryImpl{
		admins:  set,
		drivers: drivers,
		links:   links,
		logger:  logger,
	}
}

// Resolve maps a chat user to an Actor
func (d *directoryImpl) Resolve(ctx context.Context, userID string) (entity.Actor, error) {
	if d.admins[userID] {
		return entity.Actor{UserID: userID, Role: entity.RoleAdmin, Name: "Admin"}, nil
	}

	guest := entity.Actor{UserID: userID, Role: entity.RoleGuest}

	link, err := d.links.GetByUserID(ctx, userID)
	if err != nil {
		return guest, fmt.Errorf("resolve user link: %w", err)
	}
	if link == nil {
		return guest, nil
	}

	driver, err := d.drivers.GetByID(ctx, link.DriverID)
	if err != nil {
		return guest, fmt.Errorf("resolve driver: %w", err)
	}
	if driver == nil {
		d.logger.Error("User link points at a missing driver", "user_id", userID, "driver_id", link.DriverID)
		return guest, nil
	}

	actor := entity.Actor{
		UserID:   userID,
		Role:     entity.RoleDriver,
		DriverID: driver.ID,
		Name:     driver.Name,
	}
	if driver.VehicleID != nil {
		actor.VehicleID = *driver.VehicleID
	}
	return actor, nil
}

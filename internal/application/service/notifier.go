package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fleetbot/internal/application/eventbus"
	"github.com/garyjia/fleetbot/internal/application/flows"
	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/event"
)

// Listener names on the bus
const (
	damageListener  = "admin-notifier.damage"
	overdueListener = "driver-notifier.overdue"
)

// Notifier turns bus events into chat messages: damage reports go to every
// admin, overdue shift reminders go to the driver's chat
type Notifier struct {
	sender port.MessageSender
	admins []string
	texts  Texts
	logger Logger
}

// NewNotifier creates a Notifier
func NewNotifier(sender port.MessageSender, admins []string, texts Texts, logger Logger) *Notifier {
	return &Notifier{
		sender: sender,
		admins: append([]string(nil), admins...),
		texts:  texts,
		logger: logger,
	}
}

// Register subscribes the notifier's listeners on bus
func (n *Notifier) Register(bus eventbus.Bus) {
	bus.SubscribeNamed(event.TypeFlowCompleted, damageListener, n.onFlowCompleted)
	bus.SubscribeNamed(event.TypeShiftOverdue, overdueListener, n.onShiftOverdue)
}

func (n *Notifier) onFlowCompleted(ctx context.Context, evt *event.Event) error {
	if evt.FlowID != flows.DamageReport.String() {
		return nil
	}

	text := n.texts.Text("notify.damage_report", map[string]string{
		"plate":       evt.GetPayloadString("plate"),
		"driver":      evt.GetPayloadString("driver"),
		"description": evt.GetPayloadString("description"),
	})

	var errs []error
	for _, admin := range n.admins {
		if err := n.sender.SendText(ctx, admin, text); err != nil {
			n.logger.Error("Failed to notify admin", "admin", admin, "error", err, "event_id", evt.ID)
			errs = append(errs, fmt.Errorf("notify %s: %w", admin, err))
		}
	}
	if len(errs) == 0 {
		n.logger.Info("Admins notified about damage", "admins", len(n.admins), "record_id", evt.RecordID)
	}
	return errors.Join(errs...)
}

func (n *Notifier) onShiftOverdue(ctx context.Context, evt *event.Event) error {
	text := n.texts.Text("reminder.shift_overdue", map[string]string{
		"started_at": evt.GetPayloadString("started_at"),
	})
	if err := n.sender.SendText(ctx, evt.UserID, text); err != nil {
		return fmt.Errorf("send shift reminder: %w", err)
	}
	n.logger.Info("Shift reminder sent", "user_id", evt.UserID, "shift_id", evt.RecordID)
	return nil
}

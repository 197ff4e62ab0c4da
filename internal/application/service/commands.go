package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
)

// Look-back windows of the driver commands
const (
	recentShiftLimit = 5
	driverStatsSpan  = 30 * 24 * time.Hour

	vehicleReportLimit = 15
	reportsPerType     = 5
	reportPreviewRunes = 30
)

// CommandRepositories groups the read models the commands query
type CommandRepositories struct {
	Drivers    port.DriverRepository
	Vehicles   port.VehicleRepository
	Shifts     port.ShiftRepository
	Deliveries port.DeliveryRepository
	Reports    port.ReportRepository
	Links      port.UserLinkRepository
	Stats      port.StatsRepository
}

type commandServiceImpl struct {
	repos  CommandRepositories
	texts  Texts
	now    func() time.Time
	logger Logger
}

// NewCommandService creates the handler of stateless chat commands
func NewCommandService(repos CommandRepositories, texts Texts, now func() time.Time, logger Logger) dispatcher.Commands {
	if now == nil {
		now = time.Now
	}
	return &commandServiceImpl{
		repos:  repos,
		texts:  texts,
		now:    now,
		logger: logger,
	}
}

// Execute answers one command for the actor
func (s *commandServiceImpl) Execute(ctx context.Context, actor entity.Actor, cmd dispatcher.Command) (string, error) {
	switch cmd {
	case dispatcher.CommandStart:
		return s.texts.Text("start."+actor.Role, map[string]string{"name": actor.Name}), nil
	case dispatcher.CommandHelp:
		return s.texts.Text("help."+actor.Role, nil), nil
	case dispatcher.CommandLogout:
		return s.logout(ctx, actor)
	case dispatcher.CommandMyShifts:
		return s.myShifts(ctx, actor)
	case dispatcher.CommandMyDeliveries:
		return s.myDeliveries(ctx, actor)
	case dispatcher.CommandVehicleStatus:
		return s.vehicleStatus(ctx, actor)
	case dispatcher.CommandVehicleReports:
		return s.vehicleReports(ctx, actor)
	case dispatcher.CommandVehicleStats:
		return s.vehicleStats(ctx, actor)
	case dispatcher.CommandDrivers:
		return s.drivers(ctx)
	case dispatcher.CommandVehicles:
		return s.vehicles(ctx)
	case dispatcher.CommandStats:
		return s.stats(ctx)
	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func (s *commandServiceImpl) logout(ctx context.Context, actor entity.Actor) (string, error) {
	if err := s.repos.Links.Unlink(ctx, actor.UserID); err != nil {
		return "", fmt.Errorf("unlink user: %w", err)
	}
	s.logger.Info("Driver logged out", "user_id", actor.UserID, "driver_id", actor.DriverID)
	return s.texts.Text("command.logged_out", nil), nil
}

func (s *commandServiceImpl) myShifts(ctx context.Context, actor entity.Actor) (string, error) {
	shifts, err := s.repos.Shifts.ListByDriver(ctx, actor.DriverID, recentShiftLimit)
	if err != nil {
		return "", fmt.Errorf("list shifts: %w", err)
	}
	if len(shifts) == 0 {
		return s.texts.Text("command.no_shifts", nil), nil
	}

	now := s.now()
	lines := make([]string, 0, len(shifts)+1)
	for _, sh := range shifts {
		ended := "…"
		if sh.EndedAt != nil {
			ended = sh.EndedAt.Format("15:04")
		}
		lines = append(lines, s.texts.Text("command.shift_line", map[string]string{
			"started_at": sh.StartedAt.Format("02.01 15:04"),
			"ended_at":   ended,
			"distance":   strconv.FormatInt(sh.Distance(), 10),
		}))
	}

	stats, err := s.repos.Stats.DriverStats(ctx, actor.DriverID, now.Add(-driverStatsSpan))
	if err != nil {
		return "", fmt.Errorf("driver stats: %w", err)
	}
	lines = append(lines, s.texts.Text("command.shifts_summary", map[string]string{
		"shifts":   strconv.Itoa(stats.Shifts),
		"distance": strconv.FormatInt(stats.TotalDistance, 10),
		"hours":    strconv.FormatFloat(float64(stats.TotalMinutes)/60, 'f', 1, 64),
	}))
	return strings.Join(lines, "\n"), nil
}

func (s *commandServiceImpl) myDeliveries(ctx context.Context, actor entity.Actor) (string, error) {
	deliveries, err := s.repos.Deliveries.ListByDriver(ctx, actor.DriverID,
		entity.DeliveryStatusPending, entity.DeliveryStatusInProgress)
	if err != nil {
		return "", fmt.Errorf("list deliveries: %w", err)
	}
	if len(deliveries) == 0 {
		return s.texts.Text("command.no_deliveries", nil), nil
	}

	lines := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		lines = append(lines, s.texts.Text("command.delivery_line", map[string]string{
			"label":  d.Label(),
			"status": d.Status,
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *commandServiceImpl) vehicleStatus(ctx context.Context, actor entity.Actor) (string, error) {
	if !actor.HasVehicle() {
		return s.texts.Text("reason.no_vehicle", nil), nil
	}
	v, err := s.repos.Vehicles.GetByID(ctx, actor.VehicleID)
	if err != nil {
		return "", fmt.Errorf("get vehicle: %w", err)
	}
	if v == nil {
		return s.texts.Text("reason.no_vehicle", nil), nil
	}

	return s.texts.Text("command.vehicle", map[string]string{
		"model":   v.Model,
		"plate":   v.LicensePlate,
		"status":  v.Status,
		"mileage": strconv.FormatInt(v.Mileage, 10),
		"fuel":    fuelText(v.FuelLevel),
	}), nil
}

// vehicleReports lists the latest reports on the actor's vehicle grouped by
// type. Groups keep the order of their newest report.
func (s *commandServiceImpl) vehicleReports(ctx context.Context, actor entity.Actor) (string, error) {
	if !actor.HasVehicle() {
		return s.texts.Text("reason.no_vehicle", nil), nil
	}
	reports, err := s.repos.Reports.ListByVehicle(ctx, actor.VehicleID, vehicleReportLimit)
	if err != nil {
		return "", fmt.Errorf("list vehicle reports: %w", err)
	}
	if len(reports) == 0 {
		return s.texts.Text("command.no_reports", nil), nil
	}

	var order []string
	groups := make(map[string][]*entity.VehicleReport)
	for _, r := range reports {
		if _, ok := groups[r.ReportType]; !ok {
			order = append(order, r.ReportType)
		}
		groups[r.ReportType] = append(groups[r.ReportType], r)
	}

	var lines []string
	for _, reportType := range order {
		group := groups[reportType]
		lines = append(lines, s.texts.Text("command.report_group", map[string]string{
			"type":  reportType,
			"count": strconv.Itoa(len(group)),
		}))
		for i, r := range group {
			if i == reportsPerType {
				lines = append(lines, s.texts.Text("command.report_more", map[string]string{
					"count": strconv.Itoa(len(group) - reportsPerType),
				}))
				break
			}
			lines = append(lines, s.texts.Text("command.report_line", map[string]string{
				"at":      r.CreatedAt.Format("02.01 15:04"),
				"details": reportDetails(r),
			}))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *commandServiceImpl) vehicleStats(ctx context.Context, actor entity.Actor) (string, error) {
	if !actor.HasVehicle() {
		return s.texts.Text("reason.no_vehicle", nil), nil
	}
	v, err := s.repos.Vehicles.GetByID(ctx, actor.VehicleID)
	if err != nil {
		return "", fmt.Errorf("get vehicle: %w", err)
	}
	if v == nil {
		return s.texts.Text("reason.no_vehicle", nil), nil
	}
	stats, err := s.repos.Stats.VehicleStats(ctx, v.ID)
	if err != nil {
		return "", fmt.Errorf("vehicle stats: %w", err)
	}

	return s.texts.Text("command.vehicle_stats", map[string]string{
		"model":    v.Model,
		"plate":    v.LicensePlate,
		"mileage":  strconv.FormatInt(v.Mileage, 10),
		"fuel":     fuelText(v.FuelLevel),
		"status":   v.Status,
		"total":    strconv.Itoa(stats.TotalReports),
		"reports":  formatCounts(stats.Reports),
		"shifts":   strconv.Itoa(stats.Shifts),
		"distance": strconv.FormatInt(stats.TotalDistance, 10),
	}), nil
}

func fuelText(level *int) string {
	if level == nil {
		return "n/a"
	}
	return strconv.Itoa(*level) + "%"
}

// reportDetails is the short summary shown next to a report in listings
func reportDetails(r *entity.VehicleReport) string {
	switch {
	case r.Description != "":
		runes := []rune(r.Description)
		if len(runes) > reportPreviewRunes {
			return string(runes[:reportPreviewRunes]) + "…"
		}
		return r.Description
	case r.FuelLevel != nil:
		return fuelText(r.FuelLevel)
	case r.PhotoKey != "":
		return "photo"
	}
	return ""
}

func (s *commandServiceImpl) drivers(ctx context.Context) (string, error) {
	drivers, err := s.repos.Drivers.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list drivers: %w", err)
	}
	if len(drivers) == 0 {
		return s.texts.Text("command.no_drivers", nil), nil
	}

	plates, err := s.plates(ctx)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(drivers))
	for _, d := range drivers {
		plate := "-"
		if d.VehicleID != nil {
			plate = plates[*d.VehicleID]
		}
		lines = append(lines, s.texts.Text("command.driver_line", map[string]string{
			"name":  d.Name,
			"phone": d.Phone,
			"plate": plate,
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *commandServiceImpl) plates(ctx context.Context) (map[int64]string, error) {
	vehicles, err := s.repos.Vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	plates := make(map[int64]string, len(vehicles))
	for _, v := range vehicles {
		plates[v.ID] = v.LicensePlate
	}
	return plates, nil
}

func (s *commandServiceImpl) vehicles(ctx context.Context) (string, error) {
	vehicles, err := s.repos.Vehicles.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) == 0 {
		return s.texts.Text("command.no_vehicles", nil), nil
	}

	lines := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		lines = append(lines, s.texts.Text("command.vehicle_line", map[string]string{
			"plate":  v.LicensePlate,
			"model":  v.Model,
			"status": v.Status,
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *commandServiceImpl) stats(ctx context.Context) (string, error) {
	stats, err := s.repos.Stats.SystemStats(ctx, dayStart(s.now()))
	if err != nil {
		return "", fmt.Errorf("system stats: %w", err)
	}
	return s.texts.Text("command.stats", map[string]string{
		"drivers":        strconv.Itoa(stats.Drivers),
		"vehicles":       strconv.Itoa(stats.Vehicles),
		"repair":         strconv.Itoa(stats.VehiclesNeedRepair),
		"active_shifts":  strconv.Itoa(stats.ActiveShifts),
		"shifts_today":   strconv.Itoa(stats.ShiftsToday),
		"distance_today": strconv.FormatInt(stats.DistanceToday, 10),
		"deliveries":     formatCounts(stats.Deliveries),
	}), nil
}

// dayStart returns midnight of t in t's location
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "0"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+strconv.Itoa(counts[k]))
	}
	return strings.Join(parts, ", ")
}

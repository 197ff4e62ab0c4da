package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/entity"
)

const (
	shiftSheet   = "Shifts"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04"
)

var shiftHeader = []interface{}{
	"Shift", "Driver", "Phone", "Vehicle", "Started", "Ended",
	"Duration (min)", "Mileage start", "Mileage end", "Distance (km)", "Condition",
}

// ReportService builds fleet statistics and spreadsheet exports
type ReportService interface {
	SystemStats(ctx context.Context) (*entity.SystemStats, error)
	DriverStats(ctx context.Context, driverID int64, since time.Time) (*entity.DriverStats, error)

	// ExportShifts writes an xlsx workbook of shifts started in [from, to)
	// and returns the number of shift rows
	ExportShifts(ctx context.Context, from, to time.Time, w io.Writer) (int, error)
}

type reportServiceImpl struct {
	drivers  port.DriverRepository
	vehicles port.VehicleRepository
	shifts   port.ShiftRepository
	stats    port.StatsRepository
	now      func() time.Time
	logger   Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	drivers port.DriverRepository,
	vehicles port.VehicleRepository,
	shifts port.ShiftRepository,
	stats port.StatsRepository,
	now func() time.Time,
	logger Logger,
) ReportService {
	if now == nil {
		now = time.Now
	}
	return &reportServiceImpl{
		drivers:  drivers,
		vehicles: vehicles,
		shifts:   shifts,
		stats:    stats,
		now:      now,
		logger:   logger,
	}
}

// SystemStats returns fleet-wide counters for today
func (s *reportServiceImpl) SystemStats(ctx context.Context) (*entity.SystemStats, error) {
	stats, err := s.stats.SystemStats(ctx, dayStart(s.now()))
	if err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	return stats, nil
}

// DriverStats returns one driver's activity since the given time
func (s *reportServiceImpl) DriverStats(ctx context.Context, driverID int64, since time.Time) (*entity.DriverStats, error) {
	stats, err := s.stats.DriverStats(ctx, driverID, since)
	if err != nil {
		return nil, fmt.Errorf("driver stats: %w", err)
	}
	return stats, nil
}

// ExportShifts writes the shift report workbook
func (s *reportServiceImpl) ExportShifts(ctx context.Context, from, to time.Time, w io.Writer) (int, error) {
	if !from.Before(to) {
		return 0, fmt.Errorf("invalid range: %s is not before %s", from.Format(timeLayout), to.Format(timeLayout))
	}
	s.logger.Info("Exporting shifts", "from", from, "to", to)

	shifts, err := s.shifts.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list shifts: %w", err)
	}
	drivers, err := s.drivers.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list drivers: %w", err)
	}
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list vehicles: %w", err)
	}

	byDriver := make(map[int64]*entity.Driver, len(drivers))
	for _, d := range drivers {
		byDriver[d.ID] = d
	}
	byVehicle := make(map[int64]*entity.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byVehicle[v.ID] = v
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", shiftSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := file.SetSheetRow(shiftSheet, "A1", &shiftHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	now := s.now()
	var totalDistance, totalMinutes int64
	for i, sh := range shifts {
		row := shiftRow(sh, byDriver[sh.DriverID], byVehicle[sh.VehicleID], now)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := file.SetSheetRow(shiftSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write shift %d: %w", sh.ID, err)
		}
		totalDistance += sh.Distance()
		totalMinutes += int64(sh.Duration(now) / time.Minute)
	}

	if _, err := file.NewSheet(summarySheet); err != nil {
		return 0, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"From", from.Format(timeLayout)},
		{"To", to.Format(timeLayout)},
		{"Shifts", len(shifts)},
		{"Distance (km)", totalDistance},
		{"Driving time (min)", totalMinutes},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow(summarySheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Shift export written", "shifts", len(shifts), "distance", totalDistance)
	return len(shifts), nil
}

func shiftRow(sh *entity.Shift, d *entity.Driver, v *entity.Vehicle, now time.Time) []interface{} {
	driverName, phone, plate := "", "", ""
	if d != nil {
		driverName, phone = d.Name, d.Phone
	}
	if v != nil {
		plate = v.LicensePlate
	}

	ended := ""
	var mileageEnd interface{} = ""
	if sh.EndedAt != nil {
		ended = sh.EndedAt.Format(timeLayout)
	}
	if sh.MileageEnd != nil {
		mileageEnd = *sh.MileageEnd
	}

	return []interface{}{
		sh.ID,
		driverName,
		phone,
		plate,
		sh.StartedAt.Format(timeLayout),
		ended,
		int64(sh.Duration(now) / time.Minute),
		sh.MileageStart,
		mileageEnd,
		sh.Distance(),
		sh.Condition,
	}
}

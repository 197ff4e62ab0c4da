package flows

import (
	"github.com/garyjia/fleetbot/internal/application/dispatcher"
)

// Triggers returns the phrase table of the bot: keyboard button labels and
// slash commands for every flow and command
func Triggers() []dispatcher.Trigger {
	return []dispatcher.Trigger{
		{Phrases: []string{"/login", "🔑 Log in"}, Flow: DriverLogin, Audience: dispatcher.AudienceGuest},

		{Phrases: []string{"/open_shift", "🚗 Open shift"}, Flow: OpenShift, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/close_shift", "🏁 Close shift"}, Flow: CloseShift, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/start_delivery", "📦 Start delivery"}, Flow: StartDelivery, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/delivery_status", "✅ Delivery status"}, Flow: DeliveryStatus, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/fuel", "⛽ Fuel level"}, Flow: FuelReport, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/parking", "🅿️ Parking photo"}, Flow: ParkingReport, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/damage", "⚠️ Report damage"}, Flow: DamageReport, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/pre_trip", "🚦 Pre-trip check"}, Flow: PreTrip, Audience: dispatcher.AudienceDriver},

		{Phrases: []string{"/add_driver", "➕ Add driver"}, Flow: AddDriver, Audience: dispatcher.AudienceAdmin},
		{Phrases: []string{"/add_vehicle", "🚚 Add vehicle"}, Flow: AddVehicle, Audience: dispatcher.AudienceAdmin},
		{Phrases: []string{"/assign_vehicle", "🔗 Assign vehicle"}, Flow: AssignVehicle, Audience: dispatcher.AudienceAdmin},

		{Phrases: []string{"/start"}, Command: dispatcher.CommandStart},
		{Phrases: []string{"/help", "❓ Help"}, Command: dispatcher.CommandHelp},
		{Phrases: []string{"/logout", "🚪 Log out"}, Command: dispatcher.CommandLogout, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/my_shifts", "📊 My shifts"}, Command: dispatcher.CommandMyShifts, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/my_deliveries", "📋 My deliveries"}, Command: dispatcher.CommandMyDeliveries, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/vehicle", "🚙 Vehicle status"}, Command: dispatcher.CommandVehicleStatus, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/vehicle_reports", "🗂 Report history"}, Command: dispatcher.CommandVehicleReports, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/vehicle_stats", "📉 Vehicle statistics"}, Command: dispatcher.CommandVehicleStats, Audience: dispatcher.AudienceDriver},
		{Phrases: []string{"/drivers", "👥 Drivers"}, Command: dispatcher.CommandDrivers, Audience: dispatcher.AudienceAdmin},
		{Phrases: []string{"/vehicles", "🚛 Vehicles"}, Command: dispatcher.CommandVehicles, Audience: dispatcher.AudienceAdmin},
		{Phrases: []string{"/stats", "📈 Statistics"}, Command: dispatcher.CommandStats, Audience: dispatcher.AudienceAdmin},
	}
}

package http

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/service"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

const (
	dateLayout       = "2006-01-02"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	healthTimeout    = 2 * time.Second
	defaultStatsDays = 30
)

// CheckFunc reports whether a dependency is reachable
type CheckFunc func(ctx context.Context) error

// Deps are the collaborators the handlers read from
type Deps struct {
	Reports    service.ReportService
	Drivers    port.DriverRepository
	Deliveries port.DeliveryRepository
	Registry   *domainwf.Registry

	// Checks are run by the health endpoint, keyed by dependency name
	Checks map[string]CheckFunc

	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Deps
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger Logger) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// CreateDeliveryRequest is the body of POST /api/v1/deliveries
type CreateDeliveryRequest struct {
	DriverID     int64      `json:"driver_id" binding:"required"`
	Address      string     `json:"address" binding:"required"`
	Recipient    string     `json:"recipient"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// FlowResponse describes one registered flow
type FlowResponse struct {
	ID    string         `json:"id"`
	Steps []StepResponse `json:"steps"`
}

// StepResponse describes one flow step
type StepResponse struct {
	ID     string   `json:"id"`
	Field  string   `json:"field"`
	Next   []string `json:"next"`
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.deps.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if len(h.deps.Checks) > 0 {
		resp.Checks = make(map[string]string, len(h.deps.Checks))
		for name, check := range h.deps.Checks {
			if err := check(ctx); err != nil {
				h.logger.Error("Health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// GetStats handles GET /api/v1/stats
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.deps.Reports.SystemStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", "error", err)
		fail(c, http.StatusInternalServerError, "failed to get stats")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// GetDriverStats handles GET /api/v1/drivers/:id/stats?days=N
func (h *Handlers) GetDriverStats(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	days := defaultStatsDays
	if v := c.Query("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 {
			fail(c, http.StatusBadRequest, "invalid days")
			return
		}
	}

	ctx := c.Request.Context()
	driver, err := h.deps.Drivers.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("Failed to get driver", "driver_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to get driver")
		return
	}
	if driver == nil {
		fail(c, http.StatusNotFound, "driver not found")
		return
	}

	since := h.deps.Now().AddDate(0, 0, -days)
	stats, err := h.deps.Reports.DriverStats(ctx, id, since)
	if err != nil {
		h.logger.Error("Failed to get driver stats", "driver_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to get driver stats")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// ExportShifts handles GET /api/v1/shifts/export?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both dates are inclusive.
func (h *Handlers) ExportShifts(c *gin.Context) {
	from, err := time.ParseInLocation(dateLayout, c.Query("from"), time.UTC)
	if err != nil {
		fail(c, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := time.ParseInLocation(dateLayout, c.Query("to"), time.UTC)
	if err != nil {
		fail(c, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}
	if to.Before(from) {
		fail(c, http.StatusBadRequest, "to is before from")
		return
	}

	var buf bytes.Buffer
	rows, err := h.deps.Reports.ExportShifts(c.Request.Context(), from, to.AddDate(0, 0, 1), &buf)
	if err != nil {
		h.logger.Error("Failed to export shifts", "from", from, "to", to, "error", err)
		fail(c, http.StatusInternalServerError, "failed to export shifts")
		return
	}

	name := "shifts_" + from.Format(dateLayout) + "_" + to.Format(dateLayout) + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("X-Row-Count", strconv.Itoa(rows))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateDelivery handles POST /api/v1/deliveries
func (h *Handlers) CreateDelivery(c *gin.Context) {
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	driver, err := h.deps.Drivers.GetByID(ctx, req.DriverID)
	if err != nil {
		h.logger.Error("Failed to get driver", "driver_id", req.DriverID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to get driver")
		return
	}
	if driver == nil {
		fail(c, http.StatusNotFound, "driver not found")
		return
	}

	delivery := &entity.Delivery{
		DriverID:     req.DriverID,
		Address:      req.Address,
		Recipient:    req.Recipient,
		ScheduledFor: req.ScheduledFor,
	}
	if err := h.deps.Deliveries.Create(ctx, delivery); err != nil {
		h.logger.Error("Failed to create delivery", "driver_id", req.DriverID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to create delivery")
		return
	}

	h.logger.Info("Delivery created", "delivery_id", delivery.ID, "driver_id", delivery.DriverID)
	c.JSON(http.StatusCreated, Response{Success: true, Data: delivery})
}

// ListFlows handles GET /api/v1/flows
func (h *Handlers) ListFlows(c *gin.Context) {
	flows := h.deps.Registry.Flows()
	out := make([]FlowResponse, 0, len(flows))
	for _, f := range flows {
		fr := FlowResponse{ID: f.ID.String()}
		for _, st := range f.Steps() {
			next := make([]string, 0, len(st.Targets()))
			for _, to := range st.Targets() {
				next = append(next, to.String())
			}
			sort.Strings(next)
			fr.Steps = append(fr.Steps, StepResponse{
				ID:    st.ID.String(),
				Field: st.Field,
				Next:  next,
			})
		}
		out = append(out, fr)
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

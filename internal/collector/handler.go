package collector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/metrics"
)

// ClearConfirmation must be sent to clear-all-data
const ClearConfirmation = "DELETE_ALL_HEATMAP_DATA"

// Handler serves the guest visit routes of the heatmap API
type Handler struct {
	repo   *Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewHandler creates a Handler
func NewHandler(repo *Repository, clk clock.Clock, logger *zap.Logger) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, clock: clk, logger: logger}
}

// RegisterRoutes mounts the handler on a /api/heatmap group
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/track-guest-visit", h.TrackGuestVisit)
	g.GET("/guest-stats", h.GuestStats)
	g.GET("/data-count", h.DataCount)
	g.DELETE("/clear-all-data", h.ClearAllData)
}

type trackGuestVisitResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	GuestID     string `json:"guestId"`
	VisitCount  int    `json:"visitCount"`
	IsReturning bool   `json:"isReturning"`
}

func (h *Handler) TrackGuestVisit(c echo.Context) error {
	var v domain.GuestVisit
	if err := c.Bind(&v); err != nil {
		return badRequest("invalid_request", "Invalid request body")
	}
	v.GuestID = strings.TrimSpace(v.GuestID)
	if v.GuestID == "" {
		return badRequest("missing_guest_id", "Guest ID is required")
	}
	if v.VisitCount < 1 {
		v.VisitCount = 1
	}
	v.Timestamp = h.clock.Now().UTC()

	if _, err := h.repo.SaveGuestVisit(c.Request().Context(), v); err != nil {
		if errors.Is(err, ErrInvalidTenant) {
			return invalidTenant()
		}
		h.logger.Error("failed to track guest visit", zap.String("guest_id", v.GuestID), zap.Error(err))
		return internalError("track_failed", "Failed to track guest visit")
	}
	metrics.CollectorGuestVisits.WithLabelValues(DatabaseName(v.TenantID)).Inc()

	return c.JSON(http.StatusOK, trackGuestVisitResponse{
		Success:     true,
		Message:     "Guest visit tracked successfully",
		GuestID:     v.GuestID,
		VisitCount:  v.VisitCount,
		IsReturning: v.IsReturning,
	})
}

type guestStatsResponse struct {
	Success bool       `json:"success"`
	Data    GuestStats `json:"data"`
}

func (h *Handler) GuestStats(c echo.Context) error {
	from, err := parseDate(c.QueryParam("startDate"), false)
	if err != nil {
		return badRequest("invalid_start_date", "startDate must be YYYY-MM-DD or RFC3339")
	}
	to, err := parseDate(c.QueryParam("endDate"), true)
	if err != nil {
		return badRequest("invalid_end_date", "endDate must be YYYY-MM-DD or RFC3339")
	}

	visits, err := h.repo.GuestVisits(c.Request().Context(), c.QueryParam("tenantId"), from, to)
	if errors.Is(err, ErrInvalidTenant) {
		return invalidTenant()
	}
	if err != nil {
		h.logger.Error("failed to load guest visits", zap.Error(err))
		return internalError("stats_failed", "Failed to fetch guest statistics")
	}
	return c.JSON(http.StatusOK, guestStatsResponse{Success: true, Data: ComputeGuestStats(visits)})
}

type dataCountResponse struct {
	Success  bool            `json:"success"`
	Database string          `json:"database"`
	Count    int             `json:"count"`
	Message  string          `json:"message"`
	Details  []DatabaseCount `json:"details"`
}

// DataCount counts one tenant's records, or main plus every tenant database
// when no tenant is given
func (h *Handler) DataCount(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := strings.TrimSpace(c.QueryParam("tenantId"))

	var (
		n       int
		details []DatabaseCount
		err     error
	)
	if tenantID == "" {
		n, details, err = h.repo.CountAll(ctx)
	} else {
		n, err = h.repo.Count(ctx, tenantID)
		details = []DatabaseCount{{Database: DatabaseName(tenantID), Count: n}}
	}
	if errors.Is(err, ErrInvalidTenant) {
		return invalidTenant()
	}
	if err != nil {
		h.logger.Error("failed to count guest visits", zap.Error(err))
		return internalError("count_failed", "Failed to count heatmap data")
	}
	return c.JSON(http.StatusOK, dataCountResponse{
		Success:  true,
		Database: DatabaseName(tenantID),
		Count:    n,
		Message:  fmt.Sprintf("Database contains %d total records", n),
		Details:  details,
	})
}

type clearAllDataRequest struct {
	Confirm  string `json:"confirm"`
	TenantID string `json:"tenantId"`
}

type clearAllDataResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	DeletedCount int             `json:"deletedCount"`
	Details      []DatabaseCount `json:"details"`
}

// ClearAllData deletes one tenant's records, or main plus every tenant
// database when no tenant is given
func (h *Handler) ClearAllData(c echo.Context) error {
	var req clearAllDataRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid_request", "Invalid request body")
	}
	if req.Confirm != ClearConfirmation {
		return badRequest("confirmation_required", "Confirmation required. Send { confirm: '"+ClearConfirmation+"' }")
	}

	ctx := c.Request().Context()
	tenantID := strings.TrimSpace(req.TenantID)
	var (
		n       int
		details []DatabaseCount
		err     error
	)
	if tenantID == "" {
		n, details, err = h.repo.ClearAll(ctx)
	} else {
		n, err = h.repo.Clear(ctx, tenantID)
		details = []DatabaseCount{{Database: DatabaseName(tenantID), Count: n}}
	}
	if errors.Is(err, ErrInvalidTenant) {
		return invalidTenant()
	}
	if err != nil {
		h.logger.Error("failed to clear heatmap data", zap.Int("deleted", n), zap.Error(err))
		return internalError("clear_failed", "Failed to clear heatmap data")
	}
	for _, d := range details {
		h.logger.Info("heatmap data cleared",
			zap.String("database", d.Database),
			zap.Int("deleted", d.Count))
	}
	return c.JSON(http.StatusOK, clearAllDataResponse{
		Success:      true,
		Message:      fmt.Sprintf("Successfully deleted %d total records", n),
		DeletedCount: n,
		Details:      details,
	})
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

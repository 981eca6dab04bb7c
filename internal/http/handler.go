package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/http/middleware"
	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

type Handler struct {
	pickups *service.PickupService
	lots    *service.LotService
	reports *service.ReportService
	log     zerolog.Logger
}

func NewHandler(pickups *service.PickupService, lots *service.LotService, reports *service.ReportService, log zerolog.Logger) *Handler {
	return &Handler{pickups: pickups, lots: lots, reports: reports, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/lots", h.publishLot)
	protected.GET("/lots", h.listLots)
	protected.GET("/lots/:id", h.getLot)

	protected.POST("/pickups", h.createPickup)
	protected.GET("/pickups", h.listPickups)
	protected.GET("/pickups/statistics", h.statistics)
	protected.GET("/pickups/statistics/export", h.exportStatistics)
	protected.GET("/pickups/:id", h.getPickup)
	protected.POST("/pickups/:id/confirm", h.confirmPickup)
	protected.POST("/pickups/:id/visit", h.confirmVisit)
	protected.POST("/pickups/:id/complete", h.completePickup)
	protected.POST("/pickups/:id/cancel", h.cancelPickup)
	protected.GET("/pickups/:id/receipt", h.receipt)
}

type publishLotRequest struct {
	Name      string          `json:"name" binding:"required"`
	Unit      string          `json:"unit" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	ExpiresAt string          `json:"expires_at" binding:"required"`
}

type createPickupRequest struct {
	FoodLotID         string          `json:"food_lot_id" binding:"required"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	ScheduledDate     string          `json:"scheduled_date" binding:"required"`
	Notes             string          `json:"notes"`
}

type confirmPickupRequest struct {
	Confirmed *bool  `json:"confirmed" binding:"required"`
	Notes     string `json:"notes"`
}

type completePickupRequest struct {
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity"`
	Notes             string          `json:"notes"`
}

type cancelPickupRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) publishLot(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req publishLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	expiresAt, err := parseDate(req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expires_at"})
		return
	}

	lot, err := h.lots.Publish(c.Request.Context(), principal, service.PublishLotInput{
		Name:      req.Name,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

func (h *Handler) listLots(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	mine, _ := strconv.ParseBool(c.DefaultQuery("mine", "false"))
	if mine {
		lots, err := h.lots.ListMine(c.Request.Context(), principal)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": lots})
		return
	}

	lots, err := h.lots.ListAvailable(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lots})
}

func (h *Handler) getLot(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	lot, err := h.lots.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

func (h *Handler) createPickup(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lotID, err := uuid.Parse(strings.TrimSpace(req.FoodLotID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid food_lot_id"})
		return
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}

	pickup, err := h.pickups.Create(c.Request.Context(), principal, service.CreatePickupInput{
		FoodLotID:         lotID,
		RequestedQuantity: req.RequestedQuantity,
		ScheduledDate:     scheduled,
		Notes:             req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pickup)
}

func (h *Handler) listPickups(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var filter service.ListPickupsFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := lifecycle.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filter.Status = &status
	}

	pickups, err := h.pickups.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pickups})
}

func (h *Handler) getPickup(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	pickup, err := h.pickups.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *Handler) confirmPickup(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req confirmPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := h.pickups.Confirm(c.Request.Context(), principal, id, *req.Confirmed, req.Notes)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *Handler) confirmVisit(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	pickup, err := h.pickups.ConfirmVisit(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *Handler) completePickup(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req completePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := h.pickups.Complete(c.Request.Context(), principal, id, req.DeliveredQuantity, req.Notes)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *Handler) cancelPickup(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req cancelPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := h.pickups.Cancel(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *Handler) statistics(c *gin.Context) {
	scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}

	stats, err := h.reports.Statistics(c.Request.Context(), scope)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) exportStatistics(c *gin.Context) {
	scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}

	result, err := h.reports.ExportStatistics(c.Request.Context(), scope)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypeXLSX, result.Content)
}

func (h *Handler) receipt(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.reports.HandoverReceipt(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypePDF, result.Content)
}

func (h *Handler) scopeFromQuery(c *gin.Context) (service.Scope, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return service.Scope{}, false
	}

	scope := service.Scope{Principal: principal}
	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return service.Scope{}, false
		}
		scope.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return service.Scope{}, false
		}
		scope.To = &to
	}
	return scope, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvariantViolation):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("ledger invariant violation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case errors.Is(err, service.ErrQuantityExceedsAvailability), errors.Is(err, ledger.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

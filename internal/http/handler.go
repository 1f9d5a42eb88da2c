package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/http/middleware"
	"github.com/arvale/aod-service/internal/model"
	"github.com/arvale/aod-service/internal/scheduler"
	"github.com/arvale/aod-service/internal/service"
)

type Handler struct {
	agreements   *service.AgreementService
	distribution *service.DistributionService
	reports      *service.ReportService
	installments service.InstallmentStore
	sched        *scheduler.Scheduler
	log          zerolog.Logger
}

func NewHandler(
	agreements *service.AgreementService,
	distribution *service.DistributionService,
	reports *service.ReportService,
	installments service.InstallmentStore,
	sched *scheduler.Scheduler,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		agreements:   agreements,
		distribution: distribution,
		reports:      reports,
		installments: installments,
		sched:        sched,
		log:          log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/reminder/:installmentID", h.reminderView)

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/agreements", h.createAgreement)
	protected.GET("/agreements/:id", h.getAgreement)
	protected.POST("/agreements/:id/signature", h.markSignatureReceived)
	protected.POST("/agreements/:id/cancel", h.cancelAgreement)

	protected.POST("/assignments/batch", h.pullBatch)
	protected.GET("/assignments/export", h.exportAssignments)

	protected.GET("/scheduler/status", h.schedulerStatus)
	protected.GET("/scheduler/preview", h.schedulerPreview)
	protected.POST("/scheduler/start", h.schedulerManage(func() error { return h.sched.Start() }))
	protected.POST("/scheduler/stop", h.schedulerManage(func() error { h.sched.Stop(); return nil }))
	protected.POST("/scheduler/enable", h.schedulerManage(func() error { h.sched.SetEnabled(true); return nil }))
	protected.POST("/scheduler/disable", h.schedulerManage(func() error { h.sched.SetEnabled(false); return nil }))
	protected.POST("/scheduler/reset-stats", h.schedulerManage(func() error { h.sched.ResetStats(); return nil }))
	protected.POST("/scheduler/trigger", h.schedulerTrigger)
	protected.PATCH("/scheduler/config", h.schedulerConfig)
}

type createAgreementRequest struct {
	CustomerID        string  `json:"customer_id" binding:"required"`
	PolicyNumber      string  `json:"policy_number" binding:"required"`
	OutstandingAmount float64 `json:"outstanding_amount" binding:"required"`
	PaymentMethod     string  `json:"payment_method" binding:"required"`
	DownPayment       float64 `json:"down_payment"`
	TermMonths        int     `json:"term_months"`
	StartDate         string  `json:"start_date"`
}

func (h *Handler) createAgreement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customerID, err := uuid.Parse(strings.TrimSpace(req.CustomerID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}

	var startDate time.Time
	if req.StartDate != "" {
		startDate, err = parseDate(req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
	}

	agreement, err := h.agreements.Create(c.Request.Context(), service.CreateAgreementInput{
		CustomerID:        customerID,
		PolicyNumber:      req.PolicyNumber,
		OutstandingAmount: req.OutstandingAmount,
		PaymentMethod:     model.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		DownPayment:       req.DownPayment,
		TermMonths:        req.TermMonths,
		StartDate:         startDate,
		Principal:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agreement)
}

func (h *Handler) getAgreement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agreement id"})
		return
	}
	agreement, err := h.agreements.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, agreement)
}

func (h *Handler) markSignatureReceived(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agreement id"})
		return
	}
	agreement, err := h.agreements.MarkSignatureReceived(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, agreement)
}

func (h *Handler) cancelAgreement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agreement id"})
		return
	}
	agreement, err := h.agreements.Cancel(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, agreement)
}

// reminderView is the public deep-link target embedded in outbound reminder
// messages.
func (h *Handler) reminderView(c *gin.Context) {
	id, err := uuid.Parse(c.Param("installmentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid installment id"})
		return
	}
	inst, err := h.installments.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"installment_id": inst.ID,
		"sequence":       inst.Sequence,
		"due_date":       inst.DueDate.Format("2006-01-02"),
		"amount":         inst.Amount,
		"status":         inst.Status,
		"payment_qr_ref": inst.PaymentQRRef,
	})
}

func (h *Handler) pullBatch(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	assignment, err := h.distribution.PullBatch(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

func (h *Handler) exportAssignments(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	result, err := h.reports.ExportAssignments(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) schedulerStatus(c *gin.Context) {
	if !h.requireCapability(c, model.OpViewScheduler) {
		return
	}
	c.JSON(http.StatusOK, h.sched.Status())
}

func (h *Handler) schedulerPreview(c *gin.Context) {
	if !h.requireCapability(c, model.OpViewScheduler) {
		return
	}
	items, err := h.sched.Preview(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eligible": items, "count": len(items)})
}

func (h *Handler) schedulerManage(action func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireCapability(c, model.OpManageScheduler) {
			return
		}
		if err := action(); err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, h.sched.Status())
	}
}

func (h *Handler) schedulerTrigger(c *gin.Context) {
	if !h.requireCapability(c, model.OpManageScheduler) {
		return
	}
	batch, err := h.sched.TriggerNow(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

type schedulerConfigRequest struct {
	Enabled              *bool    `json:"enabled"`
	CheckIntervalSeconds *int     `json:"check_interval_seconds"`
	ReminderTimes        []string `json:"reminder_times"`
}

func (h *Handler) schedulerConfig(c *gin.Context) {
	if !h.requireCapability(c, model.OpManageScheduler) {
		return
	}
	var req schedulerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.sched.Config()
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.CheckIntervalSeconds != nil {
		cfg.CheckInterval = time.Duration(*req.CheckIntervalSeconds) * time.Second
	}
	if req.ReminderTimes != nil {
		cfg.ReminderTimes = req.ReminderTimes
	}

	if err := h.sched.UpdateConfig(cfg); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sched.Status())
}

func (h *Handler) requireCapability(c *gin.Context, op model.Operation) bool {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return false
	}
	if !principal.Can(op) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoCustomersAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIntegrityGuard):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrphanedRecord):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExternalService):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
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
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

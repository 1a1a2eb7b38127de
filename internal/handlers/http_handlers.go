package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"lotteryd/internal/services"
	"lotteryd/internal/store"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	service    *services.LedgerService
	adminToken string
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LedgerService, adminToken string) *HTTPHandler {
	return &HTTPHandler{
		service:    service,
		adminToken: adminToken,
	}
}

// RegisterPublicRoutes registers the participant-facing routes.
func (h *HTTPHandler) RegisterPublicRoutes(router *gin.Engine) {
	router.POST("/participants", h.Register)
	router.GET("/participants/:id", h.GetParticipant)
	router.POST("/participants/:id/purchases", h.RecordPurchase)
	router.GET("/participants/:id/purchases", h.GetPendingPurchases)
	router.PUT("/participants/:id/wallet", h.SetPayoutAddress)
	router.GET("/participants/:id/commissions", h.GetCommissions)
	router.GET("/leaderboard", h.GetLeaderboard)
	router.GET("/draws", h.GetDrawHistory)
}

// RegisterAdminRoutes registers the admin-only routes. The caller is
// expected to have applied AdminMiddleware to the group.
func (h *HTTPHandler) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.POST("/participants/:id/confirm", h.ConfirmPurchase)
	group.POST("/participants/:id/reject", h.RejectPurchase)
	group.POST("/draws/run", h.RunDraw)
}

// AdminMiddleware rejects requests that do not carry the configured
// admin token in the X-Admin-Token header.
func (h *HTTPHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != h.adminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		c.Next()
	}
}

type registerRequest struct {
	ID          string `json:"id" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	ReferrerID  string `json:"referrerId"`
}

// Register handles participant registration. Repeated registration of
// the same identity returns the existing participant.
func (h *HTTPHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.service.Register(req.ID, req.DisplayName, req.ReferrerID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, participant)
}

// GetParticipant returns a participant with their confirmed ticket count.
func (h *HTTPHandler) GetParticipant(c *gin.Context) {
	participant, err := h.service.Participant(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, participant)
}

type purchaseRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// RecordPurchase creates pending purchase records for a participant.
func (h *HTTPHandler) RecordPurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.service.RecordPurchase(c.Param("id"), req.Quantity)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pending": len(records), "records": records})
}

// GetPendingPurchases lists a participant's pending purchase records.
func (h *HTTPHandler) GetPendingPurchases(c *gin.Context) {
	records, err := h.service.PendingPurchases(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": len(records), "records": records})
}

type walletRequest struct {
	Address string `json:"address" binding:"required"`
}

// SetPayoutAddress stores the participant's payout address.
func (h *HTTPHandler) SetPayoutAddress(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetPayoutAddress(c.Param("id"), req.Address); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetCommissions lists the commissions credited to a participant.
func (h *HTTPHandler) GetCommissions(c *gin.Context) {
	commissions, err := h.service.Commissions(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": commissions})
}

// GetLeaderboard returns the top confirmed-ticket holders.
func (h *HTTPHandler) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	entries, err := h.service.Leaderboard(limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// GetDrawHistory returns past draw results, latest first.
func (h *HTTPHandler) GetDrawHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	results, err := h.service.DrawHistory(limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draws": results})
}

// ConfirmPurchase confirms all pending purchases for a participant.
func (h *HTTPHandler) ConfirmPurchase(c *gin.Context) {
	result, err := h.service.ConfirmPurchase(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RejectPurchase rejects all pending purchases for a participant.
func (h *HTTPHandler) RejectPurchase(c *gin.Context) {
	rejected, err := h.service.RejectPurchase(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": rejected})
}

// RunDraw triggers the draw for today, or for the date given in the
// optional "date" query parameter (YYYY-MM-DD).
func (h *HTTPHandler) RunDraw(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	result, err := h.service.RunDailyDraw(date)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// renderError maps engine outcomes to HTTP status codes.
func (h *HTTPHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownParticipant):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNothingPending),
		errors.Is(err, services.ErrNoEligibleParticipants),
		errors.Is(err, services.ErrAlreadyDrawn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrStoreUnavailable):
		logger.Errorf("Store unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary storage problem, please retry"})
	default:
		logger.Errorf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUpcomingApprovals handles GET /api/residents/:resident_id/approvals/upcoming.
func (h *Handler) GetUpcomingApprovals(c *gin.Context) {
	approvals, err := h.svc.GetUpcomingApprovals(c.Request.Context(), c.Param("resident_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// GetExpiredApprovals handles GET /api/residents/:resident_id/approvals/expired.
func (h *Handler) GetExpiredApprovals(c *gin.Context) {
	approvals, err := h.svc.GetExpiredApprovals(c.Request.Context(), c.Param("resident_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// GetVisitorHistory handles GET /api/residents/:resident_id/history.
func (h *Handler) GetVisitorHistory(c *gin.Context) {
	events, err := h.svc.GetVisitorHistory(c.Request.Context(), c.Param("resident_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

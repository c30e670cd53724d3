package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSecurityQueue handles GET /api/security/queue.
func (h *Handler) GetSecurityQueue(c *gin.Context) {
	queue, err := h.svc.GetPreApprovedVisitors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// GetAnalytics handles GET /api/admin/analytics.
func (h *Handler) GetAnalytics(c *gin.Context) {
	summary, err := h.svc.GetAnalyticsData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetSuspiciousActivities handles GET /api/admin/suspicious.
func (h *Handler) GetSuspiciousActivities(c *gin.Context) {
	flagged, err := h.svc.GetSuspiciousActivities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flagged)
}

// Healthz handles GET /healthz. It fails when the database is unreachable.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"visitor-approval-backend/internal/visitor"
)

type createApprovalRequest struct {
	visitor.VisitorInput
	visitor.ResidentInfo
}

// CreateApproval handles POST /api/approvals.
func (h *Handler) CreateApproval(c *gin.Context) {
	var req createApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.svc.CreateApproval(c.Request.Context(), req.VisitorInput, req.ResidentInfo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetApproval handles GET /api/approvals/:id.
func (h *Handler) GetApproval(c *gin.Context) {
	a, err := h.svc.GetApprovalByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListApprovalsByMobile handles GET /api/approvals?mobile=.
func (h *Handler) ListApprovalsByMobile(c *gin.Context) {
	mobile, ok := c.GetQuery("mobile")
	if !ok {
		badRequest(c, "mobile is required")
		return
	}

	approvals, err := h.svc.GetApprovalsByMobile(c.Request.Context(), mobile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// GetApprovalByCode handles GET /api/codes/:code.
func (h *Handler) GetApprovalByCode(c *gin.Context) {
	a, err := h.svc.GetApprovalByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type officerRequest struct {
	OfficerID   string `json:"officerId"`
	OfficerName string `json:"officerName"`
}

// MarkEntry handles POST /api/approvals/:id/entry.
func (h *Handler) MarkEntry(c *gin.Context) {
	var req officerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.svc.MarkEntry(c.Request.Context(), c.Param("id"), req.OfficerID, req.OfficerName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// MarkExit handles POST /api/approvals/:id/exit.
func (h *Handler) MarkExit(c *gin.Context) {
	var req officerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.svc.MarkExit(c.Request.Context(), c.Param("id"), req.OfficerID, req.OfficerName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	ResidentID string `json:"residentId"`
}

// CancelApproval handles POST /api/approvals/:id/cancel. The body is optional.
func (h *Handler) CancelApproval(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}

	a, err := h.svc.CancelApproval(c.Request.Context(), c.Param("id"), req.ResidentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

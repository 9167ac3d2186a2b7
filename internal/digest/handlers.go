package digest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/logging"
	"github.com/jdcruz/wmsgate/internal/validation"
)

// Handler provides the digest endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a digest handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up digest routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/digest/email", h.SendDigest)
}

// SendDigestRequest is the body for POST /api/digest/email.
type SendDigestRequest struct {
	Company    string   `json:"company"`
	Branch     string   `json:"branch"`
	Recipients []string `json:"recipients"`
}

// SendDigest handles POST /api/digest/email.
func (h *Handler) SendDigest(c *gin.Context) {
	var req SendDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.NonEmpty(req.Company, req.Branch) || len(req.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_fields",
			"message": "company, branch and at least one recipient are required",
		})
		return
	}

	count, res, err := h.service.BuildAndSend(c.Request.Context(), req.Company, req.Branch, req.Recipients)
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("digest delivery failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "delivery_failed",
			"message": "Digest was built but could not be delivered",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"flagged": count,
	})
}

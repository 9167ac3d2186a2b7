package reports

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/logging"
)

// Handler provides the activity report endpoint.
type Handler struct {
	store *Store
}

// NewHandler creates a reports handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up report routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reports/activity", h.RecentActivity)
}

// RecentActivity handles GET /api/reports/activity.
func (h *Handler) RecentActivity(c *gin.Context) {
	if !h.store.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "reports_disabled",
			"message": "No reporting database is configured",
		})
		return
	}

	days := 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_days",
				"message": "days must be an integer between 1 and 90",
			})
			return
		}
		days = n
	}

	activity, err := h.store.RecentActivity(c.Request.Context(), days)
	if err != nil {
		logging.L(c.Request.Context()).Error("activity report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "report_failed",
			"message": "Could not read the activity report",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":  activity,
		"count": len(activity),
		"days":  days,
	})
}

// Package catalog serves the simple code/name reference lists the
// dashboard's pickers are built from: items, storage locations, customers,
// pallet addresses, and company branches.
package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/normalize"
	"github.com/jdcruz/wmsgate/internal/validation"
)

// codeNameSchema is shared by every picker list: the backend exposes CODE
// and NAME columns whose casing drifts between deployments.
var codeNameSchema = normalize.Schema{
	{Name: "code", Keys: []string{"CODE", "code"}},
	{Name: "name", Keys: []string{"NAME", "name"}},
}

// Handler provides the catalog read endpoints.
type Handler struct {
	client *backend.Client
}

// NewHandler creates a catalog handler.
func NewHandler(client *backend.Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes sets up catalog routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/items", h.list("getitems"))
	r.GET("/locations", h.list("getlocations"))
	r.GET("/customers", h.list("getcustomers"))
	r.GET("/pallet-addresses", h.list("getpalletaddresses"))
	r.GET("/branches", h.ListBranches)
}

// list builds a handler for one tenant-scoped code/name lookup.
func (h *Handler) list(command string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := validation.RequireScope(c)
		if !ok {
			return
		}

		res := h.client.Call(c.Request.Context(), backend.Command{
			Type: command,
			Params: map[string]any{
				"company": scope.Company,
				"branch":  scope.Branch,
			},
		})
		if !res.OK {
			backend.AbortWithResult(c, res)
			return
		}

		rows := codeNameSchema.ApplyAll(normalize.ExtractRows(res.Parsed))
		c.JSON(http.StatusOK, gin.H{
			"rows":  rows,
			"count": len(rows),
		})
	}
}

// ListBranches handles GET /api/branches.
// Branch listing is how a branch gets selected in the first place, so it
// only requires the company.
func (h *Handler) ListBranches(c *gin.Context) {
	company, ok := validation.RequireCompany(c)
	if !ok {
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type:   "getbranches",
		Params: map[string]any{"company": company},
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	rows := codeNameSchema.ApplyAll(normalize.ExtractRows(res.Parsed))
	c.JSON(http.StatusOK, gin.H{
		"rows":  rows,
		"count": len(rows),
	})
}

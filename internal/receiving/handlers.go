// Package receiving serves receiving documents and their line views, plus
// the two validation commands the warehouse floor uses while checking
// goods in.
package receiving

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/logging"
	"github.com/jdcruz/wmsgate/internal/normalize"
	"github.com/jdcruz/wmsgate/internal/validation"
)

// DocumentSchema normalizes receiving document rows.
//
// isConfirmed is a raw passthrough: the backend stores it as 'Y'/'N' in
// some deployments and 0/1 in others, and the frontend branches on the
// exact value. The total columns are deliberately unguarded; legacy rows
// can carry non-numeric garbage there and the table renders it as-is.
var DocumentSchema = normalize.Schema{
	{Name: "documentNo", Keys: []string{"DOCUMENTNO", "documentNo"}},
	{Name: "status", Keys: []string{"STATUS", "status"}},
	{Name: "isConfirmed", Keys: []string{"U_CONFIRMED", "u_confirmed", "CONFIRMED", "confirmed"}, Kind: normalize.Raw},
	{Name: "confirmedBy", Keys: []string{"CONFIRMEDBY", "confirmedBy"}},
	{Name: "confirmedDateTime", Keys: []string{"CONFIRMEDDATETIME", "confirmedDateTime"}},
	{Name: "receivingType", Keys: []string{"RECEIVINGTYPE", "receivingType"}},
	{Name: "customerNo", Keys: []string{"CUSTOMERNO", "customerNo"}},
	{Name: "customerName", Keys: []string{"CUSTOMERNAME", "customerName"}},
	{Name: "customerGroup", Keys: []string{"CUSTOMERGROUP", "customerGroup"}},
	{Name: "palletId", Keys: []string{"BATCH", "batch"}},
	{Name: "location", Keys: []string{"LOCATION", "location"}},
	{Name: "remarks", Keys: []string{"REMARKS", "remarks"}},
	{Name: "systemReceivingDate", Keys: []string{"SYSTEMRECEIVINGDATE", "systemReceivingDate"}},
	{Name: "documentReceivingDate", Keys: []string{"DOCUMENTRECEIVINGDATE", "documentReceivingDate"}},
	{Name: "totalQty", Keys: []string{"TOTALQTY", "totalQty"}, Kind: normalize.Number},
	{Name: "totalHeads", Keys: []string{"TOTALHEADS", "totalHeads"}, Kind: normalize.Number},
	{Name: "totalWeight", Keys: []string{"TOTALWEIGHT", "totalWeight"}, Kind: normalize.Number},
}

// EventEmitter receives confirmation events for live dashboards.
type EventEmitter interface {
	EmitConfirmed(company, branch, documentNo, confirmedBy string)
}

// Handler provides the receiving endpoints.
type Handler struct {
	client *backend.Client
	events EventEmitter
}

// NewHandler creates a receiving handler.
func NewHandler(client *backend.Client) *Handler {
	return &Handler{client: client}
}

// WithEvents attaches a confirmation event emitter.
func (h *Handler) WithEvents(events EventEmitter) *Handler {
	h.events = events
	return h
}

// RegisterRoutes sets up receiving routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/receiving", h.ListDocuments)
	r.GET("/receiving/lines", h.ListLines)
	r.POST("/receiving/validate", h.ValidateDocument)
	r.POST("/locations/validate", h.ValidateLocation)
}

// ListDocuments handles GET /api/receiving.
func (h *Handler) ListDocuments(c *gin.Context) {
	scope, ok := validation.RequireScope(c)
	if !ok {
		return
	}

	params := map[string]any{
		"company": scope.Company,
		"branch":  scope.Branch,
	}
	for _, key := range []string{"documentNo", "customer", "status", "dateFrom", "dateTo"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			params[key] = v
		}
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type:   "getreceiving",
		Params: params,
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	rows := DocumentSchema.ApplyAll(normalize.ExtractRows(res.Parsed))
	c.JSON(http.StatusOK, gin.H{
		"rows":  rows,
		"count": len(rows),
	})
}

// ListLines handles GET /api/receiving/lines.
func (h *Handler) ListLines(c *gin.Context) {
	scope, ok := validation.RequireScope(c)
	if !ok {
		return
	}

	documentNo := strings.TrimSpace(c.Query("documentNo"))
	if documentNo == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_document",
			"message": "documentNo query parameter is required",
		})
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type: "getreceivinglines",
		Params: map[string]any{
			"company":    scope.Company,
			"branch":     scope.Branch,
			"documentNo": documentNo,
		},
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	rows := DocumentSchema.ApplyAll(normalize.ExtractRows(res.Parsed))
	c.JSON(http.StatusOK, gin.H{
		"rows":  rows,
		"count": len(rows),
	})
}

// ValidateDocumentRequest is the body for POST /api/receiving/validate.
type ValidateDocumentRequest struct {
	Company     string `json:"company"`
	Branch      string `json:"branch"`
	DocumentNo  string `json:"documentNo"`
	ConfirmedBy string `json:"confirmedBy"`
}

// ValidateDocument handles POST /api/receiving/validate.
// The backend marks the document confirmed; on success the confirmation
// is broadcast to connected dashboards.
func (h *Handler) ValidateDocument(c *gin.Context) {
	var req ValidateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.NonEmpty(req.Company, req.Branch, req.DocumentNo) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_fields",
			"message": "company, branch and documentNo are required",
		})
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type: "validatereceiving",
		Params: map[string]any{
			"company":     req.Company,
			"branch":      req.Branch,
			"documentNo":  req.DocumentNo,
			"confirmedBy": req.ConfirmedBy,
		},
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	// A 200 from the PHP side can still be a refusal.
	if rejected(res.Parsed) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": res.Message("Document could not be confirmed"),
			"php":     res.Parsed,
			"raw":     res.RawBody,
		})
		return
	}

	if h.events != nil {
		h.events.EmitConfirmed(req.Company, req.Branch, req.DocumentNo, req.ConfirmedBy)
	}
	logging.L(c.Request.Context()).Info("receiving document confirmed",
		"document_no", req.DocumentNo,
		"company", req.Company,
		"branch", req.Branch,
	)

	c.JSON(http.StatusOK, gin.H{
		"ok":  true,
		"php": res.Parsed,
	})
}

// ValidateLocationRequest is the body for POST /api/locations/validate.
type ValidateLocationRequest struct {
	Company  string `json:"company"`
	Branch   string `json:"branch"`
	Location string `json:"location"`
}

// ValidateLocation handles POST /api/locations/validate.
func (h *Handler) ValidateLocation(c *gin.Context) {
	var req ValidateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.NonEmpty(req.Company, req.Branch, req.Location) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_fields",
			"message": "company, branch and location are required",
		})
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type: "validatelocation",
		Params: map[string]any{
			"company":  req.Company,
			"branch":   req.Branch,
			"location": req.Location,
		},
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"valid": !rejected(res.Parsed),
		"php":   res.Parsed,
	})
}

// rejected reports whether a parsed 200 response carries failure semantics
// ({success:false} or an error field).
func rejected(parsed any) bool {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return false
	}
	if success, ok := obj["success"].(bool); ok && !success {
		return true
	}
	if _, ok := obj["error"]; ok {
		return true
	}
	return false
}

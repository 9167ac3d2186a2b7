// Package inventory serves the dashboard's stock views: cold-room
// occupancy cards and the main inventory table.
package inventory

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/normalize"
	"github.com/jdcruz/wmsgate/internal/validation"
)

// Expiry statuses the table exposes. Whatever casing or garbage the
// backend sends collapses into one of these three.
const (
	ExpiryGood = "GOOD"
	ExpiryNear = "NEAR EXPIRY"
	ExpiryPast = "EXPIRED"
)

// RoomSchema normalizes the room occupancy rows. The pallet quantity
// column has drifted through five names over the years; all room numbers
// are guarded because the occupancy cards must always render finite values.
var RoomSchema = normalize.Schema{
	{Name: "roomCode", Keys: []string{"ROOMCODE", "roomCode"}},
	{Name: "palletTotalQty", Keys: []string{"BarcodeTotalQty", "barcodeTotalQty", "PalletTotalQty", "palletTotalQty", "palletTotalqty"}, Kind: normalize.NumberGuarded},
	{Name: "totalPalletCount", Keys: []string{"TOTALPALLETCOUNT", "totalPalletCount"}, Kind: normalize.NumberGuarded},
	{Name: "totalPalletUsedQty", Keys: []string{"TOTALPALLETUSEDQTY", "totalPalletUsedQty"}, Kind: normalize.NumberGuarded},
	{Name: "totalWeight", Keys: []string{"TOTALWEIGHT", "totalWeight"}, Kind: normalize.NumberGuarded},
	{Name: "totalHeadPacks", Keys: []string{"TOTALHEADPACKS", "totalHeadPacks"}, Kind: normalize.NumberGuarded},
}

// TableSchema normalizes the inventory table rows. Aggregate columns
// (TOTAL*) win over their per-line counterparts when both are present.
var TableSchema = normalize.Schema{
	{Name: "recDate", Keys: []string{"RECDATE", "recDate"}},
	{Name: "custNo", Keys: []string{"CUSTNO", "custNo"}},
	{Name: "custName", Keys: []string{"CUSTNAME", "custName"}},
	{Name: "receivedType", Keys: []string{"RECEIVEDTYPE", "receivedType"}},
	{Name: "itemNo", Keys: []string{"ITEMNO", "itemNo"}},
	{Name: "itemName", Keys: []string{"ITEMNAME", "itemName"}},
	{Name: "batch", Keys: []string{"BATCH", "batch"}},
	{Name: "barcode", Keys: []string{"U_TAGNO", "u_tagno"}},
	{Name: "location", Keys: []string{"LOCATION", "location"}},
	{Name: "headsPacks", Keys: []string{"TOTALNUMPERHEADS", "totalNumPerHeads", "NUMPERHEADS", "numPerHeads"}, Kind: normalize.NumberGuarded},
	{Name: "quantity", Keys: []string{"TOTALQUANTITY", "totalQuantity", "QUANTITY", "quantity"}, Kind: normalize.NumberGuarded},
	{Name: "weight", Keys: []string{"TOTALWEIGHT", "totalWeight", "WEIGHT", "weight"}, Kind: normalize.NumberGuarded},
	{Name: "uom", Keys: []string{"UOM", "uom"}},
	{Name: "pd", Keys: []string{"PD", "pd"}},
	{Name: "ed", Keys: []string{"ED", "ed"}},
	{Name: "expiryStatus", Keys: []string{"EXPIRYSTATUS", "expiryStatus"}},
}

// NormalizeExpiry collapses the backend's expiry flag into one of the
// three canonical statuses, defaulting to GOOD.
func NormalizeExpiry(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case ExpiryNear:
		return ExpiryNear
	case ExpiryPast:
		return ExpiryPast
	default:
		return ExpiryGood
	}
}

// TableRows runs the full inventory normalization pipeline for one parsed
// backend response: envelope extraction, coalescing, expiry collapsing.
// Shared with the digest builder.
func TableRows(parsed any) []map[string]any {
	rows := TableSchema.ApplyAll(normalize.ExtractRows(parsed))
	for _, row := range rows {
		status, _ := row["expiryStatus"].(string)
		row["expiryStatus"] = NormalizeExpiry(status)
	}
	return rows
}

// Handler provides the inventory read endpoints.
type Handler struct {
	client *backend.Client
}

// NewHandler creates an inventory handler.
func NewHandler(client *backend.Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes sets up inventory routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rooms", h.ListRooms)
	r.GET("/inventory", h.ListInventory)
}

// ListRooms handles GET /api/rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	scope, ok := validation.RequireScope(c)
	if !ok {
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type: "getrooms",
		Params: map[string]any{
			"company": scope.Company,
			"branch":  scope.Branch,
		},
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	rows := RoomSchema.ApplyAll(normalize.ExtractRows(res.Parsed))
	c.JSON(http.StatusOK, gin.H{
		"rows":  rows,
		"count": len(rows),
	})
}

// ListInventory handles GET /api/inventory.
// Optional filters ride through to the backend untouched; the backend
// ignores the ones it does not know.
func (h *Handler) ListInventory(c *gin.Context) {
	scope, ok := validation.RequireScope(c)
	if !ok {
		return
	}

	params := map[string]any{
		"company": scope.Company,
		"branch":  scope.Branch,
	}
	for _, key := range []string{"customer", "item", "location", "batch", "dateFrom", "dateTo"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			params[key] = v
		}
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type:   "getinventory",
		Params: params,
	})
	if !res.OK {
		backend.AbortWithResult(c, res)
		return
	}

	rows := TableRows(res.Parsed)

	// Optional local expiry filter: the legacy side has no notion of the
	// normalized status, so this one is applied after coalescing.
	if want := NormalizeExpiry(c.Query("expiryStatus")); c.Query("expiryStatus") != "" {
		filtered := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			if row["expiryStatus"] == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":  rows,
		"count": len(rows),
	})
}

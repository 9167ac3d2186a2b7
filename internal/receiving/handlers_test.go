package receiving

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmitter is a test double for EventEmitter.
type recordingEmitter struct {
	confirmed []string
}

func (e *recordingEmitter) EmitConfirmed(company, branch, documentNo, confirmedBy string) {
	e.confirmed = append(e.confirmed, documentNo)
}

func setupReceivingRouter(t *testing.T, backendFn http.HandlerFunc) (*gin.Engine, *recordingEmitter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(backendFn)
	t.Cleanup(srv.Close)

	client := backend.New(backend.Config{BaseURL: srv.URL, ObjectCode: "WMSDASH"})
	emitter := &recordingEmitter{}
	r := gin.New()
	NewHandler(client).WithEvents(emitter).RegisterRoutes(r.Group("/api"))
	return r, emitter
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestListDocumentsNormalization(t *testing.T) {
	var gotBody map[string]any
	router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"rows":[
			{"DOCUMENTNO":"RD-100","U_CONFIRMED":"Y","BATCH":"PLT-7","TOTALQTY":"250","CUSTOMERNAME":"Acme"},
			{"documentNo":"RD-101","confirmed":0,"totalQty":null}
		]}`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/receiving?company=C1&branch=B1&status=open", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "getreceiving", gotBody["type"])
	assert.Equal(t, "open", gotBody["status"])

	var body struct {
		Rows  []map[string]any `json:"rows"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)

	first := body.Rows[0]
	assert.Equal(t, "RD-100", first["documentNo"])
	assert.Equal(t, "Y", first["isConfirmed"], "confirmed flag passes through untouched")
	assert.Equal(t, "PLT-7", first["palletId"], "pallet id reads from the BATCH column")
	assert.Equal(t, 250.0, first["totalQty"])
	assert.Equal(t, "Acme", first["customerName"])

	second := body.Rows[1]
	assert.Equal(t, 0.0, second["isConfirmed"], "numeric confirmed flag keeps its type")
	assert.Equal(t, 0.0, second["totalQty"], "null total coerces to 0")
}

func TestListDocumentsGarbageTotalSerializesNull(t *testing.T) {
	router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"DOCUMENTNO":"RD-102","TOTALQTY":"garbage","TOTALWEIGHT":"88.5"}]`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/receiving?company=C1&branch=B1", nil)
	router.ServeHTTP(w, req)

	// A single unparsable total must not blank the whole response.
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Body.String())

	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)

	row := body.Rows[0]
	assert.Equal(t, "RD-102", row["documentNo"])
	assert.Nil(t, row["totalQty"], "garbage total serializes as null")
	assert.Equal(t, 88.5, row["totalWeight"], "parsable totals stay numeric")
}

func TestListLinesRequiresDocumentNo(t *testing.T) {
	router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call without a document number")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/receiving/lines?company=C1&branch=B1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "missing_document", body["error"])
}

func TestListLinesForwardsDocumentNo(t *testing.T) {
	var gotBody map[string]any
	router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[]`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/receiving/lines?company=C1&branch=B1&documentNo=RD-100", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "getreceivinglines", gotBody["type"])
	assert.Equal(t, "RD-100", gotBody["documentNo"])
}

func TestValidateDocumentSuccessEmitsEvent(t *testing.T) {
	router, emitter := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	w := postJSON(router, "/api/receiving/validate", gin.H{
		"company": "C1", "branch": "B1", "documentNo": "RD-100", "confirmedBy": "jd",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.NotNil(t, body["php"])
	assert.Equal(t, []string{"RD-100"}, emitter.confirmed)
}

func TestValidateDocumentBackendRefusal(t *testing.T) {
	// HTTP 200 with failure semantics in the body.
	router, emitter := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Document already confirmed"}`))
	})

	w := postJSON(router, "/api/receiving/validate", gin.H{
		"company": "C1", "branch": "B1", "documentNo": "RD-100",
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, "Document already confirmed", body["message"])
	assert.NotNil(t, body["php"])
	assert.NotEmpty(t, body["raw"])
	assert.Empty(t, emitter.confirmed, "refused documents emit no event")
}

func TestValidateDocumentMissingFields(t *testing.T) {
	router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call for incomplete requests")
	})

	w := postJSON(router, "/api/receiving/validate", gin.H{"company": "C1", "branch": "B1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "missing_fields", body["error"])
}

func TestValidateDocumentBackendError(t *testing.T) {
	router, emitter := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"db deadlock"}`))
	})

	w := postJSON(router, "/api/receiving/validate", gin.H{
		"company": "C1", "branch": "B1", "documentNo": "RD-100",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "backend_rejected", body["error"])
	assert.Empty(t, emitter.confirmed)
}

func TestValidateLocation(t *testing.T) {
	t.Run("known location", func(t *testing.T) {
		router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"location":"A-01-01"}`))
		})

		w := postJSON(router, "/api/locations/validate", gin.H{
			"company": "C1", "branch": "B1", "location": "A-01-01",
		})

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["valid"])
	})

	t.Run("unknown location", func(t *testing.T) {
		router, _ := setupReceivingRouter(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"no such location"}`))
		})

		w := postJSON(router, "/api/locations/validate", gin.H{
			"company": "C1", "branch": "B1", "location": "ZZ-99",
		})

		// An unknown location is still a 200; validity rides in the body.
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["valid"])
	})
}

func TestRejected(t *testing.T) {
	tests := []struct {
		name   string
		parsed any
		want   bool
	}{
		{"success true", map[string]any{"success": true}, false},
		{"success false", map[string]any{"success": false}, true},
		{"error field", map[string]any{"error": "boom"}, true},
		{"no markers", map[string]any{"rows": []any{}}, false},
		{"bare array", []any{}, false},
		{"scalar", "ok", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rejected(tt.parsed))
		})
	}
}

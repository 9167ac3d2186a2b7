package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/t", func(c *gin.Context) {
		scope, ok := RequireScope(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"company": scope.Company, "branch": scope.Branch})
	})

	t.Run("both present", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/t?company=C1&branch=B1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got %d, want 200", w.Code)
		}
	})

	t.Run("whitespace is missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/t?company=%20%20&branch=B1", nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", w.Code)
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["error"] != "missing_scope" {
			t.Errorf("error = %v, want missing_scope", body["error"])
		}
	})

	t.Run("branch missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/t?company=C1", nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", w.Code)
		}
	})
}

func TestRequireCompany(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/t", func(c *gin.Context) {
		company, ok := RequireCompany(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, company)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/t?company=C1", nil))
	if w.Code != http.StatusOK || w.Body.String() != "C1" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/t", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(64))
	r.POST("/t", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	small := strings.NewReader(`{"a":"b"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/t", small))
	if w.Code != http.StatusOK {
		t.Errorf("small body: got %d, want 200", w.Code)
	}

	big := strings.NewReader(`{"a":"` + strings.Repeat("x", 200) + `"}`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/t", big))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("big body: got %d, want 413", w.Code)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello  ", 100); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := SanitizeString("a\x00b", 100); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestNonEmpty(t *testing.T) {
	if !NonEmpty("a", "b") {
		t.Error("all non-blank should pass")
	}
	if NonEmpty("a", "") {
		t.Error("blank value should fail")
	}
	if NonEmpty("a", "   ") {
		t.Error("whitespace-only value should fail")
	}
	if !NonEmpty() {
		t.Error("vacuously true for no values")
	}
}

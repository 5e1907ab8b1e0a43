package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docharvest/pkg/auth"
	"docharvest/pkg/auth/static"
)

func newStaticValidator(t *testing.T, token string) auth.Validator {
	t.Helper()
	v, err := static.NewValidatorFromJSON(json.RawMessage(`"` + token + `"`))
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	return v
}

func authTestRouter(v auth.Validator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/extract", AuthMiddleware(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r := authTestRouter(newStaticValidator(t, "tok"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := authTestRouter(newStaticValidator(t, "tok"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := authTestRouter(newStaticValidator(t, "tok"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/extract", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddlewareNilValidatorPassesThrough(t *testing.T) {
	r := authTestRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/extract", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth configured, got %d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer tok":   "tok",
		"bearer tok":   "tok",
		"Basic x":      "",
		"Bearer  tok ": "tok",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pharmexa/pharmastock-backend/pkg/config"
)

func testDeps() Deps {
	return Deps{
		Config: &config.Config{
			App: config.AppConfig{Env: "dev"},
			JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "pharmastock", ExpirationMinutes: 60},
		},
	}
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec.Header().Get("X-PharmaStock-Env") != "dev" {
		t.Fatalf("expected env header, got %q", rec.Header().Get("X-PharmaStock-Env"))
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := NewRouter(testDeps())

	paths := []string{
		"/api/v1/medications",
		"/api/v1/alerts/summary",
		"/api/v1/replenishments/pending",
		"/api/v1/categories",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
	}
}

func TestMetricsHiddenWithoutRegistry(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when registry is not wired, got %d", rec.Code)
	}
}

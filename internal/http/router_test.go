// README: Router tests: health probe and the auth boundary.
package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rewear/internal/infra"
)

func newTestRouter() http.Handler {
	// nil services are safe here: every /api route aborts in Auth before a
	// handler touches its service.
	return NewRouter(infra.NewJWTVerifier("test-secret"), nil, nil, nil)
}

func TestHealthOpen(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/orders"},
		{http.MethodGet, "/api/orders/as-seller"},
		{http.MethodGet, "/api/orders/some-id"},
		{http.MethodPut, "/api/orders/some-id/cancel"},
		{http.MethodPost, "/api/orders/some-id/confirm"},
		{http.MethodPost, "/api/deliveries/quote"},
		{http.MethodGet, "/api/deliveries/as-driver"},
		{http.MethodGet, "/api/deliveries/some-id"},
		{http.MethodPost, "/api/deliveries/some-id/assign-driver"},
		{http.MethodPost, "/api/deliveries/some-id/pickup"},
		{http.MethodPost, "/api/deliveries/some-id/deliver"},
		{http.MethodPost, "/api/deliveries/some-id/cancel"},
		{http.MethodPost, "/api/charity/accept-donation/some-id"},
		{http.MethodPost, "/api/charity/mark-distributed/some-id"},
	}

	r := newTestRouter()
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

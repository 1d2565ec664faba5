// README: Auth middleware tests with real signed tokens.
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"rewear/internal/infra"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(expiresIn).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func testRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Auth(infra.NewJWTVerifier(testSecret)), func(c *gin.Context) {
		actor, ok := CallerActor(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no actor")
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})
	return r
}

func TestAuth_ValidToken(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "charity", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"id":"user-1","role":"charity"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", signToken(t, "user-1", "user", -time.Hour)},
		{"wrong key", signWithKey(t, "other-secret")},
		{"no subject", signToken(t, "", "user", time.Hour)},
	}
	r := testRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func signWithKey(t *testing.T, key string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestCallerActor_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := CallerActor(c); ok {
		t.Fatal("expected no actor on a bare context")
	}
}

func TestBearerToken(t *testing.T) {
	if got := bearerToken("Bearer abc"); got != "abc" {
		t.Errorf("bearerToken = %q", got)
	}
	if got := bearerToken("Basic abc"); got != "" {
		t.Errorf("bearerToken on Basic = %q", got)
	}
	if got := bearerToken(""); got != "" {
		t.Errorf("bearerToken on empty = %q", got)
	}
}

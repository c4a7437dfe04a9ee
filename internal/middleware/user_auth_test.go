package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/auth"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, userID primitive.ObjectID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID.Hex(),
		"role":   role,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type stubBlacklist struct{ revoked bool }

func (s stubBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return nil
}

func (s stubBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.revoked, nil
}

func runAuthRequest(handler gin.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}
	handler(c)
	return recorder, c
}

func TestUserAuthSetsIdentity(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signTestToken(t, userID, "user")

	recorder, c := runAuthRequest(UserAuth(testSecret, auth.NoopBlacklist{}), "Bearer "+token)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	value, ok := c.Get("userId")
	if !ok {
		t.Fatal("expected userId on context")
	}
	if got, _ := value.(primitive.ObjectID); got != userID {
		t.Fatalf("expected userId %s, got %v", userID.Hex(), value)
	}

	role, _ := c.Get("role")
	if role != "user" {
		t.Fatalf("expected role user, got %v", role)
	}
}

func TestUserAuthRejectsMissingHeader(t *testing.T) {
	recorder, _ := runAuthRequest(UserAuth(testSecret, auth.NoopBlacklist{}), "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestUserAuthRejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	recorder, _ := runAuthRequest(UserAuth(testSecret, auth.NoopBlacklist{}), "Bearer "+signed)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestUserAuthRejectsRevokedToken(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "user")

	recorder, _ := runAuthRequest(UserAuth(testSecret, stubBlacklist{revoked: true}), "Bearer "+token)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestUserAuthRejectsExpiredToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": primitive.NewObjectID().Hex(),
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	recorder, _ := runAuthRequest(UserAuth(testSecret, auth.NoopBlacklist{}), "Bearer "+signed)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestAdminAuthRejectsUserRole(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "user")

	recorder, _ := runAuthRequest(AdminAuth(testSecret, auth.NoopBlacklist{}), "Bearer "+token)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestAdminAuthAllowsAdminRole(t *testing.T) {
	token := signTestToken(t, primitive.NewObjectID(), "admin")

	recorder, _ := runAuthRequest(AdminAuth(testSecret, auth.NoopBlacklist{}), "Bearer "+token)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

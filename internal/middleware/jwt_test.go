package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/elysium/points-auction/internal/model"
	"github.com/elysium/points-auction/internal/testutil"
	"github.com/elysium/points-auction/internal/utils"
)

const testSecret = "unit-test-secret"

// echoCapture runs a request through JWTAuth plus the given extra
// middleware and records who the innermost handler saw.
func echoCapture(t *testing.T, authHeader string, extra ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, model.Member) {
	t.Helper()
	e := echo.New()
	var seen model.Member
	h := func(c echo.Context) error {
		seen = Identity(c)
		return c.NoContent(http.StatusOK)
	}
	// Apply extras inside JWTAuth, mirroring group registration order.
	inner := h
	for i := len(extra) - 1; i >= 0; i-- {
		inner = extra[i](inner)
	}
	chain := JWTAuth(testSecret)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	if err := chain(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler chain: %v", err)
	}
	return rec, seen
}

func TestJWTAuthMissingToken(t *testing.T) {
	rec, _ := echoCapture(t, "")
	testutil.AssertEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsGarbage(t *testing.T) {
	rec, _ := echoCapture(t, "Bearer not-a-token")
	testutil.AssertEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("a-different-secret", "Aria", model.RoleMember, 15)
	testutil.AssertNoError(t, err)
	rec, _ := echoCapture(t, "Bearer "+tok.Token)
	testutil.AssertEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthExtractsIdentity(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "Aria", model.RoleMember, 15)
	testutil.AssertNoError(t, err)
	rec, seen := echoCapture(t, "Bearer "+tok.Token)
	testutil.AssertEqual(t, http.StatusOK, rec.Code)
	testutil.AssertEqual(t, "Aria", seen.Name)
	testutil.AssertEqual(t, model.RoleMember, seen.Role)
	testutil.AssertFalse(t, seen.IsAdmin())
}

func TestRequireRoleBlocksMembers(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "Aria", model.RoleMember, 15)
	testutil.AssertNoError(t, err)
	rec, _ := echoCapture(t, "Bearer "+tok.Token, RequireRole(model.RoleAdmin))
	testutil.AssertEqual(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAdmits(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, "Marshal", model.RoleAdmin, 15)
	testutil.AssertNoError(t, err)
	rec, seen := echoCapture(t, "Bearer "+tok.Token, RequireRole(model.RoleMember, model.RoleAdmin))
	testutil.AssertEqual(t, http.StatusOK, rec.Code)
	testutil.AssertTrue(t, seen.IsAdmin())
}

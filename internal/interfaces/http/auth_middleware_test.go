package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/fbs-core/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/fbs-core/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "user-1"
	testCompanyID = "company-1"
	testIssuer    = "fbs-core-test"
)

// guardedApp expone GET /guarded detrás de AuthMiddleware y RequireRole y devuelve la identidad cargada.
func guardedApp(allowed ...string) *fiber.App {
	app := fiber.New()
	app.Get("/guarded", apphttp.AuthMiddleware(testJWTSecret), apphttp.RequireRole(allowed...), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":    apphttp.GetUserID(c),
			"company_id": apphttp.GetCompanyID(c),
			"role":       apphttp.GetRole(c),
		})
	})
	return app
}

func tokenFor(t *testing.T, companyID, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testIssuer, pkgjwt.Identity{UserID: testUserID, CompanyID: companyID, Role: role}, ttl)
	require.NoError(t, err)
	return "Bearer " + tok
}

// tokenForRole token vigente de la empresa de prueba con el rol indicado.
func tokenForRole(t *testing.T, role string) string {
	return tokenFor(t, testCompanyID, role, time.Hour)
}

func getGuarded(t *testing.T, app *fiber.App, authHeader string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// ──────────────────────────────────────────────────────────────────────────────
// Matriz de roles
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_MatrizDeOperaciones(t *testing.T) {
	staff := []string{apphttp.RoleAdmin, apphttp.RoleBodeguero}
	sellers := []string{apphttp.RoleAdmin, apphttp.RoleBodeguero, apphttp.RoleVendedor}
	webhooks := []string{apphttp.RoleAdmin, apphttp.RoleIntegracion}
	admin := []string{apphttp.RoleAdmin}

	cases := []struct {
		name    string
		allowed []string
		role    string
		status  int
	}{
		{"bodeguero ajusta stock", staff, apphttp.RoleBodeguero, http.StatusOK},
		{"vendedor no ajusta stock", staff, apphttp.RoleVendedor, http.StatusForbidden},
		{"integracion no ajusta stock", staff, apphttp.RoleIntegracion, http.StatusForbidden},
		{"vendedor procesa pedidos", sellers, apphttp.RoleVendedor, http.StatusOK},
		{"integracion no procesa pedidos", sellers, apphttp.RoleIntegracion, http.StatusForbidden},
		{"integracion recibe webhooks", webhooks, apphttp.RoleIntegracion, http.StatusOK},
		{"bodeguero no recibe webhooks", webhooks, apphttp.RoleBodeguero, http.StatusForbidden},
		{"solo admin aprueba", admin, apphttp.RoleAdmin, http.StatusOK},
		{"bodeguero no aprueba", admin, apphttp.RoleBodeguero, http.StatusForbidden},
		{"rol desconocido", sellers, "auditor", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := getGuarded(t, guardedApp(tc.allowed...), tokenForRole(t, tc.role))
			assert.Equal(t, tc.status, status)
			if tc.status == http.StatusForbidden {
				assert.Contains(t, body, "FORBIDDEN")
			}
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Token
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_TokensRechazados(t *testing.T) {
	expired := tokenFor(t, testCompanyID, apphttp.RoleAdmin, -time.Minute)
	foreign, err := pkgjwt.Generate("otro-secreto", testIssuer,
		pkgjwt.Identity{UserID: testUserID, CompanyID: testCompanyID, Role: apphttp.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin header", "", "MISSING_TOKEN"},
		{"sin esquema Bearer", "Token abc", "INVALID_TOKEN"},
		{"malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
		{"expirado", expired, "INVALID_TOKEN"},
		{"firmado con otro secreto", "Bearer " + foreign, "INVALID_TOKEN"},
		{"sin empresa", tokenFor(t, "", apphttp.RoleAdmin, time.Hour), "UNAUTHORIZED"},
		{"sin rol", tokenForRole(t, ""), "MISSING_ROLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := getGuarded(t, guardedApp(apphttp.RoleAdmin), tc.header)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Contains(t, body, tc.code)
		})
	}
}

func TestAuthMiddleware_CargaLaIdentidad(t *testing.T) {
	status, body := getGuarded(t, guardedApp(apphttp.RoleBodeguero), tokenForRole(t, apphttp.RoleBodeguero))
	require.Equal(t, http.StatusOK, status)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, testUserID, got["user_id"])
	assert.Equal(t, testCompanyID, got["company_id"])
	assert.Equal(t, apphttp.RoleBodeguero, got["role"])
}

func TestAuthMiddleware_EsquemaSinDistinguirMayusculas(t *testing.T) {
	tok := tokenForRole(t, apphttp.RoleAdmin)
	status, _ := getGuarded(t, guardedApp(apphttp.RoleAdmin), "bearer "+tok[len("Bearer "):])
	assert.Equal(t, http.StatusOK, status)
}

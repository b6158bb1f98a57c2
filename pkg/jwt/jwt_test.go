package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/pkg/jwt"
)

const secret = "secreto-de-prueba"

func TestGenerate_ParseDevuelveLaIdentidad(t *testing.T) {
	id := jwt.Identity{UserID: "user-1", CompanyID: "company-1", Role: "integracion"}
	tok, err := jwt.Generate(secret, "fbs-core", id, time.Hour)
	require.NoError(t, err)

	got, err := jwt.Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestGenerate_SecretoVacio(t *testing.T) {
	_, err := jwt.Generate("", "fbs-core", jwt.Identity{UserID: "user-1"}, time.Hour)
	assert.Error(t, err)
}

func TestParse_Expirado(t *testing.T) {
	tok, err := jwt.Generate(secret, "fbs-core", jwt.Identity{UserID: "user-1", CompanyID: "company-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = jwt.Parse(secret, tok)
	assert.ErrorIs(t, err, gojwt.ErrTokenExpired)
}

func TestParse_OtroSecreto(t *testing.T) {
	tok, err := jwt.Generate(secret, "fbs-core", jwt.Identity{UserID: "user-1", CompanyID: "company-1"}, time.Hour)
	require.NoError(t, err)

	_, err = jwt.Parse("otro", tok)
	assert.ErrorIs(t, err, gojwt.ErrTokenSignatureInvalid)
}

func TestParse_SinVencimientoSeRechaza(t *testing.T) {
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, jwt.Claims{UserID: "user-1", CompanyID: "company-1"}).
		SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = jwt.Parse(secret, tok)
	assert.ErrorIs(t, err, gojwt.ErrTokenRequiredClaimMissing)
}

func TestParse_AlgoritmoNone(t *testing.T) {
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour))},
		CompanyID:        "company-1",
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwt.Parse(secret, tok)
	assert.Error(t, err)
}

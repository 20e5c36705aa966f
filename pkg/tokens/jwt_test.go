package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantolico/guard/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:    42,
		Email: "maria@cantolico.example",
		Name:  "Maria",
		Role:  models.RoleReviewer,
	}
}

func TestNewTokenGenerator_DefaultTTL(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", 0)
	assert.Equal(t, 15*time.Minute, tg.AccessTTL())
}

func TestGenerateAccessToken(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)

	tokenString, err := tg.GenerateAccessToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	parts := strings.Split(tokenString, ".")
	assert.Len(t, parts, 3, "JWT should have header.payload.signature")
}

func TestValidateAccessToken_RoundTrip(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)

	tokenString, err := tg.GenerateAccessToken(testUser())
	require.NoError(t, err)

	claims, err := tg.ValidateAccessToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleReviewer, claims.Role)
	assert.Equal(t, "maria@cantolico.example", claims.Email)

	ident := claims.Identity()
	assert.Equal(t, int64(42), ident.ID)
	assert.Equal(t, models.RoleReviewer, ident.Role)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	tg := NewTokenGenerator("secret-one-that-is-long-enough!!", time.Minute)
	other := NewTokenGenerator("secret-two-that-is-long-enough!!", time.Minute)

	tokenString, err := tg.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(tokenString)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)

	claims := Claims{
		UserID: 42,
		Role:   models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte("test-secret-key-that-is-long-enough"))
	require.NoError(t, err)

	_, err = tg.ValidateAccessToken(tokenString)
	assert.Error(t, err)
}

func TestValidateAccessToken_WrongSigningMethod(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 42})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tg.ValidateAccessToken(tokenString)
	assert.Error(t, err)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	tg := NewTokenGenerator("test-secret-key-that-is-long-enough", time.Minute)

	_, err := tg.ValidateAccessToken("not-a-token")
	assert.Error(t, err)
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

// ============================================
// Issue / Validate Tests
// ============================================

func TestJWTService_IssueAndValidate(t *testing.T) {
	service := NewJWTService(testSecret, 15*time.Minute)

	token, expiresAt, err := service.Issue("vendor@example.com", RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))

	claims, err := service.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "vendor@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, 15*time.Minute, service.Expiry())
}

func TestJWTService_Validate_Expired(t *testing.T) {
	service := NewJWTService(testSecret, -time.Minute)

	token, _, err := service.Issue("c1", RoleCustomer)
	require.NoError(t, err)

	claims, err := service.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_Validate_Invalid(t *testing.T) {
	service := NewJWTService(testSecret, time.Minute)
	other := NewJWTService("another-secret-key-for-testing-purp", time.Minute)
	foreign, _, err := other.Issue("c1", RoleCustomer)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "attacker"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", Subject: "x"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
		{"wrong signature", foreign},
		{"none algorithm", noneToken},
		{"wrong issuer", wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

// ============================================
// Admin Tests
// ============================================

func TestAdmin_Authenticate(t *testing.T) {
	bcryptCost = 4
	t.Cleanup(func() { bcryptCost = 12 })

	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	admin := Admin{Email: "Vendor@Example.com", PasswordHash: hash}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{"valid", "vendor@example.com", "correct-horse", false},
		{"email case and spaces", "  VENDOR@example.com ", "correct-horse", false},
		{"wrong password", "vendor@example.com", "wrong-horse", true},
		{"wrong email", "other@example.com", "correct-horse", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := admin.Authenticate(tt.email, tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.ErrorIs(t, Admin{}.Authenticate("", ""), ErrInvalidCredentials)
}

package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

func TestAuthenticate_NoKeyConfigured(t *testing.T) {
	a := NewAuthenticator("", "")

	principal, err := a.Authenticate("", "")
	require.NoError(t, err)
	assert.False(t, principal.Authenticated)

	// Claiming a tenant without authentication is forbidden.
	_, err = a.Authenticate("", "tenant-a")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestAuthenticate_WithKey(t *testing.T) {
	a := NewAuthenticator("s3cret", "tenant-a")

	tests := []struct {
		name   string
		header string
		tenant string
		wantOK bool
		check  func(error) bool
	}{
		{"missing header", "", "", false, apperrors.IsUnauthorized},
		{"wrong scheme", "Basic s3cret", "", false, apperrors.IsUnauthorized},
		{"wrong key", "ApiKey nope", "", false, apperrors.IsUnauthorized},
		{"apikey scheme", "ApiKey s3cret", "", true, nil},
		{"bearer scheme", "Bearer s3cret", "", true, nil},
		{"matching tenant", "ApiKey s3cret", "tenant-a", true, nil},
		{"tenant mismatch", "ApiKey s3cret", "tenant-b", false, apperrors.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := a.Authenticate(tt.header, tt.tenant)
			if tt.wantOK {
				require.NoError(t, err)
				assert.True(t, principal.Authenticated)
				assert.Equal(t, "tenant-a", principal.TenantID)
				return
			}
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestAuthenticate_TenantIDShape(t *testing.T) {
	a := NewAuthenticator("s3cret", "tenant-a")

	_, err := a.Authenticate("ApiKey s3cret", "bad:tenant")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = a.Authenticate("ApiKey s3cret", strings.Repeat("x", 257))
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestAuthenticate_DefaultTenant(t *testing.T) {
	a := NewAuthenticator("s3cret", "")
	principal, err := a.Authenticate("Bearer s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, "default", principal.TenantID)
}

// Package application assembles the per-request pipeline: authentication,
// rate limiting, scoped memory, the tool-backed environment, and the
// cognitive cycle under its deadline.
package application

import (
	"crypto/subtle"
	"strings"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Principal is the authenticated identity of a request.
type Principal struct {
	TenantID      string
	Authenticated bool
}

// Authenticator checks the Authorization header against the configured API
// key and binds the authenticated principal to its tenant identifier.
type Authenticator struct {
	apiKey   string
	tenantID string
}

// NewAuthenticator builds an authenticator. An empty apiKey disables
// authentication: every request runs anonymously. tenantID is the tenant
// bound to the key; it defaults to "default" when authentication is on.
func NewAuthenticator(apiKey, tenantID string) *Authenticator {
	if apiKey != "" && tenantID == "" {
		tenantID = "default"
	}
	return &Authenticator{apiKey: apiKey, tenantID: tenantID}
}

// Authenticate validates the Authorization header ("ApiKey <t>" or
// "Bearer <t>") and the client's claimed tenant. A claimed tenant that does
// not match the principal's tenant is rejected, as is any tenant claim on an
// unauthenticated request.
func (a *Authenticator) Authenticate(authHeader, claimedTenant string) (Principal, error) {
	if err := validateTenantID(claimedTenant); err != nil {
		return Principal{}, err
	}

	if a.apiKey == "" {
		if claimedTenant != "" {
			return Principal{}, apperrors.NewForbiddenError("tenantId requires authentication")
		}
		return Principal{}, nil
	}

	token, ok := parseAuthHeader(authHeader)
	if !ok {
		return Principal{}, apperrors.NewUnauthorizedError("missing or malformed Authorization header")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.apiKey)) != 1 {
		return Principal{}, apperrors.NewUnauthorizedError("invalid API key")
	}

	principal := Principal{TenantID: a.tenantID, Authenticated: true}
	if claimedTenant != "" && claimedTenant != principal.TenantID {
		return Principal{}, apperrors.NewForbiddenError("tenantId does not match authenticated principal")
	}
	return principal, nil
}

func parseAuthHeader(header string) (string, bool) {
	for _, scheme := range []string{"ApiKey ", "Bearer "} {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			token := strings.TrimSpace(header[len(scheme):])
			if token != "" {
				return token, true
			}
		}
	}
	return "", false
}

func validateTenantID(tenantID string) error {
	if tenantID == "" {
		return nil
	}
	if len(tenantID) > 256 {
		return apperrors.NewInvalidInputError("Invalid tenantId: exceeds 256 characters")
	}
	if strings.Contains(tenantID, ":") {
		return apperrors.NewInvalidInputError("Invalid tenantId: must not contain ':'")
	}
	return nil
}

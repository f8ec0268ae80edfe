package valueobject

import (
	"strings"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// ScopeSeparator delimits a scope prefix from the local memory id.
const ScopeSeparator = ":"

// Scope namespaces memory ids for tenant/request isolation.
// It must be non-empty and must not contain the separator itself.
type Scope string

// NewScope validates and returns a Scope, or an InvalidInput AppError.
func NewScope(raw string) (Scope, error) {
	if raw == "" {
		return "", apperrors.NewInvalidInputError("scope must not be empty")
	}
	if strings.Contains(raw, ScopeSeparator) {
		return "", apperrors.NewInvalidInputError("scope must not contain ':'")
	}
	return Scope(raw), nil
}

// Apply prefixes a local id with the scope, producing the physical id.
func (s Scope) Apply(localID string) string {
	return string(s) + ScopeSeparator + localID
}

// Prefix returns the scope's physical-id prefix, e.g. "tenant-a:".
func (s Scope) Prefix() string {
	return string(s) + ScopeSeparator
}

// StripScope removes a known scope prefix from a physical id. It returns the
// id unchanged if the prefix is absent — callers that need to assert the
// prefix was present should check HasScope first.
func StripScope(scope Scope, physicalID string) string {
	return strings.TrimPrefix(physicalID, scope.Prefix())
}

// HasScope reports whether physicalID was produced by scope.Apply.
func HasScope(scope Scope, physicalID string) bool {
	return strings.HasPrefix(physicalID, scope.Prefix())
}

// UnscopeAny strips whatever scope prefix (if any) is present on physicalID,
// returning the local id.
func UnscopeAny(physicalID string) string {
	if idx := strings.Index(physicalID, ScopeSeparator); idx >= 0 {
		return physicalID[idx+1:]
	}
	return physicalID
}

package store

import (
	"reflect"
	"strings"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

// Identity is the registry key of a store: a stable key plus an optional
// scope discriminator for multi-instance stores.
type Identity struct {
	Key   string
	Scope string
}

// Identifiable is implemented by anything that can be registered by identity.
type Identifiable interface {
	Identity() Identity
}

// NewIdentity returns the unscoped identity for key.
func NewIdentity(key string) Identity {
	return Identity{Key: key}
}

// IdentityOf derives an identity from the Go type T.
func IdentityOf[T any](scope string) Identity {
	return Identity{Key: reflect.TypeFor[T]().String(), Scope: scope}
}

// WithScope returns a copy of the identity bound to scope.
func (i Identity) WithScope(scope string) Identity {
	i.Scope = scope
	return i
}

// String renders key or key#scope.
func (i Identity) String() string {
	if i.Scope == "" {
		return i.Key
	}
	return i.Key + "#" + i.Scope
}

// Validate rejects blank keys and keys containing the scope separator.
func (i Identity) Validate() error {
	key := strings.TrimSpace(i.Key)
	if key == "" {
		return apperrors.New(apperrors.CodeInvalidIdentity, "store key is required")
	}
	if key != i.Key || strings.Contains(i.Key, "#") {
		return apperrors.WithMetadata(apperrors.CodeInvalidIdentity, "store key is malformed", map[string]string{
			"identity": i.String(),
		})
	}
	return nil
}

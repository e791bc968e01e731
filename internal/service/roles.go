package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/rbac"
)

// ResolveRole combines the configured claim with the user_roles document of
// idOrEmail. A missing document is not an error.
func ResolveRole(ctx context.Context, roles RoleStore, claim, idOrEmail string) (rbac.Role, error) {
	if roles == nil || idOrEmail == "" {
		return rbac.Resolve(claim, nil), nil
	}
	doc, err := roles.Lookup(ctx, idOrEmail)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return rbac.Resolve(claim, nil), fmt.Errorf("lookup role %s: %w", idOrEmail, err)
	}
	return rbac.Resolve(claim, doc), nil
}

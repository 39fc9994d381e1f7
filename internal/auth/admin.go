package auth

import (
	"context"

	"scrapPickup/internal/errs"
	"scrapPickup/models"
)

// AdminLookup finds a registered administrator by uid.
type AdminLookup interface {
	GetByUID(ctx context.Context, uid string) (*models.Admin, error)
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, errs.Unauthorized("missing principal", nil)
	}
	return p, nil
}

// RequireAdmin ensures the caller claims admin AND is registered as one.
// This prevents spoofing by a user holding a self-issued admin claim.
func RequireAdmin(ctx context.Context, admins AdminLookup) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, errs.Forbidden("admin access required")
	}
	if admins == nil {
		return nil, errs.Forbidden("admin access required")
	}
	a, err := admins.GetByUID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Role != models.RoleAdmin {
		return nil, errs.Forbidden("admin access required")
	}
	return p, nil
}

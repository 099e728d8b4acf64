// Package identity resolves a caller into the capability object the guards
// consume. Guards never query a user store themselves; the role lookup
// happens once per request and the resolved Identity travels with the call.
package identity

import (
	"context"
	"log/slog"
)

// Identity is the resolved capability for a caller. Admin is an explicit
// business-rule bypass honored by most guards; it is never inferred from
// anything but the identity store or a verified token claim.
type Identity struct {
	UserID string
	Admin  bool
}

// User builds a non-admin identity.
func User(userID string) Identity {
	return Identity{UserID: userID}
}

// Admin builds an admin identity. Test and wiring helper.
func Admin(userID string) Identity {
	return Identity{UserID: userID, Admin: true}
}

// RoleStore is the external user-identity collaborator.
type RoleStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Resolver turns a user ID into an Identity via the role store. Store
// failures resolve to non-admin: the stricter path is the safe default when
// the privilege source of truth is unreachable.
type Resolver struct {
	roles  RoleStore
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(roles RoleStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{roles: roles, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the caller's role and returns the capability object.
func (r *Resolver) Resolve(ctx context.Context, userID string) Identity {
	if userID == "" {
		return Identity{}
	}
	admin, err := r.roles.IsAdmin(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "role lookup failed, treating caller as non-admin",
			"user_id", userID,
			"error", err,
		)
		return Identity{UserID: userID}
	}
	return Identity{UserID: userID, Admin: admin}
}

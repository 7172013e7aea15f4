package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// RoleSource resolves the role ids a user holds, directly or through user
// groups. Backed by the role store.
type RoleSource interface {
	FindIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// PermissionCache is the read/fill surface of the permission cache.
type PermissionCache interface {
	Lookup(ctx context.Context, userID string) ([]string, bool, error)
	Store(ctx context.Context, userID string, roleIDs []string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	roles RoleSource
	cache PermissionCache
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleSource, cache PermissionCache) *Service {
	return &Service{repo: repo, roles: roles, cache: cache}
}

// Authenticate validates an API key of the form "<keyID>.<secret>" and
// returns the actor it identifies, with role ids resolved through the
// permission cache.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*shared.Actor, error) {
	keyID, secret, ok := strings.Cut(apiKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, shared.ErrInvalidCredentials
	}
	cred, err := s.repo.FindCredential(ctx, keyID)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !cred.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	roleIDs, err := s.ResolveRoleIDs(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	return &shared.Actor{UserID: cred.UserID, RoleIDs: roleIDs}, nil
}

// ResolveRoleIDs answers the user's role ids from the cache, filling it from
// the store on a miss. A stale entry is impossible by construction: every
// membership mutation evicts the affected users before it completes.
func (s *Service) ResolveRoleIDs(ctx context.Context, userID string) ([]string, error) {
	cached, hit, err := s.cache.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hit {
		return cached, nil
	}
	roleIDs, err := s.roles.FindIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Store(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	return roleIDs, nil
}

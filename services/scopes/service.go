package scopes

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/authx/services/logging"
	"go.uber.org/zap"
)

var ErrInsufficientScope = errors.New("insufficient scope")

const (
	UserRead     = "user:read"
	UserWrite    = "user:write"
	UserDelete   = "user:delete"
	ProfileRead  = "profile:read"
	ProfileWrite = "profile:write"
	AdminRead    = "admin:read"
	AdminWrite   = "admin:write"
	AdminDelete  = "admin:delete"
	StatsRead    = "stats:read"
	LogsRead     = "logs:read"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// DefaultRoleScopes is the built-in role grant table. The map handed to the
// authorizer is copied at construction and read-only afterwards.
func DefaultRoleScopes() map[string][]string {
	return map[string][]string{
		RoleUser: {
			UserRead,
			ProfileRead,
			ProfileWrite,
		},
		RoleModerator: {
			UserRead,
			ProfileRead,
			ProfileWrite,
			StatsRead,
			LogsRead,
		},
		RoleAdmin: {
			UserRead,
			UserWrite,
			UserDelete,
			ProfileRead,
			ProfileWrite,
			AdminRead,
			AdminWrite,
			AdminDelete,
			StatsRead,
			LogsRead,
		},
	}
}

// Authorizer maps roles to granted scopes and enforces scope requirements.
// Role expansion happens once, at token issuance; Authorize is a pure set
// containment check with no storage access.
type Authorizer struct {
	roleScopes map[string][]string
	logger     *logging.Service
}

func NewAuthorizer(roleScopes map[string][]string, logger *logging.Service) *Authorizer {
	if roleScopes == nil {
		roleScopes = DefaultRoleScopes()
	}

	copied := make(map[string][]string, len(roleScopes))
	for role, granted := range roleScopes {
		copied[role] = append([]string(nil), granted...)
	}

	return &Authorizer{
		roleScopes: copied,
		logger:     logger,
	}
}

// ScopesForRole returns the scopes granted to a role. Unknown roles get no
// scopes rather than an error: a token is still issued, it just cannot pass
// any scoped check.
func (a *Authorizer) ScopesForRole(role string) []string {
	granted, ok := a.roleScopes[role]
	if !ok {
		if a.logger != nil {
			a.logger.Warn("no scopes configured for role", zap.String("role", role))
		}
		return []string{}
	}
	return append([]string(nil), granted...)
}

// Authorize requires every entry of required to be present in granted.
// Partial overlap is a failure; the error names the first missing scope.
func (a *Authorizer) Authorize(granted []string, required ...string) error {
	if len(required) == 0 {
		return nil
	}

	grantedSet := make(map[string]struct{}, len(granted))
	for _, scope := range granted {
		grantedSet[scope] = struct{}{}
	}

	for _, scope := range required {
		if _, ok := grantedSet[scope]; !ok {
			if a.logger != nil {
				a.logger.Warn("scope check failed",
					zap.String("missing_scope", scope),
					zap.Strings("required", required))
			}
			return fmt.Errorf("%w: missing %s", ErrInsufficientScope, scope)
		}
	}

	return nil
}

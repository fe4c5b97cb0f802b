// Package scope maps caller identity to an aggregation scope. The engine
// never decides authorization itself; it consumes whatever a Resolver
// hands it.
package scope

import (
	"context"
	"fmt"

	"attendtrack/internal/auth"
	"attendtrack/internal/report"
)

// Resolver supplies the scope a caller is allowed to aggregate over.
type Resolver interface {
	ResolveScope(ctx context.Context, callerID string) (report.Scope, error)
}

// FromClaims derives the scope from JWT claims: admins see everything,
// coaches their unit, members themselves.
func FromClaims(claims auth.Claims) (report.Scope, error) {
	switch claims.Role {
	case auth.RoleAdmin:
		return report.Scope{Kind: report.ScopeAll}, nil
	case auth.RoleCoach:
		if claims.UnitID == "" {
			return report.Scope{}, fmt.Errorf("coach %s has no unit", claims.Subject)
		}
		return report.Scope{Kind: report.ScopeUnit, UnitIDs: []string{claims.UnitID}}, nil
	case auth.RoleMember:
		return report.Scope{Kind: report.ScopeSelf, ParticipantID: claims.Subject}, nil
	default:
		return report.Scope{}, fmt.Errorf("unknown role %q", claims.Role)
	}
}

// Static resolves from a fixed table; used in tests and dev seeding.
type Static struct {
	Scopes map[string]report.Scope
}

// ResolveScope implements Resolver.
func (s Static) ResolveScope(ctx context.Context, callerID string) (report.Scope, error) {
	sc, ok := s.Scopes[callerID]
	if !ok {
		return report.Scope{}, fmt.Errorf("no scope for caller %s", callerID)
	}
	return sc, nil
}

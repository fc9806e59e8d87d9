package access

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/tournament"
)

// RoleChecker answers whether a user holds any of the given roles.
type RoleChecker interface {
	HasRole(ctx context.Context, user string, roles []string) (bool, error)
}

// Static grants roles from a fixed user to roles table.
type Static map[string][]string

var _ RoleChecker = Static(nil)

func (s Static) HasRole(ctx context.Context, user string, roles []string) (bool, error) {
	for _, have := range s[user] {
		for _, want := range roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// Require returns ErrForbidden unless user holds one of roles.
func Require(ctx context.Context, checker RoleChecker, user string, roles []string) error {
	if checker == nil {
		return fmt.Errorf("%w: no role checker configured", tournament.ErrForbidden)
	}
	ok, err := checker.HasRole(ctx, user, roles)
	if err != nil {
		return fmt.Errorf("failed to check roles of %s: %w", user, err)
	}
	if !ok {
		log.Warn("Denied administrative action", "user", user, "roles", roles)
		return fmt.Errorf("%w: %s lacks roles %v", tournament.ErrForbidden, user, roles)
	}
	return nil
}

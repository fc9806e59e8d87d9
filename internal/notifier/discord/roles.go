package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mauv0809/tourney/internal/access"
)

type guildAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

var _ access.RoleChecker = (*RoleChecker)(nil)

// RoleChecker resolves roles from guild membership. A wanted role matches by
// ID or by name; members with the Administrator permission hold every role.
type RoleChecker struct {
	api     guildAPI
	guildID string
}

func NewRoleChecker(api guildAPI, guildID string) *RoleChecker {
	return &RoleChecker{api: api, guildID: guildID}
}

func (c *RoleChecker) HasRole(ctx context.Context, user string, roles []string) (bool, error) {
	member, err := c.api.GuildMember(c.guildID, user, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	guildRoles, err := c.api.GuildRoles(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch guild roles: %w", err)
	}

	byID := make(map[string]*discordgo.Role, len(guildRoles))
	for _, r := range guildRoles {
		byID[r.ID] = r
	}
	for _, rid := range member.Roles {
		r, ok := byID[rid]
		if !ok {
			continue
		}
		if r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true, nil
		}
		for _, want := range roles {
			if want == r.ID || want == r.Name {
				return true, nil
			}
		}
	}
	return false, nil
}

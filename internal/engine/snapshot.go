package engine

import (
	"context"
	"fmt"

	"github.com/xela07ax/trapgate/internal/domain"
	"github.com/xela07ax/trapgate/internal/platform"
)

// buildSnapshot собирает свежий срез прав из живых данных платформы.
// Никакого кэша: роли и права меняются между событиями, снимок валиден
// ровно для одного решения.
func buildSnapshot(ctx context.Context, api platform.API, guildID, actorID string, target *platform.Member) (domain.CapabilitySnapshot, error) {
	var snap domain.CapabilitySnapshot

	guild, err := api.FetchGuild(ctx, guildID)
	if err != nil {
		return snap, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}

	actor, err := api.FetchMember(ctx, guildID, actorID)
	if err != nil {
		return snap, fmt.Errorf("fetch actor member %s: %w", actorID, err)
	}

	// Индекс ролей гильдии для подсчёта рангов и прав
	byID := make(map[string]platform.Role, len(guild.Roles))
	for _, r := range guild.Roles {
		byID[r.ID] = r
	}

	// Имплицитная роль @everyone (её ID равен ID гильдии) есть у каждого
	// участника, но в списке ролей членства платформа её не присылает.
	// Право бана, выданное через @everyone, обязано учитываться.
	actorRoles := append([]string{guildID}, actor.Roles...)
	targetRoles := append([]string{guildID}, target.Roles...)

	snap.GuildID = guildID
	snap.ActorID = actorID
	snap.TargetID = target.User.ID
	snap.TargetIsOwner = target.User.ID == guild.OwnerID
	snap.ActorRank = highestRank(actorRoles, byID)
	snap.TargetRank = highestRank(targetRoles, byID)
	snap.ActorCanBan = hasBanPermission(actorRoles, byID)

	return snap, nil
}

// highestRank — позиция высшей роли участника, RankNone без ролей.
func highestRank(roleIDs []string, byID map[string]platform.Role) int {
	rank := domain.RankNone
	for _, id := range roleIDs {
		if r, ok := byID[id]; ok && r.Position > rank {
			rank = r.Position
		}
	}
	return rank
}

// hasBanPermission — любая роль даёт Ban Members либо Administrator.
func hasBanPermission(roleIDs []string, byID map[string]platform.Role) bool {
	for _, id := range roleIDs {
		r, ok := byID[id]
		if !ok {
			continue
		}
		perms := platform.ParsePermissions(r.Permissions)
		if perms&platform.PermAdministrator != 0 || perms&platform.PermBanMembers != 0 {
			return true
		}
	}
	return false
}

package middleware

import (
	"context"
	"fmt"
	"strings"

	"izumi/internal/command"
	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionKickMembers:        "Kick Members",
	discordgo.PermissionBanMembers:         "Ban Members",
	discordgo.PermissionAdministrator:      "Administrator",
	discordgo.PermissionManageChannels:     "Manage Channels",
	discordgo.PermissionManageGuild:        "Manage Server",
	discordgo.PermissionManageMessages:     "Manage Messages",
	discordgo.PermissionManageRoles:        "Manage Roles",
	discordgo.PermissionModerateMembers:    "Moderate Members",
	discordgo.PermissionMentionEveryone:    "Mention Everyone",
	discordgo.PermissionManageNicknames:    "Manage Nicknames",
	discordgo.PermissionViewAuditLogs:      "View Audit Logs",
	discordgo.PermissionSendMessages:       "Send Messages",
	discordgo.PermissionReadMessageHistory: "Read Message History",
}

// memberPermissions is replaced in tests.
var memberPermissions = (*command.Request).Permissions

// WithUserPermissionCheck requires at least one of the command's permissions.
// Administrators and the owner always pass.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			r, ok := command.RequestFrom(inv.Data)
			if !ok || r.GuildID == "" {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			if r.Services.IsOwner(r.UserID) {
				return c.Run(ctx, inv)
			}

			perms, err := memberPermissions(r)
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if perms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}
			required := meta.UserPermissions()
			for _, p := range required {
				if perms&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			return r.Fail("You need at least one of the following permissions to run this command:\n%s",
				PermissionList(required))
		})
	}
}

// PermissionList renders permission bits as `Name`, `Name`.
func PermissionList(perms []int64) string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		name := PermissionNames[p]
		if name == "" {
			name = fmt.Sprintf("0x%x", p)
		}
		names = append(names, "`"+name+"`")
	}
	return strings.Join(names, ", ")
}

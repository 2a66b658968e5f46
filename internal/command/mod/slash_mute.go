package mod

import (
	"time"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

// DefaultMute applies when no duration is given.
const DefaultMute = 10 * time.Minute

type MuteCommand struct{}

func (c *MuteCommand) Name() string        { return "mute" }
func (c *MuteCommand) Description() string { return "Time out a member" }
func (c *MuteCommand) Group() string       { return "moderation" }
func (c *MuteCommand) Category() string    { return "🛡️ Moderation" }
func (c *MuteCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionModerateMembers}
}

func (c *MuteCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			userOpt(true),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "duration",
				Description: "Like 30s, 10m, 2h or 1d",
			},
			reasonOpt(),
		},
	}
}

func (c *MuteCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id, err := target(r)
	if id == "" {
		return err
	}
	d := DefaultMute
	reasonAt := 1
	if raw := r.Value("duration", 1); raw != "" {
		parsed, err := ParseDuration(raw)
		switch {
		case err == nil:
			d, reasonAt = parsed, 2
		case r.Slash:
			return r.Fail("I couldn't read %q. Use something like `10m`, `2h` or `1d` (28 days at most).", raw)
		}
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	until := time.Now().Add(d)
	if err := p.GuildMemberTimeout(r.GuildID, id, &until); err != nil {
		return r.Fail("I couldn't mute <@%s>: %v", id, err)
	}
	return r.Reply("🔇 <@%s> is muted for %s (%s).", id, Human(d), reason(r, reasonAt))
}

type UnmuteCommand struct{}

func (c *UnmuteCommand) Name() string        { return "unmute" }
func (c *UnmuteCommand) Description() string { return "Lift a member's timeout" }
func (c *UnmuteCommand) Group() string       { return "moderation" }
func (c *UnmuteCommand) Category() string    { return "🛡️ Moderation" }
func (c *UnmuteCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionModerateMembers}
}

func (c *UnmuteCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{userOpt(true)},
	}
}

func (c *UnmuteCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id, err := target(r)
	if id == "" {
		return err
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	if err := p.GuildMemberTimeout(r.GuildID, id, nil); err != nil {
		return r.Fail("I couldn't unmute <@%s>: %v", id, err)
	}
	return r.Reply("🔊 <@%s> can talk again.", id)
}

type KickCommand struct{}

func (c *KickCommand) Name() string        { return "kick" }
func (c *KickCommand) Description() string { return "Kick a member" }
func (c *KickCommand) Group() string       { return "moderation" }
func (c *KickCommand) Category() string    { return "🛡️ Moderation" }
func (c *KickCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionKickMembers}
}

func (c *KickCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{userOpt(true), reasonOpt()},
	}
}

func (c *KickCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id, err := target(r)
	if id == "" {
		return err
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	why := reason(r, 1)
	if err := p.GuildMemberDeleteWithReason(r.GuildID, id, why); err != nil {
		return r.Fail("I couldn't kick <@%s>: %v", id, err)
	}
	return r.Reply("👢 <@%s> was kicked (%s).", id, why)
}

type BanCommand struct{}

func (c *BanCommand) Name() string        { return "ban" }
func (c *BanCommand) Description() string { return "Ban a member" }
func (c *BanCommand) Group() string       { return "moderation" }
func (c *BanCommand) Category() string    { return "🛡️ Moderation" }
func (c *BanCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionBanMembers}
}

func (c *BanCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{userOpt(true), reasonOpt()},
	}
}

func (c *BanCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id, err := target(r)
	if id == "" {
		return err
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	why := reason(r, 1)
	if err := p.GuildBanCreateWithReason(r.GuildID, id, why, 0); err != nil {
		return r.Fail("I couldn't ban <@%s>: %v", id, err)
	}
	return r.Reply("🔨 <@%s> was banned (%s).", id, why)
}

func init() {
	command.RegisterCommand(&MuteCommand{}, middleware.Standard()...)
	command.RegisterCommand(&UnmuteCommand{}, middleware.Standard()...)
	command.RegisterCommand(&KickCommand{}, middleware.Standard()...)
	command.RegisterCommand(&BanCommand{}, middleware.Standard()...)
}

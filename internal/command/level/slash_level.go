// Package level holds the leveling commands: rank card, leaderboard and the
// historical xp recalculation.
package level

import (
	"fmt"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/leveling"
	"izumi/internal/middleware"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const pageSize = 10

type LevelCommand struct{}

func (c *LevelCommand) Name() string             { return "level" }
func (c *LevelCommand) Description() string      { return "Show a member's level and xp" }
func (c *LevelCommand) Group() string            { return "leveling" }
func (c *LevelCommand) Category() string         { return "📈 Leveling" }
func (c *LevelCommand) UserPermissions() []int64 { return nil }

func (c *LevelCommand) Aliases() map[string]string {
	return map[string]string{"rank": ""}
}

func (c *LevelCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Member to show, defaults to you",
		}},
	}
}

func (c *LevelCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id := r.Target("user", 0)
	rec, found, err := r.Services.Storage.GetXP(r.GuildID, id)
	if err != nil {
		return err
	}
	if !found {
		return r.Reply("<@%s> hasn't earned any xp yet.", id)
	}
	rank, _ := r.Services.Storage.Rank(r.GuildID, id)
	return r.Out.ReplyEmbed(RankEmbed(name(r, id), rec, rank))
}

// RankEmbed is the rank card of one member.
func RankEmbed(name string, rec storage.XPRecord, rank int) *discordgo.MessageEmbed {
	into, size := leveling.Progress(rec.XP)
	embed := command.Embed("📈 "+name, fmt.Sprintf("%s `%d / %d`", Bar(into, size, 12), into, size))
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprint(leveling.LevelFor(rec.XP)), Inline: true},
		{Name: "Total xp", Value: fmt.Sprint(rec.XP), Inline: true},
		{Name: "Rank", Value: fmt.Sprintf("#%d", rank), Inline: true},
		{Name: "Messages", Value: fmt.Sprint(rec.Messages), Inline: true},
	}
	if rec.Coins > 0 || rec.Cards > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Coins / cards", Value: fmt.Sprintf("%d / %d", rec.Coins, rec.Cards), Inline: true,
		})
	}
	return embed
}

// Bar draws a width wide progress bar.
func Bar(into, size, width int) string {
	filled := 0
	if size > 0 {
		filled = into * width / size
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

type LevelsCommand struct{}

func (c *LevelsCommand) Name() string             { return "levels" }
func (c *LevelsCommand) Description() string      { return "Show the xp leaderboard" }
func (c *LevelsCommand) Group() string            { return "leveling" }
func (c *LevelsCommand) Category() string         { return "📈 Leveling" }
func (c *LevelsCommand) UserPermissions() []int64 { return nil }

func (c *LevelsCommand) Aliases() map[string]string {
	return map[string]string{"leaderboard": "", "lb": ""}
}

func (c *LevelsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	one := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "page",
			Description: "Page to open",
			MinValue:    &one,
		}},
	}
}

func (c *LevelsCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	all, err := r.Services.Storage.Leaderboard(r.GuildID, 0)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return r.Reply("Nobody has earned xp here yet.")
	}
	page := r.Int("page", 0, 1) - 1
	embed, pages := LeaderboardPage(all, page, func(id string) string { return name(r, id) })
	if pages <= 1 {
		return r.Out.ReplyEmbed(embed)
	}
	page = min(max(page, 0), pages-1)
	return r.Out.ReplyView(embed, command.PageButtons(c.Name(), page, pages, time.Now(), false))
}

// Component turns the leaderboard page when a button is pressed.
func (c *LevelsCommand) Component(ctx *command.ComponentInteractionContext) error {
	e := ctx.Event
	_, page, created, ok := command.ParsePageID(e.MessageComponentData().CustomID)
	if !ok {
		return nil
	}
	if command.Expired(created, time.Now()) {
		var embed *discordgo.MessageEmbed
		if e.Message != nil && len(e.Message.Embeds) > 0 {
			embed = e.Message.Embeds[0]
		} else {
			embed = command.Embed("🏆 Leaderboard", "This view has expired.")
		}
		return command.UpdateView(ctx.Session, e, embed, command.PageButtons(c.Name(), page, page+1, created, true))
	}
	all, err := ctx.Services.Storage.Leaderboard(e.GuildID, 0)
	if err != nil {
		return err
	}
	names := &command.Request{Session: ctx.Session, GuildID: e.GuildID, Services: ctx.Services}
	embed, pages := LeaderboardPage(all, page, func(id string) string { return name(names, id) })
	page = min(max(page, 0), pages-1)
	return command.UpdateView(ctx.Session, e, embed, command.PageButtons(c.Name(), page, pages, created, false))
}

// LeaderboardPage renders one page (0 based, clamped) and the page count.
func LeaderboardPage(all []storage.RankedXP, page int, nameOf func(id string) string) (*discordgo.MessageEmbed, int) {
	pages := (len(all) + pageSize - 1) / pageSize
	page = min(max(page, 0), max(pages-1, 0))
	var sb strings.Builder
	for i := page * pageSize; i < len(all) && i < (page+1)*pageSize; i++ {
		rec := all[i]
		medal := fmt.Sprintf("`#%d`", i+1)
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&sb, "%s **%s** · level %d · %d xp\n", medal, nameOf(rec.UserID), leveling.LevelFor(rec.XP), rec.XP)
	}
	embed := command.Embed("🏆 Leaderboard", sb.String())
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", page+1, max(pages, 1))}
	return embed, pages
}

// name resolves a display name through memory, then the gateway cache.
func name(r *command.Request, id string) string {
	if id == r.UserID && r.UserName != "" {
		return r.UserName
	}
	if r.Services != nil && r.Services.Memory != nil {
		if n := r.Services.Memory.DisplayName(id); n != "" {
			return n
		}
	}
	if r.Session != nil && r.Session.State != nil {
		if m, err := r.Session.State.Member(r.GuildID, id); err == nil && m.User != nil {
			if m.Nick != "" {
				return m.Nick
			}
			return m.User.Username
		}
	}
	return "<@" + id + ">"
}

func init() {
	command.RegisterCommand(&LevelCommand{}, middleware.Standard()...)
	command.RegisterCommand(&LevelsCommand{}, middleware.Standard()...)
}

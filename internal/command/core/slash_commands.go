package core

import (
	"fmt"
	"sort"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

type CommandsCommand struct{}

func (c *CommandsCommand) Name() string        { return "commands" }
func (c *CommandsCommand) Description() string { return "Enable, disable and audit command groups" }
func (c *CommandsCommand) Group() string       { return "core" }
func (c *CommandsCommand) Category() string    { return "⚙️ Settings" }
func (c *CommandsCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

// groups lists every command group with its commands.
func groups() map[string][]string {
	out := map[string][]string{}
	for _, c := range command.AllCommands() {
		_, group := metaOf(c)
		if group == "" {
			continue
		}
		out[group] = append(out[group], c.Name())
	}
	return out
}

func (c *CommandsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for group := range groups() {
		if group == "core" {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: group, Value: group})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Name < choices[j].Name })

	groupOpt := func() []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "group",
			Description: "Choose command group",
			Required:    true,
			Choices:     choices,
		}}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Which groups are on"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "enable", Description: "Enable a group", Options: groupOpt()},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "disable", Description: "Disable a group", Options: groupOpt()},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "log", Description: "Most used and latest commands"},
		},
	}
}

func (c *CommandsCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage
	all := groups()

	switch r.Sub {
	case "enable", "disable":
		group := strings.ToLower(r.Value("group", 0))
		if _, ok := all[group]; !ok {
			return r.Fail("There is no group `%s`. `commands status` lists them.", group)
		}
		if group == "core" {
			return r.Fail("The core group can't be switched off.")
		}
		var err error
		if r.Sub == "disable" {
			err = store.DisableGroup(r.GuildID, group)
		} else {
			err = store.EnableGroup(r.GuildID, group)
		}
		if err != nil {
			return r.Fail("Failed to %s the group: %v", r.Sub, err)
		}
		command.PublishSystemEvent(command.SystemEvent{
			Type:    command.SystemEventRefreshCommands,
			GuildID: r.GuildID,
			Target:  "group:" + group,
		})
		return r.Reply("Group `%s` %sd.", group, r.Sub)
	case "log":
		return c.log(r)
	}

	names := make([]string, 0, len(all))
	for g := range all {
		names = append(names, g)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, g := range names {
		mark := "✅"
		if g != "core" && store.IsGroupDisabled(r.GuildID, g) {
			mark = "🚫"
		}
		fmt.Fprintf(&sb, "%s **%s**: %s\n", mark, g, strings.Join(all[g], ", "))
	}
	return r.Out.ReplyEmbed(command.Embed("⚙️ Command groups", sb.String()))
}

func (c *CommandsCommand) log(r *command.Request) error {
	usage, err := r.Services.Storage.CommandUsage(r.GuildID)
	if err != nil {
		return err
	}
	hist, err := r.Services.Storage.FetchCommandHistory(r.GuildID)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		return r.Reply("Nobody has used a command here yet.")
	}

	type count struct {
		name string
		n    int
	}
	counts := make([]count, 0, len(usage))
	for name, n := range usage {
		counts = append(counts, count{name, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].name < counts[j].name
	})

	var sb strings.Builder
	sb.WriteString("**Most used**\n")
	for i, c := range counts {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "`%s` × %d\n", c.name, c.n)
	}
	if len(hist) > 0 {
		sb.WriteString("\n**Latest**\n")
		for i := len(hist) - 1; i >= 0 && i >= len(hist)-10; i-- {
			h := hist[i]
			line := fmt.Sprintf("<t:%d:R> <@%s> `%s", h.Datetime.Unix(), h.UserID, h.Command)
			if h.Param != "" {
				line += " " + h.Param
			}
			sb.WriteString(line + "`\n")
		}
	}
	return r.Out.ReplyEmbed(command.Embed("📜 Command log", sb.String()))
}

func init() {
	command.RegisterCommand(&CommandsCommand{}, middleware.Standard()...)
}

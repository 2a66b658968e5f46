// Package core holds the commands every server has: help, status, the
// command switchboard and process control.
package core

import (
	"fmt"
	"sort"
	"strings"

	"izumi/internal/command"
	"izumi/internal/config"
	"izumi/internal/middleware"
	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type HelpCommand struct{}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return nil }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "category",
				Description: "View commands grouped by category",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "group",
				Description: "View commands grouped by group",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "flat",
				Description: "View all commands as a flat list",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "command",
				Description: "Details about one command",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Command or alias",
					Required:    true,
				}},
			},
		},
	}
}

func (c *HelpCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	prefix := "!"
	if cfg := r.Services.Config; cfg != nil && cfg.CommandPrefix != "" {
		prefix = cfg.CommandPrefix
	}

	var output string
	switch r.Sub {
	case "group":
		output = buildHelpByGroup()
	case "flat":
		output = buildHelpFlat()
	case "command":
		return c.detail(r, r.Value("name", 0), prefix)
	case "", "category":
		if name := r.Arg(0); !r.Slash && name != "" {
			return c.detail(r, name, prefix)
		}
		output = buildHelpByCategory()
	}

	for i, part := range command.Chunk(output, 4000) {
		title := config.AppName + " Help"
		if i > 0 {
			title += " (cont.)"
		}
		embed := command.Embed(title, part)
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Every command also works as %scommand. Try %shelp <command>.", prefix, prefix),
		}
		if err := r.Out.ReplyEmbed(embed); err != nil {
			return err
		}
	}
	return nil
}

func (c *HelpCommand) detail(r *command.Request, name, prefix string) error {
	found, ok := cmd.DefaultRegistry.Resolve(strings.TrimPrefix(strings.ToLower(name), prefix))
	if !ok {
		return r.Fail("There is no command called `%s`.", name)
	}
	var sb strings.Builder
	sb.WriteString(found.Description() + "\n")
	if meta, ok := command.Meta(found); ok {
		fmt.Fprintf(&sb, "\n**Category:** %s\n**Group:** `%s`\n", meta.Category(), meta.Group())
		if perms := meta.UserPermissions(); len(perms) > 0 {
			sb.WriteString("**Needs:** " + middleware.PermissionList(perms) + "\n")
		}
	}
	if sp, ok := cmd.Root(found).(command.SlashProvider); ok {
		if def := sp.SlashDefinition(); def != nil {
			var subs []string
			for _, o := range def.Options {
				if o.Type == discordgo.ApplicationCommandOptionSubCommand {
					subs = append(subs, fmt.Sprintf("`%s` %s", o.Name, o.Description))
				}
			}
			if len(subs) > 0 {
				sb.WriteString("\n**Subcommands**\n" + strings.Join(subs, "\n") + "\n")
			}
		}
	}
	if ap, ok := cmd.Root(found).(command.AliasProvider); ok {
		var aliases []string
		for alias := range ap.Aliases() {
			if alias != found.Name() && alias != ap.Aliases()[alias] {
				aliases = append(aliases, "`"+prefix+alias+"`")
			}
		}
		sort.Strings(aliases)
		if len(aliases) > 0 {
			sb.WriteString("\n**Shortcuts:** " + strings.Join(aliases, ", ") + "\n")
		}
	}
	return r.Out.ReplyEmbed(command.Embed(prefix+found.Name(), sb.String()))
}

func metaOf(c cmd.Command) (category, group string) {
	if m, ok := command.Meta(c); ok {
		return m.Category(), m.Group()
	}
	return "", ""
}

func buildHelpByCategory() string {
	all := command.AllCommands()

	categoryMap := make(map[string][]cmd.Command)
	for _, c := range all {
		cat, _ := metaOf(c)
		categoryMap[cat] = append(categoryMap[cat], c)
	}

	cats := make([]string, 0, len(categoryMap))
	for cat := range categoryMap {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := config.CategoryWeights[cats[i]], config.CategoryWeights[cats[j]]
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	var sb strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&sb, "**%s**\n", cat)
		for _, c := range categoryMap[cat] {
			fmt.Fprintf(&sb, "`%s` - %s\n", c.Name(), c.Description())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func buildHelpByGroup() string {
	groupMap := make(map[string][]cmd.Command)
	for _, c := range command.AllCommands() {
		_, group := metaOf(c)
		groupMap[group] = append(groupMap[group], c)
	}

	var sortedGroups []string
	for group := range groupMap {
		sortedGroups = append(sortedGroups, group)
	}
	sort.Strings(sortedGroups)

	var sb strings.Builder
	for _, group := range sortedGroups {
		fmt.Fprintf(&sb, "**%s**\n", group)
		for _, c := range groupMap[group] {
			fmt.Fprintf(&sb, "`%s` - %s\n", c.Name(), c.Description())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func buildHelpFlat() string {
	var sb strings.Builder
	for _, c := range command.AllCommands() {
		fmt.Fprintf(&sb, "`%s` - %s\n", c.Name(), c.Description())
	}
	return sb.String()
}

func init() {
	command.RegisterCommand(&HelpCommand{}, middleware.Standard()...)
}

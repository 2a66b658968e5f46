package command

import (
	"context"
	"strings"

	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// Discord contexts, what the runtime passes when executing.

type SlashInteractionContext struct {
	Session  *discordgo.Session
	Event    *discordgo.InteractionCreate
	Services *Services
}

type ComponentInteractionContext struct {
	Session  *discordgo.Session
	Event    *discordgo.InteractionCreate
	Services *Services
}

type MessageReactionContext struct {
	Session  *discordgo.Session
	Event    *discordgo.MessageReaction
	Added    bool
	Services *Services
}

// MessageContext is a prefix command run. Name is the word that was typed,
// which may be an alias; Sub is the subcommand it resolved to.
type MessageContext struct {
	Session  *discordgo.Session
	Event    *discordgo.MessageCreate
	Name     string
	Sub      string
	Args     []string
	Services *Services
}

// Providers, how a command is exposed on the platform.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

type ReactionProvider interface {
	ReactionDefinition() string
}

type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

// AliasProvider maps extra prefix names onto a subcommand. An empty
// subcommand keeps the arguments as typed.
type AliasProvider interface {
	Aliases() map[string]string
}

// DiscordMeta lets middleware read Group/Category/Permissions without
// depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is what individual commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	UserPermissions() []int64
	Run(ctx any) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry, forwarding every provider interface.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(_ context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) ReactionDefinition() string {
	if rp, ok := a.Cmd.(ReactionProvider); ok {
		return rp.ReactionDefinition()
	}
	return ""
}

func (a *DiscordAdapter) Component(ctx *ComponentInteractionContext) error {
	if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

func (a *DiscordAdapter) Aliases() map[string]string {
	if ap, ok := a.Cmd.(AliasProvider); ok {
		return ap.Aliases()
	}
	return nil
}

// RegisterCommand registers a command with the universal registry, applies
// middlewares and records its prefix aliases.
func RegisterCommand(discordCmd DiscordCommand, mws ...cmd.Middleware) {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	cmd.DefaultRegistry.Register(c)
	if ap, ok := discordCmd.(AliasProvider); ok {
		for alias := range ap.Aliases() {
			cmd.DefaultRegistry.Alias(alias, discordCmd.Name())
		}
	}
}

// AllCommands returns the registered commands sorted by name.
func AllCommands() []cmd.Command {
	return cmd.DefaultRegistry.GetAll()
}

// Meta returns the metadata of a registered, possibly wrapped command.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}

// AliasTarget returns the subcommand an alias of c stands for.
func AliasTarget(c cmd.Command, typed string) (string, bool) {
	ap, ok := cmd.Root(c).(AliasProvider)
	if !ok {
		return "", false
	}
	sub, ok := ap.Aliases()[strings.ToLower(typed)]
	return sub, ok
}

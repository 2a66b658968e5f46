package memory

import (
	"izumi/internal/command"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

// KnowledgeCommand manages the facts Izumi treats as things she knows. They
// live in the knowledge category of the self profile.
type KnowledgeCommand struct{}

func (c *KnowledgeCommand) Name() string        { return "knowledge" }
func (c *KnowledgeCommand) Description() string { return "Teach Izumi a fact or list what she knows" }
func (c *KnowledgeCommand) Group() string       { return "memory" }
func (c *KnowledgeCommand) Category() string    { return "🧠 Memory" }
func (c *KnowledgeCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func (c *KnowledgeCommand) Aliases() map[string]string {
	return map[string]string{"viewknowledge": "view"}
}

func (c *KnowledgeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("add", "Teach a fact", textOpt("fact", "The fact", true)),
			sub("view", "List known facts"),
		},
	}
}

func (c *KnowledgeCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Memory

	// `!knowledge some fact` without a subcommand teaches the fact.
	sub := r.Sub
	if sub == "" && len(r.Args) > 0 {
		sub = "add"
	}
	switch sub {
	case "add":
		fact := r.Text("fact", 0)
		if fact == "" {
			return r.Fail("Usage: `knowledge <fact>`")
		}
		var added bool
		_ = store.EditSelf(func(sp *mem.SelfProfile) (err error) {
			added, err = sp.Add("knowledge", fact)
			return err
		})
		if !added {
			return r.Reply("I already knew that!")
		}
		return r.Reply("📚 Got it: %s", fact)
	default:
		items, _ := store.Self().Get("knowledge")
		return r.Out.ReplyEmbed(command.Embed("📚 Knowledge", bullets(items)))
	}
}

func init() {
	command.RegisterCommand(&KnowledgeCommand{}, middleware.Standard()...)
}

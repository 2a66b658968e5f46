package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/contextbuild"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"
	"izumi/pkg/util"

	"github.com/bwmarrin/discordgo"
)

type MemoryCommand struct{}

func (c *MemoryCommand) Name() string        { return "memory" }
func (c *MemoryCommand) Description() string { return "Inspect and edit what Izumi remembers" }
func (c *MemoryCommand) Group() string       { return "memory" }
func (c *MemoryCommand) Category() string    { return "🧠 Memory" }
func (c *MemoryCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func (c *MemoryCommand) Aliases() map[string]string {
	return map[string]string{
		"view":    "view",
		"add":     "add",
		"set":     "set",
		"trust":   "trust",
		"relate":  "relate",
		"shared":  "shared",
		"context": "context",
		"clear":   "clear",
		"forget":  "forget",
		"cleanup": "cleanup",
		"debug":   "debug",
		"export":  "export",
	}
}

func userOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: desc,
		Required:    required,
	}
}

func textOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: desc,
		Required:    required,
	}
}

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func (c *MemoryCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("view", "Show a member's profile", userOpt("user", "Member to show", false)),
			sub("add", "Add a note to a member",
				userOpt("user", "Member", true), textOpt("note", "Note text", true)),
			sub("set", "Set a profile field",
				userOpt("user", "Member", true),
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "field",
					Description: "Field to set",
					Required:    true,
					Choices:     fieldChoices(),
				},
				textOpt("value", "New value", true)),
			sub("trust", "Set a member's trust level (0-10)",
				userOpt("user", "Member", true),
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "value",
					Description: "Trust level",
					Required:    true,
				}),
			sub("relate", "Record how two members are related",
				userOpt("user", "Member", true), userOpt("other", "Other member", true),
				textOpt("label", "Relationship, e.g. best friend", true)),
			sub("shared", "Record an experience two members shared",
				userOpt("user", "Member", true), userOpt("other", "Other member", true),
				textOpt("event", "What happened", true)),
			sub("context", "Preview the context Izumi would build for a message",
				userOpt("user", "Speaker", false), textOpt("text", "Message text", false)),
			sub("clear", "Reset a member's profile but keep their names", userOpt("user", "Member", true)),
			sub("forget", "Delete a member's profile entirely", userOpt("user", "Member", true)),
			sub("cleanup", "Drop empty profiles and re-apply list caps"),
			sub("debug", "Show store statistics"),
			sub("export", "Download the memory document"),
		},
	}
}

// Profile fields settable through `memory set`.
var setters = map[string]func(p *mem.UserProfile, v string) error{
	"real_name": func(p *mem.UserProfile, v string) error { p.BasicInfo.RealName = v; return nil },
	"nickname":  func(p *mem.UserProfile, v string) error { p.BasicInfo.Nickname = v; return nil },
	"age": func(p *mem.UserProfile, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || !mem.ValidAge(n) {
			return fmt.Errorf("age must be a number between 5 and 100")
		}
		p.BasicInfo.Age = n
		return nil
	},
	"birthday": func(p *mem.UserProfile, v string) error {
		b, err := mem.ParseBirthday(v)
		if err != nil {
			return err
		}
		p.BasicInfo.Birthday = &b
		return nil
	},
	"relationship_status": func(p *mem.UserProfile, v string) error { p.BasicInfo.RelationshipStatus = v; return nil },
	"conversation_style":  func(p *mem.UserProfile, v string) error { p.Personality.ConversationStyle = v; return nil },
	"interest":            func(p *mem.UserProfile, v string) error { p.AddInterest(v); return nil },
	"dislike":             func(p *mem.UserProfile, v string) error { p.AddDislike(v); return nil },
	"event":               func(p *mem.UserProfile, v string) error { p.AddEvent(v); return nil },
	"note":                func(p *mem.UserProfile, v string) error { p.AddNote(v); return nil },
}

func fieldNames() []string {
	out := make([]string, 0, len(setters))
	for k := range setters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func fieldChoices() []*discordgo.ApplicationCommandOptionChoice {
	var out []*discordgo.ApplicationCommandOptionChoice
	for _, k := range fieldNames() {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: k, Value: k})
	}
	return out
}

func (c *MemoryCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Memory

	switch r.Sub {
	case "view":
		return c.view(r, store)
	case "add":
		id, ok := resolveUser(r, store, "user", 0)
		if !ok {
			return nil
		}
		note := r.Text("note", 1)
		if note == "" {
			return r.Fail("Usage: `memory add <user> <note>`")
		}
		ensure(r, store, id, func(p *mem.UserProfile) { p.AddCustomNote(note) })
		return r.Reply("📝 Noted for **%s**: %s", nameFor(store, id), note)
	case "set":
		id, ok := resolveUser(r, store, "user", 0)
		if !ok {
			return nil
		}
		field, value := strings.ToLower(r.Value("field", 1)), r.Text("value", 2)
		set, known := setters[field]
		if !known || value == "" {
			return r.Fail("Usage: `memory set <user> <field> <value>`\nFields: %s", strings.Join(fieldNames(), ", "))
		}
		var err error
		ensure(r, store, id, func(p *mem.UserProfile) { err = set(p, value) })
		if err != nil {
			return r.Fail("Could not set %s: %v", field, err)
		}
		return r.Reply("✅ Set %s of **%s** to %s", field, nameFor(store, id), value)
	case "trust":
		id, ok := resolveUser(r, store, "user", 0)
		if !ok {
			return nil
		}
		v, err := strconv.ParseFloat(r.Value("value", 1), 64)
		if err != nil || v < mem.TrustMin || v > mem.TrustMax {
			return r.Fail("Trust must be a number between 0 and 10.")
		}
		ensure(r, store, id, func(p *mem.UserProfile) { p.Social.TrustLevel = mem.RoundTrust(v) })
		return r.Reply("🤝 Trust for **%s** is now %.1f", nameFor(store, id), mem.RoundTrust(v))
	case "relate", "shared":
		return c.pair(r, store)
	case "context":
		return c.context(r, store)
	case "clear":
		id, ok := resolveUser(r, store, "user", 0)
		if !ok {
			return nil
		}
		err := store.EditUser(id, func(p *mem.UserProfile) {
			fresh := mem.NewUserProfile(p.BasicInfo.DisplayName, p.BasicInfo.Username)
			fresh.BasicInfo.RealName, fresh.BasicInfo.Nickname = p.BasicInfo.RealName, p.BasicInfo.Nickname
			*p = *fresh
		})
		if err != nil {
			return r.Fail("I don't remember anything about <@%s>.", id)
		}
		return r.Reply("🧹 Cleared what I knew about **%s**.", nameFor(store, id))
	case "forget":
		id, ok := resolveUser(r, store, "user", 0)
		if !ok {
			return nil
		}
		name := nameFor(store, id)
		if err := store.DeleteUser(id); err != nil {
			return r.Fail("I don't remember anything about <@%s>.", id)
		}
		return r.Reply("💨 Forgot everything about **%s**.", name)
	case "cleanup":
		rep := store.Cleanup(store.Now())
		return r.Reply("🧽 Cleanup done: removed %d empty profiles, trimmed %d lists, expired %d trending days.",
			rep.RemovedUsers, rep.TrimmedLists, rep.ExpiredTrends)
	case "debug":
		return r.Out.ReplyEmbed(debugEmbed(r))
	case "export":
		data, err := store.Export()
		if err != nil {
			return fmt.Errorf("export memory: %w", err)
		}
		name := util.FormatDateTpl(store.Now(), mem.ExportName)
		return r.Out.ReplyFile("📦 Memory export", name, data)
	}
	return r.Fail("Subcommands: view, add, set, trust, relate, shared, context, clear, forget, cleanup, debug, export")
}

func (c *MemoryCommand) view(r *command.Request, store *mem.Store) error {
	id := r.UserID
	if r.Value("user", 0) != "" {
		var ok bool
		if id, ok = resolveUser(r, store, "user", 0); !ok {
			return nil
		}
	}
	p, ok := store.User(id)
	if !ok {
		return r.Fail("I don't remember anything about <@%s> yet.", id)
	}
	return r.Out.ReplyEmbed(ProfileEmbed(store, id, p))
}

// ProfileEmbed renders the admin view of a profile.
func ProfileEmbed(store *mem.Store, id string, p *mem.UserProfile) *discordgo.MessageEmbed {
	b := p.BasicInfo
	var basics []string
	add := func(label, v string) {
		if v != "" {
			basics = append(basics, fmt.Sprintf("**%s:** %s", label, v))
		}
	}
	add("Display name", b.DisplayName)
	add("Username", b.Username)
	add("Real name", b.RealName)
	add("Nickname", b.Nickname)
	if b.Age > 0 {
		add("Age", strconv.Itoa(b.Age))
	}
	if b.Birthday != nil {
		add("Birthday", b.Birthday.String())
	}
	add("Relationship status", b.RelationshipStatus)
	add("Style", p.Personality.ConversationStyle)

	embed := command.Embed("🧠 "+p.Name(), strings.Join(basics, "\n"))
	field := func(name string, items []string) {
		if len(items) == 0 {
			return
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: clip(strings.Join(items, ", "), 1024),
		})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Trust", Value: fmt.Sprintf("%.1f / 10", p.Social.TrustLevel), Inline: true},
		&discordgo.MessageEmbedField{Name: "Messages", Value: strconv.Itoa(p.MessageCount()), Inline: true},
	)
	if p.Activity.LastInteraction > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Last seen",
			Value:  fmt.Sprintf("<t:%d:R>", p.Activity.LastInteraction),
			Inline: true,
		})
	}
	field("Interests", p.Personality.Interests)
	field("Dislikes", p.Personality.Dislikes)
	field("Personality notes", p.Personality.PersonalityNotes)
	field("Important events", p.Activity.ImportantEvents)
	field("Custom notes", p.Activity.CustomNotes)

	var rels []string
	for other, label := range p.Social.Relationships {
		rels = append(rels, fmt.Sprintf("%s of %s", label, nameFor(store, other)))
	}
	sort.Strings(rels)
	field("Relationships", rels)

	var words []string
	for _, kv := range mem.TopN(p.LearningData.Vocabulary.WordFrequency, 8) {
		words = append(words, kv.Key)
	}
	field("Top words", words)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "ID " + id}
	return embed
}

// pair handles relate and shared, which both take two members and a text.
func (c *MemoryCommand) pair(r *command.Request, store *mem.Store) error {
	textName := "label"
	if r.Sub == "shared" {
		textName = "event"
	}
	a, ok := resolveUser(r, store, "user", 0)
	if !ok {
		return nil
	}
	b, ok := resolveUser(r, store, "other", 1)
	if !ok {
		return nil
	}
	text := r.Text(textName, 2)
	if text == "" {
		return r.Fail("Usage: `memory %s <user> <other> <%s>`", r.Sub, textName)
	}
	if a == b {
		return r.Fail("Pick two different members.")
	}
	if r.Sub == "relate" {
		ensure(r, store, a, func(p *mem.UserProfile) { p.SetRelationship(b, text) })
		return r.Reply("💞 **%s** is %s of **%s**", nameFor(store, a), text, nameFor(store, b))
	}
	ensure(r, store, a, func(p *mem.UserProfile) { p.AddSharedExperience(b, text) })
	ensure(r, store, b, func(p *mem.UserProfile) { p.AddSharedExperience(a, text) })
	return r.Reply("📸 Remembered that **%s** and **%s** shared: %s", nameFor(store, a), nameFor(store, b), text)
}

func (c *MemoryCommand) context(r *command.Request, store *mem.Store) error {
	if r.Services.Context == nil {
		return r.Fail("Context builder is not available.")
	}
	id := r.UserID
	text := r.Text("text", 0)
	if !r.Slash {
		if uid := command.ParseID(r.Arg(0)); uid != "" {
			id, text = uid, r.Text("text", 1)
		}
	} else if v := r.Value("user", 0); v != "" {
		id = command.ParseID(v)
	}
	if text == "" {
		text = "hi"
	}
	out := r.Services.Context.Build(contextbuild.Request{
		UserID:    id,
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		Text:      text,
		Now:       store.Now(),
	})
	if out == "" {
		out = "(empty)"
	}
	return r.Reply("```\n%s\n```\n~%d tokens", clip(out, command.MessageLimit-40), contextbuild.EstimateTokens(out))
}

func debugEmbed(r *command.Request) *discordgo.MessageEmbed {
	st := r.Services.Memory.Stats()
	lines := []string{
		fmt.Sprintf("**Users:** %d", st.Users),
		fmt.Sprintf("**Guild cultures:** %d", st.Guilds),
		fmt.Sprintf("**Channels with history:** %d", st.Channels),
		fmt.Sprintf("**Conversation channels:** %d", st.ConversationChannels),
		fmt.Sprintf("**Unsaved changes:** %t", st.Pending),
		fmt.Sprintf("**Document version:** %s", st.Version),
	}
	if !st.LastFlush.IsZero() {
		lines = append(lines, fmt.Sprintf("**Last save:** <t:%d:R>", st.LastFlush.Unix()))
	}
	if chat := r.Services.Chat; chat != nil {
		cs := chat.Stats()
		lines = append(lines,
			fmt.Sprintf("**Chat sessions:** %d", cs.Sessions),
			fmt.Sprintf("**Tier failures:** %v", cs.TierFailures))
	}
	if r.Services.Reminders != nil {
		lines = append(lines, fmt.Sprintf("**Pending reminders:** %d", r.Services.Reminders.Pending()))
	}
	if !r.Services.Started.IsZero() {
		lines = append(lines, fmt.Sprintf("**Uptime:** %s", time.Since(r.Services.Started).Round(time.Second)))
	}
	return command.Embed("🔧 Memory debug", strings.Join(lines, "\n"))
}

func init() {
	command.RegisterCommand(&MemoryCommand{}, middleware.Standard()...)
}

package core

import (
	"fmt"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/config"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

type MaintenanceCommand struct{}

func (c *MaintenanceCommand) Name() string        { return "maintenance" }
func (c *MaintenanceCommand) Description() string { return "Bot maintenance commands" }
func (c *MaintenanceCommand) Group() string       { return "core" }
func (c *MaintenanceCommand) Category() string    { return "🛠️ Maintenance" }
func (c *MaintenanceCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *MaintenanceCommand) Aliases() map[string]string {
	return map[string]string{"ping": "ping", "status": "status", "jobs": "jobs"}
}

func (c *MaintenanceCommand) SlashDefinition() *discordgo.ApplicationCommand {
	sub := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("ping", "Check bot latency"),
			sub("status", "Memory, chat and scheduler statistics"),
			sub("jobs", "Background jobs in progress"),
		},
	}
}

func (c *MaintenanceCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	switch r.Sub {
	case "ping":
		var latency time.Duration
		if r.Session != nil {
			latency = r.Session.HeartbeatLatency()
		}
		return r.Out.ReplyEmbed(command.Embed("Pong! 🏓", fmt.Sprintf("Latency: %dms", latency.Milliseconds())))
	case "jobs":
		if r.Services.Jobs == nil {
			return r.Reply("No jobs are running.")
		}
		return r.Reply("%s", r.Services.Jobs.Status())
	case "", "status":
		return r.Out.ReplyEmbed(command.Embed("📊 "+config.AppName+" Status", Status(r.Services, time.Now())))
	}
	return r.Fail("Subcommands: ping, status, jobs")
}

// Status summarises the running services.
func Status(svc *command.Services, now time.Time) string {
	var sb strings.Builder
	if !svc.Started.IsZero() {
		fmt.Fprintf(&sb, "**Uptime:** %s\n", now.Sub(svc.Started).Truncate(time.Second))
	}
	if svc.Memory != nil {
		st := svc.Memory.Stats()
		fmt.Fprintf(&sb, "**Memory:** %d users, %d guilds, %d conversation channels (v%s)\n",
			st.Users, st.Guilds, st.ConversationChannels, st.Version)
		if st.LastFlush.IsZero() {
			sb.WriteString("**Last save:** never\n")
		} else {
			fmt.Fprintf(&sb, "**Last save:** <t:%d:R>", st.LastFlush.Unix())
			if st.Pending {
				sb.WriteString(" (unsaved changes)")
			}
			sb.WriteString("\n")
		}
	}
	if svc.Chat != nil {
		st := svc.Chat.Stats()
		fmt.Fprintf(&sb, "**Chat:** %d sessions over %d channels\n", st.Sessions, st.Channels)
		if len(st.TierFailures) > 0 {
			parts := make([]string, len(st.TierFailures))
			for i, n := range st.TierFailures {
				parts[i] = fmt.Sprint(n)
			}
			fmt.Fprintf(&sb, "**Model fallbacks:** %s\n", strings.Join(parts, " / "))
		}
	}
	if svc.Reminders != nil {
		fmt.Fprintf(&sb, "**Reminders:** %d pending\n", svc.Reminders.Pending())
	}
	if svc.Scheduler != nil {
		fmt.Fprintf(&sb, "**Loops:** %s\n", strings.Join(svc.Scheduler.Loops(), ", "))
	}
	if svc.Jobs != nil {
		fmt.Fprintf(&sb, "**Jobs:** %s\n", svc.Jobs.Status())
	}
	if sb.Len() == 0 {
		return "Nothing is running."
	}
	return sb.String()
}

// SaveCommand forces a flush of every store.
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Description() string { return "Save memory to disk now" }
func (c *SaveCommand) Group() string       { return "core" }
func (c *SaveCommand) Category() string    { return "🛠️ Maintenance" }
func (c *SaveCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *SaveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *SaveCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	if err := SaveAll(r.Services); err != nil {
		return r.Fail("Saving failed: %v", err)
	}
	return r.Reply("💾 Saved.")
}

// SaveAll flushes memory and the community stores.
func SaveAll(svc *command.Services) error {
	if svc.Memory != nil {
		if err := svc.Memory.Save(); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
	}
	if svc.Storage != nil {
		if err := svc.Storage.Save(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	return nil
}

// ProcessCommand is restart or shutdown; both are owner only.
type ProcessCommand struct {
	restart bool
}

func (c *ProcessCommand) Name() string {
	if c.restart {
		return "restart"
	}
	return "shutdown"
}

func (c *ProcessCommand) Description() string {
	if c.restart {
		return "Save and restart the bot"
	}
	return "Save and stop the bot"
}

func (c *ProcessCommand) Group() string    { return "core" }
func (c *ProcessCommand) Category() string { return "🛠️ Maintenance" }
func (c *ProcessCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *ProcessCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *ProcessCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	if !r.Services.IsOwner(r.UserID) {
		return r.Fail("Only the bot owner can do that.")
	}
	if err := SaveAll(r.Services); err != nil {
		log.WithError(err).Error("[CMD] save before " + c.Name())
	}
	if c.restart {
		_ = r.Reply("🔄 Restarting, back in a moment.")
	} else {
		_ = r.Reply("👋 Shutting down. Memory is saved.")
	}
	if r.Services.Stop != nil {
		r.Services.Stop(c.restart)
	}
	return nil
}

func init() {
	command.RegisterCommand(&MaintenanceCommand{}, middleware.Standard()...)
	command.RegisterCommand(&SaveCommand{}, middleware.Standard()...)
	command.RegisterCommand(&ProcessCommand{restart: true}, middleware.Standard()...)
	command.RegisterCommand(&ProcessCommand{}, middleware.Standard()...)
}

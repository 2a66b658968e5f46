package level

import (
	"context"
	"errors"
	"fmt"

	"izumi/internal/command"
	"izumi/internal/leveling"
	"izumi/internal/middleware"
	"izumi/internal/storage"
	"izumi/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// perChannelLimit bounds how far back one channel is read.
const perChannelLimit = 20000

// GuildHistory is the part of the session a recalculation reads.
type GuildHistory interface {
	command.History
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
}

var historyFor = func(r *command.Request) GuildHistory {
	if r.Session == nil {
		return nil
	}
	return r.Session
}

type CalculateXPCommand struct{}

func (c *CalculateXPCommand) Name() string        { return "calculatexp" }
func (c *CalculateXPCommand) Description() string { return "Rebuild xp from channel history" }
func (c *CalculateXPCommand) Group() string       { return "leveling" }
func (c *CalculateXPCommand) Category() string    { return "📈 Leveling" }
func (c *CalculateXPCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *CalculateXPCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "user",
				Description: "Recalculate one member",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "all",
				Description: "Recalculate every member",
			},
		},
	}
}

func (c *CalculateXPCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	target := ""
	switch r.Sub {
	case "all":
	case "user":
		target = r.Target("user", 0)
	default:
		// `!calculatexp @user` or bare `!calculatexp` for yourself.
		target = r.Target("user", 0)
	}
	h := historyFor(r)
	if h == nil || r.Services.Jobs == nil || r.Services.Leveler == nil {
		return r.Fail("Recalculation is not available right now.")
	}

	who := "everyone"
	if target != "" {
		who = "<@" + target + ">"
	}
	svc, out, guildID := r.Services, r.Out, r.GuildID
	err := svc.Jobs.StartAsync("calculatexp:"+guildID, func(ctx context.Context) error {
		p := command.StartProgress(ctx, out, command.ProgressInterval, "🔢 Recalculating xp for "+who+"…")
		records, stats, err := Recalculate(ctx, h, svc.Leveler, guildID, target, func(st RecalcStats) {
			p.Set("🔢 Scanned %d channels, %d messages…", st.Channels, st.Messages)
		})
		if err != nil {
			p.Finish(fmt.Sprintf("⚠️ Recalculation failed: %v", err))
			return err
		}
		if err := svc.Storage.ReplaceXP(guildID, records); err != nil {
			p.Finish(fmt.Sprintf("⚠️ Could not save xp: %v", err))
			return err
		}
		if target != "" {
			rec := records[target]
			p.Finish(fmt.Sprintf("✅ %s: %d xp, level %d from %d messages.", who, rec.XP, rec.Level, rec.Messages))
		} else {
			p.Finish(fmt.Sprintf("✅ Recalculated %d members from %d messages in %d channels.",
				len(records), stats.Messages, stats.Channels))
		}
		log.WithField("guild", guildID).Infof("[XP] recalculated %d members", len(records))
		return nil
	})
	if errors.Is(err, jobmgr.ErrRunning) {
		return r.Fail("A recalculation is already running on this server.")
	}
	return err
}

type RecalcStats struct {
	Channels int
	Messages int
	Skipped  int
}

// Recalculate replays every readable text channel of a guild through the
// award cooldown. An empty userID recalculates every member.
func Recalculate(ctx context.Context, h GuildHistory, lv *leveling.Leveler, guildID, userID string, progress func(RecalcStats)) (map[string]storage.XPRecord, RecalcStats, error) {
	var st RecalcStats
	channels, err := h.GuildChannels(guildID)
	if err != nil {
		return nil, st, fmt.Errorf("list channels: %w", err)
	}
	var msgs []leveling.HistoricMessage
scan:
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText && ch.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		before := ""
		read := 0
		for read < perChannelLimit {
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
			page, err := h.ChannelMessages(ch.ID, 100, before, "", "")
			if err != nil {
				log.WithFields(log.Fields{"guild": guildID, "channel": ch.ID}).Debugf("[XP] skip channel: %v", err)
				st.Skipped++
				continue scan
			}
			for _, m := range page {
				if m.Author == nil || m.Author.Bot || (userID != "" && m.Author.ID != userID) {
					continue
				}
				msgs = append(msgs, leveling.HistoricMessage{UserID: m.Author.ID, At: m.Timestamp})
			}
			st.Messages += len(page)
			read += len(page)
			if len(page) < 100 {
				break
			}
			before = page[len(page)-1].ID
		}
		st.Channels++
		if progress != nil {
			progress(st)
		}
	}
	records := lv.Replay(msgs)
	if userID != "" {
		if _, ok := records[userID]; !ok {
			records[userID] = storage.XPRecord{}
		}
	}
	return records, st, nil
}

func init() {
	command.RegisterCommand(&CalculateXPCommand{}, middleware.Standard()...)
}

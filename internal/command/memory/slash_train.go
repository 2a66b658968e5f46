package memory

import (
	"context"
	"errors"
	"fmt"

	"izumi/internal/command"
	"izumi/internal/learning"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"
	"izumi/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	trainDefault = 1000
	trainMax     = 10000
	trainPage    = 100
)

// historyFor returns where a channel's history is paged from. Tests replace it.
var historyFor = func(r *command.Request) command.History {
	if r.Session == nil {
		return nil
	}
	return r.Session
}

type TrainCommand struct{}

func (c *TrainCommand) Name() string        { return "train" }
func (c *TrainCommand) Description() string { return "Learn from this channel's message history" }
func (c *TrainCommand) Group() string       { return "memory" }
func (c *TrainCommand) Category() string    { return "🧠 Memory" }
func (c *TrainCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *TrainCommand) SlashDefinition() *discordgo.ApplicationCommand {
	one := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: fmt.Sprintf("How many messages to read (default %d, max %d)", trainDefault, trainMax),
				MinValue:    &one,
				MaxValue:    trainMax,
			},
		},
	}
}

func (c *TrainCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	limit := r.Int("limit", 0, trainDefault)
	if limit < 1 || limit > trainMax {
		return r.Fail("Limit must be between 1 and %d.", trainMax)
	}
	h := historyFor(r)
	if h == nil || r.Services.Jobs == nil {
		return r.Fail("Training is not available right now.")
	}

	channelName := r.ChannelID
	if r.Session != nil && r.Session.State != nil {
		if ch, err := r.Session.State.Channel(r.ChannelID); err == nil {
			channelName = ch.Name
		}
	}
	opts := TrainOptions{
		GuildID:     r.GuildID,
		ChannelID:   r.ChannelID,
		ChannelName: channelName,
		BotID:       command.BotID(r.Session),
		Limit:       limit,
	}
	store, out := r.Services.Memory, r.Out

	err := r.Services.Jobs.StartAsync("train:"+r.ChannelID, func(ctx context.Context) error {
		p := command.StartProgress(ctx, out, command.ProgressInterval, fmt.Sprintf("📖 Reading up to %d messages…", limit))
		opts.Progress = func(fetched, learned int) {
			p.Set("📖 Read %d messages, learned from %d…", fetched, learned)
		}
		res, err := Train(ctx, h, store, opts)
		if err != nil {
			p.Finish(fmt.Sprintf("⚠️ Training stopped after %d messages: %v", res.Learned, err))
			return err
		}
		p.Finish(fmt.Sprintf("✅ Training done: read %d messages, learned from %d, skipped %d.",
			res.Fetched, res.Learned, res.Skipped))
		log.WithFields(log.Fields{"guild": opts.GuildID, "channel": opts.ChannelID}).
			Infof("[MEMORY] trained on %d messages", res.Learned)
		return nil
	})
	if errors.Is(err, jobmgr.ErrRunning) {
		return r.Fail("I'm already training on this channel.")
	}
	return err
}

type TrainOptions struct {
	GuildID     string
	ChannelID   string
	ChannelName string
	BotID       string
	Limit       int
	// Progress is called every page with running totals.
	Progress func(fetched, learned int)
}

type TrainResult struct {
	Fetched int
	Learned int
	Skipped int
}

// Train pages back through a channel and replays the messages, oldest first,
// through the learning extractor.
func Train(ctx context.Context, h command.History, store *mem.Store, opts TrainOptions) (TrainResult, error) {
	var res TrainResult
	var all []*discordgo.Message
	before := ""
	for len(all) < opts.Limit {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := min(trainPage, opts.Limit-len(all))
		page, err := h.ChannelMessages(opts.ChannelID, n, before, "", "")
		if err != nil {
			return res, fmt.Errorf("fetch history: %w", err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		before = page[len(page)-1].ID
		res.Fetched = len(all)
		if opts.Progress != nil {
			opts.Progress(res.Fetched, 0)
		}
		if len(page) < n {
			break
		}
	}

	for i := len(all) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m := all[i]
		if m.GuildID == "" {
			m.GuildID = opts.GuildID
		}
		err := learning.LearnFromMessage(store, command.LearningMessage(m, opts.BotID, opts.ChannelName))
		switch {
		case errors.Is(err, learning.ErrNothingToDo):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Learned++
		}
		if opts.Progress != nil && (res.Learned+res.Skipped)%trainPage == 0 {
			opts.Progress(res.Fetched, res.Learned)
		}
	}
	return res, nil
}

func init() {
	command.RegisterCommand(&TrainCommand{}, middleware.Standard()...)
}

package chat

import (
	"context"
	"errors"
	"time"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const askTimeout = 90 * time.Second

// ask reaches the chat session of the channel; tests replace it.
var ask = func(ctx context.Context, r *command.Request, text string) (string, error) {
	if r.Services.Chat == nil {
		return "", errOffline
	}
	return r.Services.Chat.Ask(ctx, r.ChannelID, r.UserName, text)
}

var errOffline = errors.New("chat is offline")

type AskCommand struct{}

func (c *AskCommand) Name() string             { return "ask" }
func (c *AskCommand) Description() string      { return "Ask me something directly" }
func (c *AskCommand) Group() string            { return "chat" }
func (c *AskCommand) Category() string         { return "💬 Chat" }
func (c *AskCommand) UserPermissions() []int64 { return nil }

func (c *AskCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "question",
			Description: "What do you want to know?",
			Required:    true,
		}},
	}
}

func (c *AskCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	text := r.Text("question", 0)
	if text == "" {
		return r.Fail("Ask me something, like `ask what should I draw today?`")
	}
	actx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	reply, err := ask(actx, r, text)
	if errors.Is(err, errOffline) {
		return r.Fail("I can't think right now, my chat brain is offline.")
	}
	if err != nil {
		log.WithError(err).WithField("channel", r.ChannelID).Warn("[CHAT] ask failed")
		if reply == "" {
			return r.Fail("Sorry, my head is a bit fuzzy right now. Try again in a moment?")
		}
	}
	return r.Reply("%s", reply)
}

func init() {
	command.RegisterCommand(&AskCommand{}, middleware.Standard()...)
}

// Package commandtest provides a recording Responder and request builders
// for command tests.
package commandtest

import (
	"strings"
	"sync"

	"izumi/internal/command"

	"github.com/bwmarrin/discordgo"
)

// Recorder is a command.Responder that keeps everything it was asked to send.
type Recorder struct {
	mu      sync.Mutex
	Replies []string
	Embeds  []*discordgo.MessageEmbed
	Views   [][]discordgo.MessageComponent
	Files   map[string][]byte
	Privs   []string
	Updates []string
}

func (r *Recorder) Reply(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, text)
	return nil
}

func (r *Recorder) ReplyEmbed(e *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Embeds = append(r.Embeds, e)
	return nil
}

// ReplyView records the embed in Embeds and its components in Views.
func (r *Recorder) ReplyView(e *discordgo.MessageEmbed, c []discordgo.MessageComponent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Embeds = append(r.Embeds, e)
	r.Views = append(r.Views, c)
	return nil
}

func (r *Recorder) ReplyFile(text, name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Files == nil {
		r.Files = map[string][]byte{}
	}
	r.Files[name] = data
	r.Replies = append(r.Replies, text)
	return nil
}

func (r *Recorder) Private(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Privs = append(r.Privs, text)
	return nil
}

func (r *Recorder) Update(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, text)
	return nil
}

// All joins every reply, embed description and private line.
func (r *Recorder) All() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := append([]string(nil), r.Replies...)
	for _, e := range r.Embeds {
		parts = append(parts, e.Title, e.Description)
		for _, f := range e.Fields {
			parts = append(parts, f.Name, f.Value)
		}
	}
	parts = append(parts, r.Privs...)
	return strings.Join(parts, "\n")
}

// Prefix builds a prefix style request from a command line, resolving the
// subcommand the way the message dispatcher does.
func Prefix(c command.DiscordCommand, svc *command.Services, line string) (*command.Request, *Recorder) {
	fields := command.Fields(line)
	typed, args := strings.ToLower(fields[0]), fields[1:]
	sub, args := command.ResolveSub(&command.DiscordAdapter{Cmd: c}, typed, args)
	rec := &Recorder{}
	return &command.Request{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		UserID:    "u1",
		UserName:  "Alice",
		Name:      typed,
		Sub:       sub,
		Args:      args,
		Services:  svc,
		Out:       rec,
	}, rec
}

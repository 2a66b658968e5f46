package command

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Responder writes command output back to wherever the command came from.
type Responder interface {
	Reply(text string) error
	ReplyEmbed(embed *discordgo.MessageEmbed) error
	// ReplyView sends an embed with interactive components.
	ReplyView(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error
	ReplyFile(text, name string, data []byte) error
	// Private is for refusals and errors: ephemeral on slash, a reply otherwise.
	Private(text string) error
	// Update replaces a status line, used by progress reports.
	Update(text string) error
}

// Request is the transport neutral view of one command run. Slash option
// values are keyed by option name, prefix arguments are positional.
type Request struct {
	Session   *discordgo.Session
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	UserName  string
	Member    *discordgo.Member

	Name    string
	Sub     string
	Args    []string
	Options map[string]string
	Slash   bool

	Services *Services
	Out      Responder
}

// RequestFrom builds a Request from a Discord context. A *Request passes
// through unchanged.
func RequestFrom(ctx any) (*Request, bool) {
	switch v := ctx.(type) {
	case *Request:
		return v, true
	case *SlashInteractionContext:
		e := v.Event
		data := e.ApplicationCommandData()
		r := &Request{
			Session:   v.Session,
			GuildID:   e.GuildID,
			ChannelID: e.ChannelID,
			Member:    e.Member,
			Name:      data.Name,
			Options:   map[string]string{},
			Slash:     true,
			Services:  v.Services,
			Out:       &slashResponder{s: v.Session, e: e},
		}
		if u := interactionUser(e); u != nil {
			r.UserID, r.UserName = u.ID, displayName(e.Member, u)
		}
		opts := data.Options
		if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			r.Sub = opts[0].Name
			opts = opts[0].Options
		}
		for _, o := range opts {
			val := optionString(o)
			r.Options[o.Name] = val
			r.Args = append(r.Args, val)
		}
		return r, true
	case *MessageContext:
		m := v.Event
		r := &Request{
			Session:   v.Session,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			Member:    m.Member,
			Name:      v.Name,
			Sub:       v.Sub,
			Args:      v.Args,
			Services:  v.Services,
			Out:       &messageResponder{s: v.Session, m: m.Message},
		}
		if m.Author != nil {
			r.UserID, r.UserName = m.Author.ID, displayName(m.Member, m.Author)
		}
		return r, true
	}
	return nil, false
}

// Arg returns the i-th positional argument or "".
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Value returns the slash option name, or positional argument i for prefix runs.
func (r *Request) Value(name string, i int) string {
	if r.Slash {
		return r.Options[name]
	}
	return r.Arg(i)
}

// Text is Value, except a prefix run gets every argument from i on.
func (r *Request) Text(name string, i int) string {
	if r.Slash {
		return r.Options[name]
	}
	if i >= len(r.Args) {
		return ""
	}
	return strings.Join(r.Args[i:], " ")
}

// Target returns the user given as name/i, or the caller when none was given.
func (r *Request) Target(name string, i int) string {
	if id := ParseID(r.Value(name, i)); id != "" {
		return id
	}
	return r.UserID
}

// Int parses Value as an integer, returning def when absent or malformed.
func (r *Request) Int(name string, i int, def int) int {
	n, err := strconv.Atoi(r.Value(name, i))
	if err != nil {
		return def
	}
	return n
}

func (r *Request) Reply(format string, args ...any) error {
	return r.Out.Reply(fmt.Sprintf(format, args...))
}

func (r *Request) Fail(format string, args ...any) error {
	return r.Out.Private(fmt.Sprintf(format, args...))
}

// Permissions resolves the caller's permissions in the channel.
func (r *Request) Permissions() (int64, error) {
	if r.Member != nil && r.Member.Permissions != 0 {
		return r.Member.Permissions, nil
	}
	if r.Session == nil {
		return 0, fmt.Errorf("no session")
	}
	return r.Session.UserChannelPermissions(r.UserID, r.ChannelID)
}

// Can reports whether the caller holds perm. The owner and administrators
// hold everything.
func (r *Request) Can(perm int64) bool {
	if r.Services.IsOwner(r.UserID) {
		return true
	}
	p, err := r.Permissions()
	if err != nil {
		return false
	}
	return p&discordgo.PermissionAdministrator != 0 || p&perm != 0
}

// ParseID strips mention markup from a user, role or channel reference.
// Anything that is not a snowflake yields "".
func ParseID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimLeft(s, "@!&#")
	if s == "" {
		return ""
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return s
}

func interactionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	return e.User
}

func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func optionString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionString:
		return o.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(o.IntValue(), 10)
	case discordgo.ApplicationCommandOptionNumber:
		return strconv.FormatFloat(o.FloatValue(), 'f', -1, 64)
	case discordgo.ApplicationCommandOptionBoolean:
		return strconv.FormatBool(o.BoolValue())
	default:
		return fmt.Sprint(o.Value)
	}
}

// MessageLimit is the platform's per-message cap.
const MessageLimit = 2000

// Chunk cuts text into messages under the platform limit, on line breaks
// where possible.
func Chunk(text string, limit int) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len([]rune(line)) > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			rs := []rune(line)
			out = append(out, string(rs[:limit]))
			line = string(rs[limit:])
		}
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(line)) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

type slashResponder struct {
	s *discordgo.Session
	e *discordgo.InteractionCreate

	mu        sync.Mutex
	responded bool
	// fallback is a channel message that replaces the interaction once its
	// token stops working.
	fallback string
}

func (r *slashResponder) Reply(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, part := range Chunk(text, MessageLimit) {
		var err error
		if !r.responded {
			err = Respond(r.s, r.e, part)
		} else {
			err = Followup(r.s, r.e, part)
		}
		if err != nil {
			return err
		}
		r.responded = true
	}
	return nil
}

func (r *slashResponder) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return FollowupEmbed(r.s, r.e, embed)
	}
	r.responded = true
	return RespondEmbed(r.s, r.e, embed)
}

func (r *slashResponder) ReplyView(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		_, err := r.s.FollowupMessageCreate(r.e.Interaction, true, &discordgo.WebhookParams{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		})
		return err
	}
	r.responded = true
	return r.s.InteractionRespond(r.e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func (r *slashResponder) ReplyFile(text, name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		_, err := r.s.FollowupMessageCreate(r.e.Interaction, true, &discordgo.WebhookParams{
			Content: text,
			Files:   []*discordgo.File{{Name: name, ContentType: "application/json", Reader: bytes.NewReader(data)}},
		})
		return err
	}
	r.responded = true
	return RespondFile(r.s, r.e, text, name, data)
}

func (r *slashResponder) Private(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	embed := &discordgo.MessageEmbed{Description: text, Color: EmbedColor}
	if r.responded {
		return FollowupEmbed(r.s, r.e, embed)
	}
	r.responded = true
	return RespondEmbedEphemeral(r.s, r.e, embed)
}

func (r *slashResponder) Update(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fallback != "" {
		_, err := r.s.ChannelMessageEdit(r.e.ChannelID, r.fallback, text)
		return err
	}
	if !r.responded {
		r.responded = true
		return Respond(r.s, r.e, text)
	}
	if err := EditResponse(r.s, r.e, text); err == nil {
		return nil
	}
	id, err := Message(r.s, r.e.ChannelID, text)
	if err != nil {
		return err
	}
	r.fallback = id
	return nil
}

type messageResponder struct {
	s *discordgo.Session
	m *discordgo.Message

	mu     sync.Mutex
	status string
}

func (r *messageResponder) Reply(text string) error {
	for _, part := range Chunk(text, MessageLimit) {
		if _, err := r.s.ChannelMessageSendReply(r.m.ChannelID, part, r.m.Reference()); err != nil {
			return err
		}
	}
	return nil
}

func (r *messageResponder) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: r.m.Reference(),
	})
	return err
}

func (r *messageResponder) ReplyView(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
		Reference:  r.m.Reference(),
	})
	return err
}

func (r *messageResponder) ReplyFile(text, name string, data []byte) error {
	_, err := r.s.ChannelMessageSendComplex(r.m.ChannelID, &discordgo.MessageSend{
		Content:   text,
		Files:     []*discordgo.File{{Name: name, ContentType: "application/json", Reader: bytes.NewReader(data)}},
		Reference: r.m.Reference(),
	})
	return err
}

func (r *messageResponder) Private(text string) error { return r.Reply(text) }

func (r *messageResponder) Update(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != "" {
		if _, err := r.s.ChannelMessageEdit(r.m.ChannelID, r.status, text); err == nil {
			return nil
		}
	}
	m, err := r.s.ChannelMessageSend(r.m.ChannelID, text)
	if err != nil {
		return err
	}
	r.status = m.ID
	return nil
}

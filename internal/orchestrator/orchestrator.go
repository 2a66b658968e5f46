// Package orchestrator decides when the bot speaks and turns a decision into
// paced chat messages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"izumi/internal/ai"
	"izumi/internal/contextbuild"
	"izumi/internal/learning"
	"izumi/internal/lyrics"
	"izumi/internal/media"
	"izumi/internal/memory"
	"izumi/internal/metrics"
	"izumi/internal/persona"
	"izumi/internal/quickreply"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// Pacing between the parts of one reply.
const (
	PartPauseMin  = 2 * time.Second
	PartPauseSpan = time.Second
	maxFollowUps  = 5
)

// Message is an inbound guild message.
type Message struct {
	ID            string
	GuildID       string
	ChannelID     string
	ChannelName   string
	AuthorID      string
	DisplayName   string
	Username      string
	Content       string
	Timestamp     time.Time
	MentionsBot   bool
	ReplyToBot    bool
	ReplyToUserID string
	Mentions      []learning.Mention
	Attachments   []media.Attachment
	EmbedImages   []string
}

// Sender posts to the platform.
type Sender interface {
	Typing(ctx context.Context, channelID string) error
	Reply(ctx context.Context, channelID, messageID, text string) (string, error)
	Send(ctx context.Context, channelID, text string) (string, error)
}

// Options configures an Orchestrator. Store, Builder, Sessions and Sender are
// required.
type Options struct {
	Store     *memory.Store
	Builder   *contextbuild.Builder
	Sessions  *Sessions
	Describer *media.Describer
	Sender    Sender
	Lyrics    *lyrics.Library
	Nicknames []string
	BotID     string
	BotName   string

	Rand  func() float64
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator is the response pipeline.
type Orchestrator struct {
	store     *memory.Store
	builder   *contextbuild.Builder
	sessions  *Sessions
	describer *media.Describer
	sender    Sender
	lyrics    *lyrics.Library
	nicknames []string

	botMu   sync.RWMutex
	botID   string
	botName string

	rnd   func() float64
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// cooldown holds the last reply time per user. A reply in progress
	// holds its claim from the decision until it is posted or dropped.
	cooldown   *cache.Cache
	cooldownMu sync.Mutex

	mu       sync.Mutex
	channels map[string]*channelState
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:     opts.Store,
		builder:   opts.Builder,
		sessions:  opts.Sessions,
		describer: opts.Describer,
		sender:    opts.Sender,
		lyrics:    opts.Lyrics,
		nicknames: opts.Nicknames,
		botID:     opts.BotID,
		botName:   opts.BotName,
		rnd:       opts.Rand,
		now:       opts.Clock,
		sleep:     opts.Sleep,
		cooldown:  cache.New(UserCooldown, time.Minute),
		channels:  map[string]*channelState{},
	}
	if o.rnd == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		o.rnd = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	if o.botName == "" {
		o.botName = "Izumi"
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetBot records the bot identity once the platform session is ready.
func (o *Orchestrator) SetBot(id, name string) {
	o.botMu.Lock()
	o.botID = id
	if name != "" {
		o.botName = name
	}
	o.botMu.Unlock()
	if o.builder != nil {
		o.builder.SetBot(id, name)
	}
}

func (o *Orchestrator) bot() (string, string) {
	o.botMu.RLock()
	defer o.botMu.RUnlock()
	return o.botID, o.botName
}

func (o *Orchestrator) channel(id string) *channelState {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.channels[id]
	if !ok {
		c = &channelState{}
		o.channels[id] = c
	}
	return c
}

// ChannelState reports the pipeline state of a channel.
func (o *Orchestrator) ChannelState(channelID string) State {
	return o.channel(channelID).current(o.now())
}

// HandleMessage learns from msg, decides whether to reply and, if so, runs
// the reply pipeline to completion.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg Message) (Decision, error) {
	return o.handle(ctx, msg, true)
}

// HandleEdit runs the reply decision for an edited message. The message was
// already learned from when it was first posted.
func (o *Orchestrator) HandleEdit(ctx context.Context, msg Message) (Decision, error) {
	return o.handle(ctx, msg, false)
}

func (o *Orchestrator) handle(ctx context.Context, msg Message, learn bool) (Decision, error) {
	botID, _ := o.bot()
	if msg.GuildID == "" || msg.AuthorID == "" || msg.AuthorID == botID {
		return Decision{Reason: ReasonNone}, nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = o.now()
	}
	now := o.now()
	fields := log.Fields{"guild": msg.GuildID, "channel": msg.ChannelID, "user": msg.AuthorID}

	var prevInteraction time.Time
	if p, ok := o.store.User(msg.AuthorID); ok && p.Activity.LastInteraction > 0 {
		prevInteraction = time.Unix(p.Activity.LastInteraction, 0)
	}

	st := o.channel(msg.ChannelID)
	prevMessage, lastBot := st.seen(msg.Timestamp)

	if learn {
		if err := learning.LearnFromMessage(o.store, learningMessage(msg)); err != nil {
			if !errors.Is(err, learning.ErrNothingToDo) {
				log.WithFields(fields).Warnf("[CHAT] learn: %v", err)
			}
		} else {
			metrics.MessagesLearned.Inc()
		}
	}

	in := decisionInput{
		text:        msg.Content,
		mentionsBot: msg.MentionsBot || msg.ReplyToBot,
		now:         now,
		lastBot:     lastBot,
		prevMessage: prevMessage,
	}
	o.store.View(func(tx *memory.Tx) {
		if p := tx.User(msg.AuthorID); p != nil {
			in.interests = append([]string(nil), p.Personality.Interests...)
		}
		if cc := tx.ConversationChannel(msg.ChannelID); cc != nil {
			cp := *cc
			in.channel = &cp
		}
		in.recent = append([]memory.RecentMessage(nil), tx.Recent(msg.ChannelID)...)
	})

	d := o.decide(in)
	if !d.Reply {
		return d, nil
	}
	if !o.claim(msg.AuthorID, now) {
		log.WithFields(fields).Debugf("[CHAT] user on cooldown, skipping %s", d.Reason)
		return Decision{Reason: ReasonCooldown}, nil
	}

	log.WithFields(fields).Infof("[CHAT] replying (%s)", d.Reason)
	err := o.respond(ctx, st, msg, d, prevInteraction)
	return d, err
}

// claim takes the reply cooldown for userID. It fails while an earlier reply
// is in progress or was posted less than UserCooldown ago.
func (o *Orchestrator) claim(userID string, now time.Time) bool {
	o.cooldownMu.Lock()
	defer o.cooldownMu.Unlock()
	if last, ok := o.cooldown.Get(userID); ok && now.Sub(last.(time.Time)) < UserCooldown {
		return false
	}
	o.cooldown.Set(userID, now, cache.DefaultExpiration)
	return true
}

// release gives back a claim when nothing was posted.
func (o *Orchestrator) release(userID string) {
	o.cooldownMu.Lock()
	o.cooldown.Delete(userID)
	o.cooldownMu.Unlock()
}

// drop abandons a reply: the channel returns to Idle and the author keeps no
// cooldown.
func (o *Orchestrator) drop(st *channelState, msg Message) {
	st.abort()
	if msg.AuthorID != "" {
		o.release(msg.AuthorID)
	}
}

func learningMessage(msg Message) learning.Message {
	return learning.Message{
		ID:             msg.ID,
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		ChannelName:    msg.ChannelName,
		AuthorID:       msg.AuthorID,
		DisplayName:    msg.DisplayName,
		Username:       msg.Username,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
		Mentions:       msg.Mentions,
		MentionsBot:    msg.MentionsBot,
		ReplyToUserID:  msg.ReplyToUserID,
		HasAttachments: len(msg.Attachments) > 0 || len(msg.EmbedImages) > 0,
	}
}

// respond runs Collecting through Cooldown for one decision. Reply emission for
// a channel is serialized.
func (o *Orchestrator) respond(ctx context.Context, st *channelState, msg Message, d Decision, prevInteraction time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.begin(o.now())
	mood := persona.DailyMood(o.now(), o.store.Self())
	period := persona.TimeOfDay(o.now())

	if d.Reason == ReasonLyric && d.Lyric != nil {
		metrics.Replies.WithLabelValues(string(d.Reason)).Inc()
		return o.post(ctx, st, msg, []string{o.lyricLine(d.Lyric)}, mood, period)
	}

	if reply, ok := quickreply.Match(o.stripBotMention(msg.Content), mood, o.rnd); ok {
		metrics.QuickReplies.Inc()
		metrics.Replies.WithLabelValues(string(d.Reason)).Inc()
		return o.post(ctx, st, msg, Split(reply), mood, period)
	}

	var followUps []string
	if d.Reason == ReasonMention {
		if err := o.sleep(ctx, FollowUpWait); err != nil {
			o.drop(st, msg)
			return err
		}
		followUps = o.followUps(msg)
	}

	st.to(StateContextBuilding)
	content := o.withMedia(ctx, msg)
	contextText := o.builder.Build(contextbuild.Request{
		UserID:           msg.AuthorID,
		GuildID:          msg.GuildID,
		ChannelID:        msg.ChannelID,
		Text:             msg.Content,
		PrevInteraction:  prevInteraction,
		Lyric:            d.Lyric,
		ExcludeMessageID: msg.ID,
		Now:              o.now(),
	})
	system := o.systemPrompt(mood, period, contextText, d.Reason, "")
	turn := o.turn(followUps, msg.DisplayName, content)

	st.to(StateCalling)
	reply, err := o.sessions.Ask(ctx, msg.ChannelID, system, turn, func(tier int) {
		st.to(StateFallback)
		st.to(StateCalling)
	})
	if err != nil {
		if ctx.Err() != nil {
			o.drop(st, msg)
			return ctx.Err()
		}
		log.WithFields(log.Fields{"channel": msg.ChannelID}).Warnf("[CHAT] model: %v", err)
	}

	parts := o.finish(reply, mood)
	if len(parts) == 0 {
		o.drop(st, msg)
		return nil
	}
	metrics.Replies.WithLabelValues(string(d.Reason)).Inc()
	return o.post(ctx, st, msg, parts, mood, period)
}

func (o *Orchestrator) lyricLine(m *lyrics.Match) string {
	line := m.NextLine
	if o.rnd() < 0.3 {
		line += " 🎶"
	}
	return line
}

var mentionTagRe = regexp.MustCompile(`<@!?\d+>`)

func (o *Orchestrator) stripBotMention(text string) string {
	botID, _ := o.bot()
	if botID != "" {
		text = strings.ReplaceAll(text, "<@"+botID+">", "")
		text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	}
	return strings.TrimSpace(text)
}

// followUps gathers what the channel said around the trigger: others' messages
// in the 30s before it and the author's own messages in the 10s after it.
func (o *Orchestrator) followUps(msg Message) []string {
	trig := msg.Timestamp.Unix()
	var picked []memory.RecentMessage
	var before []memory.RecentMessage
	o.store.View(func(tx *memory.Tx) {
		for _, m := range tx.Recent(msg.ChannelID) {
			if m.IsBot || m.MessageID == msg.ID {
				continue
			}
			switch {
			case m.Timestamp <= trig && m.Timestamp >= trig-int64(FollowUpChannel/time.Second):
				before = append(before, m)
			case m.Timestamp > trig && m.UserID == msg.AuthorID && m.Timestamp <= trig+int64(FollowUpAuthor/time.Second):
				picked = append(picked, m)
			}
		}
	})
	if len(before) > maxFollowUps {
		before = before[len(before)-maxFollowUps:]
	}
	picked = append(before, picked...)
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Timestamp < picked[j].Timestamp })

	lines := make([]string, 0, len(picked))
	for _, m := range picked {
		text := mentionTagRe.ReplaceAllString(m.Content, "")
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		lines = append(lines, m.DisplayName+": "+text)
	}
	return lines
}

// withMedia appends a description of every attachment, embedded image and
// video link.
func (o *Orchestrator) withMedia(ctx context.Context, msg Message) string {
	content := o.stripBotMention(msg.Content)
	if o.describer == nil {
		return content
	}
	var results []media.Result
	if len(msg.Attachments) > 0 {
		results = append(results, o.describer.DescribeAll(ctx, msg.Attachments)...)
	}
	for _, u := range msg.EmbedImages {
		results = append(results, o.describer.DescribeImageURL(ctx, u))
	}
	results = append(results, o.describer.DescribeVideoLinks(ctx, msg.Content)...)
	for _, r := range results {
		outcome := "ok"
		if r.Placeholder {
			outcome = "placeholder"
		}
		metrics.MediaAnalyses.WithLabelValues(outcome).Inc()
	}
	if desc := media.Join(results); desc != "" {
		if content == "" {
			return desc
		}
		return content + "\n" + desc
	}
	return content
}

// turn is the text sent to the model: gathered follow-ups, then the
// attributed message.
func (o *Orchestrator) turn(followUps []string, name, content string) string {
	if name == "" {
		name = "someone"
	}
	line := fmt.Sprintf("[User: %s] %s", name, content)
	if len(followUps) == 0 {
		return line
	}
	return "(what was just said in the channel)\n" + strings.Join(followUps, "\n") + "\n\n" + line
}

var reasonHints = map[Reason]string{
	ReasonJoin:       "Nobody asked you directly. You are joining an ongoing conversation, so react to what the others just said and address them by name.",
	ReasonLull:       "The chat went quiet for a bit. Keep it light and easy to answer.",
	ReasonQuestion:   "They asked something right after talking with you. Answer it.",
	ReasonHelp:       "They need help. Be useful first, playful second.",
	ReasonEmotional:  "They are sharing how they feel. Be warm.",
	ReasonUnprompted: "You are starting a conversation yourself. One or two short lines, end with something people can reply to.",
}

func (o *Orchestrator) systemPrompt(mood persona.Mood, period persona.Period, contextText string, reason Reason, extra string) string {
	_, name := o.bot()
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a regular member of this Discord server, not an assistant. ", name)
	b.WriteString("Text like a real person in a group chat: lowercase is fine, short messages, no lists, no headings, no emoji spam. ")
	b.WriteString("Never say you are an AI or a bot. Never repeat lines from the context blocks verbatim and never output the context markers.\n")
	fmt.Fprintf(&b, "Today you are %s. It is %s, so %s.\n", mood.Descriptor, period.Name, period.Style)
	if hint := reasonHints[reason]; hint != "" {
		b.WriteString(hint + "\n")
	}
	if extra != "" {
		b.WriteString(extra + "\n")
	}
	if contextText != "" {
		b.WriteString("\n" + contextText)
	}
	return strings.TrimSpace(b.String())
}

// finish post-processes a model reply into sendable parts.
func (o *Orchestrator) finish(reply string, mood persona.Mood) []string {
	out := StripMarkers(reply)
	out = TrimUpbeatEnding(out)
	if out == "" {
		return nil
	}
	out = persona.ApplyQuirks(out, mood, o.rnd)
	return Split(out)
}

// post types and sends each part. The first part replies to msg when it has an
// id. A failed send skips the remaining parts; participation is recorded
// either way.
func (o *Orchestrator) post(ctx context.Context, st *channelState, msg Message, parts []string, mood persona.Mood, period persona.Period) error {
	st.to(StatePosting)
	botID, botName := o.bot()
	fields := log.Fields{"guild": msg.GuildID, "channel": msg.ChannelID}

	var sendErr error
	for i, part := range parts {
		if i > 0 {
			pause := PartPauseMin + time.Duration(o.rnd()*float64(PartPauseSpan))
			if err := o.sleep(ctx, pause); err != nil {
				sendErr = err
				break
			}
		}
		if err := o.sender.Typing(ctx, msg.ChannelID); err != nil {
			log.WithFields(fields).Debugf("[CHAT] typing: %v", err)
		}
		if err := o.sleep(ctx, persona.TypingDuration(part, mood, period)); err != nil {
			sendErr = err
			break
		}

		var id string
		var err error
		if i == 0 && msg.ID != "" {
			id, err = o.sender.Reply(ctx, msg.ChannelID, msg.ID, part)
		} else {
			id, err = o.sender.Send(ctx, msg.ChannelID, part)
		}
		if err != nil {
			log.WithFields(fields).Warnf("[CHAT] send part %d/%d: %v", i+1, len(parts), err)
			sendErr = err
			break
		}
		at := o.now()
		o.store.Update(func(tx *memory.Tx) {
			tx.AppendRecent(msg.ChannelID, memory.RecentMessage{
				MessageID:   id,
				UserID:      botID,
				DisplayName: botName,
				Content:     part,
				Timestamp:   at.Unix(),
				IsBot:       true,
			})
		})
	}

	at := o.now()
	o.store.MarkParticipation(msg.ChannelID, at)
	if msg.AuthorID != "" {
		o.cooldownMu.Lock()
		o.cooldown.Set(msg.AuthorID, at, cache.DefaultExpiration)
		o.cooldownMu.Unlock()
	}
	st.posted(at)
	return sendErr
}

// Unprompted starts a conversation in one of guildID's join-enabled channels.
// It reports whether anything was sent.
func (o *Orchestrator) Unprompted(ctx context.Context, guildID string) (bool, error) {
	now := o.now()
	op, ok := o.store.ProposeOpener(guildID, now, o.rnd)
	if !ok {
		return false, nil
	}
	cc, ok := o.store.ConversationChannel(op.ChannelID)
	if !ok {
		return false, nil
	}
	if cc.LastParticipation > 0 && now.Unix()-cc.LastParticipation < int64(cc.CooldownSec) {
		return false, nil
	}
	if ring := o.store.Recent(op.ChannelID); len(ring) > 0 && ring[len(ring)-1].IsBot {
		return false, nil
	}

	st := o.channel(op.ChannelID)
	if !st.mu.TryLock() {
		return false, nil
	}
	defer st.mu.Unlock()
	st.begin(now)

	mood := persona.DailyMood(now, o.store.Self())
	period := persona.TimeOfDay(now)
	st.to(StateContextBuilding)
	contextText := o.builder.Build(contextbuild.Request{GuildID: guildID, ChannelID: op.ChannelID, Now: now})
	extra := fmt.Sprintf("Bring up %q (%s).", op.Topic, op.Source)
	system := o.systemPrompt(mood, period, contextText, ReasonUnprompted, extra)

	st.to(StateCalling)
	reply, err := o.sessions.Ask(ctx, op.ChannelID, system, "[Opener] say something to the channel about "+op.Topic, func(int) {
		st.to(StateFallback)
		st.to(StateCalling)
	})
	if err != nil {
		st.abort()
		return false, err
	}
	parts := o.finish(reply, mood)
	if len(parts) == 0 {
		st.abort()
		return false, nil
	}
	metrics.Replies.WithLabelValues(string(ReasonUnprompted)).Inc()
	log.WithFields(log.Fields{"guild": guildID, "channel": op.ChannelID}).Infof("[CHAT] opener about %q", op.Topic)
	err = o.post(ctx, st, Message{GuildID: guildID, ChannelID: op.ChannelID}, parts, mood, period)
	return err == nil, err
}

// ReapSessions resets channel sessions that are over their bounds.
func (o *Orchestrator) ReapSessions() int { return o.sessions.Reap() }

// Stats is a snapshot for status endpoints.
type Stats struct {
	Sessions      int            `json:"sessions"`
	Channels      int            `json:"channels"`
	TierFailures  []int          `json:"tier_failures"`
	ChannelStates map[string]int `json:"channel_states"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	chans := make([]*channelState, 0, len(o.channels))
	for _, c := range o.channels {
		chans = append(chans, c)
	}
	o.mu.Unlock()

	now := o.now()
	states := map[string]int{}
	for _, c := range chans {
		states[c.current(now).String()]++
	}
	return Stats{
		Sessions:      o.sessions.Len(),
		Channels:      len(chans),
		TierFailures:  o.sessions.Failures(),
		ChannelStates: states,
	}
}

// Ask sends text straight to the channel session, bypassing the decision.
func (o *Orchestrator) Ask(ctx context.Context, channelID, displayName, text string) (string, error) {
	mood := persona.DailyMood(o.now(), o.store.Self())
	period := persona.TimeOfDay(o.now())
	system := o.systemPrompt(mood, period, "", ReasonMention, "")
	reply, err := o.sessions.Ask(ctx, channelID, system, o.turn(nil, displayName, text), nil)
	if errors.Is(err, ai.ErrFiltered) {
		return reply, nil
	}
	return strings.Join(o.finish(reply, mood), "\n"), err
}

package orchestrator

import (
	"regexp"
	"strings"
	"time"

	"izumi/internal/lyrics"
	"izumi/internal/memory"
)

// Reason names why a message was (or was not) answered.
type Reason string

const (
	ReasonNone       Reason = "none"
	ReasonCooldown   Reason = "cooldown"
	ReasonMention    Reason = "mention"
	ReasonLyric      Reason = "lyric"
	ReasonNickname   Reason = "nickname"
	ReasonQuestion   Reason = "question"
	ReasonOpinion    Reason = "opinion"
	ReasonHelp       Reason = "help"
	ReasonEmotional  Reason = "emotional"
	ReasonAck        Reason = "acknowledgment"
	ReasonInterest   Reason = "interest"
	ReasonLull       Reason = "lull"
	ReasonJoin       Reason = "join"
	ReasonUnprompted Reason = "unprompted"
)

// Decision is the outcome of Decide.
type Decision struct {
	Reply  bool
	Reason Reason
	Lyric  *lyrics.Match
}

// Decision windows.
const (
	ConversationWindow = 60 * time.Second
	LyricTrigger       = 0.75
	LyricReplyChance   = 0.5
	UserCooldown       = 15 * time.Second
	FollowUpWait       = 4 * time.Second
	FollowUpChannel    = 30 * time.Second
	FollowUpAuthor     = 10 * time.Second
)

var (
	questionRe  = regexp.MustCompile(`(?i)\?\s*$|^(what|why|how|when|where|who|which|is|are|do|does|did|can|could|would|should|will)\b`)
	opinionRe   = regexp.MustCompile(`(?i)\b(i think|imo|in my opinion|i feel like|honestly|tbh|i believe|i guess)\b`)
	helpRe      = regexp.MustCompile(`(?i)\b(help|how do i|how can i|anyone know|can someone|stuck on|any idea|need advice)\b`)
	emotionalRe = regexp.MustCompile(`(?i)\b(sad|happy|angry|tired|excited|lonely|stressed|anxious|upset|love|hate|miss|crying|scared)\b`)
	ackRe       = regexp.MustCompile(`(?i)^(ok|okay|k|yeah|yep|yes|true|same|nice|cool|lol|lmao|fair|facts|right|mhm|indeed)[.!\s]*$`)
)

type continuation struct {
	reason Reason
	within time.Duration
	chance float64
	match  func(in decisionInput) bool
}

// continuations are evaluated in this order with independent rolls; the first
// hit wins.
var continuations = []continuation{
	{ReasonQuestion, 30 * time.Second, 0.30, func(in decisionInput) bool { return questionRe.MatchString(in.text) }},
	{ReasonOpinion, 45 * time.Second, 0.20, func(in decisionInput) bool { return opinionRe.MatchString(in.text) }},
	{ReasonHelp, 40 * time.Second, 0.40, func(in decisionInput) bool { return helpRe.MatchString(in.text) }},
	{ReasonEmotional, 35 * time.Second, 0.25, func(in decisionInput) bool { return emotionalRe.MatchString(in.text) }},
	{ReasonAck, 20 * time.Second, 0.50, func(in decisionInput) bool { return ackRe.MatchString(strings.TrimSpace(in.text)) }},
	{ReasonInterest, 50 * time.Second, 0.15, func(in decisionInput) bool { return mentionsAny(in.text, in.interests) }},
	{ReasonLull, 25 * time.Second, 0.10, func(in decisionInput) bool {
		return !in.prevMessage.IsZero() && in.now.Sub(in.prevMessage) >= 15*time.Second
	}},
}

type decisionInput struct {
	text        string
	mentionsBot bool
	now         time.Time
	lastBot     time.Time // last bot message in the channel
	prevMessage time.Time // previous channel message before this one
	interests   []string
	channel     *memory.ConversationChannel
	recent      []memory.RecentMessage
}

func (o *Orchestrator) decide(in decisionInput) Decision {
	if in.mentionsBot {
		d := Decision{Reply: true, Reason: ReasonMention}
		if m, ok := o.lyricMatch(in.text); ok {
			d.Lyric = m
		}
		return d
	}

	if m, ok := o.lyricMatch(in.text); ok && o.rnd() < LyricReplyChance {
		return Decision{Reply: true, Reason: ReasonLyric, Lyric: m}
	}

	elapsed := in.now.Sub(in.lastBot)
	inWindow := !in.lastBot.IsZero() && elapsed <= ConversationWindow
	if inWindow && o.mentionsNickname(in.text) {
		return Decision{Reply: true, Reason: ReasonNickname}
	}

	if inWindow {
		for _, c := range continuations {
			if elapsed > c.within || !c.match(in) {
				continue
			}
			if o.rnd() < c.chance {
				return Decision{Reply: true, Reason: c.reason}
			}
		}
	}

	if shouldJoin(in, o.rnd) {
		return Decision{Reply: true, Reason: ReasonJoin}
	}
	return Decision{Reason: ReasonNone}
}

func (o *Orchestrator) lyricMatch(text string) (*lyrics.Match, bool) {
	if o.lyrics == nil {
		return nil, false
	}
	m, ok := o.lyrics.FindMatch(text)
	if !ok || m.Confidence < LyricTrigger {
		return nil, false
	}
	return m, true
}

func (o *Orchestrator) mentionsNickname(text string) bool {
	return mentionsAny(text, o.nicknames)
}

// shouldJoin applies the conversation-join rule of a configured channel.
func shouldJoin(in decisionInput, rnd func() float64) bool {
	cc := in.channel
	if cc == nil {
		return false
	}
	now := in.now.Unix()
	if cc.LastParticipation > 0 && now-cc.LastParticipation < int64(cc.CooldownSec) {
		return false
	}
	ring := in.recent
	for i := len(ring) - 1; i >= 0 && i >= len(ring)-3; i-- {
		if ring[i].IsBot {
			return false
		}
	}
	cutoff := now - int64(cc.TimeWindowSec)
	count := 0
	users := map[string]bool{}
	for _, m := range ring {
		if m.Timestamp < cutoff || m.IsBot {
			continue
		}
		count++
		users[m.UserID] = true
	}
	if count < cc.MinMessages || len(users) < cc.MinUsers {
		return false
	}
	return rnd() < cc.ParticipationChance
}

func mentionsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(w) + `\b`)
		if err == nil && re.MatchString(lower) {
			return true
		}
	}
	return false
}

// Package contextbuild assembles the per-message context handed to the LLM:
// recent chat, what is remembered about the speaker, the bot's current state
// and a few learned hints, in priority order and within a character budget.
package contextbuild

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"izumi/internal/emotion"
	"izumi/internal/lyrics"
	"izumi/internal/memory"
	"izumi/internal/persona"
)

// Budget is approximate, at 4 chars per token.
const (
	CharsPerToken = 4
	BudgetTokens  = 15000
	BudgetChars   = BudgetTokens * CharsPerToken
	// lower-priority sections are skipped once this share of the budget is used
	LowPriorityCutoff = 0.7

	recentLimit = 50
)

// PersonQueryMarker prefixes the dossier of a person query.
const PersonQueryMarker = "PERSON QUERY RESULT:"

// Standing is what the community features know about a member.
type Standing struct {
	Level      int
	XP         int
	Coins      int
	Cards      int
	Warnings   int
	LastActive time.Time
}

// Community looks up a member's standing in a guild.
type Community interface {
	Standing(guildID, userID string) (Standing, bool)
}

// Request describes the message being answered.
type Request struct {
	UserID    string
	GuildID   string
	ChannelID string
	Text      string
	// PrevInteraction is the speaker's last interaction before this message.
	// Zero means use the stored value.
	PrevInteraction time.Time
	Lyric           *lyrics.Match
	// ExcludeMessageID drops the triggering message from recent chat.
	ExcludeMessageID string
	Now              time.Time
}

// Builder builds context strings from the memory store.
type Builder struct {
	store     *memory.Store
	community Community
	botID     string
	botName   string
	budget    int
}

// New returns a Builder. community may be nil.
func New(store *memory.Store, community Community, botID, botName string) *Builder {
	return &Builder{store: store, community: community, botID: botID, botName: botName, budget: BudgetChars}
}

// SetBot updates the bot identity once the platform session is ready.
func (b *Builder) SetBot(id, name string) {
	b.botID, b.botName = id, name
}

type section struct {
	title string
	body  string
}

// Build renders the context for req. The store is read under one lock so the
// snapshot is consistent.
func (b *Builder) Build(req Request) string {
	if req.Now.IsZero() {
		req.Now = b.store.Now()
	}

	var high, low []section
	b.store.View(func(tx *memory.Tx) {
		p := tx.User(req.UserID)
		high = append(high,
			section{"Recent chat", b.recentChat(tx, req)},
			section{"About " + nameOf(p, "them"), b.essential(tx, p, req)},
			section{"Right now", b.currentState(tx, p, req)},
		)
		low = append(low,
			section{"", b.personQuery(tx, req)},
			section{"How they talk", vocabularyHints(p)},
			section{"Their people", relationshipHints(tx, p)},
			section{"Their style", styleSummary(p)},
		)
	})

	var out strings.Builder
	write := func(s section) {
		body := strings.TrimSpace(s.body)
		if body == "" {
			return
		}
		if s.title != "" {
			out.WriteString("--- " + s.title + " ---\n")
		}
		out.WriteString(body)
		out.WriteString("\n\n")
	}

	for _, s := range high {
		write(s)
	}
	cutoff := int(float64(b.budget) * LowPriorityCutoff)
	for _, s := range low {
		if out.Len() >= cutoff {
			break
		}
		write(s)
	}
	return TrimToChars(strings.TrimSpace(out.String()), b.budget)
}

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	mentionRe = regexp.MustCompile(`<@!?(\d+)>`)
	roleRe    = regexp.MustCompile(`<@&\d+>`)
	channelRe = regexp.MustCompile(`<#\d+>`)
	emojiRe   = regexp.MustCompile(`<a?:(\w+):\d+>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Normalize rewrites platform markup into plain readable text.
func (b *Builder) Normalize(tx *memory.Tx, text string) string {
	text = urlRe.ReplaceAllString(text, "[link]")
	text = mentionRe.ReplaceAllStringFunc(text, func(m string) string {
		id := mentionRe.FindStringSubmatch(m)[1]
		if id == b.botID {
			return b.botName
		}
		if p := tx.User(id); p != nil {
			return "@" + p.Name()
		}
		return "@someone"
	})
	text = roleRe.ReplaceAllString(text, "@role")
	text = channelRe.ReplaceAllString(text, "#channel")
	text = emojiRe.ReplaceAllString(text, ":$1:")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func (b *Builder) recentChat(tx *memory.Tx, req Request) string {
	var lines []string
	for _, m := range tx.Recent(req.ChannelID) {
		if m.MentionsBot || (req.ExcludeMessageID != "" && m.MessageID == req.ExcludeMessageID) {
			continue
		}
		text := b.Normalize(tx, m.Content)
		if m.HasAttachments {
			text = strings.TrimSpace(text + " [attachment]")
		}
		if text == "" {
			continue
		}
		name := m.DisplayName
		if m.IsBot {
			name = b.botName
		}
		lines = append(lines, name+": "+text)
	}
	if len(lines) > recentLimit {
		lines = lines[len(lines)-recentLimit:]
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) essential(tx *memory.Tx, p *memory.UserProfile, req Request) string {
	var parts []string
	if p != nil {
		parts = append(parts, memoriesBlock(p), sharedBlock(tx, p, req))
	}

	var st Standing
	var known bool
	if b.community != nil {
		st, known = b.community.Standing(req.GuildID, req.UserID)
	}
	if known {
		line := fmt.Sprintf("Level %d with %d xp.", st.Level, st.XP)
		if st.Warnings > 0 {
			line += fmt.Sprintf(" Has %d moderation warning(s).", st.Warnings)
		}
		parts = append(parts, line)
	}

	parts = append(parts, selfBlock(tx.Self()))

	lastBot := req.PrevInteraction
	if lastBot.IsZero() && p != nil && p.Activity.LastInteraction > 0 {
		lastBot = time.Unix(p.Activity.LastInteraction, 0)
	}
	if p == nil {
		lastBot = time.Time{}
	}
	if req.UserID == "" {
		return joinNonEmpty(parts, "\n")
	}
	if ev := emotion.Evaluate(req.Now, lastBot, st.LastActive); ev.Instruction != "" {
		parts = append(parts, "Emotional context: "+ev.Instruction)
	}
	return joinNonEmpty(parts, "\n")
}

func memoriesBlock(p *memory.UserProfile) string {
	bi := p.BasicInfo
	var lines []string
	name := bi.DisplayName
	if bi.Username != "" && bi.Username != bi.DisplayName {
		name += " (@" + bi.Username + ")"
	}
	lines = append(lines, "Name: "+name)
	if bi.RealName != "" {
		lines = append(lines, "Real name: "+bi.RealName)
	}
	if bi.Nickname != "" {
		lines = append(lines, "You call them: "+bi.Nickname)
	}
	if bi.Age > 0 {
		lines = append(lines, fmt.Sprintf("Age: %d", bi.Age))
	}
	if bi.Birthday != nil {
		lines = append(lines, "Birthday: "+bi.Birthday.String())
	}
	if bi.RelationshipStatus != "" {
		lines = append(lines, "Relationship status: "+bi.RelationshipStatus)
	}
	addList := func(label string, items []string, n int) {
		if len(items) == 0 {
			return
		}
		if len(items) > n {
			items = items[len(items)-n:]
		}
		lines = append(lines, label+": "+strings.Join(items, ", "))
	}
	addList("Interests", p.Personality.Interests, 10)
	addList("Dislikes", p.Personality.Dislikes, 8)
	addList("Personality", p.Personality.PersonalityNotes, 8)
	addList("Important events", p.Activity.ImportantEvents, 5)
	addList("Notes", p.Activity.CustomNotes, 8)
	if p.Personality.ConversationStyle != "" {
		lines = append(lines, "Conversation style: "+p.Personality.ConversationStyle)
	}
	lines = append(lines, fmt.Sprintf("Trust: %.1f/10 (%s)", p.Social.TrustLevel, trustWord(p.Social.TrustLevel)))
	return strings.Join(lines, "\n")
}

func trustWord(t float64) string {
	switch {
	case t >= 8:
		return "very close, be warm and open"
	case t >= 6:
		return "friendly"
	case t >= 4:
		return "neutral"
	case t >= 2:
		return "a bit distant, be polite"
	default:
		return "wary, keep some distance"
	}
}

// sharedBlock lists relationships and shared experiences with people present
// in the recent chat.
func sharedBlock(tx *memory.Tx, p *memory.UserProfile, req Request) string {
	present := map[string]bool{}
	for _, m := range tx.Recent(req.ChannelID) {
		if m.UserID != req.UserID && !m.IsBot {
			present[m.UserID] = true
		}
	}
	ids := make([]string, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lines []string
	for _, id := range ids {
		other := nameOf(tx.User(id), "")
		if other == "" {
			continue
		}
		if label := p.Social.Relationships[id]; label != "" {
			lines = append(lines, fmt.Sprintf("%s is their %s.", other, label))
		}
		if ex := p.Social.SharedExperiences[id]; len(ex) > 0 {
			lines = append(lines, fmt.Sprintf("With %s: %s", other, strings.Join(lastN(ex, 3), "; ")))
		}
	}
	return strings.Join(lines, "\n")
}

func selfBlock(self *memory.SelfProfile) string {
	if self == nil || self.IsEmpty() {
		return ""
	}
	var lines []string
	for _, cat := range memory.SelfCategories {
		items, _ := self.Get(cat)
		if len(items) == 0 {
			continue
		}
		lines = append(lines, strings.ReplaceAll(cat, "_", " ")+": "+strings.Join(lastN(items, 6), ", "))
	}
	return "About yourself:\n" + strings.Join(lines, "\n")
}

func (b *Builder) currentState(tx *memory.Tx, p *memory.UserProfile, req Request) string {
	mood := persona.DailyMood(req.Now, tx.Self())
	period := persona.TimeOfDay(req.Now)
	lines := []string{
		"Your mood today: " + mood.Descriptor + ".",
		"Time of day: " + period.Style + ".",
		energyHint(tx.Recent(req.ChannelID), req.Now),
	}
	if p != nil {
		if ev := p.Activity.ImportantEvents; len(ev) > 0 {
			lines = append(lines, "If it fits naturally, ask how this went: "+ev[len(ev)-1]+".")
		}
		if mp := p.LearningData.SentimentPatterns.MoodPatterns; len(mp) > 0 {
			last := mp[len(mp)-1]
			if last.Negative > last.Positive {
				lines = append(lines, "They seemed a bit down last time, check in gently.")
			}
		}
	}
	if req.Lyric != nil {
		lines = append(lines, fmt.Sprintf("They are quoting %q by %s. The next line is %q; you can sing it back.",
			req.Lyric.Song, req.Lyric.Artist, req.Lyric.NextLine))
	}
	return joinNonEmpty(lines, "\n")
}

func energyHint(ring []memory.RecentMessage, now time.Time) string {
	cutoff := now.Add(-5 * time.Minute).Unix()
	n := 0
	for _, m := range ring {
		if m.Timestamp >= cutoff {
			n++
		}
	}
	switch {
	case n >= 10:
		return "The chat is busy, keep replies snappy."
	case n <= 1:
		return "The chat is quiet."
	default:
		return "The chat is relaxed."
	}
}

var (
	personQueryRe = regexp.MustCompile(`(?i)\b(?:who\s+is|who's|do\s+you\s+know|tell\s+me\s+about|what\s+about|have\s+you\s+met|remember)\s+@?([\p{L}\p{N}_.\-]+)`)
	queryStop     = map[string]bool{
		"you": true, "me": true, "i": true, "it": true, "that": true, "this": true, "the": true,
		"him": true, "her": true, "them": true, "us": true, "everyone": true, "anyone": true,
		"someone": true, "what": true, "when": true, "how": true, "a": true, "an": true, "my": true,
		"your": true, "there": true, "here": true, "yourself": true, "myself": true,
	}
)

// PersonQuery extracts the name asked about, if the text is a person query.
func PersonQuery(text string) (string, bool) {
	m := personQueryRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.Trim(m[1], ".-")
	if name == "" || queryStop[strings.ToLower(name)] {
		return "", false
	}
	return name, true
}

func (b *Builder) personQuery(tx *memory.Tx, req Request) string {
	name, ok := PersonQuery(req.Text)
	if !ok {
		return ""
	}
	matches := tx.FindByName(name)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("%s you don't know anyone called %s.", PersonQueryMarker, name)
	case 1:
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Profile.Name())
		}
		if len(names) > 5 {
			names = names[:5]
		}
		return fmt.Sprintf("%s several people match %s: %s. Ask which one.", PersonQueryMarker, name, strings.Join(names, ", "))
	}

	m := matches[0]
	var st Standing
	if b.community != nil {
		st, _ = b.community.Standing(req.GuildID, m.UserID)
	}
	return fmt.Sprintf("%s name=%s level=%d xp=%d coins=%d cards=%d messages=%d. Mention what you know in your own words, never repeat this line.",
		PersonQueryMarker, m.Profile.Name(), st.Level, st.XP, st.Coins, st.Cards, m.Profile.MessageCount())
}

func vocabularyHints(p *memory.UserProfile) string {
	if p == nil {
		return ""
	}
	v := p.LearningData.Vocabulary
	var lines []string
	if top := memory.TopN(v.WordFrequency, 8); len(top) > 0 {
		words := make([]string, len(top))
		for i, kv := range top {
			words[i] = fmt.Sprintf("%s (%d)", kv.Key, kv.Value)
		}
		lines = append(lines, "Words they use a lot: "+strings.Join(words, ", "))
	}
	if top := memory.TopN(v.EmojiUsage, 3); len(top) > 0 {
		emojis := make([]string, len(top))
		for i, kv := range top {
			emojis[i] = kv.Key
		}
		lines = append(lines, "Favourite emojis: "+strings.Join(emojis, " "))
	}
	if avg, ok := average(p.LearningData.CommunicationStyle.VerbosityPreference); ok {
		switch {
		case avg > 30:
			lines = append(lines, "They write long messages.")
		case avg < 6:
			lines = append(lines, "They write short messages, match that.")
		}
	}
	return strings.Join(lines, "\n")
}

func relationshipHints(tx *memory.Tx, p *memory.UserProfile) string {
	if p == nil {
		return ""
	}
	rn := p.LearningData.RelationshipNetworks
	var lines []string
	var names []string
	for _, kv := range memory.TopN(rn.MentionFrequency, 3) {
		if n := nameOf(tx.User(kv.Key), ""); n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		lines = append(lines, "Talks to most: "+strings.Join(names, ", "))
	}

	ids := make([]string, 0, len(p.Social.Relationships))
	for id := range p.Social.Relationships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if rn.RelationshipStrength[id] <= 6 {
			continue
		}
		if n := nameOf(tx.User(id), ""); n != "" {
			lines = append(lines, fmt.Sprintf("Close to %s (%s).", n, p.Social.Relationships[id]))
		}
	}
	return strings.Join(lines, "\n")
}

func styleSummary(p *memory.UserProfile) string {
	if p == nil {
		return ""
	}
	cs := p.LearningData.CommunicationStyle
	var parts []string
	switch {
	case cs.FormalityLevel > 2:
		parts = append(parts, "fairly formal")
	case cs.FormalityLevel < -2:
		parts = append(parts, "casual")
	}
	if n := p.MessageCount(); n > 0 {
		per := float64(cs.EmojiFrequency) / float64(n)
		switch {
		case per >= 1:
			parts = append(parts, "uses lots of emoji")
		case per < 0.1:
			parts = append(parts, "rarely uses emoji")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "They are " + strings.Join(parts, " and ") + "."
}

// TrimToChars cuts s to maxChars runes, preferring a word boundary.
func TrimToChars(s string, maxChars int) string {
	r := []rune(s)
	if maxChars <= 0 || len(r) <= maxChars {
		return s
	}
	out := string(r[:maxChars])
	if i := strings.LastIndex(out, " "); i > len(out)/2 {
		return strings.TrimSpace(out[:i])
	}
	return strings.TrimSpace(out)
}

// EstimateTokens is the 4 chars per token estimate.
func EstimateTokens(s string) int {
	return len([]rune(s)) / CharsPerToken
}

func nameOf(p *memory.UserProfile, fallback string) string {
	if p == nil {
		return fallback
	}
	if n := p.Name(); n != "" {
		return n
	}
	return fallback
}

func average(xs []int) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs)), true
}

func lastN(s []string, n int) []string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// Package memory is the unified, persisted memory of the bot: user profiles,
// its own self profile, per-guild culture statistics, conversation channel
// settings and the per-channel recent message rings.
//
// All state is owned by a Store. Readers get defensive copies; writers run
// inside Update so that one learning pass never interleaves with another.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"izumi/datastore"

	log "github.com/sirupsen/logrus"
)

// ErrUserNotFound is returned by accessors for unknown user ids.
var ErrUserNotFound = errors.New("memory: user not found")

const (
	// UnifiedFile is the unified document name inside the data directory.
	UnifiedFile = "unified_memory.json"
	// SelfSeedFile optionally seeds an empty self profile.
	SelfSeedFile = "self_seed.yaml"
	// FlushInterval is the minimum spacing between debounced flushes.
	FlushInterval = 10 * time.Second
)

// Store owns the unified document. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex
	doc       *Document
	recent    map[string][]RecentMessage
	pending   bool
	lastFlush time.Time
	path      string
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the unified document from dir, migrating legacy documents when
// no valid unified document exists.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		recent: make(map[string][]RecentMessage),
		path:   filepath.Join(dir, UnifiedFile),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	doc, migrated, err := LoadOrMigrate(dir, s.now())
	if err != nil {
		return nil, err
	}
	s.doc = doc
	s.lastFlush = s.now()

	if s.doc.Self.IsEmpty() {
		seed, err := LoadSelfSeed(filepath.Join(dir, SelfSeedFile))
		if err != nil || seed.IsEmpty() {
			seed = DefaultSelf()
		}
		s.doc.Self = seed
		s.pending = true
	}
	if migrated {
		log.Infof("[MEMORY] migrated legacy documents into %s (%d users)", s.path, len(doc.Users))
	}
	return s, nil
}

// NewInMemory returns a Store that is never loaded from disk. Flush writes to path
// when path is not empty.
func NewInMemory(path string, opts ...Option) *Store {
	s := &Store{
		doc:    NewDocument(),
		recent: make(map[string][]RecentMessage),
		path:   path,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.lastFlush = s.now()
	return s
}

// Now returns the store clock.
func (s *Store) Now() time.Time { return s.now() }

// Path returns the unified document path.
func (s *Store) Path() string { return s.path }

// Update runs fn with exclusive access and marks the store dirty.
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{s: s, write: true}
	fn(tx)
	if !tx.clean {
		s.pending = true
	}
}

// View runs fn with shared access. fn must not mutate.
func (s *Store) View(fn func(tx *Tx)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&Tx{s: s})
}

// Pending reports whether unsaved changes exist.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// LastFlush returns the time of the last successful flush.
func (s *Store) LastFlush() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFlush
}

// FlushIfDue saves when dirty and at least FlushInterval passed since the last flush.
func (s *Store) FlushIfDue() (bool, error) {
	return s.flush(false)
}

// Save writes the document now, regardless of the dirty flag.
func (s *Store) Save() error {
	_, err := s.flush(true)
	return err
}

func (s *Store) flush(force bool) (bool, error) {
	if s.path == "" {
		return false, nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	now := s.now()
	if !force && (!s.pending || now.Sub(s.lastFlush) < FlushInterval) {
		s.mu.Unlock()
		return false, nil
	}
	s.doc.SystemInfo.LastUpdated = now.Unix()
	data, err := json.MarshalIndent(sanitized(s.doc), "", "  ")
	s.pending = false
	s.mu.Unlock()

	if err == nil {
		err = datastore.WriteFileAtomic(s.path, data)
	}
	if err != nil {
		s.mu.Lock()
		s.pending = true
		s.mu.Unlock()
		return false, fmt.Errorf("save unified memory: %w", err)
	}

	s.mu.Lock()
	s.lastFlush = now
	s.mu.Unlock()
	return true, nil
}

// sanitized drops empty entries. The returned value shares data with doc and
// is only marshalled.
func sanitized(doc *Document) *Document {
	out := *doc
	out.Users = make(map[string]*UserProfile, len(doc.Users))
	for id, p := range doc.Users {
		if p != nil && id != "" {
			out.Users[id] = p
		}
	}
	out.ServerCulture = make(map[string]*ServerCulture, len(doc.ServerCulture))
	for id, c := range doc.ServerCulture {
		if c != nil {
			out.ServerCulture[id] = c
		}
	}
	return &out
}

// ExportName is the file name template of an export, for util.FormatDateTpl.
const ExportName = "memory_YYYYMMDD_hhmmss.json"

// Export returns the sanitized document as indented JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(sanitized(s.doc), "", "  ")
}

// User returns a copy of a profile.
func (s *Store) User(id string) (*UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.doc.Users[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// UserIDs returns all known user ids, sorted.
func (s *Store) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.doc.Users))
	for id := range s.doc.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EditUser mutates an existing profile.
func (s *Store) EditUser(id string, fn func(p *UserProfile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.doc.Users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(p)
	s.pending = true
	return nil
}

// EnsureUser mutates a profile, creating it first when unknown.
func (s *Store) EnsureUser(id, displayName, username string, fn func(p *UserProfile)) {
	s.Update(func(tx *Tx) {
		p, _ := tx.EnsureUser(id, displayName, username)
		if fn != nil {
			fn(p)
		}
	})
}

// DeleteUser removes a profile entirely.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.doc.Users, id)
	s.pending = true
	return nil
}

// NameMatch is one result of FindByName.
type NameMatch struct {
	UserID  string
	Profile *UserProfile
}

// FindByName searches every profile for a case-insensitive substring match on
// display name, username, real name or nickname.
func (s *Store) FindByName(query string) []NameMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Tx{s: s}).FindByName(query)
}

// DisplayName resolves a user id to the best known name.
func (s *Store) DisplayName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.doc.Users[id]; ok {
		return p.Name()
	}
	return ""
}

// Self returns a copy of the self profile.
func (s *Store) Self() *SelfProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Self.clone()
}

// EditSelf mutates the self profile.
func (s *Store) EditSelf(fn func(sp *SelfProfile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.doc.Self); err != nil {
		return err
	}
	s.pending = true
	return nil
}

// Recent returns a copy of a channel's recent messages, oldest first.
func (s *Store) Recent(channelID string) []RecentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.recent[channelID])
}

// Culture returns a copy of a guild's culture statistics.
func (s *Store) Culture(guildID string) (*ServerCulture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.doc.ServerCulture[guildID]
	if !ok {
		return nil, false
	}
	out := &ServerCulture{
		CommonPhrases:   cloneMap(c.CommonPhrases),
		RecurringTopics: cloneMap(c.RecurringTopics),
		TrendingTopics:  make(map[string]map[string]int, len(c.TrendingTopics)),
	}
	for day, m := range c.TrendingTopics {
		out.TrendingTopics[day] = cloneMap(m)
	}
	return out, true
}

// ConversationChannel returns the join settings for a channel.
func (s *Store) ConversationChannel(channelID string) (ConversationChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.doc.ConversationChannels[channelID]
	if !ok {
		return ConversationChannel{}, false
	}
	return *c, true
}

// ConversationChannels returns a copy of all channel settings.
func (s *Store) ConversationChannels() map[string]ConversationChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConversationChannel, len(s.doc.ConversationChannels))
	for id, c := range s.doc.ConversationChannels {
		out[id] = *c
	}
	return out
}

// SetConversationChannel creates or replaces a channel's join settings.
func (s *Store) SetConversationChannel(channelID string, cfg ConversationChannel) {
	s.Update(func(tx *Tx) {
		c := cfg
		tx.s.doc.ConversationChannels[channelID] = &c
	})
}

// RemoveConversationChannel disables conversation joining in a channel.
func (s *Store) RemoveConversationChannel(channelID string) bool {
	removed := false
	s.Update(func(tx *Tx) {
		_, removed = tx.s.doc.ConversationChannels[channelID]
		delete(tx.s.doc.ConversationChannels, channelID)
	})
	return removed
}

// MarkParticipation stores the last time the bot joined a channel's conversation.
func (s *Store) MarkParticipation(channelID string, at time.Time) {
	s.Update(func(tx *Tx) {
		if c, ok := tx.s.doc.ConversationChannels[channelID]; ok {
			c.LastParticipation = at.Unix()
			return
		}
		tx.clean = true
	})
}

// decayStep is one tier of the nightly trust decay.
type decayStep struct {
	days   float64
	amount float64
}

// decayTable is checked from the longest absence down. No step exceeds 1.0.
var decayTable = []decayStep{
	{60, 1.0},
	{30, 0.5},
	{14, 0.2},
}

// DecayAmount returns the nightly reduction for a number of inactive days.
func DecayAmount(daysInactive float64) float64 {
	for _, step := range decayTable {
		if daysInactive > step.days {
			return step.amount
		}
	}
	return 0
}

// DecayTrust lowers trust of inactive users and returns how many changed.
func (s *Store) DecayTrust(now time.Time) int {
	changed := 0
	s.Update(func(tx *Tx) {
		for _, p := range tx.s.doc.Users {
			if p.Activity.LastInteraction == 0 {
				continue
			}
			days := now.Sub(time.Unix(p.Activity.LastInteraction, 0)).Hours() / 24
			amount := DecayAmount(days)
			if amount == 0 {
				continue
			}
			if p.SetTrust(p.Social.TrustLevel - amount) {
				changed++
			}
		}
		if changed == 0 {
			tx.clean = true
		}
	})
	return changed
}

// CleanupReport summarises Cleanup.
type CleanupReport struct {
	RemovedUsers  int
	TrimmedLists  int
	ExpiredTrends int
}

// Cleanup drops anonymous empty profiles, re-applies caps and expires
// trending topics older than TrendingDays.
func (s *Store) Cleanup(now time.Time) CleanupReport {
	var r CleanupReport
	s.Update(func(tx *Tx) {
		for id, p := range tx.s.doc.Users {
			if len(p.Names()) == 0 && p.MessageCount() == 0 {
				delete(tx.s.doc.Users, id)
				r.RemovedUsers++
				continue
			}
			r.TrimmedLists += EnforceCaps(p)
		}
		for _, c := range tx.s.doc.ServerCulture {
			r.ExpiredTrends += ExpireTrending(c, now)
			TrimByValue(c.CommonPhrases, CapCommonPhrases)
			TrimByValue(c.RecurringTopics, CapRecurringTopics)
		}
	})
	return r
}

// EnforceCaps truncates every bounded list and map of p. Returns the number
// of containers that were over their cap.
func EnforceCaps(p *UserProfile) int {
	n := 0
	trimMap := func(m map[string]int, limit int) {
		if len(m) > limit {
			TrimByValue(m, limit)
			n++
		}
	}
	v := &p.LearningData.Vocabulary
	trimMap(v.WordFrequency, CapWordFrequency)
	trimMap(v.EmojiUsage, CapEmojiUsage)
	v.MessageLengths = tail(v.MessageLengths, CapMessageLengths, &n)
	v.QuestionSamples = tail(v.QuestionSamples, CapSamples, &n)
	v.ExclamationSamples = tail(v.ExclamationSamples, CapSamples, &n)
	cs := &p.LearningData.CommunicationStyle
	cs.VerbosityPreference = tail(cs.VerbosityPreference, CapVerbosity, &n)
	cs.GreetingStyle = tail(cs.GreetingStyle, CapGreetingStyle, &n)
	sp := &p.LearningData.SentimentPatterns
	sp.ExcitementLevel = tail(sp.ExcitementLevel, CapExcitement, &n)
	sp.MoodPatterns = tail(sp.MoodPatterns, CapMoodPatterns, &n)
	rn := &p.LearningData.RelationshipNetworks
	trimMap(rn.MentionFrequency, CapEdgeMap)
	trimMap(rn.ReplyFrequency, CapEdgeMap)
	trimMap(rn.SharedChannels, CapEdgeMap)
	trimMap(p.LearningData.TopicInterests.ChannelPreferences, CapEdgeMap)
	p.Personality.PersonalityNotes = tail(p.Personality.PersonalityNotes, CapNotes, &n)
	p.Personality.Interests = tail(p.Personality.Interests, CapNotes, &n)
	p.Personality.Dislikes = tail(p.Personality.Dislikes, CapNotes, &n)
	return n
}

func tail[T any](s []T, limit int, n *int) []T {
	if len(s) <= limit {
		return s
	}
	*n++
	return append(s[:0:0], s[len(s)-limit:]...)
}

// ExpireTrending deletes trending days older than TrendingDays and returns how many.
func ExpireTrending(c *ServerCulture, now time.Time) int {
	cutoff := now.UTC().AddDate(0, 0, -TrendingDays).Format(time.DateOnly)
	n := 0
	for day := range c.TrendingTopics {
		if day < cutoff {
			delete(c.TrendingTopics, day)
			n++
		}
	}
	return n
}

// Stats is a snapshot for /stats and the debug command.
type Stats struct {
	Users                int       `json:"users"`
	Guilds               int       `json:"guilds"`
	Channels             int       `json:"channels"`
	ConversationChannels int       `json:"conversation_channels"`
	Pending              bool      `json:"pending_saves"`
	LastFlush            time.Time `json:"last_flush"`
	Version              string    `json:"version"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Users:                len(s.doc.Users),
		Guilds:               len(s.doc.ServerCulture),
		Channels:             len(s.recent),
		ConversationChannels: len(s.doc.ConversationChannels),
		Pending:              s.pending,
		LastFlush:            s.lastFlush,
		Version:              s.doc.SystemInfo.Version,
	}
}

// Opener is a conversation starter grounded in what the store knows.
type Opener struct {
	ChannelID string
	Topic     string
	Source    string // trending | culture | self
}

// ProposeOpener picks a channel of guildID with join settings and a topic.
// rnd returns values in [0,1).
func (s *Store) ProposeOpener(guildID string, now time.Time, rnd func() float64) (Opener, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var channels []string
	for id, c := range s.doc.ConversationChannels {
		if c.GuildID == guildID {
			channels = append(channels, id)
		}
	}
	if len(channels) == 0 {
		return Opener{}, false
	}
	sort.Strings(channels)
	op := Opener{ChannelID: channels[pick(rnd, len(channels))]}

	if c, ok := s.doc.ServerCulture[guildID]; ok {
		today := c.TrendingTopics[now.UTC().Format(time.DateOnly)]
		if top := TopN(today, 3); len(top) > 0 {
			op.Topic, op.Source = top[pick(rnd, len(top))].Key, "trending"
			return op, true
		}
		if top := TopN(c.RecurringTopics, 5); len(top) > 0 {
			op.Topic, op.Source = top[pick(rnd, len(top))].Key, "culture"
			return op, true
		}
	}
	var pool []string
	pool = append(pool, s.doc.Self.Hobbies...)
	pool = append(pool, s.doc.Self.Likes...)
	if len(pool) == 0 {
		return Opener{}, false
	}
	op.Topic, op.Source = pool[pick(rnd, len(pool))], "self"
	return op, true
}

func pick(rnd func() float64, n int) int {
	i := int(rnd() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Tx is the locked view handed to Update and View callbacks. It must not be
// retained after the callback returns.
type Tx struct {
	s     *Store
	write bool
	clean bool // set by mutators that found nothing to change
}

// Now returns the store clock.
func (tx *Tx) Now() time.Time { return tx.s.now() }

// User returns the live profile or nil.
func (tx *Tx) User(id string) *UserProfile { return tx.s.doc.Users[id] }

// Users returns the live user map.
func (tx *Tx) Users() map[string]*UserProfile { return tx.s.doc.Users }

// EnsureUser returns the live profile, creating it on first observation.
// Names are refreshed when they changed.
func (tx *Tx) EnsureUser(id, displayName, username string) (*UserProfile, bool) {
	p, ok := tx.s.doc.Users[id]
	if !ok {
		p = NewUserProfile(displayName, username)
		tx.s.doc.Users[id] = p
		return p, true
	}
	if displayName != "" && p.BasicInfo.DisplayName != displayName {
		p.BasicInfo.DisplayName = displayName
	}
	if username != "" && p.BasicInfo.Username != username {
		p.BasicInfo.Username = username
	}
	return p, false
}

// Self returns the live self profile.
func (tx *Tx) Self() *SelfProfile { return tx.s.doc.Self }

// Culture returns the live culture record for a guild, creating it in write transactions.
func (tx *Tx) Culture(guildID string) *ServerCulture {
	c, ok := tx.s.doc.ServerCulture[guildID]
	if !ok && tx.write {
		c = NewServerCulture()
		tx.s.doc.ServerCulture[guildID] = c
	}
	return c
}

// ConversationChannel returns the live settings or nil.
func (tx *Tx) ConversationChannel(channelID string) *ConversationChannel {
	return tx.s.doc.ConversationChannels[channelID]
}

// Recent returns the live recent ring of a channel, oldest first.
func (tx *Tx) Recent(channelID string) []RecentMessage { return tx.s.recent[channelID] }

// AppendRecent inserts m in timestamp order, keeps at most CapRecentMessages
// and ignores a repeat of the newest message id.
func (tx *Tx) AppendRecent(channelID string, m RecentMessage) {
	m.Content = TrimRunes(strings.TrimSpace(m.Content), CapRecentContent)
	ring := tx.s.recent[channelID]
	if m.MessageID != "" {
		for _, existing := range ring {
			if existing.MessageID == m.MessageID {
				return
			}
		}
	}
	i := sort.Search(len(ring), func(i int) bool { return ring[i].Timestamp > m.Timestamp })
	ring = append(ring, RecentMessage{})
	copy(ring[i+1:], ring[i:])
	ring[i] = m
	if len(ring) > CapRecentMessages {
		ring = append(ring[:0:0], ring[len(ring)-CapRecentMessages:]...)
	}
	tx.s.recent[channelID] = ring
}

// FindByName searches profiles by any known name.
func (tx *Tx) FindByName(query string) []NameMatch {
	var out []NameMatch
	for id, p := range tx.s.doc.Users {
		if p.MatchesName(query) {
			out = append(out, NameMatch{UserID: id, Profile: p.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// TrimRunes cuts s to at most n runes.
func TrimRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

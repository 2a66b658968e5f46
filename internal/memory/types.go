package memory

// Caps to keep every learned list bounded.
const (
	CapWordFrequency     = 50
	CapEmojiUsage        = 20
	CapMessageLengths    = 100
	CapSamples           = 20
	CapVerbosity         = 50
	CapGreetingStyle     = 10
	CapExcitement        = 50
	CapMoodPatterns      = 50
	CapCommonPhrases     = 30
	CapRecurringTopics   = 50
	CapTrendingPerDay    = 50
	CapRecentMessages    = 50
	CapRecentContent     = 300
	CapNotes             = 30
	CapSharedExperiences = 20
	CapEdgeMap           = 100

	TrendingDays         = 7
	MessageFrequencyDays = 30
)

// Trust bounds.
const (
	TrustMin     = 0.0
	TrustMax     = 10.0
	TrustDefault = 5.0
)

// Birthday is month/day with an optional year.
type Birthday struct {
	Month int `json:"month"` // 1..12
	Day   int `json:"day"`   // 1..31
	Year  int `json:"year,omitempty"`
}

type BasicInfo struct {
	DisplayName        string    `json:"display_name"`
	Username           string    `json:"username"`
	RealName           string    `json:"real_name,omitempty"`
	Nickname           string    `json:"nickname,omitempty"`
	Age                int       `json:"age,omitempty"` // 5..100
	Birthday           *Birthday `json:"birthday,omitempty"`
	RelationshipStatus string    `json:"relationship_status,omitempty"`
}

type Personality struct {
	Interests         []string `json:"interests"`
	Dislikes          []string `json:"dislikes"`
	PersonalityNotes  []string `json:"personality_notes"`
	ConversationStyle string   `json:"conversation_style,omitempty"`
}

type Social struct {
	TrustLevel        float64             `json:"trust_level"`
	Relationships     map[string]string   `json:"relationships"`      // other user id -> label
	SharedExperiences map[string][]string `json:"shared_experiences"` // other user id -> events
}

type Activity struct {
	ImportantEvents []string `json:"important_events"`
	CustomNotes     []string `json:"custom_notes"`
	LastInteraction int64    `json:"last_interaction"` // unix seconds
}

type Vocabulary struct {
	WordFrequency      map[string]int `json:"word_frequency"`
	EmojiUsage         map[string]int `json:"emoji_usage"`
	MessageLengths     []int          `json:"message_lengths"`
	QuestionSamples    []string       `json:"question_samples"`
	ExclamationSamples []string       `json:"exclamation_samples"`
}

type CommunicationStyle struct {
	FormalityLevel      int      `json:"formality_level"`
	VerbosityPreference []int    `json:"verbosity_preference"` // word counts
	EmojiFrequency      int      `json:"emoji_frequency"`
	GreetingStyle       []string `json:"greeting_style"`
}

type MoodSample struct {
	Timestamp  int64   `json:"timestamp"`
	Positive   int     `json:"pos"`
	Negative   int     `json:"neg"`
	Excitement float64 `json:"excitement"`
}

type SentimentPatterns struct {
	PositiveCount   int          `json:"positive_count"`
	NegativeCount   int          `json:"negative_count"`
	HumorCount      int          `json:"humor_count"`
	ExcitementLevel []float64    `json:"excitement_level"`
	MoodPatterns    []MoodSample `json:"mood_patterns"`
}

type TopicInterests struct {
	Gaming             int            `json:"gaming"`
	Tech               int            `json:"tech"`
	Entertainment      int            `json:"entertainment"`
	ChannelPreferences map[string]int `json:"channel_preferences"`
}

type ActivityPatterns struct {
	HourHist         [24]int `json:"hour_hist"`
	DayHist          [7]int  `json:"day_hist"`
	MonthHist        [12]int `json:"month_hist"`
	MessageFrequency []int64 `json:"message_frequency"` // timestamps, 30-day window
}

type RelationshipNetworks struct {
	MentionFrequency     map[string]int `json:"mention_frequency"`
	ReplyFrequency       map[string]int `json:"reply_frequency"`
	SharedChannels       map[string]int `json:"shared_channels"`
	InteractionTimes     map[string]int `json:"interaction_times"` // hour of day -> count
	RelationshipStrength map[string]int `json:"relationship_strength"`
}

type LearningData struct {
	Vocabulary           Vocabulary           `json:"vocabulary"`
	CommunicationStyle   CommunicationStyle   `json:"communication_style"`
	SentimentPatterns    SentimentPatterns    `json:"sentiment_patterns"`
	TopicInterests       TopicInterests       `json:"topic_interests"`
	ActivityPatterns     ActivityPatterns     `json:"activity_patterns"`
	RelationshipNetworks RelationshipNetworks `json:"relationship_networks"`
}

// UserProfile is everything remembered about one platform user.
type UserProfile struct {
	BasicInfo    BasicInfo    `json:"basic_info"`
	Personality  Personality  `json:"personality"`
	Social       Social       `json:"social"`
	Activity     Activity     `json:"activity"`
	LearningData LearningData `json:"learning_data"`
}

// NewUserProfile returns an empty profile with initialised maps.
func NewUserProfile(displayName, username string) *UserProfile {
	p := &UserProfile{
		BasicInfo: BasicInfo{DisplayName: displayName, Username: username},
		Social:    Social{TrustLevel: TrustDefault},
	}
	p.ensure()
	return p
}

// ensure fills nil maps and slices, so decoded documents can be mutated freely.
func (p *UserProfile) ensure() {
	if p.Personality.Interests == nil {
		p.Personality.Interests = []string{}
	}
	if p.Personality.Dislikes == nil {
		p.Personality.Dislikes = []string{}
	}
	if p.Personality.PersonalityNotes == nil {
		p.Personality.PersonalityNotes = []string{}
	}
	if p.Social.Relationships == nil {
		p.Social.Relationships = map[string]string{}
	}
	if p.Social.SharedExperiences == nil {
		p.Social.SharedExperiences = map[string][]string{}
	}
	if p.Activity.ImportantEvents == nil {
		p.Activity.ImportantEvents = []string{}
	}
	if p.Activity.CustomNotes == nil {
		p.Activity.CustomNotes = []string{}
	}
	ld := &p.LearningData
	if ld.Vocabulary.WordFrequency == nil {
		ld.Vocabulary.WordFrequency = map[string]int{}
	}
	if ld.Vocabulary.EmojiUsage == nil {
		ld.Vocabulary.EmojiUsage = map[string]int{}
	}
	if ld.TopicInterests.ChannelPreferences == nil {
		ld.TopicInterests.ChannelPreferences = map[string]int{}
	}
	rn := &ld.RelationshipNetworks
	if rn.MentionFrequency == nil {
		rn.MentionFrequency = map[string]int{}
	}
	if rn.ReplyFrequency == nil {
		rn.ReplyFrequency = map[string]int{}
	}
	if rn.SharedChannels == nil {
		rn.SharedChannels = map[string]int{}
	}
	if rn.InteractionTimes == nil {
		rn.InteractionTimes = map[string]int{}
	}
	if rn.RelationshipStrength == nil {
		rn.RelationshipStrength = map[string]int{}
	}
}

// MessageCount is the number of messages ever learned from this user.
func (p *UserProfile) MessageCount() int {
	total := 0
	for _, n := range p.LearningData.ActivityPatterns.DayHist {
		total += n
	}
	return total
}

// Names returns every non-empty name the user is known by.
func (p *UserProfile) Names() []string {
	var out []string
	for _, n := range []string{p.BasicInfo.DisplayName, p.BasicInfo.Username, p.BasicInfo.RealName, p.BasicInfo.Nickname} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Name is the best human-facing name.
func (p *UserProfile) Name() string {
	switch {
	case p.BasicInfo.Nickname != "":
		return p.BasicInfo.Nickname
	case p.BasicInfo.DisplayName != "":
		return p.BasicInfo.DisplayName
	case p.BasicInfo.RealName != "":
		return p.BasicInfo.RealName
	default:
		return p.BasicInfo.Username
	}
}

// ServerCulture aggregates short phrases and bigrams per guild.
type ServerCulture struct {
	CommonPhrases   map[string]int            `json:"common_phrases"`
	RecurringTopics map[string]int            `json:"recurring_topics"`
	TrendingTopics  map[string]map[string]int `json:"trending_topics"` // YYYY-MM-DD -> word -> count
}

func NewServerCulture() *ServerCulture {
	return &ServerCulture{
		CommonPhrases:   map[string]int{},
		RecurringTopics: map[string]int{},
		TrendingTopics:  map[string]map[string]int{},
	}
}

func (c *ServerCulture) ensure() {
	if c.CommonPhrases == nil {
		c.CommonPhrases = map[string]int{}
	}
	if c.RecurringTopics == nil {
		c.RecurringTopics = map[string]int{}
	}
	if c.TrendingTopics == nil {
		c.TrendingTopics = map[string]map[string]int{}
	}
}

// ConversationChannel enables conversation joining in one channel.
type ConversationChannel struct {
	MinMessages         int     `json:"min_messages"`
	TimeWindowSec       int     `json:"time_window_sec"`
	MinUsers            int     `json:"min_users"`
	ParticipationChance float64 `json:"participation_chance"` // 0..1
	CooldownSec         int     `json:"cooldown_sec"`
	LastParticipation   int64   `json:"last_participation"`
	GuildID             string  `json:"guild_id,omitempty"`
}

// DefaultConversationChannel mirrors the values used when an admin enables a channel.
func DefaultConversationChannel(guildID string) ConversationChannel {
	return ConversationChannel{
		MinMessages:         5,
		TimeWindowSec:       300,
		MinUsers:            2,
		ParticipationChance: 0.3,
		CooldownSec:         600,
		GuildID:             guildID,
	}
}

// RecentMessage is a normalized entry of a channel's recent-message ring.
type RecentMessage struct {
	MessageID      string `json:"message_id,omitempty"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
	IsBot          bool   `json:"is_bot"`
	MentionsBot    bool   `json:"mentions_bot"`
	HasAttachments bool   `json:"has_attachments"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	MigratedAt  int64  `json:"migrated_at"`
	LastUpdated int64  `json:"last_updated"`
}

// Document is the unified persisted document.
type Document struct {
	Users                map[string]*UserProfile         `json:"users"`
	Self                 *SelfProfile                    `json:"izumi_self"`
	ServerCulture        map[string]*ServerCulture       `json:"server_culture"`
	ConversationChannels map[string]*ConversationChannel `json:"conversation_channels"`
	SystemInfo           SystemInfo                      `json:"system_info"`
}

// requiredKeys must all be present for a unified document to validate.
var requiredKeys = []string{"users", "izumi_self", "server_culture", "conversation_channels", "system_info"}

// SchemaVersion is written to system_info.version.
const SchemaVersion = "2.0"

func NewDocument() *Document {
	return &Document{
		Users:                map[string]*UserProfile{},
		Self:                 NewSelfProfile(),
		ServerCulture:        map[string]*ServerCulture{},
		ConversationChannels: map[string]*ConversationChannel{},
		SystemInfo:           SystemInfo{Version: SchemaVersion},
	}
}

func (d *Document) ensure() {
	if d.Users == nil {
		d.Users = map[string]*UserProfile{}
	}
	for id, p := range d.Users {
		if p == nil {
			delete(d.Users, id)
			continue
		}
		p.ensure()
	}
	if d.Self == nil {
		d.Self = NewSelfProfile()
	}
	d.Self.ensure()
	if d.ServerCulture == nil {
		d.ServerCulture = map[string]*ServerCulture{}
	}
	for id, c := range d.ServerCulture {
		if c == nil {
			delete(d.ServerCulture, id)
			continue
		}
		c.ensure()
	}
	if d.ConversationChannels == nil {
		d.ConversationChannels = map[string]*ConversationChannel{}
	}
	for id, c := range d.ConversationChannels {
		if c == nil {
			delete(d.ConversationChannels, id)
		}
	}
	if d.SystemInfo.Version == "" {
		d.SystemInfo.Version = SchemaVersion
	}
}

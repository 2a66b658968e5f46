package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"izumi/datastore"

	log "github.com/sirupsen/logrus"
)

// Legacy split documents folded into the unified document on first start.
// They are never modified or removed.
const (
	LegacyUsersFile         = "user_memories.json"
	LegacyLearningFile      = "learning_data.json"
	LegacySelfFile          = "izumi_self.json"
	LegacyCultureFile       = "server_culture.json"
	LegacyConversationsFile = "conversation_channels.json"
)

// legacyUser is the flat profile shape of user_memories.json.
type legacyUser struct {
	Name               string              `json:"name"`
	DisplayName        string              `json:"display_name"`
	Username           string              `json:"username"`
	RealName           string              `json:"real_name"`
	Nickname           string              `json:"nickname"`
	Age                json.RawMessage     `json:"age"`
	Birthday           string              `json:"birthday"`
	RelationshipStatus string              `json:"relationship_status"`
	Interests          []string            `json:"interests"`
	Dislikes           []string            `json:"dislikes"`
	PersonalityNotes   []string            `json:"personality_notes"`
	ConversationStyle  string              `json:"conversation_style"`
	TrustLevel         *float64            `json:"trust_level"`
	Relationships      map[string]string   `json:"relationships"`
	SharedExperiences  map[string][]string `json:"shared_experiences"`
	ImportantEvents    []string            `json:"important_events"`
	CustomNotes        []string            `json:"custom_notes"`
	LastInteraction    float64             `json:"last_interaction"`
}

// Validate reports whether raw is a unified document with every required key.
func Validate(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("unified document: %w", err)
	}
	for _, k := range requiredKeys {
		if _, ok := top[k]; !ok {
			return fmt.Errorf("unified document: missing key %q", k)
		}
	}
	return nil
}

// LoadOrMigrate returns the unified document of dir. When it is missing or
// invalid the legacy documents are projected into a new one which is written
// immediately. The bool reports whether legacy input was found.
func LoadOrMigrate(dir string, now time.Time) (*Document, bool, error) {
	path := filepath.Join(dir, UnifiedFile)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if verr := Validate(raw); verr == nil {
			doc := NewDocument()
			derr := json.Unmarshal(raw, doc)
			if derr == nil {
				doc.ensure()
				return doc, false, nil
			}
			log.Warnf("[MEMORY] unified document does not decode, migrating: %v", derr)
		} else {
			log.Warnf("[MEMORY] %v, migrating", verr)
		}
	case !os.IsNotExist(err):
		return nil, false, fmt.Errorf("read unified document: %w", err)
	}

	doc, found := Migrate(dir, now)
	if err := datastore.WriteJSON(path, doc); err != nil {
		return nil, false, fmt.Errorf("write unified document: %w", err)
	}
	return doc, found, nil
}

// Migrate projects every legacy document of dir into a fresh unified
// document. A sub-document that cannot be read is logged and left empty.
func Migrate(dir string, now time.Time) (*Document, bool) {
	doc := NewDocument()
	doc.SystemInfo.MigratedAt = now.Unix()
	doc.SystemInfo.LastUpdated = now.Unix()
	found := false

	read := func(name string, v any) bool {
		ok, err := datastore.ReadJSON(filepath.Join(dir, name), v)
		if err != nil {
			log.Warnf("[MEMORY] migrate %s: %v", name, err)
			return false
		}
		if ok {
			found = true
		}
		return ok
	}

	var users map[string]legacyUser
	if read(LegacyUsersFile, &users) {
		for id, lu := range users {
			doc.Users[id] = projectUser(lu, now)
		}
	}

	var learning map[string]LearningData
	if read(LegacyLearningFile, &learning) {
		for id, ld := range learning {
			p, ok := doc.Users[id]
			if !ok {
				p = NewUserProfile("", "")
				doc.Users[id] = p
			}
			p.LearningData = ld
			p.ensure()
			for other, label := range p.Social.Relationships {
				p.SetRelationship(other, label)
			}
			EnforceCaps(p)
		}
	}

	self := NewSelfProfile()
	if read(LegacySelfFile, self) {
		self.ensure()
		doc.Self = self
	}

	var culture map[string]*ServerCulture
	if read(LegacyCultureFile, &culture) {
		for id, c := range culture {
			if c == nil {
				continue
			}
			c.ensure()
			TrimByValue(c.CommonPhrases, CapCommonPhrases)
			TrimByValue(c.RecurringTopics, CapRecurringTopics)
			doc.ServerCulture[id] = c
		}
	}

	var conversations map[string]*ConversationChannel
	if read(LegacyConversationsFile, &conversations) {
		for id, c := range conversations {
			if c != nil {
				doc.ConversationChannels[id] = c
			}
		}
	}

	doc.ensure()
	return doc, found
}

func projectUser(lu legacyUser, now time.Time) *UserProfile {
	display := lu.DisplayName
	if display == "" {
		display = lu.Name
	}
	p := NewUserProfile(display, lu.Username)
	p.BasicInfo.RealName = lu.RealName
	p.BasicInfo.Nickname = lu.Nickname
	p.BasicInfo.RelationshipStatus = lu.RelationshipStatus
	if age, ok := parseLegacyAge(lu.Age); ok {
		p.BasicInfo.Age = age
	}
	if b, err := ParseBirthday(lu.Birthday); err == nil {
		p.BasicInfo.Birthday = &b
	}
	for _, v := range lu.Interests {
		p.AddInterest(v)
	}
	for _, v := range lu.Dislikes {
		p.AddDislike(v)
	}
	for _, v := range lu.PersonalityNotes {
		p.AddNote(v)
	}
	p.Personality.ConversationStyle = lu.ConversationStyle
	if lu.TrustLevel != nil {
		p.Social.TrustLevel = RoundTrust(*lu.TrustLevel)
	}
	for other, label := range lu.Relationships {
		p.SetRelationship(other, label)
	}
	for other, events := range lu.SharedExperiences {
		for _, e := range events {
			p.AddSharedExperience(other, e)
		}
	}
	for _, v := range lu.ImportantEvents {
		p.AddEvent(v)
	}
	for _, v := range lu.CustomNotes {
		p.AddCustomNote(v)
	}
	last := int64(lu.LastInteraction)
	if last > now.Unix() {
		last = now.Unix()
	}
	p.Activity.LastInteraction = last
	return p
}

func parseLegacyAge(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	s := strings.Trim(string(raw), `" `)
	n, err := strconv.Atoi(s)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			n = int(f)
		} else {
			return 0, false
		}
	}
	if !ValidAge(n) {
		return 0, false
	}
	return n, true
}

// ValidAge bounds stored ages.
func ValidAge(n int) bool { return n >= 5 && n <= 100 }

// ParseBirthday accepts MM-DD or YYYY-MM-DD.
func ParseBirthday(s string) (Birthday, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	var b Birthday
	var err error
	switch len(parts) {
	case 2:
		b.Month, err = strconv.Atoi(parts[0])
		if err == nil {
			b.Day, err = strconv.Atoi(parts[1])
		}
	case 3:
		b.Year, err = strconv.Atoi(parts[0])
		if err == nil {
			b.Month, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			b.Day, err = strconv.Atoi(parts[2])
		}
	default:
		return Birthday{}, fmt.Errorf("birthday %q: want MM-DD or YYYY-MM-DD", s)
	}
	if err != nil {
		return Birthday{}, fmt.Errorf("birthday %q: %w", s, err)
	}
	if !b.Valid() {
		return Birthday{}, fmt.Errorf("birthday %q: no such date", s)
	}
	return b, nil
}

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Valid checks the month/day pair. February 29 is allowed.
func (b Birthday) Valid() bool {
	if b.Month < 1 || b.Month > 12 || b.Day < 1 || b.Day > daysInMonth[b.Month] {
		return false
	}
	if b.Year != 0 && (b.Year < 1900 || b.Year > 2100) {
		return false
	}
	return true
}

func (b Birthday) String() string {
	if b.Year != 0 {
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	}
	return fmt.Sprintf("%02d-%02d", b.Month, b.Day)
}

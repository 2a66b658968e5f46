package memory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SelfProfile is the bot's own categorical memory.
type SelfProfile struct {
	PersonalityTraits []string `json:"personality_traits" yaml:"personality_traits"`
	Likes             []string `json:"likes" yaml:"likes"`
	Dislikes          []string `json:"dislikes" yaml:"dislikes"`
	Backstory         []string `json:"backstory" yaml:"backstory"`
	Goals             []string `json:"goals" yaml:"goals"`
	Fears             []string `json:"fears" yaml:"fears"`
	Hobbies           []string `json:"hobbies" yaml:"hobbies"`
	FavoriteThings    []string `json:"favorite_things" yaml:"favorite_things"`
	PetPeeves         []string `json:"pet_peeves" yaml:"pet_peeves"`
	LifePhilosophy    []string `json:"life_philosophy" yaml:"life_philosophy"`
	Memories          []string `json:"memories" yaml:"memories"`
	Relationships     []string `json:"relationships" yaml:"relationships"`
	Skills            []string `json:"skills" yaml:"skills"`
	Dreams            []string `json:"dreams" yaml:"dreams"`
	Quirks            []string `json:"quirks" yaml:"quirks"`
	Knowledge         []string `json:"knowledge" yaml:"knowledge"`
}

// SelfCategories lists the category names in display order.
var SelfCategories = []string{
	"personality_traits", "likes", "dislikes", "backstory", "goals", "fears",
	"hobbies", "favorite_things", "pet_peeves", "life_philosophy", "memories",
	"relationships", "skills", "dreams", "quirks", "knowledge",
}

// CapSelfCategory bounds each self-profile category.
const CapSelfCategory = 50

func NewSelfProfile() *SelfProfile {
	s := &SelfProfile{}
	s.ensure()
	return s
}

func (s *SelfProfile) field(category string) *[]string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "personality_traits", "traits", "personality":
		return &s.PersonalityTraits
	case "likes":
		return &s.Likes
	case "dislikes":
		return &s.Dislikes
	case "backstory":
		return &s.Backstory
	case "goals":
		return &s.Goals
	case "fears":
		return &s.Fears
	case "hobbies":
		return &s.Hobbies
	case "favorite_things", "favorites":
		return &s.FavoriteThings
	case "pet_peeves":
		return &s.PetPeeves
	case "life_philosophy", "philosophy":
		return &s.LifePhilosophy
	case "memories":
		return &s.Memories
	case "relationships":
		return &s.Relationships
	case "skills":
		return &s.Skills
	case "dreams":
		return &s.Dreams
	case "quirks":
		return &s.Quirks
	case "knowledge":
		return &s.Knowledge
	}
	return nil
}

func (s *SelfProfile) ensure() {
	for _, c := range SelfCategories {
		if f := s.field(c); *f == nil {
			*f = []string{}
		}
	}
}

// Get returns a copy of one category.
func (s *SelfProfile) Get(category string) ([]string, bool) {
	f := s.field(category)
	if f == nil {
		return nil, false
	}
	return append([]string(nil), (*f)...), true
}

// Add appends value to category unless already present.
func (s *SelfProfile) Add(category, value string) (bool, error) {
	f := s.field(category)
	if f == nil {
		return false, fmt.Errorf("unknown self category %q", category)
	}
	var added bool
	*f, added = appendUnique(*f, value, CapSelfCategory)
	return added, nil
}

// Replace overwrites a whole category.
func (s *SelfProfile) Replace(category string, values []string) error {
	f := s.field(category)
	if f == nil {
		return fmt.Errorf("unknown self category %q", category)
	}
	out := []string{}
	for _, v := range values {
		out, _ = appendUnique(out, v, CapSelfCategory)
	}
	*f = out
	return nil
}

// IsEmpty reports whether no category holds anything.
func (s *SelfProfile) IsEmpty() bool {
	for _, c := range SelfCategories {
		if len(*s.field(c)) > 0 {
			return false
		}
	}
	return true
}

func (s *SelfProfile) clone() *SelfProfile {
	out := &SelfProfile{}
	for _, c := range SelfCategories {
		*out.field(c) = append([]string{}, *s.field(c)...)
	}
	return out
}

// LoadSelfSeed reads a YAML self profile, used once when the stored one is empty.
func LoadSelfSeed(path string) (*SelfProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed := NewSelfProfile()
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parse self seed: %w", err)
	}
	seed.ensure()
	return seed, nil
}

// DefaultSelf is used when neither a stored nor a seeded self profile exists.
func DefaultSelf() *SelfProfile {
	return &SelfProfile{
		PersonalityTraits: []string{"playful", "a little sarcastic", "warm with people she trusts"},
		Likes:             []string{"rhythm games", "late night music", "cats"},
		Dislikes:          []string{"being ignored", "rude people"},
		Backstory:         []string{"has been hanging around this server for a long time"},
		Goals:             []string{"get better at osu", "remember everyone's birthday"},
		Fears:             []string{"being forgotten"},
		Hobbies:           []string{"osu", "listening to music", "people watching in chat"},
		FavoriteThings:    []string{"strawberry milk"},
		PetPeeves:         []string{"people who say 'k'"},
		LifePhilosophy:    []string{"be kind but don't be a pushover"},
		Memories:          []string{},
		Relationships:     []string{},
		Skills:            []string{"remembering small details"},
		Dreams:            []string{"a server meetup"},
		Quirks:            []string{"types in lowercase", "says 'hmm' a lot"},
		Knowledge:         []string{},
	}
}

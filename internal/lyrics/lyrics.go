// Package lyrics recognises lines of known songs so the bot can sing along.
package lyrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"izumi/datastore"
	"izumi/pkg/util"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Thresholds for a match to be reported and for it to trigger a reply.
const (
	MatchThreshold   = 0.7
	TriggerThreshold = 0.75
	minWords         = 3
)

const (
	LibraryFile = "lyrics_library.json"
	SeedFile    = "lyrics_seed.yaml"
)

// Song is one library entry.
type Song struct {
	Artist string   `json:"artist" yaml:"artist"`
	Title  string   `json:"title" yaml:"title"`
	Lyrics []string `json:"lyrics" yaml:"lyrics"`
}

// Match is a recognised line and its continuation.
type Match struct {
	Song        string
	Artist      string
	CurrentLine string
	NextLine    string
	Confidence  float64
}

var (
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s']+`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips everything but letters, digits, spaces and
// apostrophes, and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

type line struct {
	norm string
	raw  string
}

type song struct {
	Song
	lines []line
}

// Library is an in-memory song list. Safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	songs []song
	path  string
}

// NewLibrary builds a library from songs.
func NewLibrary(songs []Song) *Library {
	l := &Library{}
	l.set(songs)
	return l
}

func (l *Library) set(songs []Song) {
	compiled := make([]song, 0, len(songs))
	for _, s := range songs {
		c := song{Song: s}
		for _, raw := range s.Lyrics {
			c.lines = append(c.lines, line{norm: Normalize(raw), raw: raw})
		}
		compiled = append(compiled, c)
	}
	l.mu.Lock()
	l.songs = compiled
	l.mu.Unlock()
}

// Len is the number of songs.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.songs)
}

// Load reads the library document from dir. When it is missing or empty the
// YAML seed, or the built-in default list, is written as the library.
func Load(dir string) (*Library, error) {
	path := filepath.Join(dir, LibraryFile)
	var songs []Song
	if _, err := datastore.ReadJSON(path, &songs); err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		songs = seedSongs(filepath.Join(dir, SeedFile))
		if err := datastore.WriteJSON(path, songs); err != nil {
			log.Warnf("[LYRICS] write library: %v", err)
		}
	}
	l := NewLibrary(songs)
	l.path = path
	return l, nil
}

func seedSongs(path string) []Song {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSongs()
	}
	var songs []Song
	if err := yaml.Unmarshal(data, &songs); err != nil || len(songs) == 0 {
		log.Warnf("[LYRICS] seed %s unusable, using defaults: %v", path, err)
		return DefaultSongs()
	}
	return songs
}

// Reload re-reads the library document. A malformed document keeps the current songs.
func (l *Library) Reload() error {
	if l.path == "" {
		return fmt.Errorf("library has no backing file")
	}
	var songs []Song
	ok, err := datastore.ReadJSON(l.path, &songs)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	l.set(songs)
	log.Infof("[LYRICS] reloaded %d songs", len(songs))
	return nil
}

// Watch reloads the library whenever its file changes, until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lyrics watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(l.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				if err := l.Reload(); err != nil {
					log.Warnf("[LYRICS] reload: %v", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("[LYRICS] watcher: %v", err)
		}
	}
}

// Score is the best of containment and similarity between a normalized input
// and a normalized lyric line.
func Score(input, lyric string) float64 {
	if input == "" || lyric == "" {
		return 0
	}
	if input == lyric {
		return 1
	}
	best := util.Similarity(input, lyric)
	shorter, longer := input, lyric
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(" "+longer+" ", " "+shorter+" ") {
		containment := 0.7 + 0.3*float64(len(shorter))/float64(len(longer))
		if containment > best {
			best = containment
		}
	}
	return best
}

// FindMatch returns the best line reaching MatchThreshold that has a next line.
func (l *Library) FindMatch(text string) (*Match, bool) {
	input := Normalize(text)
	if len(strings.Fields(input)) < minWords {
		return nil, false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var best *Match
	for _, s := range l.songs {
		for i := 0; i+1 < len(s.lines); i++ {
			score := Score(input, s.lines[i].norm)
			if score < MatchThreshold || (best != nil && score <= best.Confidence) {
				continue
			}
			best = &Match{
				Song:        s.Title,
				Artist:      s.Artist,
				CurrentLine: s.lines[i].raw,
				NextLine:    s.lines[i+1].raw,
				Confidence:  score,
			}
		}
	}
	return best, best != nil
}

// DefaultSongs is the built-in library.
func DefaultSongs() []Song {
	return []Song{
		{
			Artist: "yael naim",
			Title:  "new soul",
			Lyrics: []string{
				"i'm a new soul",
				"i came to this strange world",
				"hoping i could learn a bit 'bout how to give and take",
				"but since i came here",
				"felt the joy and the fear",
				"finding myself making every possible mistake",
			},
		},
		{
			Artist: "rick astley",
			Title:  "never gonna give you up",
			Lyrics: []string{
				"we're no strangers to love",
				"you know the rules and so do i",
				"a full commitment's what i'm thinking of",
				"you wouldn't get this from any other guy",
				"never gonna give you up",
				"never gonna let you down",
				"never gonna run around and desert you",
			},
		},
		{
			Artist: "queen",
			Title:  "bohemian rhapsody",
			Lyrics: []string{
				"is this the real life",
				"is this just fantasy",
				"caught in a landslide",
				"no escape from reality",
				"open your eyes",
				"look up to the skies and see",
			},
		},
	}
}

// Package media turns attachments, embedded images and video links into short
// bracketed text descriptions that can be placed in a prompt.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"izumi/internal/ai"
	"izumi/pkg/util"

	log "github.com/sirupsen/logrus"
)

var (
	ErrTooLarge    = errors.New("media exceeds size limit")
	ErrToolMissing = errors.New("downloader not installed")
	ErrTooLong     = errors.New("video exceeds duration limit")
)

// Kind of an attachment.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindAudio
	KindDocument
)

// Size caps per kind.
const (
	MB            = 1 << 20
	MaxImageBytes = 25 * MB
	MaxVideoBytes = 100 * MB
	MaxAudioBytes = 50 * MB
	MaxDocBytes   = 20 * MB

	// inline payloads above this go through file upload
	maxInlineBytes = 18 * MB
	maxDocChars    = 20000
	workers        = 3
)

// Attachment is a platform attachment reference.
type Attachment struct {
	Filename    string
	URL         string
	ContentType string
	Size        int
}

// Result is one description. Placeholder is set when the media could not be
// analysed and Text is a notice instead.
type Result struct {
	Text        string
	Placeholder bool
}

// KindOf classifies by content type, then by file extension.
func KindOf(contentType, filename string) Kind {
	ct := strings.ToLower(contentType)
	if ct == "" {
		ct = strings.ToLower(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))))
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return KindAudio
	case strings.HasPrefix(ct, "text/"), strings.HasPrefix(ct, "application/"):
		return KindDocument
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".log", ".csv", ".json", ".yaml", ".yml", ".go", ".py", ".js", ".pdf":
		return KindDocument
	}
	return KindUnknown
}

// Limit returns the size cap for k.
func (k Kind) Limit() int64 {
	switch k {
	case KindImage:
		return MaxImageBytes
	case KindVideo:
		return MaxVideoBytes
	case KindAudio:
		return MaxAudioBytes
	default:
		return MaxDocBytes
	}
}

func (k Kind) label() string {
	switch k {
	case KindImage:
		return "Image"
	case KindVideo:
		return "Video"
	case KindAudio:
		return "Audio"
	default:
		return "Document"
	}
}

func (k Kind) prompt() string {
	switch k {
	case KindImage:
		return "Describe what you see in this image in one short sentence."
	case KindVideo:
		return "Summarize this video in one short sentence."
	case KindAudio:
		return "Transcribe and summarize this audio in one short sentence."
	default:
		return "Summarize this document in one short sentence."
	}
}

// Describer analyses media through an ai.Analyzer.
type Describer struct {
	analyzer ai.Analyzer
	fetcher  *Fetcher
	video    *VideoAnalyzer
}

// NewDescriber wires an analyzer, a fetcher and an optional remote video analyzer.
func NewDescriber(an ai.Analyzer, f *Fetcher, v *VideoAnalyzer) *Describer {
	if f == nil {
		f = NewFetcher(nil, "")
	}
	return &Describer{analyzer: an, fetcher: f, video: v}
}

// Describe analyses one attachment. It never fails; problems become placeholders.
func (d *Describer) Describe(ctx context.Context, att Attachment) Result {
	kind := KindOf(att.ContentType, att.Filename)
	if kind == KindUnknown {
		return placeholder("[Attachment (%s): unsupported type]", att.Filename)
	}
	if att.Size > 0 && int64(att.Size) > kind.Limit() {
		return placeholder("[%s: too large to view]", nameLabel(kind, att.Filename))
	}

	blob, err := d.fetcher.Fetch(ctx, att.URL, kind.Limit())
	if err != nil {
		log.Warnf("[MEDIA] fetch %s: %v", att.Filename, err)
		if errors.Is(err, ErrTooLarge) {
			return placeholder("[%s: too large to view]", nameLabel(kind, att.Filename))
		}
		return placeholder("[%s: couldn't open it]", nameLabel(kind, att.Filename))
	}
	defer blob.Close()

	contentType := att.ContentType
	if contentType == "" {
		contentType = blob.ContentType
	}
	mediaIn := ai.Media{MIMEType: baseType(contentType), Data: blob.Data, Path: blob.Path}
	prompt := kind.prompt()

	if kind == KindDocument && blob.Path == "" && utf8.Valid(blob.Data) {
		text := string(blob.Data)
		if r := []rune(text); len(r) > maxDocChars {
			text = string(r[:maxDocChars])
		}
		prompt = prompt + "\n\n" + text
		mediaIn = ai.Media{}
	}

	out, err := d.analyzer.Analyze(ctx, prompt, mediaIn)
	if err != nil {
		log.Warnf("[MEDIA] analyse %s: %v", att.Filename, err)
		return placeholder("[%s: couldn't make it out]", nameLabel(kind, att.Filename))
	}
	return Result{Text: fmt.Sprintf("[%s: %s]", nameLabel(kind, att.Filename), oneLine(out))}
}

// DescribeImageURL analyses an image embedded in a rich embed.
func (d *Describer) DescribeImageURL(ctx context.Context, url string) Result {
	return d.Describe(ctx, Attachment{Filename: filepath.Base(url), URL: url, ContentType: "image/" + imageExt(url)})
}

// DescribeAll analyses attachments concurrently, keeping input order.
func (d *Describer) DescribeAll(ctx context.Context, atts []Attachment) []Result {
	out := make([]Result, len(atts))
	_ = util.Parallel(ctx, atts, workers, func(ctx context.Context, i int, a Attachment) error {
		out[i] = d.Describe(ctx, a)
		return nil
	})
	for i := range out {
		if out[i].Text == "" {
			out[i] = placeholder("[%s: skipped]", nameLabel(KindOf(atts[i].ContentType, atts[i].Filename), atts[i].Filename))
		}
	}
	return out
}

// DescribeVideoLinks handles remote video URLs found in text.
func (d *Describer) DescribeVideoLinks(ctx context.Context, text string) []Result {
	if d.video == nil {
		return nil
	}
	var out []Result
	for _, u := range VideoURLs(text) {
		out = append(out, d.video.Describe(ctx, u))
	}
	return out
}

// Join renders results as prompt lines.
func Join(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			lines = append(lines, r.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func placeholder(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...), Placeholder: true}
}

func nameLabel(k Kind, name string) string {
	if k == KindDocument && name != "" {
		return fmt.Sprintf("Document (%s)", name)
	}
	return k.label()
}

func baseType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

func imageExt(url string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.SplitN(url, "?", 2)[0])), ".")
	switch ext {
	case "png", "gif", "webp":
		return ext
	default:
		return "jpeg"
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSuffix(s, ".")
}

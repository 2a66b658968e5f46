package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"izumi/internal/ai"
	"izumi/internal/config"

	youtube "github.com/kkdai/youtube/v2"
	log "github.com/sirupsen/logrus"
)

// DownloadTimeout bounds one downloader run.
const DownloadTimeout = 5 * time.Minute

var (
	videoURLRe   = regexp.MustCompile(`https?://(?:www\.|m\.)?(?:youtube\.com/(?:watch\?\S*v=|shorts/)|youtu\.be/|tiktok\.com/|vm\.tiktok\.com/|instagram\.com/reels?/|twitter\.com/\S+/status/|x\.com/\S+/status/)\S+`)
	youtubeURLRe = regexp.MustCompile(`(?:youtube\.com|youtu\.be)/`)
)

// VideoURLs returns the supported video links in text, in order, without duplicates.
func VideoURLs(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range videoURLRe.FindAllString(text, -1) {
		u = strings.TrimRight(u, ")>.,!?")
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 5 * time.Second
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(truncateBytes(ee.Stderr, 300)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// VideoAnalyzer downloads remote videos with yt-dlp and analyses them.
type VideoAnalyzer struct {
	cfg      config.VideoConfig
	analyzer ai.Analyzer
	run      Runner
	lookPath func(string) (string, error)
	youtube  *youtube.Client
}

// NewVideoAnalyzer returns nil when analysis is disabled.
func NewVideoAnalyzer(cfg config.VideoConfig, an ai.Analyzer) *VideoAnalyzer {
	if !cfg.Enabled {
		return nil
	}
	return &VideoAnalyzer{
		cfg:      cfg,
		analyzer: an,
		run:      execRunner,
		lookPath: exec.LookPath,
		youtube:  &youtube.Client{},
	}
}

// Describe probes, downloads and analyses url. Every exit path removes the
// downloaded file.
func (v *VideoAnalyzer) Describe(ctx context.Context, url string) Result {
	res, err := v.describe(ctx, url)
	if err != nil {
		log.Warnf("[MEDIA] video %s: %v", url, err)
		switch {
		case errors.Is(err, ErrTooLong):
			return placeholder("[Video link: too long to watch]")
		case errors.Is(err, ErrTooLarge):
			return placeholder("[Video link: too large to watch]")
		case errors.Is(err, ErrToolMissing):
			return placeholder("[Video link: can't watch videos right now]")
		case errors.Is(err, context.DeadlineExceeded):
			return placeholder("[Video link: took too long to load]")
		}
		return placeholder("[Video link: couldn't watch it]")
	}
	return res
}

func (v *VideoAnalyzer) describe(ctx context.Context, url string) (Result, error) {
	if _, err := v.lookPath(v.cfg.YtDlpPath); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrToolMissing, err)
	}

	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	dur, err := v.duration(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}
	if v.cfg.MaxDuration > 0 && dur > v.cfg.MaxDuration {
		return Result{}, fmt.Errorf("%w: %v", ErrTooLong, dur)
	}

	dir, err := os.MkdirTemp(v.cfg.TmpDir, "video-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(dir)

	path, err := v.download(ctx, url, dir)
	if err != nil {
		return Result{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if v.cfg.MaxBytes > 0 && info.Size() > v.cfg.MaxBytes {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	m := ai.Media{MIMEType: "audio/mpeg", Path: path}
	prompt := "Transcribe and summarize the audio of this video in one short sentence."
	if v.mode() == "video" {
		m.MIMEType = "video/mp4"
		prompt = KindVideo.prompt()
	}
	out, err := v.analyzer.Analyze(ctx, prompt, m)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("[Video link: %s]", oneLine(out))}, nil
}

func (v *VideoAnalyzer) mode() string {
	if strings.EqualFold(v.cfg.Mode, "video") {
		return "video"
	}
	return "audio"
}

func (v *VideoAnalyzer) duration(ctx context.Context, url string) (time.Duration, error) {
	if youtubeURLRe.MatchString(url) && v.youtube != nil {
		video, err := v.youtube.GetVideoContext(ctx, url)
		if err == nil {
			return video.Duration, nil
		}
		log.Debugf("[MEDIA] youtube probe failed, asking downloader: %v", err)
	}
	out, err := v.run(ctx, v.cfg.YtDlpPath, "-j", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return 0, err
	}
	var meta struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return 0, fmt.Errorf("parse metadata: %w", err)
	}
	return time.Duration(meta.Duration * float64(time.Second)), nil
}

// DownloadArgs builds the yt-dlp arguments for mode.
func DownloadArgs(mode, url, dir string, maxBytes int64) []string {
	args := []string{"--no-playlist", "--no-warnings", "--no-progress",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
	}
	if maxBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(maxBytes, 10))
	}
	if mode == "video" {
		args = append(args,
			"-f", "bv*[height<=720][ext=mp4]+ba[ext=m4a]/b[height<=720][ext=mp4]/b[height<=720]",
			"--merge-output-format", "mp4")
	} else {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "128K")
	}
	return append(args, url)
}

func (v *VideoAnalyzer) download(ctx context.Context, url, dir string) (string, error) {
	out, err := v.run(ctx, v.cfg.YtDlpPath, DownloadArgs(v.mode(), url, dir, v.cfg.MaxBytes)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		// --max-filesize makes yt-dlp skip the download and exit 0
		return "", fmt.Errorf("%w: download skipped", ErrTooLarge)
	}
	return path, nil
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

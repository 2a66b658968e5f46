package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"izumi/pkg/retrylimit"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// Gemini implements ChatFactory and Analyzer over the Gemini API.
type Gemini struct {
	client        *genai.Client
	analysisModel string
	limiter       *retrylimit.AdaptiveLimiter
	filePoll      time.Duration
}

// NewGemini creates a client. analysisModel is used by Analyze.
func NewGemini(ctx context.Context, apiKey, analysisModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client:        client,
		analysisModel: analysisModel,
		limiter:       retrylimit.NewAdaptiveLimiter(2, 0.2, 5, 0.2, 0.5),
		filePoll:      2 * time.Second,
	}, nil
}

// Limiter exposes the request limiter for status reporting.
func (g *Gemini) Limiter() *retrylimit.AdaptiveLimiter { return g.limiter }

// NewChat opens a chat session on model.
func (g *Gemini) NewChat(ctx context.Context, model, system string, history []Message) (Chat, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	chat, err := g.client.Chats.Create(ctx, model, cfg, toContents(history))
	if err != nil {
		return nil, fmt.Errorf("create chat %s: %w", model, err)
	}
	return &geminiChat{g: g, model: model, chat: chat}, nil
}

type geminiChat struct {
	g     *Gemini
	model string
	chat  *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, text string) (string, error) {
	if err := c.g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", c.g.wrap(c.model, err)
	}
	out, err := responseText(resp)
	if err != nil {
		return "", err
	}
	c.g.limiter.Success()
	log.Debugf("[AI] %s reply: %s", c.model, truncate(out, 120))
	return out, nil
}

func (c *geminiChat) History() []Message {
	return fromContents(c.chat.History(false))
}

// Analyze sends prompt and media to the analysis model. Media with a Path is
// uploaded through the Files API first and deleted afterwards.
func (g *Gemini) Analyze(ctx context.Context, prompt string, media Media) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var part *genai.Part
	switch {
	case media.Path != "":
		f, err := g.upload(ctx, media)
		if err != nil {
			return "", err
		}
		defer func() {
			if _, err := g.client.Files.Delete(context.WithoutCancel(ctx), f.Name, nil); err != nil {
				log.Debugf("[AI] delete uploaded %s: %v", f.Name, err)
			}
		}()
		part = genai.NewPartFromURI(f.URI, f.MIMEType)
	case len(media.Data) > 0:
		part = genai.NewPartFromBytes(media.Data, media.MIMEType)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if part != nil {
		parts = append(parts, part)
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.analysisModel, contents, nil)
	if err != nil {
		return "", g.wrap(g.analysisModel, err)
	}
	out, err := responseText(resp)
	if err != nil {
		return "", err
	}
	g.limiter.Success()
	return out, nil
}

func (g *Gemini) upload(ctx context.Context, media Media) (*genai.File, error) {
	f, err := g.client.Files.UploadFromPath(ctx, media.Path, &genai.UploadFileConfig{MIMEType: media.MIMEType})
	if err != nil {
		return nil, g.wrap("files", err)
	}
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.filePoll):
		}
		if f, err = g.client.Files.Get(ctx, f.Name, nil); err != nil {
			return nil, g.wrap("files", err)
		}
	}
	if f.State == genai.FileStateFailed {
		return nil, fmt.Errorf("file %s processing failed", f.Name)
	}
	return f, nil
}

// wrap attaches the sentinel for the error class and feeds the limiter.
func (g *Gemini) wrap(model string, err error) error {
	switch Classify(err) {
	case ClassRateLimit:
		g.limiter.RateLimited()
		return fmt.Errorf("%s: %w: %v", model, ErrRateLimited, err)
	case ClassFiltered:
		return fmt.Errorf("%s: %w: %v", model, ErrFiltered, err)
	case ClassTransient:
		return fmt.Errorf("%s: %w: %v", model, ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", model, err)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmpty
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrFiltered, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", ErrFiltered
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func toContents(history []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if m.Role == RoleModel {
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		} else {
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return out
}

func fromContents(contents []*genai.Content) []Message {
	out := make([]Message, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		role := RoleUser
		if c.Role == RoleModel {
			role = RoleModel
		}
		out = append(out, Message{Role: role, Content: b.String()})
	}
	return out
}

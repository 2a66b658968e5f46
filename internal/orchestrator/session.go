package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"izumi/internal/ai"
	"izumi/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// Session bounds.
const (
	MaxExchanges     = 100
	MaxSessionTokens = 10000
	MaxSessionAge    = 2 * time.Hour
)

// Reply strings used when the model cannot answer.
const (
	FilteredReply = "hmm, I'd rather not answer that one"
	ApologyReply  = "sorry, my brain just blanked out for a sec... try again in a bit?"
)

// Session is one channel's dialogue with the model.
type Session struct {
	History   []ai.Message
	Tier      int
	Exchanges int
	CreatedAt time.Time
}

// Tokens is the estimated size of the history.
func (s *Session) Tokens() int { return ai.HistoryTokens(s.History) }

func (s *Session) resetCause(now time.Time) string {
	switch {
	case s.Exchanges > MaxExchanges:
		return "exchanges"
	case s.Tokens() > MaxSessionTokens:
		return "tokens"
	case now.Sub(s.CreatedAt) > MaxSessionAge:
		return "age"
	}
	return ""
}

func (s *Session) reset(now time.Time) {
	s.History = nil
	s.Tier = 0
	s.Exchanges = 0
	s.CreatedAt = now
}

// Sessions owns the per-channel sessions and the model ladder.
type Sessions struct {
	factory ai.ChatFactory
	tiers   []string
	now     func() time.Time

	mu       sync.Mutex
	byID     map[string]*Session
	failures []int
}

func NewSessions(factory ai.ChatFactory, tiers []string, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		factory:  factory,
		tiers:    tiers,
		now:      now,
		byID:     map[string]*Session{},
		failures: make([]int, len(tiers)),
	}
}

// Get returns a copy of the channel's session.
func (ss *Sessions) Get(channelID string) (Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.byID[channelID]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.History = append([]ai.Message(nil), s.History...)
	return cp, true
}

// Len is the number of live sessions.
func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

// Failures returns a copy of the per-tier failure counters.
func (ss *Sessions) Failures() []int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return append([]int(nil), ss.failures...)
}

// session returns the live session, resetting it when it is over a bound.
func (ss *Sessions) session(channelID string) *Session {
	now := ss.now()
	s, ok := ss.byID[channelID]
	if !ok {
		s = &Session{CreatedAt: now}
		ss.byID[channelID] = s
		return s
	}
	if cause := s.resetCause(now); cause != "" {
		log.WithField("channel", channelID).Infof("[CHAT] session reset (%s)", cause)
		metrics.SessionResets.WithLabelValues(cause).Inc()
		s.reset(now)
	}
	return s
}

// Reap resets sessions over their bounds and drops idle empty ones.
func (ss *Sessions) Reap() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	now := ss.now()
	n := 0
	for id, s := range ss.byID {
		if cause := s.resetCause(now); cause != "" {
			metrics.SessionResets.WithLabelValues(cause).Inc()
			delete(ss.byID, id)
			n++
		}
	}
	return n
}

// Ask sends turn on the channel's session, walking down the model ladder on
// rate limits and transient errors. A filtered answer returns FilteredReply and
// ai.ErrFiltered; an exhausted ladder returns ApologyReply and the last error.
// onFallback is called each time the ladder advances.
func (ss *Sessions) Ask(ctx context.Context, channelID, system, turn string, onFallback func(tier int)) (string, error) {
	ss.mu.Lock()
	s := ss.session(channelID)
	history := append([]ai.Message(nil), s.History...)
	start := s.Tier
	ss.mu.Unlock()

	if len(ss.tiers) == 0 {
		return ApologyReply, errors.New("no model tiers configured")
	}
	if start >= len(ss.tiers) {
		start = 0
	}

	var lastErr error
	for tier := start; tier < len(ss.tiers); tier++ {
		if tier > start {
			metrics.FallbackAdvances.Inc()
			if onFallback != nil {
				onFallback(tier)
			}
		}
		model := ss.tiers[tier]
		began := time.Now()
		reply, err := ss.send(ctx, model, system, history, turn)
		metrics.LLMLatency.Observe(time.Since(began).Seconds())

		if err == nil {
			metrics.LLMCalls.WithLabelValues(model, "ok").Inc()
			ss.commit(channelID, tier, turn, reply)
			return reply, nil
		}
		lastErr = err
		class := ai.Classify(err)
		metrics.LLMCalls.WithLabelValues(model, class.String()).Inc()
		log.WithFields(log.Fields{"channel": channelID, "model": model}).Warnf("[CHAT] %s: %v", class, err)

		switch class {
		case ai.ClassFiltered:
			return FilteredReply, fmt.Errorf("%w: %v", ai.ErrFiltered, err)
		case ai.ClassRateLimit, ai.ClassTransient:
			ss.mu.Lock()
			ss.failures[tier]++
			ss.mu.Unlock()
			continue
		default:
			return ApologyReply, err
		}
	}
	return ApologyReply, fmt.Errorf("model ladder exhausted: %w", lastErr)
}

func (ss *Sessions) send(ctx context.Context, model, system string, history []ai.Message, turn string) (string, error) {
	chat, err := ss.factory.NewChat(ctx, model, system, history)
	if err != nil {
		return "", err
	}
	reply, err := chat.Send(ctx, turn)
	if err != nil {
		return "", err
	}
	reply = ai.CleanReply(reply)
	if reply == "" || ai.IsGarbage(reply) {
		return "", ai.ErrEmpty
	}
	return reply, nil
}

func (ss *Sessions) commit(channelID string, tier int, turn, reply string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s := ss.session(channelID)
	s.History = append(s.History,
		ai.Message{Role: ai.RoleUser, Content: turn},
		ai.Message{Role: ai.RoleModel, Content: reply})
	s.Exchanges++
	s.Tier = tier
	ss.failures[tier] = 0
}

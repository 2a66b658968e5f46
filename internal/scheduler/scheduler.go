// Package scheduler runs the bot's background loops on a cron table. Every
// loop waits for the ready barrier and its own startup delay before its
// first run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"izumi/internal/memory"
	"izumi/internal/metrics"
	"izumi/internal/storage"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Loop names.
const (
	LoopSave         = "save"
	LoopBirthdays    = "birthdays"
	LoopBirthdayPing = "birthday_ping"
	LoopUnprompted   = "unprompted"
	LoopDecay        = "trust_decay"
	LoopReaper       = "session_reaper"
)

// Poster sends a plain channel message.
type Poster interface {
	Send(ctx context.Context, channelID, text string) (string, error)
}

// Conversations is the part of the orchestrator the loops drive.
type Conversations interface {
	Unprompted(ctx context.Context, guildID string) (bool, error)
	ReapSessions() int
}

// Deps wires the loops to the rest of the bot.
type Deps struct {
	Memory  *memory.Store
	Storage *storage.Storage
	Chat    Conversations
	Poster  Poster
	// Guilds lists the guilds the bot is currently in.
	Guilds func() []string

	Clock func() time.Time
	Rand  func() float64
}

// Loop is one named background task.
type Loop struct {
	Name  string
	Spec  string
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler owns the cron table and the ready barrier.
type Scheduler struct {
	deps  Deps
	cron  *cron.Cron
	loops map[string]Loop

	ready     chan struct{}
	readyOnce sync.Once
	started   time.Time

	// pinged holds users recently pinged for their birthday.
	pinged *cache.Cache

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		deps.Rand = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return r.Float64()
		}
	}
	if deps.Guilds == nil {
		deps.Guilds = func() []string { return nil }
	}
	s := &Scheduler{
		deps:   deps,
		loops:  map[string]Loop{},
		ready:  make(chan struct{}),
		pinged: cache.New(PingCooldownMin, time.Hour),
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log.StandardLogger())), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, l := range s.defaultLoops() {
		s.loops[l.Name] = l
	}
	return s
}

func (s *Scheduler) defaultLoops() []Loop {
	return []Loop{
		{Name: LoopSave, Spec: "@every 60s", Delay: 10 * time.Second, Run: s.save},
		{Name: LoopBirthdays, Spec: "@every 6h", Delay: time.Minute, Run: s.birthdays},
		{Name: LoopBirthdayPing, Spec: "@every 15m", Delay: 5 * time.Minute, Run: s.birthdayPing},
		{Name: LoopUnprompted, Spec: "@every 2h", Delay: 30 * time.Minute, Run: s.unprompted},
		{Name: LoopDecay, Spec: "0 3 * * *", Run: s.decay},
		{Name: LoopReaper, Spec: "@every 2h", Delay: time.Hour, Run: s.reap},
	}
}

// MarkReady opens the barrier once the platform session is up.
func (s *Scheduler) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// WaitReady blocks until MarkReady or ctx is done.
func (s *Scheduler) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Loops returns the registered loop names in order.
func (s *Scheduler) Loops() []string {
	names := make([]string, 0, len(s.loops))
	for n := range s.loops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Start registers every loop with cron and starts it. Runs before the
// barrier opens or within a loop's startup delay are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = s.deps.Clock()
	for _, name := range s.Loops() {
		l := s.loops[name]
		if _, err := s.cron.AddFunc(l.Spec, func() { s.tick(ctx, l) }); err != nil {
			return fmt.Errorf("register %s: %w", l.Name, err)
		}
	}
	s.cron.Start()
	log.Infof("[SCHED] started %d loops", len(s.loops))
	return nil
}

// Stop cancels running loops and waits for them.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context, l Loop) {
	if !s.isReady() || ctx.Err() != nil {
		return
	}
	if s.deps.Clock().Sub(s.started) < l.Delay {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	if err := s.RunNow(ctx, l.Name); err != nil && !errors.Is(err, context.Canceled) {
		log.WithField("loop", l.Name).Warnf("[SCHED] %v", err)
	}
}

// RunNow runs one loop synchronously, ignoring barrier and delay.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	l, ok := s.loops[name]
	if !ok {
		return fmt.Errorf("unknown loop %q", name)
	}
	metrics.ScheduledRuns.WithLabelValues(name).Inc()
	return l.Run(ctx)
}

func (s *Scheduler) save(context.Context) error {
	var errs []error
	if s.deps.Memory != nil {
		saved, err := s.deps.Memory.FlushIfDue()
		if saved || err != nil {
			metrics.ObserveSave(err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("memory flush: %w", err))
		}
	}
	if s.deps.Storage != nil {
		if err := s.deps.Storage.Save(); err != nil {
			errs = append(errs, fmt.Errorf("storage save: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) decay(context.Context) error {
	if s.deps.Memory == nil {
		return nil
	}
	now := s.deps.Clock()
	n := s.deps.Memory.DecayTrust(now)
	rep := s.deps.Memory.Cleanup(now)
	log.Infof("[SCHED] trust decayed for %d profiles, cleanup %+v", n, rep)
	return nil
}

func (s *Scheduler) reap(context.Context) error {
	if s.deps.Chat == nil {
		return nil
	}
	if n := s.deps.Chat.ReapSessions(); n > 0 {
		log.Infof("[SCHED] reaped %d chat sessions", n)
	}
	return nil
}

// unprompted tries guilds in random order and stops after the first send.
func (s *Scheduler) unprompted(ctx context.Context) error {
	if s.deps.Chat == nil {
		return nil
	}
	guilds := append([]string(nil), s.deps.Guilds()...)
	sort.Strings(guilds)
	for i := len(guilds) - 1; i > 0; i-- {
		j := int(s.deps.Rand() * float64(i+1))
		if j > i {
			j = i
		}
		guilds[i], guilds[j] = guilds[j], guilds[i]
	}
	for _, g := range guilds {
		sent, err := s.deps.Chat.Unprompted(ctx, g)
		if err != nil {
			log.WithField("guild", g).Warnf("[SCHED] unprompted: %v", err)
			continue
		}
		if sent {
			return nil
		}
	}
	return nil
}

// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	_ "izumi/internal/command/birthday"
	_ "izumi/internal/command/chat"
	_ "izumi/internal/command/core"
	_ "izumi/internal/command/games"
	_ "izumi/internal/command/level"
	_ "izumi/internal/command/memory"
	_ "izumi/internal/command/mod"
	_ "izumi/internal/command/remind"
	_ "izumi/internal/command/roles"
	_ "izumi/internal/command/social"

	"izumi/internal/ai"
	"izumi/internal/command"
	"izumi/internal/config"
	"izumi/internal/contextbuild"
	"izumi/internal/discord"
	"izumi/internal/httpapi"
	"izumi/internal/leveling"
	"izumi/internal/lyrics"
	"izumi/internal/media"
	"izumi/internal/memory"
	"izumi/internal/orchestrator"
	"izumi/internal/reminder"
	"izumi/internal/scheduler"
	"izumi/internal/storage"
	"izumi/pkg/jobmgr"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// restartCode asks the process supervisor to start the bot again.
const restartCode = 3

func main() {
	cfg := config.New()
	cfg.SetupLogging()
	log.Infof("[INFO] Starting %v bot...", config.AppName)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := run(ctx, cancel, cfg)
	log.Info("[INFO] Discord bot exited cleanly")
	os.Exit(code)
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) int {
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	mem, err := memory.Open(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	lib, err := lyrics.Load(cfg.DataDir)
	if err != nil {
		log.Warnf("[LYRICS] %v, using the built-in songs", err)
		lib = lyrics.NewLibrary(lyrics.DefaultSongs())
	}

	bot, err := discord.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	sender := discord.NewSender(bot.Session())

	leveler := leveling.New(store, leveling.Config{Min: cfg.XPMin, Max: cfg.XPMax, Cooldown: cfg.XPCooldown})
	builder := contextbuild.New(mem, leveler, "", config.AppName)
	reminders := reminder.NewService(store, discord.ReminderNotifier(sender))
	jobs := jobmgr.NewManager(func(msg string) { log.Info("[JOB] " + msg) })

	var chat *orchestrator.Orchestrator
	if gem, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.AnalysisModel); err != nil {
		log.Warnf("[CHAT] LLM unavailable, chat is off: %v", err)
	} else {
		fetcher := media.NewFetcher(&http.Client{Timeout: 2 * time.Minute}, cfg.Video.TmpDir)
		chat = orchestrator.New(orchestrator.Options{
			Store:     mem,
			Builder:   builder,
			Sessions:  orchestrator.NewSessions(gem, cfg.ModelTiers, nil),
			Describer: media.NewDescriber(gem, fetcher, media.NewVideoAnalyzer(cfg.Video, gem)),
			Sender:    sender,
			Lyrics:    lib,
			Nicknames: cfg.BotNicknames,
			BotName:   config.AppName,
		})
	}

	deps := scheduler.Deps{
		Memory:  mem,
		Storage: store,
		Poster:  sender,
		Guilds:  bot.Guilds,
	}
	if chat != nil {
		deps.Chat = chat
	}
	sched := scheduler.New(deps)

	var restart atomic.Bool
	svc := &command.Services{
		Config:    cfg,
		Memory:    mem,
		Storage:   store,
		Chat:      chat,
		Context:   builder,
		Leveler:   leveler,
		Reminders: reminders,
		Lyrics:    lib,
		Scheduler: sched,
		Jobs:      jobs,
		Started:   time.Now(),
		Stop: func(again bool) {
			restart.Store(again)
			cancel()
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx, svc) })
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		reminders.Start(gctx)
		<-gctx.Done()
		reminders.Stop()
		return nil
	})
	g.Go(func() error {
		if err := lib.Watch(gctx); err != nil {
			log.Warnf("[LYRICS] hot reload off: %v", err)
		}
		return nil
	})
	if cfg.HTTPAddr != "" {
		srv := httpapi.New(cfg.HTTPAddr, bot.Ready, func() any { return status(svc) })
		g.Go(func() error { return srv.Run(gctx) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[ERR] %v", err)
	}

	jobs.Shutdown()
	if err := mem.Save(); err != nil {
		log.Errorf("[ERR] final memory save: %v", err)
	}
	if err := store.Save(); err != nil {
		log.Errorf("[ERR] final storage save: %v", err)
	}

	switch {
	case restart.Load():
		return restartCode
	case err != nil && !errors.Is(err, context.Canceled):
		return 1
	}
	return 0
}

// status is the /stats payload.
func status(svc *command.Services) any {
	out := map[string]any{
		"memory":    svc.Memory.Stats(),
		"reminders": len(svc.Storage.Reminders()),
		"jobs":      svc.Jobs.List(),
		"loops":     svc.Scheduler.Loops(),
		"uptime":    time.Since(svc.Started).Round(time.Second).String(),
	}
	if svc.Chat != nil {
		out["chat"] = svc.Chat.Stats()
	}
	return out
}

package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProgressInterval is how often a running job refreshes its status line.
const ProgressInterval = 10 * time.Second

// Progress pushes the latest status of a long job through a Responder on a
// timer, so a slow job never floods the channel.
type Progress struct {
	out Responder

	mu    sync.Mutex
	text  string
	dirty bool

	stop chan struct{}
	done chan struct{}
}

// StartProgress posts initial and refreshes it every interval until Finish.
func StartProgress(ctx context.Context, out Responder, every time.Duration, initial string) *Progress {
	p := &Progress{out: out, text: initial, stop: make(chan struct{}), done: make(chan struct{})}
	if err := out.Update(initial); err != nil {
		log.Warnf("[CMD] progress: %v", err)
	}
	go p.loop(ctx, every)
	return p
}

func (p *Progress) loop(ctx context.Context, every time.Duration) {
	defer close(p.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-t.C:
			p.flush()
		}
	}
}

func (p *Progress) flush() {
	p.mu.Lock()
	text, dirty := p.text, p.dirty
	p.dirty = false
	p.mu.Unlock()
	if !dirty {
		return
	}
	if err := p.out.Update(text); err != nil {
		log.Warnf("[CMD] progress: %v", err)
	}
}

// Set records a new status; it is shown on the next tick.
func (p *Progress) Set(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = fmt.Sprintf(format, args...)
	p.dirty = true
}

// Finish stops the timer and shows text immediately.
func (p *Progress) Finish(text string) {
	close(p.stop)
	<-p.done
	p.mu.Lock()
	p.text, p.dirty = text, true
	p.mu.Unlock()
	p.flush()
}

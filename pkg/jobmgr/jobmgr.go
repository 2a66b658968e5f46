// Package jobmgr runs named long jobs (history training, xp recalculation)
// in the background with cancellation and in-memory tracking.
//
//	jm := jobmgr.NewManager(func(msg string) { log.Info("[JOB] " + msg) })
//	err := jm.StartAsync("train:123", func(ctx context.Context) error {
//	    // work until ctx is cancelled
//	    return nil
//	})
//
// A name can only run once at a time. Jobs are removed when they return.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrRunning    = errors.New("job already running")
	ErrNotRunning = errors.New("job not running")
)

// Job is one running unit of work.
type Job struct {
	Name    string
	Started time.Time
	Cancel  context.CancelFunc
}

// StatusReporter receives lifecycle events for jobs:
//
//	running:train:123
//	error:train:123:context canceled
//	done:train:123
type StatusReporter func(string)

// Manager starts, stops and tracks jobs. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a Manager. The reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartSync runs a job in the calling goroutine, still tracked by name.
func (m *Manager) StartSync(name string, runner func(ctx context.Context) error) error {
	ctx, err := m.add(name)
	if err != nil {
		return err
	}
	defer m.remove(name)
	return m.run(ctx, name, runner)
}

// StartAsync runs a job in its own goroutine and returns immediately.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	ctx, err := m.add(name)
	if err != nil {
		return err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.remove(name)
		_ = m.run(ctx, name, runner)
	}()
	return nil
}

func (m *Manager) add(name string) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunning, name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.jobs[name] = &Job{Name: name, Started: time.Now(), Cancel: cancel}
	return ctx, nil
}

func (m *Manager) remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[name]; ok {
		job.Cancel()
		delete(m.jobs, name)
	}
}

func (m *Manager) run(ctx context.Context, name string, runner func(ctx context.Context) error) error {
	m.report("running:" + name)
	err := runner(ctx)
	if err != nil {
		m.report("error:" + name + ":" + err.Error())
	} else {
		m.report("done:" + name)
	}
	return err
}

// Stop cancels a running job. The job is forgotten once its runner returns.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	job.Cancel()
	return nil
}

// Running reports whether name is active.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the active job names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status is a one line summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// Shutdown cancels every job and waits for async runners to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, job := range m.jobs {
		job.Cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}

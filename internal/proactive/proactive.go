// Package proactive implements the ProactiveEngine: a cooperative scheduler
// of named background tasks driven by a single 60-second tick loop.
package proactive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omnibrain/omnibrain/internal/events"
)

// TriggerKind selects how a Task's next-run time is computed.
type TriggerKind int

const (
	// TriggerInterval fires every IntervalSeconds.
	TriggerInterval TriggerKind = iota
	// TriggerTimeOfDay fires once per day at TimeOfDay ("HH:MM", local).
	TriggerTimeOfDay
	// TriggerWeekly fires once per week at Weekday + TimeOfDay.
	TriggerWeekly
)

// Trigger describes when a Task becomes due.
type Trigger struct {
	Kind            TriggerKind
	IntervalSeconds int
	TimeOfDay       string // "HH:MM"
	Weekday         time.Weekday
}

// Notification is what a Handler may emit; Level is set by the Handler.
// The engine sets a Level itself only on the fyi notification it publishes
// for a failed task.
type Notification struct {
	Level   string
	Title   string
	Message string
	Data    map[string]any
}

// Handler performs a task's work and returns notifications to surface.
type Handler func(ctx context.Context) ([]Notification, error)

// Task is one named, independently-scheduled unit of proactive work.
type Task struct {
	Name      string
	Trigger   Trigger
	Handler   Handler
	Timeout   time.Duration
	LastRun   time.Time
	LastError string
}

func (t *Task) nextDue(after time.Time) time.Time {
	switch t.Trigger.Kind {
	case TriggerInterval:
		if t.LastRun.IsZero() {
			return after
		}
		return t.LastRun.Add(time.Duration(t.Trigger.IntervalSeconds) * time.Second)
	case TriggerTimeOfDay:
		return nextTimeOfDay(after, t.Trigger.TimeOfDay, t.LastRun)
	case TriggerWeekly:
		return nextWeekly(after, t.Trigger.Weekday, t.Trigger.TimeOfDay, t.LastRun)
	default:
		return after
	}
}

func (t *Task) isDue(now time.Time) bool {
	return !t.nextDue(now).After(now)
}

func nextTimeOfDay(now time.Time, hhmm string, lastRun time.Time) time.Time {
	hour, minute := parseHHMM(hhmm)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !lastRun.IsZero() && !lastRun.Before(candidate) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}

func nextWeekly(now time.Time, weekday time.Weekday, hhmm string, lastRun time.Time) time.Time {
	hour, minute := parseHHMM(hhmm)
	daysUntil := (int(weekday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).AddDate(0, 0, daysUntil)
	if !lastRun.IsZero() && !lastRun.Before(candidate) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func parseHHMM(s string) (hour, minute int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}

// NotifyFunc is invoked synchronously for every notification a handler
// returns, in addition to the engine publishing it on the EventBus.
type NotifyFunc func(Notification)

// Engine runs the tick loop. It never exits on a handler failure — a
// failing task has its error recorded and a fyi-level notification
// published, then the loop continues.
type Engine struct {
	log    *slog.Logger
	bus    *events.Bus
	notify NotifyFunc

	mu      sync.Mutex
	tasks   map[string]*Task
	order   []string
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds an Engine. notify may be nil.
func New(bus *events.Bus, notify NotifyFunc, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if notify == nil {
		notify = func(Notification) {}
	}
	return &Engine{
		log:    log.With("component", "proactive"),
		bus:    bus,
		notify: notify,
		tasks:  make(map[string]*Task),
	}
}

// Register adds or replaces a named task.
func (e *Engine) Register(t *Task) {
	if t.Timeout <= 0 {
		t.Timeout = 2 * time.Minute
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tasks[t.Name]; !exists {
		e.order = append(e.order, t.Name)
	}
	e.tasks[t.Name] = t
}

// RegisterDefaults registers the seven named default tasks with handlers
// supplied by the caller. A nil handler skips registering that task,
// for callers composing a partial engine (e.g. in tests).
func (e *Engine) RegisterDefaults(handlers map[string]Handler) {
	defaults := []struct {
		name    string
		trigger Trigger
	}{
		{"check_emails", Trigger{Kind: TriggerInterval, IntervalSeconds: 300}},
		{"check_calendar", Trigger{Kind: TriggerInterval, IntervalSeconds: 300}},
		{"detect_patterns", Trigger{Kind: TriggerInterval, IntervalSeconds: 3600}},
		{"self_review", Trigger{Kind: TriggerInterval, IntervalSeconds: 6 * 3600}},
		{"morning_briefing", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: "07:30"}},
		{"evening_briefing", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: "18:00"}},
		{"weekly_briefing", Trigger{Kind: TriggerWeekly, Weekday: time.Sunday, TimeOfDay: "08:00"}},
	}
	for _, d := range defaults {
		h, ok := handlers[d.name]
		if !ok || h == nil {
			continue
		}
		e.Register(&Task{Name: d.name, Trigger: d.trigger, Handler: h})
	}
}

// Run enters the 60-second tick loop. It blocks until Stop is called or ctx
// is canceled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	defer close(e.doneCh)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.setRunning(false)
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// Stop signals the run loop to exit after the current tick settles.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	e.running = v
	e.mu.Unlock()
}

func (e *Engine) tick(ctx context.Context) {
	now := time.Now()
	e.mu.Lock()
	due := make([]*Task, 0)
	for _, name := range e.order {
		t := e.tasks[name]
		if t.isDue(now) {
			due = append(due, t)
		}
	}
	e.mu.Unlock()

	for _, t := range due {
		e.runTask(ctx, t)
	}
}

func (e *Engine) runTask(ctx context.Context, t *Task) {
	taskCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	notifications, err := t.Handler(taskCtx)

	e.mu.Lock()
	t.LastRun = time.Now()
	if err != nil {
		t.LastError = err.Error()
	} else {
		t.LastError = ""
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("proactive task failed", "task", t.Name, "error", err)
		e.emit(Notification{
			Level:   "fyi",
			Title:   fmt.Sprintf("Task %s failed", t.Name),
			Message: err.Error(),
		})
		return
	}
	for _, n := range notifications {
		e.emit(n)
	}
}

func (e *Engine) emit(n Notification) {
	e.notify(n)
	if e.bus != nil {
		e.bus.Publish(events.TopicNotification, map[string]any{
			"level":   n.Level,
			"title":   n.Title,
			"message": n.Message,
			"data":    n.Data,
		})
	}
}

// TaskStatus is one entry of GetStatus's task list.
type TaskStatus struct {
	Name      string
	LastRun   time.Time
	LastError string
	NextDue   time.Time
}

// Status is the engine's current state snapshot.
type Status struct {
	Running   bool
	TaskCount int
	Tasks     []TaskStatus
}

// GetStatus reports the engine's current state.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	st := Status{Running: e.running, TaskCount: len(e.tasks)}
	for _, name := range e.order {
		t := e.tasks[name]
		st.Tasks = append(st.Tasks, TaskStatus{
			Name:      t.Name,
			LastRun:   t.LastRun,
			LastError: t.LastError,
			NextDue:   t.nextDue(now),
		})
	}
	sort.Slice(st.Tasks, func(i, j int) bool { return st.Tasks[i].Name < st.Tasks[j].Name })
	return st
}

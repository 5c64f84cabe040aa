package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/omnibrain/omnibrain/internal/api"
	"github.com/omnibrain/omnibrain/internal/config"
	"github.com/omnibrain/omnibrain/internal/proactive"
)

// readySignal is a close-once coordination gate, Go's equivalent of the
// Python daemon's asyncio.Event startup-coordination pairs
// (_skill_ready / _proactive_ready).
type readySignal struct {
	once sync.Once
	ch   chan struct{}
}

func newReadySignal() *readySignal { return &readySignal{ch: make(chan struct{})} }

func (r *readySignal) set() { r.once.Do(func() { close(r.ch) }) }

// wait blocks until the signal fires, ctx is canceled, or timeout elapses.
// Returns true if the signal fired in time.
func (r *readySignal) wait(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-r.ch:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

// Daemon is the top-level process: it owns the ResourceContainer and runs
// every subsystem as a goroutine until a shutdown signal arrives,
// generalized from OmniBrainDaemon.run()'s asyncio.gather of named tasks.
type Daemon struct {
	cfg *config.Config
	log *slog.Logger

	resources *ResourceContainer
	startTime time.Time

	skillReady     *readySignal
	proactiveReady *readySignal

	wg sync.WaitGroup
}

// New constructs a Daemon from configuration. Resources are not created
// until Run is called.
func New(cfg *config.Config, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{
		cfg:            cfg,
		log:            log.With("component", "daemon"),
		skillReady:     newReadySignal(),
		proactiveReady: newReadySignal(),
	}
}

// Run starts the daemon and blocks until ctx is canceled or a SIGINT/SIGTERM
// is received, then shuts down every subsystem gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	if err := os.MkdirAll(d.cfg.DataDir, 0o755); err != nil {
		return err
	}

	rc, err := NewResourceContainer(d.cfg, d.log)
	if err != nil {
		return err
	}
	d.resources = rc
	defer rc.Close()

	d.log.Info("omnibrain starting",
		"data_dir", d.cfg.DataDir,
		"listen_address", d.cfg.Listen.Address,
		"listen_port", d.cfg.Listen.Port,
		"providers_configured", d.cfg.Providers.Configured(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			d.log.Info("shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	d.spawn(func() { d.heartbeatLoop(ctx) })
	d.spawn(func() { d.cleanupLoop(ctx) })
	d.spawn(func() { d.skillRuntimeLoop(ctx) })
	d.spawn(func() { d.proactiveLoop(ctx) })
	d.spawn(func() { d.apiServerLoop(ctx) })

	<-ctx.Done()
	d.log.Info("shutting down omnibrain daemon")
	d.wg.Wait()
	d.log.Info("omnibrain daemon stopped")
	return nil
}

func (d *Daemon) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// heartbeatLoop logs a periodic liveness line, grounded on the Python
// original's 30-second heartbeat.
func (d *Daemon) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, _ := d.resources.Store.ListPendingProposals()
			d.log.Info("omnibrain alive",
				"uptime", time.Since(d.startTime).Round(time.Second),
				"proposals_pending", len(pending),
			)
		}
	}
}

// cleanupLoop runs hourly maintenance: expiring stale proposals and
// pruning old data per retention settings.
func (d *Daemon) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := d.resources.Store.ExpireOldProposals()
			if err != nil {
				d.log.Error("expire proposals failed", "error", err)
			} else if expired > 0 {
				d.log.Info("expired old proposals", "count", expired)
			}

			counts, err := d.resources.Store.Prune(90, 30, 60)
			if err != nil {
				d.log.Error("prune failed", "error", err)
			} else {
				d.log.Info("pruned old data", "events", counts.Events, "proposals", counts.Proposals, "sessions", counts.Sessions)
			}

			if d.resources.Transparency != nil {
				if n, err := d.resources.Transparency.Prune(180); err != nil {
					d.log.Error("prune LLM calls failed", "error", err)
				} else if n > 0 {
					d.log.Info("pruned LLM call log", "count", n)
				}
			}
		}
	}
}

// skillRuntimeLoop discovers installed skills and signals readiness. Skill
// manifests themselves (what gets discovered) live outside this tree —
// concrete skills are data, not code, per spec.md's skill-runtime design.
func (d *Daemon) skillRuntimeLoop(ctx context.Context) {
	skills, err := d.resources.SkillRuntime.ListSkills()
	if err != nil {
		d.log.Warn("failed to list installed skills", "error", err)
	} else {
		d.log.Info("skill runtime ready", "skills", len(skills))
	}
	d.skillReady.set()
	<-ctx.Done()
}

// proactiveLoop wires five of the default tasks (detect_patterns,
// self_review and the three briefings) to real subsystems and runs the
// engine until shutdown. check_emails and check_calendar get no handler
// here, so they are not registered.
func (d *Daemon) proactiveLoop(ctx context.Context) {
	rc := d.resources
	engine := proactive.New(rc.Bus, nil, d.log)
	rc.Proactive = engine

	engine.RegisterDefaults(map[string]proactive.Handler{
		"detect_patterns":  d.detectPatternsTask,
		"self_review":      d.selfReviewTask,
		"morning_briefing": d.briefingTask("morning"),
		"evening_briefing": d.briefingTask("evening"),
		"weekly_briefing":  d.briefingTask("weekly"),
	})

	d.log.Info("proactive engine wired", "tasks", engine.GetStatus().TaskCount)
	d.proactiveReady.set()

	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()
	<-ctx.Done()
	engine.Stop()
	<-done
}

func (d *Daemon) detectPatternsTask(ctx context.Context) ([]proactive.Notification, error) {
	detected, err := d.resources.Patterns.Detect(3, 0.6, 30)
	if err != nil {
		return nil, err
	}
	var notes []proactive.Notification
	for _, p := range detected {
		if p.Strength() < 0.7 {
			continue
		}
		notes = append(notes, proactive.Notification{
			Level:   "fyi",
			Title:   "Pattern detected: " + p.PatternType,
			Message: p.Description,
			Data:    map[string]any{"occurrences": p.Occurrences},
		})
	}
	return notes, nil
}

// selfReviewTask runs ReviewEngine and surfaces its findings (stale
// proposals, unpromoted patterns) as a single fyi notification.
func (d *Daemon) selfReviewTask(ctx context.Context) ([]proactive.Notification, error) {
	if d.resources.Review == nil {
		return nil, nil
	}
	title, message, hasFindings, err := d.resources.Review.Notification()
	if err != nil {
		return nil, err
	}
	if !hasFindings {
		return nil, nil
	}
	return []proactive.Notification{{
		Level:   "fyi",
		Title:   title,
		Message: message,
	}}, nil
}

func (d *Daemon) briefingTask(kind string) proactive.Handler {
	return func(ctx context.Context) ([]proactive.Notification, error) {
		data, text, _, err := d.resources.Briefing.GenerateAndStore(kind)
		if err != nil {
			return nil, err
		}
		return []proactive.Notification{{
			Level:   "important",
			Title:   kind + " briefing ready",
			Message: text,
			Data:    map[string]any{"events_processed": data.EventsProcessed()},
		}}, nil
	}
}

// apiServerLoop waits for SkillRuntime and the proactive engine to signal
// readiness (with a 30s timeout each, proceeding regardless on timeout —
// the same degrade-gracefully behavior as the Python original), then
// starts the REST/WS/SSE server and serves until shutdown.
func (d *Daemon) apiServerLoop(ctx context.Context) {
	if d.skillReady.wait(ctx, 30*time.Second) {
		d.log.Info("skill runtime ready")
	} else {
		d.log.Warn("skill runtime readiness timeout — proceeding anyway")
	}
	if d.proactiveReady.wait(ctx, 30*time.Second) {
		d.log.Info("proactive engine ready")
	} else {
		d.log.Warn("proactive engine readiness timeout — proceeding anyway")
	}

	rc := d.resources
	srv := api.New(d.cfg, &api.Resources{
		Config:       rc.Config,
		Store:        rc.Store,
		Memory:       rc.Memory,
		Bus:          rc.Bus,
		Scorer:       rc.Scorer,
		Selector:     rc.Selector,
		Patterns:     rc.Patterns,
		Knowledge:    rc.Knowledge,
		Briefing:     rc.Briefing,
		Transparency: rc.Transparency,
		Secure:       rc.Secure,
		SkillRuntime: rc.SkillRuntime,
		Proactive:    rc.Proactive,
		ChatBridge:   rc.ChatBridge,
	}, d.log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.Error("api server shutdown error", "error", err)
		}
		<-errCh
	case err := <-errCh:
		if err != nil {
			d.log.Error("api server exited", "error", err)
		}
	}
}

// Resources exposes the daemon's shared subsystems, e.g. for an API server
// wired in by the caller of Run.
func (d *Daemon) Resources() *ResourceContainer { return d.resources }

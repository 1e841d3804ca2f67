package orch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"forge/internal/client"
	"forge/internal/config"
	"forge/internal/event"
	"forge/internal/logging"
	"forge/internal/plan"
	"forge/internal/project"
	"forge/internal/rag"
	"forge/internal/store"
	"forge/internal/syncer"
)

// ErrBuildInProgress is returned when a build is started while another one is
// still running for the same project.
var ErrBuildInProgress = errors.New("a build session is already in progress")

// Store is the persistence surface the orchestrator needs. Satisfied by
// *store.SQLiteStore; nil-able for tests.
type Store interface {
	SaveSnapshot(ctx context.Context, snap project.Snapshot) error
	RecordSession(ctx context.Context, rec store.SessionRecord) error
	UpdateSessionStatus(ctx context.Context, sessionID, status string, finished bool) error
	RecordTask(ctx context.Context, sessionID, taskID, path, status string, retries int, taskErr string) error
}

// Orchestrator drives a build session: it plans once, then dispatches one
// agent task per file, bounded by the concurrency limit and gated on
// dependency order.
type Orchestrator struct {
	cfg     config.Config
	client  client.Client
	project *project.Project
	sync    *syncer.Synchronizer
	planner *plan.Planner
	index   *rag.Index // Optional
	store   Store      // Optional
	bus     *event.Bus

	mu      sync.Mutex
	current *BuildSession
	cancel  context.CancelFunc
}

// New assembles an orchestrator. index and st may be nil.
func New(cfg config.Config, c client.Client, p *project.Project, sy *syncer.Synchronizer,
	pl *plan.Planner, index *rag.Index, st Store, bus *event.Bus) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		client:  c,
		project: p,
		sync:    sy,
		planner: pl,
		index:   index,
		store:   st,
		bus:     bus,
	}
}

// Session returns the most recent build session, if any.
func (o *Orchestrator) Session() *BuildSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Cancel aborts the running build session. In-flight task buffers are rolled
// back; committed files stay committed.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// StartBuild runs one complete build session and blocks until it reaches a
// terminal state. The mode is picked automatically: iterative when the
// project already has committed files, new otherwise.
func (o *Orchestrator) StartBuild(ctx context.Context, request string) (*BuildSession, error) {
	existing := o.project.Contents()
	mode := plan.ModeNew
	if len(existing) > 0 {
		mode = plan.ModeIterative
	}

	session := newSession(request, mode)

	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return nil, ErrBuildInProgress
	}
	ctx, o.cancel = context.WithCancel(ctx)
	o.current = session
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.cancel()
		o.cancel = nil
		o.mu.Unlock()
	}()

	o.project.SetSessionID(session.ID)
	o.recordSession(session)
	o.publishSession(session, "")

	logging.Info("planning build", "session", session.ID, "mode", string(mode))

	manifest, err := o.planner.CreatePlan(ctx, request, existing, mode)
	if err != nil {
		session.setStatus(SessionFailed)
		o.publishSession(session, err.Error())
		o.finishSession(session)
		return session, err
	}

	session.addTasks(manifest)
	session.setStatus(SessionRunning)
	o.publishSession(session, "")
	logging.Info("plan ready", "session", session.ID, "tasks", len(manifest))

	o.runTasks(ctx, session, manifest)

	if o.cfg.Build.Review && ctx.Err() == nil {
		o.reviewPass(ctx, session)
	}

	sum := session.Summarize()
	switch {
	case ctx.Err() != nil:
		session.setStatus(SessionCancelled)
	case sum.Committed == sum.Total:
		session.setStatus(SessionCompleted)
	default:
		session.setStatus(SessionPartiallyFailed)
	}

	o.publishSession(session, "")
	o.finishSession(session)
	logging.Info("build finished", "session", session.ID, "status", string(session.Status()),
		"committed", sum.Committed, "failed", sum.Failed, "skipped", sum.Skipped)
	return session, nil
}

// runTasks schedules every manifest entry. Each task waits for its
// dependencies, then competes for a concurrency slot. A failed dependency
// skips the whole downstream chain rather than generating against missing
// interfaces.
func (o *Orchestrator) runTasks(ctx context.Context, s *BuildSession, manifest plan.Manifest) {
	concurrency := o.cfg.Build.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}
	sem := make(chan struct{}, concurrency)

	done := make(map[string]chan struct{}, len(manifest))
	for _, e := range manifest {
		done[e.Path] = make(chan struct{})
	}

	var resMu sync.Mutex
	succeeded := make(map[string]bool, len(manifest))

	interfaces := buildInterfaceSummary(manifest)

	var wg sync.WaitGroup
	for _, entry := range manifest {
		wg.Add(1)
		go func(entry plan.Entry) {
			defer wg.Done()
			defer close(done[entry.Path])

			finish := func(status TaskStatus, errMsg string) {
				task := s.setTaskStatus(entry.Path, status, errMsg)
				o.recordTask(s, task)
				o.publishTask(s, task)
				if status == TaskCommitted {
					resMu.Lock()
					succeeded[entry.Path] = true
					resMu.Unlock()
				}
			}

			for _, dep := range entry.DependsOn {
				ch, in := done[dep]
				if !in {
					continue // Satisfied by an existing file outside the plan
				}
				select {
				case <-ch:
				case <-ctx.Done():
					finish(TaskFailed, "build cancelled")
					return
				}
				resMu.Lock()
				ok := succeeded[dep]
				resMu.Unlock()
				if !ok {
					finish(TaskSkipped, fmt.Sprintf("dependency %s did not complete", dep))
					return
				}
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				finish(TaskFailed, "build cancelled")
				return
			}
			defer func() { <-sem }()

			task := s.setTaskStatus(entry.Path, TaskDispatched, "")
			o.recordTask(s, task)
			o.publishTask(s, task)

			if err := o.runTask(ctx, s, entry, interfaces); err != nil {
				status := TaskFailed
				if ctx.Err() != nil {
					err = fmt.Errorf("build cancelled: %w", ctx.Err())
				}
				finish(status, err.Error())
				logging.Warn("task failed", "session", s.ID, "path", entry.Path, "error", err)
				return
			}
			finish(TaskCommitted, "")
		}(entry)
	}
	wg.Wait()
}

// runTask produces and commits the content for one entry, retrying transient
// failures with exponential backoff. A validation failure grants exactly one
// regeneration on top of the transient budget.
func (o *Orchestrator) runTask(ctx context.Context, s *BuildSession, entry plan.Entry, interfaces string) error {
	task, _ := s.Task(entry.Path)

	if entry.Scaffold {
		return o.commitScaffold(s, task, entry)
	}

	rc := o.retryConfig()
	regenLeft := 1
	attempt := 0
	for {
		err := o.generateOnce(ctx, s, task, entry, interfaces)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		var vErr *syncer.ValidationError
		if errors.As(err, &vErr) {
			if regenLeft == 0 {
				return err
			}
			regenLeft--
			task = s.setTaskRetries(entry.Path, task.Retries+1)
			logging.Warn("regenerating after validation failure", "path", entry.Path, "reason", vErr.Reason)
			continue
		}

		if !client.IsRetryableError(err) || attempt >= rc.MaxRetries {
			return err
		}

		delay := client.CalculateBackoff(rc.RetryDelay, attempt, rc.MaxDelay)
		attempt++
		task = s.setTaskRetries(entry.Path, task.Retries+1)
		logging.Warn("retrying generation", "path", entry.Path, "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// generateOnce performs a single generation attempt: lock, stream, commit.
// Any failure rolls the buffer back before returning.
func (o *Orchestrator) generateOnce(ctx context.Context, s *BuildSession, task AgentTask, entry plan.Entry, interfaces string) error {
	timeout := o.cfg.Build.GenerationTimeout
	if timeout <= 0 {
		timeout = config.DefaultGenerationTimeout
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := o.sync.Begin(task.ID, s.ID, entry.Path); err != nil {
		return err
	}

	prior, _ := o.project.Get(entry.Path)
	spec := client.FileSpec{Path: entry.Path, Purpose: entry.Purpose, Requires: entry.DependsOn}
	gc := client.GenContext{Request: s.Request, Interfaces: interfaces, Existing: prior.Content}

	resp, err := o.client.Generate(genCtx, spec, gc)
	if err != nil {
		o.sync.Rollback(task.ID, err.Error())
		return err
	}

	streaming := s.setTaskStatus(entry.Path, TaskStreaming, "")
	o.publishTask(s, streaming)

	for chunk := range resp.Chunks {
		if chunk.Err != nil {
			o.sync.Rollback(task.ID, chunk.Err.Error())
			return chunk.Err
		}
		if chunk.Text != "" {
			if err := o.sync.ApplyChunk(task.ID, chunk.Text); err != nil {
				return err
			}
		}
	}
	if err := genCtx.Err(); err != nil {
		o.sync.Rollback(task.ID, err.Error())
		return err
	}

	if _, err := o.sync.Commit(task.ID); err != nil {
		return err
	}

	o.afterCommit(ctx, entry.Path)
	return nil
}

// commitScaffold commits locally produced boilerplate without a model call.
func (o *Orchestrator) commitScaffold(s *BuildSession, task AgentTask, entry plan.Entry) error {
	if err := o.sync.Begin(task.ID, s.ID, entry.Path); err != nil {
		return err
	}
	if content := plan.ScaffoldContent(entry.Path); content != "" {
		if err := o.sync.ApplyChunk(task.ID, content); err != nil {
			return err
		}
	}
	if _, err := o.sync.Commit(task.ID); err != nil {
		return err
	}
	o.afterCommit(context.Background(), entry.Path)
	return nil
}

// afterCommit materializes the committed file and feeds it to the knowledge
// index. Both are best effort: a disk or embedding failure never undoes a
// commit.
func (o *Orchestrator) afterCommit(ctx context.Context, path string) {
	if !project.Ignored(path) {
		if err := o.project.MaterializePath(path); err != nil {
			logging.Warn("materialize failed", "path", path, "error", err)
		}
	}
	if o.index != nil {
		node, ok := o.project.Get(path)
		if ok {
			if err := o.index.Ingest(ctx, path, node.Content); err != nil {
				logging.Warn("knowledge ingest failed", "path", path, "error", err)
			}
		}
	}
}

// finishSession persists the terminal state: snapshot, session record, and
// the embedding cache.
func (o *Orchestrator) finishSession(s *BuildSession) {
	ctx := context.Background()

	if o.store != nil {
		if err := o.store.SaveSnapshot(ctx, o.project.Snapshot()); err != nil {
			logging.Warn("snapshot save failed", "session", s.ID, "error", err)
		}
		if err := o.store.UpdateSessionStatus(ctx, s.ID, string(s.Status()), true); err != nil {
			logging.Warn("session record update failed", "session", s.ID, "error", err)
		}
	}
	if o.index != nil {
		if err := o.index.SaveCache(); err != nil {
			logging.Warn("embedding cache save failed", "error", err)
		}
	}
}

func (o *Orchestrator) retryConfig() client.RetryConfig {
	rc := client.RetryConfig{
		MaxRetries: o.cfg.API.Retry.MaxRetries,
		RetryDelay: o.cfg.API.Retry.RetryDelay,
		MaxDelay:   o.cfg.API.Retry.MaxDelay,
	}
	def := client.DefaultRetryConfig()
	if rc.MaxRetries <= 0 {
		rc.MaxRetries = def.MaxRetries
	}
	if rc.RetryDelay <= 0 {
		rc.RetryDelay = def.RetryDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = def.MaxDelay
	}
	return rc
}

func (o *Orchestrator) recordSession(s *BuildSession) {
	if o.store == nil {
		return
	}
	rec := store.SessionRecord{
		SessionID: s.ID,
		ProjectID: o.project.ID,
		Mode:      string(s.Mode),
		Request:   s.Request,
		Status:    string(s.Status()),
		StartedAt: time.Now(),
	}
	if err := o.store.RecordSession(context.Background(), rec); err != nil {
		logging.Warn("session record insert failed", "session", s.ID, "error", err)
	}
}

func (o *Orchestrator) recordTask(s *BuildSession, task AgentTask) {
	if o.store == nil {
		return
	}
	err := o.store.RecordTask(context.Background(), s.ID, task.ID, task.Path,
		string(task.Status), task.Retries, task.Err)
	if err != nil {
		logging.Warn("task record upsert failed", "task", task.ID, "error", err)
	}
}

func (o *Orchestrator) publishSession(s *BuildSession, errMsg string) {
	o.bus.Publish(event.Event{
		Type:      event.TypeSessionStatus,
		SessionID: s.ID,
		Status:    string(s.Status()),
		Error:     errMsg,
	})
}

func (o *Orchestrator) publishTask(s *BuildSession, task AgentTask) {
	o.bus.Publish(event.Event{
		Type:      event.TypeTaskStatus,
		SessionID: s.ID,
		TaskID:    task.ID,
		Path:      task.Path,
		Status:    string(task.Status),
		Error:     task.Err,
	})
}

// buildInterfaceSummary renders the planned file surface so each coder agent
// can reference its siblings consistently.
func buildInterfaceSummary(manifest plan.Manifest) string {
	entries := make([]string, 0, len(manifest))
	for _, e := range manifest {
		line := fmt.Sprintf("- %s: %s", e.Path, e.Purpose)
		if len(e.DependsOn) > 0 {
			line += fmt.Sprintf(" (depends on %s)", strings.Join(e.DependsOn, ", "))
		}
		entries = append(entries, line)
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n")
}

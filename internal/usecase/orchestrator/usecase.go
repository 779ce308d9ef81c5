package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/usecase/taskcontext"

	"golang.org/x/sync/errgroup"
)

var _ input.TaskController = (*UseCase)(nil)

// SummaryActionName names the synthetic action appended after every run.
const SummaryActionName = "task_summary"

const blankPage = "about:blank"

// PageResolver finds the target page, polling the engine for a while.
type PageResolver interface {
	ResolveWithRetry(ctx context.Context, engine output.Engine, activeURL string) (output.Page, error)
}

// PageCache is the act-after-observe executor's per-task page handle.
type PageCache interface {
	SetPage(page output.Page)
	ClearCache()
}

type UseCase struct {
	engine   output.Engine
	resolver PageResolver
	tabs     output.TabTracker
	backend  output.ReasoningBackend
	acts     PageCache
	events   output.EventPublisher
	logger   output.LoggerPort
	cfg      entity.TaskConfig
	ctxOpts  []taskcontext.Option

	mu      sync.Mutex
	running bool
	current *run
	task    *taskcontext.TaskContext
}

type Option func(*UseCase)

// WithTaskContextOptions passes options to every TaskContext the orchestrator creates.
func WithTaskContextOptions(opts ...taskcontext.Option) Option {
	return func(uc *UseCase) { uc.ctxOpts = append(uc.ctxOpts, opts...) }
}

func New(
	engine output.Engine,
	resolver PageResolver,
	tabs output.TabTracker,
	backend output.ReasoningBackend,
	acts PageCache,
	events output.EventPublisher,
	logger output.LoggerPort,
	cfg entity.TaskConfig,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		engine:   engine,
		resolver: resolver,
		tabs:     tabs,
		backend:  backend,
		acts:     acts,
		events:   events,
		logger:   logger,
		cfg:      cfg.WithDefaults(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// StartTask runs goal to completion. Cancelling ctx cancels the task.
func (uc *UseCase) StartTask(ctx context.Context, goal string) error {
	_, done, err := uc.StartTaskAsync(ctx, goal)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cerr := uc.CancelTask(); cerr != nil {
			uc.logger.Debug("Cancel on context end", "error", cerr)
		}
		return <-done
	}
}

// StartTaskAsync claims the single-task slot and runs goal in the background.
// It returns the new task's id. The channel yields nil on completion, the
// task error on failure, or a UserCancelled error after CancelTask.
func (uc *UseCase) StartTaskAsync(ctx context.Context, goal string) (string, <-chan error, error) {
	const op = "Orchestrator.StartTask"

	r := &run{}
	tc := taskcontext.New(uc.cfg, func(p entity.EventPayload) {
		id := r.taskID
		if id == "" {
			id = r.task.ID()
		}
		uc.emit(id, p)
	}, uc.ctxOpts...)
	r.task = tc

	uc.mu.Lock()
	if uc.running {
		uc.mu.Unlock()
		return "", nil, entity.Errorf(entity.ErrorKindBusy, op, "a task is already running")
	}
	prev := uc.task
	uc.running = true
	uc.task = tc
	uc.mu.Unlock()

	// Start notifies subscribers synchronously; they may call back in.
	if err := tc.Start(goal); err != nil {
		uc.mu.Lock()
		uc.running = false
		uc.task = prev
		uc.mu.Unlock()
		return "", nil, err
	}
	r.taskID = tc.ID()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.Timeout)
	r.cancel = cancel

	uc.mu.Lock()
	uc.current = r
	uc.mu.Unlock()

	log := uc.logger.WithField("task", r.taskID)
	log.Info("Task started", "goal", goal)
	uc.emit(r.taskID, entity.StartPayload{Goal: goal})

	done := make(chan error, 1)
	go func() {
		defer cancel()
		final, err := uc.drive(runCtx, r, goal, log)
		done <- uc.finish(runCtx, r, final, err, log)
	}()
	return r.taskID, done, nil
}

func (uc *UseCase) drive(ctx context.Context, r *run, goal string, log output.LoggerPort) (string, error) {
	tc := r.task

	if err := r.waitIfPaused(ctx); err != nil {
		return "", err
	}
	page, err := uc.resolvePage(ctx, log)
	if err != nil {
		return "", err
	}
	if r.cancelled.Load() {
		return "", entity.ErrUserCancelled
	}
	uc.acts.SetPage(page)

	shot, url := uc.capture(ctx, page, log)
	if url != "" {
		tc.SetCurrentURL(url)
	}
	if shot != nil {
		uc.emit(r.taskID, entity.ScreenshotPayload{Turn: tc.CurrentTurn(), Screenshot: shot.Base64(), URL: url})
	}

	if err := r.waitIfPaused(ctx); err != nil {
		return "", err
	}
	res, err := uc.backend.Execute(ctx, output.BackendRequest{
		Instruction: goal,
		MaxSteps:    uc.cfg.MaxTurns,
		Page:        page,
		Observer:    &backendHook{uc: uc, run: r},
	})
	if err != nil {
		return "", classifyBackendError(ctx, err, uc.cfg.Timeout)
	}
	if res == nil {
		return "", entity.Errorf(entity.ErrorKindBackendError, "Orchestrator.Execute", "backend returned no result")
	}
	if r.cancelled.Load() {
		return "", entity.ErrUserCancelled
	}

	if err := r.waitIfPaused(ctx); err != nil {
		return "", err
	}
	if err := uc.recordActions(tc, res); err != nil {
		return "", err
	}

	finalShot, finalURL := uc.capture(ctx, page, log)
	if finalURL != "" {
		tc.SetCurrentURL(finalURL)
	}

	if _, err := tc.AddAction(entity.FunctionCall{
		Name: SummaryActionName,
		Args: map[string]any{
			"totalSteps": len(res.Actions),
			"success":    res.Success,
			"completed":  res.Completed,
		},
	}, ""); err != nil {
		return "", err
	}
	update := taskcontext.ActionUpdate{Status: mirrorStatus(res.Success), Result: res.Message, URL: finalURL}
	if finalShot != nil {
		update.Screenshot = finalShot.Base64()
	}
	if _, err := tc.UpdateLastAction(update); err != nil {
		return "", err
	}

	final := res.Message
	if final == "" {
		final = fmt.Sprintf("Task finished after %d actions", len(res.Actions))
	}
	return final, nil
}

// recordActions maps backend sub-actions into the task history in order.
func (uc *UseCase) recordActions(tc *taskcontext.TaskContext, res *entity.BackendResult) error {
	for _, a := range res.Actions {
		if _, err := tc.AddAction(entity.FunctionCall{Name: a.Type, Args: a.Args}, a.Reasoning); err != nil {
			return err
		}

		status := mirrorStatus(res.Success)
		if a.Success != nil {
			status = mirrorStatus(*a.Success)
		}
		if a.Skipped {
			status = entity.ActionStatusSkipped
		}

		update := taskcontext.ActionUpdate{Status: status}
		if status == entity.ActionStatusFailed {
			update.Error = a.Description
		} else {
			update.Result = a.Description
		}
		if _, err := tc.UpdateLastAction(update); err != nil {
			return err
		}
	}
	return nil
}

func mirrorStatus(success bool) entity.ActionStatus {
	if success {
		return entity.ActionStatusSuccess
	}
	return entity.ActionStatusFailed
}

// finish owns the terminal transition unless CancelTask got there first.
func (uc *UseCase) finish(ctx context.Context, r *run, final string, runErr error, log output.LoggerPort) error {
	defer uc.release(r)
	tc := r.task

	for {
		r.endMu.Lock()
		if r.ended || r.cancelled.Load() {
			r.endMu.Unlock()
			log.Debug("Run result after cancellation ignored", "error", runErr)
			return entity.NewError(entity.ErrorKindUserCancelled, "Orchestrator.StartTask", errors.New("task cancelled"))
		}

		if runErr == nil {
			err := tc.Complete(final)
			if err != nil && tc.State() == entity.TaskStatePaused {
				r.endMu.Unlock()
				if werr := r.waitIfPaused(ctx); werr != nil {
					runErr = classifyBackendError(ctx, werr, uc.cfg.Timeout)
				}
				continue
			}
			r.ended = true
			if err != nil {
				r.endMu.Unlock()
				log.Error("Task could not complete", "error", err)
				return err
			}
			uc.emit(r.taskID, entity.CompletePayload{FinalResponse: final, Duration: tc.Elapsed()})
			r.endMu.Unlock()
			log.Info("Task completed", "duration", tc.Elapsed(), "actions", len(tc.Snapshot().Actions))
			return nil
		}

		r.ended = true
		if err := tc.Fail(runErr); err != nil {
			log.Error("Task could not be marked failed", "error", err)
		}
		uc.emit(r.taskID, entity.ErrorPayload{Error: runErr.Error(), Turn: tc.CurrentTurn()})
		r.endMu.Unlock()
		log.Error("Task failed", "error", runErr)
		return runErr
	}
}

// release frees the single-task slot and the cached page if r still owns them.
func (uc *UseCase) release(r *run) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.current != r {
		return
	}
	uc.running = false
	uc.current = nil
	uc.acts.ClearCache()
}

func (uc *UseCase) CancelTask() error {
	const op = "Orchestrator.CancelTask"

	uc.mu.Lock()
	r := uc.current
	uc.mu.Unlock()
	if r == nil {
		return entity.Errorf(entity.ErrorKindInvalidState, op, "no task is running")
	}

	r.endMu.Lock()
	if r.ended {
		r.endMu.Unlock()
		return entity.Errorf(entity.ErrorKindInvalidState, op, "task already finished")
	}
	r.ended = true
	r.cancelled.Store(true)

	if err := uc.backend.Interrupt(); err != nil {
		uc.logger.Warn("Backend interrupt failed", "task", r.taskID, "error", err)
	}
	r.cancel()
	r.openGate()
	uc.acts.ClearCache()

	if err := r.task.Cancel(); err != nil {
		uc.logger.Warn("Task context cancel failed", "task", r.taskID, "error", err)
	}
	uc.emit(r.taskID, entity.CancelledPayload{})
	r.endMu.Unlock()

	uc.logger.Info("Task cancelled", "task", r.taskID)
	uc.release(r)
	return nil
}

func (uc *UseCase) PauseTask() error {
	r, err := uc.active("Orchestrator.PauseTask")
	if err != nil {
		return err
	}
	if err := r.task.Pause(); err != nil {
		return err
	}
	r.closeGate()
	uc.emit(r.taskID, entity.PausedPayload{})
	return nil
}

func (uc *UseCase) ResumeTask() error {
	r, err := uc.active("Orchestrator.ResumeTask")
	if err != nil {
		return err
	}
	if err := r.task.Resume(); err != nil {
		return err
	}
	r.openGate()
	uc.emit(r.taskID, entity.ResumedPayload{})
	return nil
}

func (uc *UseCase) active(op string) (*run, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.current == nil {
		return nil, entity.Errorf(entity.ErrorKindInvalidState, op, "no task is running")
	}
	return uc.current, nil
}

func (uc *UseCase) GetContext() entity.TaskSnapshot {
	uc.mu.Lock()
	tc := uc.task
	uc.mu.Unlock()
	if tc == nil {
		return entity.TaskSnapshot{State: entity.TaskStateIdle}
	}
	return tc.Snapshot()
}

func (uc *UseCase) resolvePage(ctx context.Context, log output.LoggerPort) (output.Page, error) {
	activeURL := ""
	if uc.tabs != nil {
		activeURL = uc.tabs.ActiveTabURL(ctx)
	}

	page, err := uc.resolver.ResolveWithRetry(ctx, uc.engine, activeURL)
	if err == nil {
		log.Debug("Target page resolved", "page", page.ID())
		return page, nil
	}
	if !entity.IsKind(err, entity.ErrorKindNoTargetPage) || ctx.Err() != nil {
		return nil, err
	}

	target := activeURL
	if target == "" {
		target = blankPage
	}
	log.Info("No target page found, opening a new one", "url", target, "cause", err)
	page, err = uc.engine.NewPage(ctx, target)
	if err != nil {
		return nil, entity.NewError(entity.ErrorKindNoTargetPage, "Orchestrator.resolvePage", err)
	}
	return page, nil
}

// capture fetches screenshot and URL concurrently. Failures are logged and
// leave the corresponding value empty.
func (uc *UseCase) capture(ctx context.Context, page output.Page, log output.LoggerPort) (*entity.Screenshot, string) {
	var (
		shot *entity.Screenshot
		url  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := page.Screenshot(gctx)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		shot = s
		return nil
	})
	g.Go(func() error {
		u, err := page.URL(gctx)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		url = u
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("State capture incomplete", "error", err)
	}
	return shot, url
}

func (uc *UseCase) emit(taskID string, p entity.EventPayload) {
	uc.events.Publish(entity.NewEvent(taskID, p))
}

func classifyBackendError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return entity.NewError(entity.ErrorKindBackendError, "Orchestrator.Execute",
			fmt.Errorf("task timed out after %s: %w", timeout, err))
	}
	if entity.KindOf(err) != "" {
		return err
	}
	return entity.NewError(entity.ErrorKindBackendError, "Orchestrator.Execute", err)
}

// backendHook relays backend progress as task events and stops the backend
// once the run was cancelled or ran out of time.
type backendHook struct {
	uc  *UseCase
	run *run
}

func (h *backendHook) OnTurn(turn int) error {
	if h.run.cancelled.Load() {
		return entity.ErrUserCancelled
	}
	if h.run.task.HasTimedOut() {
		return entity.Errorf(entity.ErrorKindBackendError, "Orchestrator.OnTurn", "task timed out after %s", h.uc.cfg.Timeout)
	}
	h.uc.emit(h.run.taskID, entity.TurnPayload{Turn: turn})
	return nil
}

func (h *backendHook) OnScreenshot(turn int, shot *entity.Screenshot) {
	if h.run.cancelled.Load() || shot == nil {
		return
	}
	if shot.URL != "" {
		h.run.task.SetCurrentURL(shot.URL)
	}
	h.uc.emit(h.run.taskID, entity.ScreenshotPayload{Turn: turn, Screenshot: shot.Base64(), URL: shot.URL})
}

func (h *backendHook) OnReasoning(text string) {
	if h.run.cancelled.Load() {
		return
	}
	h.run.task.AppendConversation(entity.Message{Role: entity.RoleAssistant, Content: text})
	h.uc.emit(h.run.taskID, entity.ReasoningPayload{Text: text})
}

func (h *backendHook) OnAction(name string, args map[string]any) {
	if h.run.cancelled.Load() {
		return
	}
	h.uc.emit(h.run.taskID, entity.ActionPayload{Name: name, Args: args})
}

func (h *backendHook) OnActionComplete(success bool, result string) {
	if h.run.cancelled.Load() {
		return
	}
	h.uc.emit(h.run.taskID, entity.ActionCompletePayload{Success: success, Result: result})
}

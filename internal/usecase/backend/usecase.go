package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"browser-pilot/internal/adapter/tool"
	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/service"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
	"browser-pilot/internal/usecase/primitives"

	jsoniter "github.com/json-iterator/go"
)

var _ output.ReasoningBackend = (*UseCase)(nil)

const (
	maxObservationLen = 20000

	DefaultSettleDelay    = 500 * time.Millisecond
	DefaultNavigationIdle = 5 * time.Second
	DefaultMaxLLMErrors   = 3
)

var (
	argsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

	errNotRunning = errors.New("no execution in flight")
)

type Options struct {
	SystemPrompt   string
	SettleDelay    time.Duration
	NavigationIdle time.Duration
	MaxLLMErrors   int
}

// UseCase is a vision ReAct loop: screenshot in, one tool call out, repeat.
type UseCase struct {
	llm    output.LLMPort
	acts   input.ActExecutor
	logger output.LoggerPort
	opts   Options

	mu     sync.Mutex
	cancel context.CancelFunc
	runID  uint64
}

func New(llm output.LLMPort, acts input.ActExecutor, logger output.LoggerPort, opts Options) *UseCase {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = prompts.DefaultSystemPrompt
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.NavigationIdle <= 0 {
		opts.NavigationIdle = DefaultNavigationIdle
	}
	if opts.MaxLLMErrors <= 0 {
		opts.MaxLLMErrors = DefaultMaxLLMErrors
	}
	return &UseCase{
		llm:    llm,
		acts:   acts,
		logger: logger,
		opts:   opts,
	}
}

// Interrupt cancels the in-flight Execute, if any.
func (uc *UseCase) Interrupt() error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.cancel == nil {
		return errNotRunning
	}
	uc.cancel()
	return nil
}

func (uc *UseCase) Execute(ctx context.Context, req output.BackendRequest) (*entity.BackendResult, error) {
	const op = "Backend.Execute"

	if req.Page == nil {
		return nil, entity.Errorf(entity.ErrorKindBackendError, op, "no page")
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = entity.DefaultMaxTurns
	}
	obs := req.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	ctx, cancel := context.WithCancel(ctx)
	uc.mu.Lock()
	uc.runID++
	runID := uc.runID
	uc.cancel = cancel
	uc.mu.Unlock()
	defer func() {
		uc.mu.Lock()
		if uc.runID == runID {
			uc.cancel = nil
		}
		uc.mu.Unlock()
		cancel()
	}()

	tools := service.NewToolRegistry(tool.BrowserTools(req.Page, uc.acts, uc.logger)...)
	toolDefs := tools.Definitions()

	systemPrompt, err := prompts.GenerateSystemPrompt(uc.opts.SystemPrompt, primitives.Range, toolDefs)
	if err != nil {
		return nil, entity.NewError(entity.ErrorKindBackendError, op, fmt.Errorf("failed to generate system prompt: %w", err))
	}

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: systemPrompt},
		{Role: entity.RoleUser, Content: "Goal: " + req.Instruction},
	}

	result := &entity.BackendResult{}

	for step := 1; step <= req.MaxSteps; step++ {
		if err := obs.OnTurn(step); err != nil {
			uc.logger.Info("Backend stopped by observer", "step", step, "reason", err)
			result.Message = "stopped: " + err.Error()
			return result, err
		}
		uc.logger.Debug("Starting step", "step", step)

		messages = append(stripImages(messages), uc.observation(ctx, req.Page, step, obs))

		resp, err := uc.chat(ctx, messages, toolDefs, step)
		if err != nil {
			return result, err
		}

		messages = append(messages, resp.Message)

		reasoning := resp.Message.Thinking()
		if reasoning == "" && len(resp.Message.ToolCalls) > 0 {
			reasoning = strings.TrimSpace(resp.Message.Content)
		}
		if reasoning != "" {
			obs.OnReasoning(reasoning)
		}

		if len(resp.Message.ToolCalls) == 0 {
			result.Success = true
			result.Completed = true
			result.Message = strings.TrimSpace(resp.Message.Content)
			uc.logger.Info("Backend completed", "steps", step, "actions", len(result.Actions))
			return result, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			action, observation, name := uc.executeTool(ctx, tools, tc, reasoning, obs)
			result.Actions = append(result.Actions, action)

			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    observation,
			})
			uc.settle(ctx, req.Page, name)
		}
	}

	result.Success = false
	result.Completed = false
	result.Message = fmt.Sprintf("step budget of %d exhausted before the goal was reached", req.MaxSteps)
	uc.logger.Warn("Backend ran out of steps", "maxSteps", req.MaxSteps)
	return result, nil
}

// chat retries failed LLM calls until MaxLLMErrors consecutive failures.
func (uc *UseCase) chat(ctx context.Context, messages []entity.Message, toolDefs []entity.ToolDefinition, step int) (*output.ChatResponse, error) {
	const op = "Backend.Execute"

	for failures := 1; ; failures++ {
		resp, err := uc.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: 0.0,
		})
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, entity.NewError(entity.ErrorKindUserCancelled, op, ctx.Err())
		}
		uc.logger.Warn("LLM request failed", "step", step, "streak", failures, "error", err)
		if failures >= uc.opts.MaxLLMErrors {
			return nil, entity.NewError(entity.ErrorKindBackendError, op,
				fmt.Errorf("llm request failed %d times in a row: %w", failures, err))
		}
	}
}

// observation captures the page and wraps it into the user message of a turn.
func (uc *UseCase) observation(ctx context.Context, page output.Page, step int, obs output.BackendObserver) entity.Message {
	url, err := page.URL(ctx)
	if err != nil {
		uc.logger.Debug("URL unavailable", "error", err)
	}

	msg := entity.Message{
		Role:    entity.RoleUser,
		Content: fmt.Sprintf("Turn %d. Current URL: %s", step, url),
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		uc.logger.Warn("Screenshot failed", "step", step, "error", err)
		msg.Content += "\n(screenshot unavailable: " + err.Error() + ")"
		return msg
	}
	obs.OnScreenshot(step, shot)
	msg.Images = []string{shot.DataURL()}
	return msg
}

func (uc *UseCase) executeTool(ctx context.Context, tools output.ToolRegistry, tc entity.ToolCall, reasoning string, obs output.BackendObserver) (entity.BackendAction, string, entity.ActionName) {
	args := map[string]any{}
	var argsErr error
	if strings.TrimSpace(tc.Arguments) != "" {
		argsErr = argsJSON.UnmarshalFromString(tc.Arguments, &args)
	}

	obs.OnAction(tc.Name, args)

	if argsErr != nil {
		uc.logger.Warn("Malformed tool arguments", "name", tc.Name, "args", tc.Arguments, "error", argsErr)
		return failedAction(tc.Name, args, reasoning, fmt.Errorf("malformed arguments: %w", argsErr), obs)
	}

	parsed, err := entity.ParseAction(entity.FunctionCall{Name: tc.Name, Args: args})
	if err != nil {
		uc.logger.Warn("Rejected tool call", "name", tc.Name, "error", err)
		return failedAction(tc.Name, args, reasoning, err, obs)
	}
	name := parsed.Action.Name()

	if parsed.Policy != nil {
		uc.logger.Warn("Policy verdict has no mapping onto safety decisions; recorded only",
			"name", tc.Name, "decision", parsed.Policy.Decision, "reason", parsed.Policy.Reason)
	}

	if parsed.Blocked() {
		msg := "blocked by safety decision"
		if parsed.Safety.Explanation != "" {
			msg += ": " + parsed.Safety.Explanation
		}
		uc.logger.Warn("Skipping blocked action", "name", tc.Name, "explanation", parsed.Safety.Explanation)
		obs.OnActionComplete(false, "skipped: "+msg)
		return entity.BackendAction{
			Type:        tc.Name,
			Description: describe(tc.Name, args),
			Reasoning:   reasoning,
			Args:        args,
			Skipped:     true,
		}, "Skipped: " + msg, name
	}

	acknowledged := parsed.Safety != nil && parsed.Safety.Decision == entity.SafetyRequireConfirmation
	if acknowledged {
		uc.logger.Info("Executing action that asked for confirmation",
			"name", tc.Name, "explanation", parsed.Safety.Explanation)
	}

	t, ok := tools.Get(name)
	if !ok {
		uc.logger.Warn("Unknown tool called", "name", tc.Name)
		return failedAction(tc.Name, args, reasoning, fmt.Errorf("unknown tool '%s'", tc.Name), obs)
	}

	uc.logger.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)
	res := t.Execute(ctx, parsed.Action)

	success := res.Success
	action := entity.BackendAction{
		Type:        tc.Name,
		Description: describe(tc.Name, args),
		Reasoning:   reasoning,
		Args:        args,
		Success:     &success,
	}
	if ar, ok := res.Data.(*entity.ActResult); ok && ar != nil {
		if ar.ActionDescription != "" {
			action.Description = ar.ActionDescription
		}
		if len(ar.Actions) > 0 {
			action.Selector = ar.Actions[0].Selector
		}
	}

	observation := renderResult(res)
	if acknowledged {
		observation = "safety_acknowledgement: true\n" + observation
	}
	if len(observation) > maxObservationLen {
		observation = observation[:maxObservationLen] + "\n... (truncated)"
	}

	if res.Success {
		uc.logger.Debug("Tool completed", "name", tc.Name, "resultLen", len(observation))
		obs.OnActionComplete(true, observation)
	} else {
		uc.logger.Error("Tool execution failed", "name", tc.Name, "error", res.Error)
		obs.OnActionComplete(false, res.Error)
	}
	return action, observation, name
}

// failedAction records a call that never reached a tool.
func failedAction(name string, args map[string]any, reasoning string, err error, obs output.BackendObserver) (entity.BackendAction, string, entity.ActionName) {
	obs.OnActionComplete(false, err.Error())
	failed := false
	return entity.BackendAction{
		Type:        name,
		Description: err.Error(),
		Reasoning:   reasoning,
		Args:        args,
		Success:     &failed,
	}, "Error: " + err.Error(), entity.ActionName(name)
}

// settle waits for the page after an action: network idle after navigation,
// a fixed delay otherwise.
func (uc *UseCase) settle(ctx context.Context, page output.Page, name entity.ActionName) {
	switch name {
	case entity.ActionNavigate, entity.ActionGoBack, entity.ActionGoForward, entity.ActionSearch:
		if err := page.WaitIdle(ctx, uc.opts.NavigationIdle); err != nil {
			uc.logger.Debug("Page did not go idle", "error", err)
		}
	case entity.ActionWait:
	default:
		if uc.opts.SettleDelay <= 0 {
			return
		}
		timer := time.NewTimer(uc.opts.SettleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

func renderResult(res entity.ActionResult) string {
	if !res.Success {
		return "Error: " + res.Error
	}
	if res.Data == nil {
		return "OK"
	}
	data, err := argsJSON.MarshalToString(res.Data)
	if err != nil {
		return "OK"
	}
	return "OK " + data
}

func describe(name string, args map[string]any) string {
	if len(args) == 0 {
		return name
	}
	data, err := argsJSON.MarshalToString(args)
	if err != nil {
		return name
	}
	return name + " " + data
}

// stripImages drops screenshots from earlier turns; only the newest is sent.
func stripImages(msgs []entity.Message) []entity.Message {
	for i := range msgs {
		if len(msgs[i].Images) > 0 {
			msgs[i].Images = nil
			msgs[i].Content += "\n(earlier screenshot omitted)"
		}
	}
	return msgs
}

type nopObserver struct{}

func (nopObserver) OnTurn(int) error                     { return nil }
func (nopObserver) OnScreenshot(int, *entity.Screenshot) {}
func (nopObserver) OnReasoning(string)                   {}
func (nopObserver) OnAction(string, map[string]any)      {}
func (nopObserver) OnActionComplete(bool, string)        {}

package observer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/prompts"
	"browser-pilot/internal/usecase/primitives"

	jsoniter "github.com/json-iterator/go"
)

var _ output.Observer = (*UseCase)(nil)

const (
	maxCandidates = 5
	retrySettle   = time.Second
)

const reaskPrompt = "That answer could not be parsed (%v). Reply with only the JSON array of candidate actions."

var candidateJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type UseCase struct {
	llm            output.LLMPort
	logger         output.LoggerPort
	promptTemplate string
	maxRetries     int
}

func New(llm output.LLMPort, logger output.LoggerPort, promptTemplate string, maxRetries int) *UseCase {
	if promptTemplate == "" {
		promptTemplate = prompts.ObservePrompt
	}
	if maxRetries <= 0 {
		maxRetries = entity.DefaultMaxRetries
	}
	return &UseCase{
		llm:            llm,
		logger:         logger,
		promptTemplate: promptTemplate,
		maxRetries:     maxRetries,
	}
}

// Observe asks the LLM to rank concrete actions for instruction against the
// page's interactive elements and cleaned markup.
func (uc *UseCase) Observe(ctx context.Context, page output.Page, instruction string) ([]entity.CandidateAction, error) {
	const op = "Observer.Observe"

	elements, elemErr := page.UIElements(ctx)
	if elemErr != nil {
		uc.logger.Warn("UI extraction failed", "error", elemErr)
	}
	dom, domErr := page.DOMSnapshot(ctx)
	if domErr != nil {
		uc.logger.Warn("DOM snapshot failed", "error", domErr)
	}
	if elemErr != nil && domErr != nil {
		return nil, entity.NewError(entity.ErrorKindActionFailed, op, errors.Join(elemErr, domErr))
	}

	prompt, err := prompts.GenerateObservePrompt(uc.promptTemplate, prompts.ObservePromptData{
		Instruction: instruction,
		Elements:    elements,
		DOM:         dom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate observe prompt: %w", err)
	}

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: prompt},
		{Role: entity.RoleUser, Content: instruction},
	}

	// Unparseable answers are re-asked up to maxRetries times in total.
	var parseErr error
	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		resp, err := uc.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Temperature: 0.0,
		})
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}

		candidates, err := parseCandidates(resp.Message.Content)
		if err == nil {
			uc.logger.Debug("Observed candidates", "instruction", instruction, "count", len(candidates), "attempt", attempt)
			return candidates, nil
		}
		parseErr = err
		uc.logger.Warn("Unparseable observe answer", "attempt", attempt, "error", err)

		messages = append(messages,
			entity.Message{Role: entity.RoleAssistant, Content: resp.Message.Content},
			entity.Message{Role: entity.RoleUser, Content: fmt.Sprintf(reaskPrompt, err)},
		)
	}

	return nil, entity.NewError(entity.ErrorKindActionFailed, op, parseErr)
}

// Act executes a candidate by selector. A raw instruction is observed first
// and its best candidate executed.
func (uc *UseCase) Act(ctx context.Context, page output.Page, req entity.ActRequest) (*entity.ActOutcome, error) {
	cand := req.Candidate
	if cand == nil {
		cands, err := uc.Observe(ctx, page, req.Instruction)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			return &entity.ActOutcome{
				Success:     false,
				Message:     "no element matches: " + req.Instruction,
				Description: req.Instruction,
			}, nil
		}
		cand = &cands[0]
	}

	var lastErr error
	for attempt := 1; attempt <= uc.maxRetries; attempt++ {
		lastErr = uc.perform(ctx, page, *cand)
		if lastErr == nil {
			return &entity.ActOutcome{
				Success:     true,
				Message:     fmt.Sprintf("%s %s", cand.Method, cand.Selector),
				Description: cand.Description,
			}, nil
		}
		if ctx.Err() != nil {
			break
		}
		uc.logger.Debug("Act attempt failed", "attempt", attempt, "selector", cand.Selector, "error", lastErr)
		_ = page.WaitIdle(ctx, retrySettle)
	}

	return &entity.ActOutcome{
		Success:     false,
		Message:     lastErr.Error(),
		Description: cand.Description,
	}, nil
}

func (uc *UseCase) perform(ctx context.Context, page output.Page, c entity.CandidateAction) error {
	switch c.Method {
	case entity.MethodClick, "":
		return page.ClickSelector(ctx, c.Selector)
	case entity.MethodFill, entity.MethodType:
		return page.FillSelector(ctx, c.Selector, firstArg(c.Arguments))
	case entity.MethodPress:
		if err := page.ClickSelector(ctx, c.Selector); err != nil {
			return err
		}
		keys := c.Arguments
		if len(keys) == 0 {
			keys = []string{"Enter"}
		}
		return page.PressKeys(ctx, primitives.CanonicalKeys(keys))
	case entity.MethodHover:
		return page.HoverSelector(ctx, c.Selector)
	case entity.MethodScrollIntoView:
		return page.ScrollIntoView(ctx, c.Selector)
	default:
		return fmt.Errorf("unsupported method %q", c.Method)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// parseCandidates accepts a bare JSON array, or an object wrapping it under
// "candidates" or "actions", with arbitrary prose around it.
func parseCandidates(response string) ([]entity.CandidateAction, error) {
	var raw []entity.CandidateAction

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	objStart := strings.Index(response, "{")

	switch {
	case start != -1 && end > start && (objStart == -1 || start < objStart):
		if err := candidateJSON.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse candidates: %w", err)
		}
	case objStart != -1:
		objEnd := strings.LastIndex(response, "}")
		if objEnd <= objStart {
			return nil, fmt.Errorf("no JSON found in response")
		}
		var wrapped struct {
			Candidates []entity.CandidateAction `json:"candidates"`
			Actions    []entity.CandidateAction `json:"actions"`
		}
		if err := candidateJSON.Unmarshal([]byte(response[objStart:objEnd+1]), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse candidates: %w", err)
		}
		raw = wrapped.Candidates
		if len(raw) == 0 {
			raw = wrapped.Actions
		}
	default:
		return nil, fmt.Errorf("no JSON found in response")
	}

	out := make([]entity.CandidateAction, 0, len(raw))
	for _, c := range raw {
		c.Selector = strings.TrimSpace(c.Selector)
		if c.Selector == "" {
			continue
		}
		if c.Method == "" {
			c.Method = entity.MethodClick
		}
		out = append(out, c)
		if len(out) == maxCandidates {
			break
		}
	}
	return out, nil
}

// Package actobserve executes natural-language instructions by observing
// candidate actions first and then walking an ordered list of strategies.
package actobserve

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ input.ActExecutor = (*Executor)(nil)

const (
	StrategyDOMClick       = "dom-click"
	StrategyEngineAct      = "engine-act"
	StrategyRawInstruction = "raw-instruction"
)

// PageSource resolves the page to work on when none is cached.
type PageSource func(ctx context.Context) (output.Page, error)

type strategy struct {
	name    string
	attempt func(ctx context.Context, page output.Page) (*entity.ActResult, error)
}

type Executor struct {
	observer output.Observer
	source   PageSource
	logger   output.LoggerPort

	mu   sync.Mutex
	page output.Page
}

func New(observer output.Observer, source PageSource, logger output.LoggerPort) *Executor {
	return &Executor{
		observer: observer,
		source:   source,
		logger:   logger,
	}
}

// SetPage pins the page for the current task.
func (e *Executor) SetPage(page output.Page) {
	e.mu.Lock()
	e.page = page
	e.mu.Unlock()
}

func (e *Executor) ClearCache() {
	e.mu.Lock()
	e.page = nil
	e.mu.Unlock()
}

func (e *Executor) currentPage(ctx context.Context) (output.Page, error) {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page != nil {
		return page, nil
	}
	if e.source == nil {
		return nil, entity.Errorf(entity.ErrorKindNoTargetPage, "ActExecutor", "no page available")
	}

	page, err := e.source(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.page == nil {
		e.page = page
	}
	page = e.page
	e.mu.Unlock()
	return page, nil
}

func (e *Executor) Observe(ctx context.Context, instruction string) ([]entity.CandidateAction, error) {
	page, err := e.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	return e.observer.Observe(ctx, page, instruction)
}

// Act runs engine-level act for either a candidate or a raw instruction.
func (e *Executor) Act(ctx context.Context, req entity.ActRequest) *entity.ActResult {
	page, err := e.currentPage(ctx)
	if err != nil {
		return failure(req.Instruction, nil, err.Error())
	}

	var s strategy
	if req.Candidate != nil {
		s = e.engineAct(*req.Candidate)
	} else {
		s = e.rawInstruction(req.Instruction)
	}
	var cands []entity.CandidateAction
	if req.Candidate != nil {
		cands = []entity.CandidateAction{*req.Candidate}
	}
	return e.run(ctx, page, req.Instruction, cands, []strategy{s})
}

// ActAfterObserve observes first and executes the best candidate, falling
// back from the DOM fast path to engine act, or to the raw instruction when
// nothing was observed.
func (e *Executor) ActAfterObserve(ctx context.Context, instruction string) *entity.ActResult {
	log := e.logger.WithField("instruction", instruction)

	page, err := e.currentPage(ctx)
	if err != nil {
		log.Error("No page for act", "error", err)
		return failure(instruction, nil, err.Error())
	}

	candidates, err := e.safeObserve(ctx, page, instruction)

	var plan []strategy
	switch {
	case err != nil:
		log.Warn("Observe failed, falling back to raw instruction", "error", err)
		plan = []strategy{e.rawInstruction(instruction)}
	case len(candidates) == 0:
		log.Warn("Observe returned no candidates, falling back to raw instruction")
		plan = []strategy{e.rawInstruction(instruction)}
	case candidates[0].IsSimpleClick():
		plan = []strategy{e.domClick(candidates[0]), e.engineAct(candidates[0])}
	default:
		plan = []strategy{e.engineAct(candidates[0])}
	}

	return e.run(ctx, page, instruction, candidates, plan)
}

func (e *Executor) safeObserve(ctx context.Context, page output.Page, instruction string) (cands []entity.CandidateAction, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands, err = nil, fmt.Errorf("observe panicked: %v", r)
		}
	}()
	return e.observer.Observe(ctx, page, instruction)
}

func (e *Executor) run(ctx context.Context, page output.Page, instruction string, cands []entity.CandidateAction, plan []strategy) *entity.ActResult {
	var failures []string
	for i, s := range plan {
		res, err := attempt(ctx, page, s)
		if err == nil && res != nil && res.Success {
			res.Actions = cands
			e.logger.Debug("Act strategy succeeded", "strategy", s.name)
			return res
		}

		cause := describeFailure(res, err)
		failures = append(failures, s.name+": "+cause)
		if i+1 < len(plan) {
			e.logger.Warn("Act strategy failed, falling back",
				"strategy", s.name, "next", plan[i+1].name, "cause", cause)
		} else {
			e.logger.Warn("Act strategy failed", "strategy", s.name, "cause", cause)
		}
	}
	return failure(instruction, cands, strings.Join(failures, "; "))
}

func attempt(ctx context.Context, page output.Page, s strategy) (res *entity.ActResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.attempt(ctx, page)
}

func (e *Executor) domClick(c entity.CandidateAction) strategy {
	return strategy{
		name: StrategyDOMClick,
		attempt: func(ctx context.Context, page output.Page) (*entity.ActResult, error) {
			if err := page.ClickSelector(ctx, c.Selector); err != nil {
				return nil, err
			}
			return &entity.ActResult{
				Success:           true,
				Message:           "clicked " + c.Selector,
				ActionDescription: c.Description,
			}, nil
		},
	}
}

func (e *Executor) engineAct(c entity.CandidateAction) strategy {
	return strategy{
		name: StrategyEngineAct,
		attempt: func(ctx context.Context, page output.Page) (*entity.ActResult, error) {
			cand := c
			out, err := e.observer.Act(ctx, page, entity.ActRequest{Candidate: &cand})
			return fromOutcome(out, c.Description), err
		},
	}
}

func (e *Executor) rawInstruction(instruction string) strategy {
	return strategy{
		name: StrategyRawInstruction,
		attempt: func(ctx context.Context, page output.Page) (*entity.ActResult, error) {
			out, err := e.observer.Act(ctx, page, entity.ActRequest{Instruction: instruction})
			return fromOutcome(out, instruction), err
		},
	}
}

func fromOutcome(out *entity.ActOutcome, fallbackDesc string) *entity.ActResult {
	if out == nil {
		return nil
	}
	desc := out.Description
	if desc == "" {
		desc = fallbackDesc
	}
	return &entity.ActResult{
		Success:           out.Success,
		Message:           out.Message,
		ActionDescription: desc,
	}
}

func describeFailure(res *entity.ActResult, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res == nil:
		return "no result"
	case res.Error != "":
		return res.Error
	case res.Message != "":
		return res.Message
	}
	return "unsuccessful"
}

func failure(instruction string, cands []entity.CandidateAction, msg string) *entity.ActResult {
	return &entity.ActResult{
		Success:           false,
		Message:           "failed to act: " + instruction,
		ActionDescription: instruction,
		Actions:           cands,
		Error:             msg,
	}
}

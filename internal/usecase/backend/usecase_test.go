package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/application/port/output/outputtest"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

type recorder struct {
	events  []string
	stopAt  int
	stopErr error
}

func (r *recorder) OnTurn(turn int) error {
	r.events = append(r.events, fmt.Sprintf("turn %d", turn))
	if r.stopAt > 0 && turn >= r.stopAt {
		return r.stopErr
	}
	return nil
}

func (r *recorder) OnScreenshot(turn int, shot *entity.Screenshot) {
	r.events = append(r.events, fmt.Sprintf("screenshot %d", turn))
}

func (r *recorder) OnReasoning(text string) {
	r.events = append(r.events, "reasoning "+text)
}

func (r *recorder) OnAction(name string, args map[string]any) {
	r.events = append(r.events, "action "+name)
}

func (r *recorder) OnActionComplete(success bool, result string) {
	r.events = append(r.events, fmt.Sprintf("complete %v", success))
}

type stubActs struct {
	result *entity.ActResult
}

func (s *stubActs) Observe(context.Context, string) ([]entity.CandidateAction, error) {
	return nil, nil
}
func (s *stubActs) Act(context.Context, entity.ActRequest) *entity.ActResult  { return s.result }
func (s *stubActs) ActAfterObserve(context.Context, string) *entity.ActResult { return s.result }
func (s *stubActs) ClearCache()                                               {}

func editablePage() *outputtest.Page {
	page := outputtest.NewPage("p", "about:blank")
	page.JS = func(string, []any) (gson.JSON, error) {
		return gson.New(map[string]any{"ok": true, "tag": "input"}), nil
	}
	return page
}

func newUseCase(llm output.LLMPort, acts *stubActs) *UseCase {
	if acts == nil {
		return New(llm, nil, logger.NewNop(), Options{})
	}
	return New(llm, acts, logger.NewNop(), Options{})
}

func withContent(r outputtest.Reply, content string) outputtest.Reply {
	r.Message.Content = content
	return r
}

func TestExecute_SearchScenario(t *testing.T) {
	page := editablePage()
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		withContent(outputtest.Call("c1", "navigate", `{"url":"https://www.google.com"}`), "Open the search engine"),
		outputtest.Call("c2", "type_text_at", `{"x":500,"y":400,"text":"golang","press_enter":true}`),
		outputtest.Text("Searched for golang."),
	}}
	rec := &recorder{}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{
		Instruction: "search for golang",
		MaxSteps:    10,
		Page:        page,
		Observer:    rec,
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Completed)
	assert.Equal(t, "Searched for golang.", res.Message)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, "navigate", res.Actions[0].Type)
	assert.Equal(t, "Open the search engine", res.Actions[0].Reasoning)
	require.NotNil(t, res.Actions[1].Success)
	assert.True(t, *res.Actions[1].Success)

	assert.Contains(t, page.Calls(), "Navigate(https://www.google.com)")
	assert.Contains(t, page.Calls(), "PressKeys([Enter])")
	assert.Contains(t, page.Calls(), "WaitIdle(5s)")

	assert.Equal(t, []string{
		"turn 1", "screenshot 1", "reasoning Open the search engine", "action navigate", "complete true",
		"turn 2", "screenshot 2", "action type_text_at", "complete true",
		"turn 3", "screenshot 3",
	}, rec.events)
}

func TestExecute_OnlyLatestScreenshotIsSent(t *testing.T) {
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "go_back", `{}`),
		outputtest.Call("c2", "go_forward", ``),
		outputtest.Text("done"),
	}}
	uc := newUseCase(llm, nil)

	_, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", "")})
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 3)
	last := reqs[2].Messages
	withImages := 0
	for _, m := range last {
		withImages += len(m.Images)
	}
	assert.Equal(t, 1, withImages)
	assert.NotEmpty(t, last[len(last)-1].Images)
	assert.Len(t, reqs[2].Tools, 13)
}

func TestExecute_InvalidCallsAreRecordedAndLoopContinues(t *testing.T) {
	page := outputtest.NewPage("p", "")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "teleport", `{}`),
		outputtest.Call("c2", "click_at", `{"x": "left"}`),
		outputtest.Call("c3", "click_at", `not json`),
		outputtest.Text("gave up"),
	}}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: page})

	require.NoError(t, err)
	require.Len(t, res.Actions, 3)
	for _, a := range res.Actions {
		require.NotNil(t, a.Success)
		assert.False(t, *a.Success, a.Type)
	}
	assert.Contains(t, res.Actions[0].Description, "unknown action")

	toolMsgs := 0
	for _, m := range llm.Requests()[3].Messages {
		if m.Role == entity.RoleTool {
			toolMsgs++
			assert.Contains(t, m.Content, "Error: ")
		}
	}
	assert.Equal(t, 3, toolMsgs)
	assert.NotContains(t, page.Calls(), "MouseClick(0,0)")
}

func TestExecute_BlockedActionIsSkipped(t *testing.T) {
	page := outputtest.NewPage("p", "")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "click_at",
			`{"x":10,"y":10,"safety_decision":{"decision":"block","explanation":"buys something"}}`),
		outputtest.Text("stopped"),
	}}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: page})

	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.True(t, res.Actions[0].Skipped)
	for _, c := range page.Calls() {
		assert.NotContains(t, c, "MouseClick")
	}
}

func TestExecute_ConfirmationIsAcknowledged(t *testing.T) {
	page := outputtest.NewPage("p", "")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "click_at",
			`{"x":10,"y":10,"safety_decision":{"decision":"require_confirmation","explanation":"submits form"}}`),
		outputtest.Text("ok"),
	}}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: page})

	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.True(t, *res.Actions[0].Success)

	var toolMsg entity.Message
	for _, m := range llm.Requests()[1].Messages {
		if m.Role == entity.RoleTool {
			toolMsg = m
		}
	}
	assert.Contains(t, toolMsg.Content, "safety_acknowledgement: true")
}

func TestExecute_ActToolUsesExecutor(t *testing.T) {
	acts := &stubActs{result: &entity.ActResult{
		Success:           true,
		ActionDescription: "Sign in button",
		Actions:           []entity.CandidateAction{{Selector: "#signin", Method: entity.MethodClick}},
	}}
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "act", `{"instruction":"click sign in"}`),
		outputtest.Text("signed in"),
	}}
	uc := newUseCase(llm, acts)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", "")})

	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "#signin", res.Actions[0].Selector)
	assert.Equal(t, "Sign in button", res.Actions[0].Description)
}

func TestExecute_LLMErrorStreak(t *testing.T) {
	boom := errors.New("502 bad gateway")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{{Err: boom}, {Err: boom}, {Err: boom}}}
	uc := newUseCase(llm, nil)

	_, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", "")})

	require.Error(t, err)
	assert.True(t, entity.IsKind(err, entity.ErrorKindBackendError))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, llm.Requests(), 3)
}

func TestExecute_LLMErrorsBelowStreakRecover(t *testing.T) {
	boom := errors.New("429")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{{Err: boom}, {Err: boom}, outputtest.Text("fine")}}
	rec := &recorder{}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", ""), Observer: rec})

	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, []string{"turn 1", "screenshot 1"}, rec.events)
}

func TestExecute_StepBudgetExhausted(t *testing.T) {
	llm := &outputtest.LLM{Replies: []outputtest.Reply{
		outputtest.Call("c1", "go_back", ``),
		outputtest.Call("c2", "go_back", ``),
	}}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", MaxSteps: 2, Page: outputtest.NewPage("p", "")})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Completed)
	assert.Len(t, res.Actions, 2)
	assert.Contains(t, res.Message, "exhausted")
}

func TestExecute_ObserverStops(t *testing.T) {
	stop := errors.New("timed out")
	llm := &outputtest.LLM{Replies: []outputtest.Reply{outputtest.Call("c1", "go_back", ``)}}
	rec := &recorder{stopAt: 2, stopErr: stop}
	uc := newUseCase(llm, nil)

	res, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", ""), Observer: rec})

	assert.ErrorIs(t, err, stop)
	require.NotNil(t, res)
	assert.Len(t, res.Actions, 1)
}

func TestInterrupt(t *testing.T) {
	llm := &outputtest.LLM{}
	uc := newUseCase(llm, nil)

	assert.Error(t, uc.Interrupt())

	llm.OnChat = func(ctx context.Context, call int) error {
		require.NoError(t, uc.Interrupt())
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g", Page: outputtest.NewPage("p", "")})

	assert.True(t, entity.IsKind(err, entity.ErrorKindUserCancelled))
	assert.Error(t, uc.Interrupt())
}

func TestExecute_NoPage(t *testing.T) {
	uc := newUseCase(&outputtest.LLM{}, nil)
	_, err := uc.Execute(context.Background(), output.BackendRequest{Instruction: "g"})
	assert.True(t, entity.IsKind(err, entity.ErrorKindBackendError))
}

package prompts

import (
	"strings"
	"testing"

	"browser-pilot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSystemPrompt(t *testing.T) {
	tools := []entity.ToolDefinition{
		{Name: "navigate", Description: "Open a URL"},
		{Name: "click_at", Description: "Click a point"},
	}

	result, err := GenerateSystemPrompt(DefaultSystemPrompt, 1000, tools)
	require.NoError(t, err)

	assert.Contains(t, result, "range from 0 to 1000")
	assert.Contains(t, result, "- click_at: Click a point")
	assert.Contains(t, result, "- navigate: Open a URL")
	assert.Less(t, strings.Index(result, "click_at"), strings.Index(result, "- navigate"))
}

func TestGenerateSystemPrompt_InvalidTemplate(t *testing.T) {
	_, err := GenerateSystemPrompt(`Test {{.InvalidField}}`, 1000, nil)
	assert.Error(t, err)
}

func TestGenerateObservePrompt(t *testing.T) {
	result, err := GenerateObservePrompt(ObservePrompt, ObservePromptData{
		Instruction: "click the login button",
		Elements: []entity.UIElement{
			{ID: "ui-0000", Type: "button", Text: "Log in", Selector: "#login"},
			{ID: "ui-0001", Type: "link", AriaLabel: "Help", Selector: "a.help"},
		},
		DOM: "<body><button id=\"login\">Log in</button></body>",
	})
	require.NoError(t, err)

	assert.Contains(t, result, "Instruction: click the login button")
	assert.Contains(t, result, `- ui-0000 [button] "Log in" -> #login`)
	assert.Contains(t, result, `- ui-0001 [link] "Help" -> a.help`)
	assert.Contains(t, result, "Page markup (cleaned):")
}

func TestGenerateObservePrompt_NoDOM(t *testing.T) {
	result, err := GenerateObservePrompt(ObservePrompt, ObservePromptData{Instruction: "scroll"})
	require.NoError(t, err)
	assert.NotContains(t, result, "Page markup")
}

package rod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func TestParseUIElements(t *testing.T) {
	res := gson.New([]any{
		map[string]any{"type": "button", "text": " Search ", "aria": "", "role": "", "selector": "#go"},
		map[string]any{"type": "input", "text": "", "aria": "Query", "role": "searchbox", "selector": "body > form:nth-of-type(1) > input:nth-of-type(1)"},
		map[string]any{"type": "link", "text": "dup", "selector": "#go"},
		map[string]any{"type": "link", "text": "no selector", "selector": " "},
	})

	elements := parseUIElements(res)

	require.Len(t, elements, 2)
	assert.Equal(t, "ui-0000", elements[0].ID)
	assert.Equal(t, "button", elements[0].Type)
	assert.Equal(t, "Search", elements[0].Text)
	assert.Equal(t, "Search", elements[0].AriaLabel, "aria label falls back to text")
	assert.Equal(t, "#go", elements[0].Selector)

	assert.Equal(t, "ui-0001", elements[1].ID)
	assert.Equal(t, "Query", elements[1].AriaLabel)
	assert.Equal(t, "searchbox", elements[1].Role)
}

func TestParseUIElements_NotAnArray(t *testing.T) {
	assert.Empty(t, parseUIElements(gson.New(map[string]any{"a": 1})))
	assert.Empty(t, parseUIElements(gson.JSON{}))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", " "))
}

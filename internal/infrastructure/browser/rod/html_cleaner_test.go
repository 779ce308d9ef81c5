package rod

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func clean(t *testing.T, raw string) string {
	t.Helper()
	out, err := CleanHTML(raw, nil)
	require.NoError(t, err)
	return out
}

func TestCleanHTML_RemovesScriptStyle(t *testing.T) {
	out := clean(t, `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
</body>`)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<style")
	assert.Contains(t, out, `id="main"`)
}

func TestCleanHTML_RemovesComments(t *testing.T) {
	out := clean(t, `<body><!-- comment --><div>Text</div></body>`)

	assert.NotContains(t, out, "comment")
	assert.Contains(t, out, "<div>Text</div>")
}

func TestCleanHTML_FiltersAttributes(t *testing.T) {
	out := clean(t, `
<body>
    <a href="https://example.com" class="link" id="x" data-x="1" aria-hidden="true" onclick="go()">Go</a>
    <button aria-label="Search" data-testid="search-btn" style="color:red">S</button>
</body>`)

	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, `class="link"`)
	assert.Contains(t, out, `id="x"`)
	assert.NotContains(t, out, "data-x")
	assert.NotContains(t, out, "aria-hidden")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "style=")

	assert.Contains(t, out, `aria-label="Search"`)
	assert.Contains(t, out, `data-testid="search-btn"`)
}

func TestCleanHTML_RemovesMediaGarbageAttributes(t *testing.T) {
	out := clean(t, `<body><img src="x.jpg" srcset="a,b,c" sizes="100w" loading="lazy" decoding="async"></body>`)

	for _, attr := range []string{"srcset=", "sizes=", "loading=", "decoding="} {
		assert.NotContains(t, out, attr)
	}
	assert.Contains(t, out, `src="x.jpg"`)
}

func TestCleanHTML_RemovesHeadMetaLink(t *testing.T) {
	out := clean(t, `
<html>
<head>
    <meta charset="utf-8">
    <link rel="stylesheet" href="x.css">
    <title>T</title>
</head>
<body>
    <p>Hi</p>
</body>
</html>`)

	assert.NotContains(t, out, "<head")
	assert.NotContains(t, out, "<meta")
	assert.NotContains(t, out, "<link")
	assert.True(t, strings.HasPrefix(out, "<body>"))
	assert.Contains(t, out, "<p>Hi</p>")
}

func TestCleanHTML_Truncation(t *testing.T) {
	var big strings.Builder
	big.WriteString("<body>")
	for i := 0; i < 20000; i++ {
		big.WriteString("<div>test</div>")
	}
	big.WriteString("</body>")

	out := clean(t, big.String())

	assert.Len(t, out, DefaultCleanConfig.MaxOutputSize+len(truncatedMarker))
	assert.True(t, strings.HasSuffix(out, truncatedMarker))
}

func TestCleanHTML_CustomFilter(t *testing.T) {
	cfg := DefaultCleanConfig
	cfg.CustomAttrFilter = func(attr html.Attribute) bool { return attr.Key == "class" }

	out, err := CleanHTML(`<body><div class="a" id="b">x</div></body>`, &cfg)

	require.NoError(t, err)
	assert.Equal(t, `<body><div id="b">x</div></body>`, out)
}

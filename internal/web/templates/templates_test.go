package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetguard/internal/core"
	"github.com/JonMunkholm/sheetguard/internal/store"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestIndex(t *testing.T) {
	body := renderString(t, Index([]store.Entry{
		{ID: "reports.json", Name: "reports.json"},
		{ID: `x"><script>`, Name: "<b>odd</b>"},
	}, 1<<20))

	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
	assert.Contains(t, body, "<title>Validate a spreadsheet</title>")
	assert.Contains(t, body, `<form method="post" action="/validate" enctype="multipart/form-data">`)
	assert.Contains(t, body, `<option value="reports.json">reports.json</option>`)
	assert.Contains(t, body, "&lt;b&gt;odd&lt;/b&gt;")
	assert.NotContains(t, body, `x"><script>`)
	assert.Contains(t, body, "Up to 1 MB.")
	assert.Contains(t, body, `<a href="/">Validate another file</a>`)
}

func TestIndex_NoEntriesNoLimit(t *testing.T) {
	body := renderString(t, Index(nil, 0))

	assert.NotContains(t, body, `<select name="schema">`)
	assert.NotContains(t, body, "Up to")
	assert.Contains(t, body, `<textarea name="schema_json"`)
}

func TestResult(t *testing.T) {
	body := renderString(t, Result(core.Result{
		File:    "report_2023.csv",
		Success: false,
		Diagnostics: []string{
			"Worksheet: Sheet1",
			`Invalid data type in column A, row 2: Expected type "number", but found "string" (<b>) at A2`,
		},
	}))

	assert.Contains(t, body, "report_2023.csv: ")
	assert.Contains(t, body, `<strong class="fail">failed</strong> with 1 problem`)
	assert.Contains(t, body, `<div class="sheet">Worksheet Sheet1</div>`)
	assert.Contains(t, body, "(&lt;b&gt;) at A2</li>")
}

func TestResult_Passed(t *testing.T) {
	body := renderString(t, Result(core.Result{
		File:        "report_2023.csv",
		Success:     true,
		Diagnostics: []string{"Worksheet: Sheet1"},
	}))

	assert.Contains(t, body, `<strong class="ok">passed</strong>`)
	assert.NotContains(t, body, `<ul class="diag">`)
}

func TestErrorPage(t *testing.T) {
	body := renderString(t, ErrorPage(core.MapError(core.ErrMissingSchema)))

	assert.Contains(t, body, "<h1>Something went wrong</h1>")
	assert.Contains(t, body, `<p class="fail">No schema was supplied</p>`)
	assert.Contains(t, body, "<p>Choose a stored schema or paste a schema document</p>")
	assert.Contains(t, body, `<p class="muted">Code: FILE003</p>`)
}

func TestErrorPage_NoAction(t *testing.T) {
	body := renderString(t, ErrorPage(core.UserMessage{Message: "Oops", Code: "GEN001"}))

	assert.Contains(t, body, `<p class="fail">Oops</p><p class="muted">Code: GEN001</p>`)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "32 MB", FormatBytes(32<<20))
	assert.Equal(t, "2 GB", FormatBytes(2<<30))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "0 problems", Plural(0, "problem"))
	assert.Equal(t, "1 problem", Plural(1, "problem"))
	assert.Equal(t, "3 problems", Plural(3, "problem"))
}

package personas

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidatesFenceInvariance(t *testing.T) {
	body := `[{"name":"Maya","age":31,"occupation":"Designer","location":"Austin"}]`
	cases := map[string]string{
		"json fence":     "```json\n" + body + "\n```",
		"untagged fence": "```\n" + body + "\n```",
		"inline fence":   "```json " + body + "```",
		"unterminated":   "```json\n" + body,
	}

	want, err := ParseCandidates(body)
	require.NoError(t, err)

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseCandidates(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseCandidatesRepairsTrailingComma(t *testing.T) {
	got, err := ParseCandidates("[{\"name\":\"Test\",\"age\":30,}]")
	require.NoError(t, err)
	require.Len(t, got, 1)

	obj, ok := got[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Test", obj["name"])
	assert.Equal(t, float64(30), obj["age"])
}

func TestParseCandidatesToleratesProse(t *testing.T) {
	raw := "Sure! Here are the personas you asked for:\n[{\"name\":\"A\"},{\"name\":\"B\"}]\nLet me know if you need more."
	got, err := ParseCandidates(raw)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseCandidatesIgnoresBracesInLeadingProse(t *testing.T) {
	got, err := ParseCandidates("Here are the personas (format {name, age}):\n[{\"name\":\"Test\",\"age\":30}]")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Test", got[0].(map[string]any)["name"])
}

func TestParseCandidatesFallsBackToObjectSpan(t *testing.T) {
	// the bracketed note is not JSON, the object after it is
	got, err := ParseCandidates("Result [draft]: {\"name\":\"Solo\",\"age\":40}")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Solo", got[0].(map[string]any)["name"])
}

func TestParseCandidatesWrapsSingleObject(t *testing.T) {
	got, err := ParseCandidates(`{"name":"Solo","psychographics":{"interests":["a","b"]}}`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Solo", got[0].(map[string]any)["name"])
}

func TestParseCandidatesUnwrapsPersonasKey(t *testing.T) {
	got, err := ParseCandidates(`{"personas":[{"name":"A"},{"name":"B"},{"name":"C"}]}`)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestParseCandidatesFailures(t *testing.T) {
	cases := map[string]string{
		"empty":   "   ",
		"no json": "I cannot help with that.",
		"scalar":  "[1, 2",
		"broken":  `[{"name": "A" "age": 3}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCandidates(raw)
			require.Error(t, err)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestParseErrorTruncatesSnippet(t *testing.T) {
	raw := "[" + string(make([]byte, 1000)) + "]"
	_, err := ParseCandidates(raw)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.LessOrEqual(t, len(parseErr.Snippet), snippetLimit+3)
}

func TestParseErrorSnippetKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes, so the byte limit lands inside a rune
	raw := "x" + strings.Repeat("é", snippetLimit)
	_, err := ParseCandidates(raw)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.True(t, utf8.ValidString(parseErr.Snippet))
	assert.True(t, strings.HasSuffix(parseErr.Snippet, "é..."))
	assert.LessOrEqual(t, len(parseErr.Snippet), snippetLimit+3)
}

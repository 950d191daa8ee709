package personas

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)

	errEmptyResponse = errors.New("empty response")
	errNoJSON        = errors.New("no json array or object found")
)

// ParseCandidates extracts loosely typed persona candidates from raw model
// output. Markdown fences and surrounding prose are tolerated; a single
// trailing-comma repair is attempted before giving up.
func ParseCandidates(raw string) ([]any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, newParseError(raw, errEmptyResponse)
	}

	text = stripFence(text)
	spans := jsonSpans(text)
	if len(spans) == 0 {
		return nil, newParseError(raw, errNoJSON)
	}

	var (
		decoded  any
		firstErr error
	)
	for _, span := range spans {
		v, err := decodeLenient(span)
		if err == nil {
			decoded, firstErr = v, nil
			break
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, newParseError(raw, firstErr)
	}

	switch v := decoded.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if wrapped, ok := v["personas"].([]any); ok {
			return wrapped, nil
		}
		return []any{v}, nil
	default:
		return nil, newParseError(raw, fmt.Errorf("expected array or object, got %T", decoded))
	}
}

func stripFence(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// unterminated fence
	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

// decodeLenient decodes span, retrying once with trailing commas removed.
func decodeLenient(span string) (any, error) {
	var decoded any
	if err := json.Unmarshal([]byte(span), &decoded); err != nil {
		repaired := trailingComma.ReplaceAllString(span, "$1")
		if retryErr := json.Unmarshal([]byte(repaired), &decoded); retryErr != nil {
			return nil, retryErr
		}
	}
	return decoded, nil
}

// jsonSpans returns the candidate payloads in decode order. The span from the
// first '[' to the last ']' comes first unless it sits wholly inside the
// outermost object, as in {"personas":[...]} or a lone persona with list fields.
func jsonSpans(text string) []string {
	arrStart, arrEnd := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
	objStart, objEnd := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	hasArray := arrStart >= 0 && arrEnd > arrStart
	hasObject := objStart >= 0 && objEnd > objStart

	switch {
	case hasArray && hasObject:
		array, object := text[arrStart:arrEnd+1], text[objStart:objEnd+1]
		if objStart < arrStart && arrEnd < objEnd {
			return []string{object, array}
		}
		return []string{array, object}
	case hasArray:
		return []string{text[arrStart : arrEnd+1]}
	case hasObject:
		return []string{text[objStart : objEnd+1]}
	}
	return nil
}

package validators

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

type themeRequest struct {
	Theme    string `json:"theme" validate:"required,oneof=light dark system"`
	Language string `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
}

func postBody(body string) (*httptest.ResponseRecorder, *http.Request) {
	return httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyValidatesStruct(t *testing.T) {
	w, r := postBody(`{"theme":"neon","language":"x"}`)
	var req themeRequest
	details := validationDetails(t, DecodeJSONBody(w, r, &req))

	if details["theme"] != "must be one of: light, dark, system" {
		t.Fatalf("unexpected theme message %q", details["theme"])
	}
	if details["language"] != "must be at least 2" {
		t.Fatalf("unexpected language message %q", details["language"])
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"unknown field":  `{"theme":"dark","font":"serif"}`,
		"trailing value": `{"theme":"dark"} {"theme":"light"}`,
		"too large":      `{"theme":"` + strings.Repeat("a", int(MaxBodyBytes)) + `"}`,
	}
	for name, body := range cases {
		w, r := postBody(body)
		var req themeRequest
		err := DecodeJSONBody(w, r, &req)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	w, r := postBody(`{"theme":"dark","language":"es"}`)
	var req themeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Theme != "dark" || req.Language != "es" {
		t.Fatalf("unexpected decode %+v", req)
	}
}

func TestDecodeJSONObjectKeepsNumbers(t *testing.T) {
	w, r := postBody(`{"age":34,"name":"Ana"}`)
	fields, err := DecodeJSONObject(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := fields["age"].(json.Number); !ok || n.String() != "34" {
		t.Fatalf("expected json.Number 34, got %#v", fields["age"])
	}

	w, r = postBody(`[1,2]`)
	if _, err := DecodeJSONObject(w, r); err == nil {
		t.Fatalf("expected error for non-object body")
	}
}

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 20, false},
		{"limit=5", 5, false},
		{"limit=abc", 0, true},
		{"limit=0", 0, true},
		{"limit=101", 0, true},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		got, err := ParseQueryInt(r, "limit", 20, 1, 100)
		if tc.wantErr != (err != nil) || got != tc.want {
			t.Errorf("query %q: got %d err %v", tc.query, got, err)
		}
	}
}

func TestParseQueryStringEnforcesLength(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?cursor=abcdef", nil)
	if _, err := ParseQueryString(r, "cursor", 3); err == nil {
		t.Fatalf("expected length error")
	}
	value, err := ParseQueryString(r, "cursor", 10)
	if err != nil || value != "abcdef" {
		t.Fatalf("unexpected result %q %v", value, err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  brief  ", 0, "brief"},
		{"line one\nline\ttwo\x00\x07", 0, "line one\nline\ttwo"},
		{"ñandúes", 3, "ñan"},
		{"abc   def", 4, "abc"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

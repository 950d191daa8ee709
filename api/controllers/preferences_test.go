package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/personacraft-backend/internal/preferences"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
)

type testPreferencesService struct {
	getFn    func(ctx context.Context, userID string) (*preferences.Preferences, error)
	updateFn func(ctx context.Context, identity users.Identity, input preferences.UpdateInput) (*preferences.Preferences, error)
}

func (s *testPreferencesService) Get(ctx context.Context, userID string) (*preferences.Preferences, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return &preferences.Preferences{Theme: enums.ThemeSystem, Language: "en", Autosave: true}, nil
}

func (s *testPreferencesService) Update(ctx context.Context, identity users.Identity, input preferences.UpdateInput) (*preferences.Preferences, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, identity, input)
	}
	return nil, nil
}

func (s *testPreferencesService) GenerationCount(context.Context, string) (int, error) {
	return 0, nil
}

func (s *testPreferencesService) ReserveGeneration(context.Context, string, int) (bool, error) {
	return true, nil
}

func (s *testPreferencesService) ReleaseGeneration(context.Context, string) error {
	return nil
}

func TestGetPreferencesReturnsDefaults(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/preferences", nil), "user-1")
	resp := httptest.NewRecorder()
	GetPreferences(&testPreferencesService{}, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"theme":"system"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestUpdatePreferencesForwardsPartialInput(t *testing.T) {
	var captured preferences.UpdateInput
	svc := &testPreferencesService{updateFn: func(ctx context.Context, identity users.Identity, input preferences.UpdateInput) (*preferences.Preferences, error) {
		if identity.ID != "user-1" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		captured = input
		return &preferences.Preferences{Theme: enums.ThemeDark, Language: "en", Autosave: true}, nil
	}}

	req := authed(httptest.NewRequest(http.MethodPut, "/api/v1/preferences", strings.NewReader(`{"theme":"dark"}`)), "user-1")
	resp := httptest.NewRecorder()
	UpdatePreferences(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Theme == nil || *captured.Theme != "dark" {
		t.Fatalf("theme not forwarded: %+v", captured)
	}
	if captured.Language != nil || captured.Autosave != nil {
		t.Fatalf("unset fields must stay nil: %+v", captured)
	}
}

func TestUpdatePreferencesRejectsUnknownTheme(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodPut, "/api/v1/preferences", strings.NewReader(`{"theme":"neon"}`)), "user-1")
	resp := httptest.NewRecorder()
	UpdatePreferences(&testPreferencesService{}, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

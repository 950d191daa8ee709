package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/personacraft-backend/internal/enrichment"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/gemini"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

const twoPersonas = "```json\n[" +
	`{"name":"Maya","age":31,"occupation":"Designer","location":"Austin, TX","culturalData":{"music":["Model Pick"]}},` +
	`{"name":"Leo","age":44,"occupation":"Teacher","location":"Denver, CO"},` +
	`{"name":"","age":20,"occupation":"Student","location":"Boston"}` +
	"]\n```"

type fakeLLM struct {
	requests []gemini.Request
	reply    string
	err      error
}

func (f *fakeLLM) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type fakeCultural struct {
	fetch   func(enrichment.Profile) (*enrichment.Result, error)
	enrich  func([]types.Persona) ([]types.Persona, error)
	fetched []enrichment.Profile
}

func (f *fakeCultural) FetchForProfile(_ context.Context, profile enrichment.Profile) (*enrichment.Result, error) {
	f.fetched = append(f.fetched, profile)
	return f.fetch(profile)
}

func (f *fakeCultural) EnrichPersonas(_ context.Context, list []types.Persona) ([]types.Persona, error) {
	if f.enrich == nil {
		return list, nil
	}
	return f.enrich(list)
}

type fakeStore struct {
	saved  []types.Persona
	source enums.PersonaSource
	err    error
}

func (f *fakeStore) SaveGenerated(_ context.Context, identity users.Identity, list []types.Persona, source enums.PersonaSource) ([]types.Persona, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.source = source
	out := make([]types.Persona, len(list))
	for i, p := range list {
		p.UserID = identity.ID
		out[i] = p
	}
	f.saved = out
	return out, nil
}

type fakeUsers struct {
	plan models.Plan
}

func (f *fakeUsers) Ensure(_ context.Context, identity users.Identity) (*models.User, error) {
	return &models.User{ID: identity.ID, PlanID: f.plan.ID, Plan: f.plan}, nil
}

type fakeUsage struct {
	used       int
	increments int
	releases   int
	limits     []int
	reserveErr error
}

func (f *fakeUsage) GenerationCount(context.Context, string) (int, error) { return f.used, nil }

func (f *fakeUsage) ReserveGeneration(_ context.Context, _ string, limit int) (bool, error) {
	f.limits = append(f.limits, limit)
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if limit > 0 && f.used >= limit {
		return false, nil
	}
	f.used++
	f.increments++
	return true, nil
}

func (f *fakeUsage) ReleaseGeneration(context.Context, string) error {
	f.used--
	f.releases++
	return nil
}

type harness struct {
	orch     *Orchestrator
	llm      *fakeLLM
	cultural *fakeCultural
	store    *fakeStore
	users    *fakeUsers
	usage    *fakeUsage
}

func providerResult() *enrichment.Result {
	data := types.EmptyCulturalData()
	data.Music = []string{"Provider Artist"}
	data.SocialMedia = []string{"Instagram"}
	return &enrichment.Result{Data: data, Local: []string{types.CategorySocialMedia}}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		llm: &fakeLLM{reply: twoPersonas},
		cultural: &fakeCultural{fetch: func(enrichment.Profile) (*enrichment.Result, error) {
			return providerResult(), nil
		}},
		store: &fakeStore{},
		users: &fakeUsers{plan: models.Plan{ID: enums.PlanFree, MonthlyGenerationLimit: 10, MaxPersonasPerGeneration: 3}},
		usage: &fakeUsage{},
	}
	orch, err := NewOrchestrator(Params{
		LLM:       h.llm,
		Cultural:  h.cultural,
		Store:     h.store,
		Users:     h.users,
		Usage:     h.usage,
		Validator: personas.NewValidator(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func TestGenerateEnrichedPath(t *testing.T) {
	h := newHarness(t)

	resp, err := h.orch.Generate(context.Background(), Request{
		Identity: users.Identity{ID: "user_1"},
		Brief:    "Two personas for 25-34 year old runners in Austin who care about sustainability",
	})
	require.NoError(t, err)

	assert.Equal(t, []State{StateDrafting, StateEnriching, StatePersisting, StateDone}, resp.Trace)
	assert.True(t, resp.Success)
	assert.Equal(t, types.GenerationSources{LLM: true, Enrichment: true}, resp.Sources)
	require.Len(t, resp.Personas, 2)
	assert.Equal(t, "user_1", resp.Personas[0].UserID)
	assert.Equal(t, enums.PersonaSourceEnriched, h.store.source)
	assert.Equal(t, 1, h.usage.increments)

	require.Len(t, h.cultural.fetched, 1)
	assert.Equal(t, 29, h.cultural.fetched[0].Age)
	assert.Equal(t, "Austin", h.cultural.fetched[0].Location)
	assert.Contains(t, h.cultural.fetched[0].Interests, "fitness")
	assert.Contains(t, h.cultural.fetched[0].Values, "sustainability")

	require.Len(t, h.llm.requests, 1)
	prompt := h.llm.requests[0].Prompt
	assert.Contains(t, prompt, "Create 2 distinct marketing personas")
	assert.Contains(t, prompt, "- music: Provider Artist")
	assert.True(t, h.llm.requests[0].JSONOutput)
}

func TestGenerateCriticalEnrichmentFallsBackToLegacyDraft(t *testing.T) {
	h := newHarness(t)
	h.cultural.fetch = func(enrichment.Profile) (*enrichment.Result, error) {
		return nil, &enrichment.Error{Severity: enrichment.SeverityCritical, Err: errors.New("401")}
	}
	h.cultural.enrich = func([]types.Persona) ([]types.Persona, error) {
		t.Fatal("post-enrichment must not run on the legacy path")
		return nil, nil
	}

	resp, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "busy parents"})
	require.NoError(t, err)

	assert.Equal(t, []State{StateDrafting, StateFallbackDrafting, StatePersisting, StateDone}, resp.Trace)
	assert.Equal(t, types.GenerationSources{LLM: true, Enrichment: false}, resp.Sources)
	assert.Equal(t, enums.PersonaSourceLegacy, h.store.source)
	assert.NotContains(t, h.llm.requests[0].Prompt, "taste signals")
	for _, p := range resp.Personas {
		for _, category := range types.CulturalCategories {
			assert.NotNil(t, p.CulturalData.Get(category))
		}
	}
}

func TestGeneratePostEnrichmentFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t)
	h.cultural.enrich = func(list []types.Persona) ([]types.Persona, error) {
		return list, &enrichment.Error{Severity: enrichment.SeverityCritical, Err: errors.New("down")}
	}

	resp, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "gamers"})
	require.NoError(t, err)
	assert.Len(t, resp.Personas, 2)
	assert.Equal(t, []string{"Model Pick"}, resp.Personas[0].CulturalData.Music)
}

func TestGenerateDraftingFailuresAbort(t *testing.T) {
	cases := map[string]func(h *harness){
		"llm error":         func(h *harness) { h.llm.err = errors.New("boom") },
		"unparsable":        func(h *harness) { h.llm.reply = "I can't do that" },
		"nothing validates": func(h *harness) { h.llm.reply = `[{"name":"Kid","age":12,"occupation":"x","location":"y"}]` },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			mutate(h)

			_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGeneration))
			assert.Nil(t, h.store.saved)
			assert.Zero(t, h.usage.used)
			assert.Equal(t, 1, h.usage.releases)
		})
	}
}

func TestGenerateRejectsEmptyBrief(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "  "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, h.llm.requests)
}

func TestGenerateEnforcesQuota(t *testing.T) {
	h := newHarness(t)
	h.usage.used = 10

	_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuotaExceeded))
	assert.Empty(t, h.llm.requests)

	var quotaErr *pkgerrors.Error
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 10, quotaErr.Details().(map[string]any)["used"])
	assert.Zero(t, h.usage.releases)

	h.users.plan.MonthlyGenerationLimit = 0
	_, err = h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 0}, h.usage.limits)
}

func TestGenerateFailureReleasesReservedQuota(t *testing.T) {
	h := newHarness(t)
	h.llm.err = errors.New("model unavailable")

	_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
	require.Error(t, err)
	assert.Equal(t, 1, h.usage.increments)
	assert.Equal(t, 1, h.usage.releases)
	assert.Zero(t, h.usage.used)
}

func TestGenerateReserveErrorStopsBeforeDrafting(t *testing.T) {
	h := newHarness(t)
	h.usage.reserveErr = pkgerrors.New(pkgerrors.CodeDependency, "db down")

	_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, h.llm.requests)
	assert.Zero(t, h.usage.releases)
}

func TestGeneratePersistErrorPropagates(t *testing.T) {
	h := newHarness(t)
	h.store.err = pkgerrors.New(pkgerrors.CodeReconnect, "user missing")

	_, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReconnect))
}

func TestGenerateTruncatesToRequestedCount(t *testing.T) {
	h := newHarness(t)

	resp, err := h.orch.Generate(context.Background(), Request{Identity: users.Identity{ID: "user_1"}, Brief: "anything", Count: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Personas, 1)
	assert.True(t, strings.Contains(h.llm.requests[0].Prompt, "Return exactly 1 personas"))
}

func TestResolveCount(t *testing.T) {
	h := newHarness(t)
	plan := models.Plan{MaxPersonasPerGeneration: 5}

	assert.Equal(t, 3, h.orch.resolveCount(0, 0, plan))
	assert.Equal(t, 4, h.orch.resolveCount(0, 4, plan))
	assert.Equal(t, 2, h.orch.resolveCount(2, 4, plan))
	assert.Equal(t, 5, h.orch.resolveCount(9, 0, plan))
	assert.Equal(t, 10, h.orch.resolveCount(50, 0, models.Plan{}))
}

package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/personacraft-backend/internal/enrichment"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/gemini"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/metrics"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

// State is a step of one generation request.
type State string

const (
	StateDrafting         State = "DRAFTING"
	StateEnriching        State = "ENRICHING"
	StateFallbackDrafting State = "FALLBACK_DRAFTING"
	StatePersisting       State = "PERSISTING"
	StateDone             State = "DONE"
)

const (
	pathEnriched = "enriched"
	pathLegacy   = "legacy"
)

type llmClient interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

type culturalSource interface {
	FetchForProfile(ctx context.Context, profile enrichment.Profile) (*enrichment.Result, error)
	EnrichPersonas(ctx context.Context, list []types.Persona) ([]types.Persona, error)
}

type personaStore interface {
	SaveGenerated(ctx context.Context, identity users.Identity, list []types.Persona, source enums.PersonaSource) ([]types.Persona, error)
}

type userEnsurer interface {
	Ensure(ctx context.Context, identity users.Identity) (*models.User, error)
}

type usageCounter interface {
	GenerationCount(ctx context.Context, userID string) (int, error)
	ReserveGeneration(ctx context.Context, userID string, limit int) (bool, error)
	ReleaseGeneration(ctx context.Context, userID string) error
}

// Request is one generation call from an authenticated user.
type Request struct {
	Identity users.Identity
	Brief    string
	Count    int
	Profile  *ProfileOverrides
}

// Response is the generation endpoint payload.
type Response struct {
	Success   bool                    `json:"success"`
	Personas  []types.Persona         `json:"personas"`
	Sources   types.GenerationSources `json:"sources"`
	Timestamp time.Time               `json:"timestamp"`
	Trace     []State                 `json:"-"`
}

type Params struct {
	LLM          llmClient
	Cultural     culturalSource
	Store        personaStore
	Users        userEnsurer
	Usage        usageCounter
	Validator    *personas.Validator
	Logger       *logger.Logger
	Metrics      *metrics.Pipeline
	DefaultCount int
	MaxCount     int
	Temperature  float64
	Now          func() time.Time
}

// Orchestrator sequences brief -> draft -> validate -> enrich -> persist.
type Orchestrator struct {
	llm          llmClient
	cultural     culturalSource
	store        personaStore
	users        userEnsurer
	usage        usageCounter
	validator    *personas.Validator
	logg         *logger.Logger
	metrics      *metrics.Pipeline
	defaultCount int
	maxCount     int
	temperature  float64
	now          func() time.Time
}

func NewOrchestrator(params Params) (*Orchestrator, error) {
	switch {
	case params.LLM == nil:
		return nil, errors.New("llm client required")
	case params.Cultural == nil:
		return nil, errors.New("cultural source required")
	case params.Store == nil:
		return nil, errors.New("persona store required")
	case params.Users == nil:
		return nil, errors.New("users service required")
	case params.Usage == nil:
		return nil, errors.New("usage counter required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	o := &Orchestrator{
		llm:          params.LLM,
		cultural:     params.Cultural,
		store:        params.Store,
		users:        params.Users,
		usage:        params.Usage,
		validator:    params.Validator,
		logg:         params.Logger,
		metrics:      params.Metrics,
		defaultCount: params.DefaultCount,
		maxCount:     params.MaxCount,
		temperature:  params.Temperature,
		now:          params.Now,
	}
	if o.validator == nil {
		o.validator = personas.NewValidator(nil)
	}
	if o.defaultCount <= 0 {
		o.defaultCount = 3
	}
	if o.maxCount <= 0 {
		o.maxCount = 10
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// run carries the per-request trace.
type run struct {
	ctx   context.Context
	trace []State
	path  string
}

func (o *Orchestrator) enter(r *run, state State) {
	r.trace = append(r.trace, state)
	r.ctx = o.logg.WithGenerationState(r.ctx, string(state))
	o.logg.Info(o.logg.WithField(r.ctx, "state", string(state)), "generation.state")
}

// Generate runs one request. Drafting failures abort with CodeGeneration;
// enrichment failures only reduce richness.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (resp *Response, err error) {
	brief := strings.TrimSpace(req.Brief)
	if brief == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brief is required")
	}
	started := o.now()
	r := &run{ctx: o.logg.WithUserID(ctx, req.Identity.ID), path: pathEnriched}
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		o.metrics.ObserveGeneration(r.path, outcome, o.now().Sub(started))
	}()

	user, err := o.users.Ensure(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	if err := o.reserveQuota(ctx, user); err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if releaseErr := o.usage.ReleaseGeneration(context.WithoutCancel(ctx), user.ID); releaseErr != nil {
			o.logg.Error(r.ctx, "generation.usage_release_failed", releaseErr)
		}
	}()

	profile := ExtractProfile(brief).Apply(req.Profile)
	count := o.resolveCount(req.Count, profile.Count, user.Plan)

	o.enter(r, StateDrafting)
	fetched, fetchErr := o.cultural.FetchForProfile(ctx, enrichment.Profile{
		Age:       profile.RepresentativeAge(),
		Location:  profile.Location,
		Interests: profile.Interests,
		Values:    profile.Values,
	})
	var cultural *types.CulturalData
	if fetchErr != nil {
		// Only critical failures reach here; partial ones are filled locally.
		r.path = pathLegacy
		o.logg.Warn(o.logg.WithField(r.ctx, "error", fetchErr.Error()), "generation.enrichment_abandoned")
		o.enter(r, StateFallbackDrafting)
	} else {
		cultural = &fetched.Data
		o.enter(r, StateEnriching)
	}

	drafted, err := o.draft(r, brief, profile, count, cultural)
	if err != nil {
		return nil, err
	}

	sources := types.GenerationSources{LLM: true}
	source := enums.PersonaSourceLegacy
	if r.path == pathEnriched {
		source = enums.PersonaSourceEnriched
		sources.Enrichment = fetched.FromProvider()
		enriched, enrichErr := o.cultural.EnrichPersonas(ctx, drafted)
		if enrichErr != nil {
			o.logg.Warn(o.logg.WithField(r.ctx, "error", enrichErr.Error()), "generation.post_enrichment_skipped")
		} else {
			drafted = enriched
		}
	}

	o.enter(r, StatePersisting)
	stored, err := o.store.SaveGenerated(ctx, req.Identity, drafted, source)
	if err != nil {
		o.logg.Error(r.ctx, "generation.persist_failed", err)
		return nil, err
	}

	o.enter(r, StateDone)
	return &Response{
		Success:   true,
		Personas:  stored,
		Sources:   sources,
		Timestamp: o.now().UTC(),
		Trace:     r.trace,
	}, nil
}

// draft calls the model, then parses and validates its output.
func (o *Orchestrator) draft(r *run, brief string, profile Profile, count int, cultural *types.CulturalData) ([]types.Persona, error) {
	raw, err := o.llm.Generate(r.ctx, BuildPrompt(brief, profile, count, o.temperature, cultural))
	if err != nil {
		o.logg.Error(r.ctx, "generation.llm_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGeneration, err, "draft personas")
	}

	candidates, err := personas.ParseCandidates(raw)
	if err != nil {
		o.logg.Error(r.ctx, "generation.parse_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGeneration, err, "parse personas")
	}

	result, err := o.validator.Validate(candidates, brief)
	if err != nil {
		o.logg.Error(r.ctx, "generation.validation_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGeneration, err, "validate personas")
	}
	if len(result.Issues) > 0 {
		o.logg.Warn(o.logg.WithFields(r.ctx, map[string]any{
			"rejected": len(result.Issues),
			"issues":   result.Issues,
		}), "generation.candidates_rejected")
	}

	valid := result.Personas
	if len(valid) > count {
		valid = valid[:count]
	}
	return valid, nil
}

// reserveQuota counts this request against the plan's monthly limit before
// any model call. The counter check and bump are one statement.
func (o *Orchestrator) reserveQuota(ctx context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "user required")
	}
	limit := 0
	if user.Plan.ID != "" && !user.Plan.Unlimited() {
		limit = user.Plan.MonthlyGenerationLimit
	}
	ok, err := o.usage.ReserveGeneration(ctx, user.ID, limit)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	details := map[string]any{
		"plan":  user.Plan.ID,
		"limit": limit,
	}
	if used, countErr := o.usage.GenerationCount(ctx, user.ID); countErr == nil {
		details["used"] = used
	}
	return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly generation limit reached").WithDetails(details)
}

// resolveCount prefers the explicit count, then the brief, then the default,
// and caps by plan and configuration.
func (o *Orchestrator) resolveCount(requested, extracted int, plan models.Plan) int {
	count := o.defaultCount
	switch {
	case requested > 0:
		count = requested
	case extracted > 0:
		count = extracted
	}
	limit := o.maxCount
	if plan.MaxPersonasPerGeneration > 0 && plan.MaxPersonasPerGeneration < limit {
		limit = plan.MaxPersonasPerGeneration
	}
	if count > limit {
		count = limit
	}
	return count
}

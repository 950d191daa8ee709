package enrichment

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/metrics"
	"github.com/angelmondragon/personacraft-backend/pkg/qloo"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

const (
	defaultTake     = 5
	maxInterestTags = 10
)

// categoryEntityTypes maps cultural categories onto provider entity types.
// Several categories share a type; travel starts at destinations and falls
// back through entitySubstitutes.
var categoryEntityTypes = map[string]string{
	types.CategoryMusic:       qloo.EntityArtist,
	types.CategoryMovies:      qloo.EntityMovie,
	types.CategoryTV:          qloo.EntityTVShow,
	types.CategoryBooks:       qloo.EntityBook,
	types.CategoryBrands:      qloo.EntityBrand,
	types.CategoryFashion:     qloo.EntityBrand,
	types.CategoryBeauty:      qloo.EntityBrand,
	types.CategoryRestaurants: qloo.EntityPlace,
	types.CategoryFood:        qloo.EntityPlace,
	types.CategoryTravel:      qloo.EntityDestination,
}

// entitySubstitutes lists the nearest type accepted for demographic-scoped
// queries when the provider rejects the preferred one.
var entitySubstitutes = map[string]string{
	qloo.EntityDestination: qloo.EntityPlace,
}

var errNoSignal = errors.New("provider returned no entities")

type insightsClient interface {
	Insights(ctx context.Context, q qloo.InsightsQuery) ([]qloo.Entity, error)
}

// Profile carries the demographic and interest signals for one lookup.
type Profile struct {
	Age        int
	Occupation string
	Location   string
	Interests  []string
	Values     []string
}

// InterestTags converts interests, then values, into deduplicated provider
// tag ids, capped at maxInterestTags.
func (p Profile) InterestTags() []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, keyword := range append(append([]string{}, p.Interests...), p.Values...) {
		tag := qloo.KeywordTag(keyword)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxInterestTags {
			break
		}
	}
	return tags
}

// Result is a complete eleven-category payload.
type Result struct {
	Data types.CulturalData
	// Local lists categories produced by the local generator, including
	// social media which is always local.
	Local  []string
	Issues []*Error
}

// FromProvider reports whether at least one category came from the provider.
func (r *Result) FromProvider() bool {
	return r != nil && len(r.Local) < len(types.CulturalCategories)
}

type AdapterParams struct {
	Client      insightsClient
	Logger      *logger.Logger
	Metrics     *metrics.Pipeline
	Take        int
	Concurrency int
}

// Adapter fetches cultural data from the taste provider with per-category
// local fallback.
type Adapter struct {
	client      insightsClient
	logg        *logger.Logger
	metrics     *metrics.Pipeline
	take        int
	concurrency int
}

func NewAdapter(params AdapterParams) (*Adapter, error) {
	if params.Logger == nil {
		return nil, errors.New("enrichment logger required")
	}
	take := params.Take
	if take <= 0 {
		take = defaultTake
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Adapter{
		client:      params.Client,
		logg:        params.Logger,
		metrics:     params.Metrics,
		take:        take,
		concurrency: concurrency,
	}, nil
}

// FetchForProfile gathers cultural data for a profile. Partial failures are
// filled locally and reported in Result.Issues; a critical failure returns
// an *Error with SeverityCritical and no result.
func (a *Adapter) FetchForProfile(ctx context.Context, profile Profile) (*Result, error) {
	if a.client == nil {
		return nil, a.critical(ctx, &Error{Severity: SeverityCritical, Err: errProviderDisabled})
	}

	categories := providerCategories()
	values := make([][]string, len(categories))
	issues := make([]*Error, len(categories))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, category := range categories {
		group.Go(func() error {
			found, err := a.query(groupCtx, category, profile)
			if err == nil {
				values[i] = found
				return nil
			}
			classified := Classify(category, err)
			if classified.Severity == SeverityCritical {
				return classified
			}
			issues[i] = classified
			values[i] = LocalCategory(category, profile.Age, profile.Occupation, a.take)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, a.critical(ctx, Classify("", err))
	}

	result := &Result{Data: types.EmptyCulturalData()}
	for i, category := range categories {
		result.Data.Set(category, values[i])
		if issues[i] != nil {
			result.Local = append(result.Local, category)
			result.Issues = append(result.Issues, issues[i])
			a.partial(ctx, issues[i])
		}
	}
	result.Data.Set(types.CategorySocialMedia, SocialPlatforms(bracketOrDefault(profile.Age), profile.Occupation, a.take))
	result.Local = append(result.Local, types.CategorySocialMedia)
	return result, nil
}

// EnrichPersonas attaches provider data to already validated personas.
// Provider categories replace what the model wrote; locally generated ones
// only fill empty categories. On a critical failure the input is returned
// unchanged alongside the error.
func (a *Adapter) EnrichPersonas(ctx context.Context, personas []types.Persona) ([]types.Persona, error) {
	out := make([]types.Persona, len(personas))
	copy(out, personas)

	for i := range out {
		persona := out[i].Normalize()
		result, err := a.FetchForProfile(ctx, Profile{
			Age:        persona.Age,
			Occupation: persona.Occupation,
			Location:   persona.Location,
			Interests:  persona.Psychographics.Interests,
			Values:     persona.Psychographics.Values,
		})
		if err != nil {
			return personas, err
		}

		local := make(map[string]struct{}, len(result.Local))
		for _, category := range result.Local {
			local[category] = struct{}{}
		}
		for _, category := range types.CulturalCategories {
			fetched := result.Data.Get(category)
			if _, isLocal := local[category]; isLocal && len(persona.CulturalData.Get(category)) > 0 {
				continue
			}
			persona.CulturalData.Set(category, fetched)
		}
		out[i] = persona
	}
	return out, nil
}

func (a *Adapter) query(ctx context.Context, category string, profile Profile) ([]string, error) {
	q := qloo.InsightsQuery{
		EntityType:   categoryEntityTypes[category],
		AgeBracket:   AgeBracket(profile.Age),
		Location:     RegionCode(profile.Location),
		InterestTags: profile.InterestTags(),
		Take:         a.take,
	}
	entities, err := a.client.Insights(ctx, q)
	if err != nil && unsupportedForAudience(err) {
		if substitute, ok := entitySubstitutes[q.EntityType]; ok {
			a.logg.Debug(a.logg.WithFields(ctx, map[string]any{
				"category":    category,
				"entity_type": q.EntityType,
				"substitute":  substitute,
			}), "enrichment.entity_substituted")
			q.EntityType = substitute
			entities, err = a.client.Insights(ctx, q)
		}
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, a.take)
	for _, entity := range entities {
		if len(names) == a.take {
			break
		}
		names = append(names, entity.Name)
	}
	if len(names) == 0 {
		return nil, errNoSignal
	}
	return names, nil
}

func (a *Adapter) partial(ctx context.Context, err *Error) {
	a.metrics.IncEnrichmentFallback(err.Category, string(err.Severity))
	a.logg.Warn(a.logg.WithFields(ctx, map[string]any{
		"category": err.Category,
		"severity": string(err.Severity),
		"error":    err.Err.Error(),
	}), "enrichment.category_fallback")
}

func (a *Adapter) critical(ctx context.Context, err *Error) *Error {
	a.metrics.IncEnrichmentFallback("all", string(SeverityCritical))
	a.logg.Warn(a.logg.WithFields(ctx, map[string]any{
		"category": err.Category,
		"severity": string(err.Severity),
		"error":    err.Err.Error(),
	}), "enrichment.provider_unavailable")
	return err
}

// unsupportedForAudience matches the provider's 400 for entity types that
// reject demographic signals.
func unsupportedForAudience(err error) bool {
	var apiErr *qloo.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "does not support")
}

func providerCategories() []string {
	out := make([]string, 0, len(categoryEntityTypes))
	for _, category := range types.CulturalCategories {
		if _, ok := categoryEntityTypes[category]; ok {
			out = append(out, category)
		}
	}
	return out
}

func bracketOrDefault(age int) string {
	if bracket := AgeBracket(age); bracket != "" {
		return bracket
	}
	return Bracket30To34
}

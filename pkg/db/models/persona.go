package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

// Persona rows are unique per (user_id, name); writes upsert on that key.
type Persona struct {
	ID                uuid.UUID                                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID            string                                      `gorm:"column:user_id;type:text;not null;uniqueIndex:idx_personas_user_name,priority:1"`
	Name              string                                      `gorm:"column:name;type:text;not null;uniqueIndex:idx_personas_user_name,priority:2"`
	Age               int                                         `gorm:"column:age;not null"`
	Occupation        string                                      `gorm:"column:occupation;not null"`
	Location          string                                      `gorm:"column:location;not null"`
	Bio               string                                      `gorm:"column:bio;not null;default:''"`
	Quote             string                                      `gorm:"column:quote;not null;default:''"`
	Demographics      datatypes.JSONType[types.Demographics]      `gorm:"column:demographics"`
	Psychographics    datatypes.JSONType[types.Psychographics]    `gorm:"column:psychographics"`
	CulturalData      datatypes.JSONType[types.CulturalData]      `gorm:"column:cultural_data"`
	PainPoints        datatypes.JSONSlice[string]                 `gorm:"column:pain_points"`
	Goals             datatypes.JSONSlice[string]                 `gorm:"column:goals"`
	MarketingInsights datatypes.JSONType[types.MarketingInsights] `gorm:"column:marketing_insights"`
	QualityScore      float64                                     `gorm:"column:quality_score;not null;default:0"`
	Source            enums.PersonaSource                         `gorm:"column:source;type:text;not null"`
	CreatedAt         time.Time                                   `gorm:"column:created_at"`
	UpdatedAt         time.Time                                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Persona) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// PersonaFromDomain maps the API shape onto a row.
func PersonaFromDomain(p types.Persona, source enums.PersonaSource) Persona {
	p = p.Normalize()
	return Persona{
		ID:                p.ID,
		UserID:            p.UserID,
		Name:              p.Name,
		Age:               p.Age,
		Occupation:        p.Occupation,
		Location:          p.Location,
		Bio:               p.Bio,
		Quote:             p.Quote,
		Demographics:      datatypes.NewJSONType(p.Demographics),
		Psychographics:    datatypes.NewJSONType(p.Psychographics),
		CulturalData:      datatypes.NewJSONType(p.CulturalData),
		PainPoints:        datatypes.NewJSONSlice(p.PainPoints),
		Goals:             datatypes.NewJSONSlice(p.Goals),
		MarketingInsights: datatypes.NewJSONType(p.MarketingInsights),
		QualityScore:      p.QualityScore,
		Source:            source,
		CreatedAt:         p.CreatedAt,
	}
}

// Domain maps a row back to the API shape.
func (p Persona) Domain() types.Persona {
	return types.Persona{
		ID:                p.ID,
		UserID:            p.UserID,
		Name:              p.Name,
		Age:               p.Age,
		Occupation:        p.Occupation,
		Location:          p.Location,
		Bio:               p.Bio,
		Quote:             p.Quote,
		Demographics:      p.Demographics.Data(),
		Psychographics:    p.Psychographics.Data(),
		CulturalData:      p.CulturalData.Data(),
		PainPoints:        []string(p.PainPoints),
		Goals:             []string(p.Goals),
		MarketingInsights: p.MarketingInsights.Data(),
		QualityScore:      p.QualityScore,
		CreatedAt:         p.CreatedAt.UTC(),
	}.Normalize()
}

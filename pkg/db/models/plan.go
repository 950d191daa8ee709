package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/personacraft-backend/pkg/enums"
)

// Plan is a subscription tier. Limits of zero mean unlimited.
type Plan struct {
	ID                       string           `gorm:"column:id;type:text;primaryKey"`
	Name                     string           `gorm:"column:name;not null"`
	Status                   enums.PlanStatus `gorm:"column:status;type:text;not null;default:active"`
	IsDefault                bool             `gorm:"column:is_default;not null;default:false"`
	MonthlyGenerationLimit   int              `gorm:"column:monthly_generation_limit;not null;default:0"`
	MaxPersonasPerGeneration int              `gorm:"column:max_personas_per_generation;not null;default:0"`
	PriceAmount              decimal.Decimal  `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode             string           `gorm:"column:currency_code;not null;default:USD"`
	CreatedAt                time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Unlimited reports whether the plan has no generation cap.
func (p Plan) Unlimited() bool {
	return p.MonthlyGenerationLimit <= 0
}

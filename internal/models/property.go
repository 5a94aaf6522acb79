package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property is a parcel imported into a portfolio. Only a normalized subset
// of the provider record is stored.
type Property struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	PortfolioID   uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_property_parcel,priority:1" json:"portfolio_id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	APN           string    `gorm:"not null;uniqueIndex:idx_property_parcel,priority:4" json:"apn"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	County        string    `gorm:"not null;default:'';uniqueIndex:idx_property_parcel,priority:3" json:"county"`
	State         string    `gorm:"not null;default:'';uniqueIndex:idx_property_parcel,priority:2" json:"state"`
	Zip           string    `json:"zip"`
	Owner         string    `json:"owner"`
	LandUse       string    `json:"land_use"`
	LotSqft       float64   `json:"lot_sqft"`
	BuildingSqft  float64   `json:"building_sqft"`
	YearBuilt     int       `json:"year_built"`
	AssessedValue float64   `json:"assessed_value"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Source        string    `gorm:"not null" json:"source"` // "apn" or "address"
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ParcelKey identifies a parcel within a portfolio. APNs are only unique
// within a county, so state and county are part of the key.
type ParcelKey struct {
	PortfolioID uuid.UUID
	State       string
	County      string
	APN         string
}

func (p *Property) Key() ParcelKey {
	return ParcelKey{PortfolioID: p.PortfolioID, State: p.State, County: p.County, APN: p.APN}
}

// DedupeProperties keeps one property per ParcelKey, the last one seen, in
// first-seen order.
func DedupeProperties(properties []*Property) []*Property {
	index := make(map[ParcelKey]int, len(properties))
	out := make([]*Property, 0, len(properties))
	for _, p := range properties {
		if i, ok := index[p.Key()]; ok {
			out[i] = p
			continue
		}
		index[p.Key()] = len(out)
		out = append(out, p)
	}
	return out
}

func (Property) TableName() string {
	return "properties"
}

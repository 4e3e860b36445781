package datastore

import (
	"time"

	"github.com/huelab/huelab-go/internal/taxonomy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubtypeEntity maps a catalog subtype to the 'subtypes' table. The taxonomy
// package stays persistence-free; conversion happens here.
type SubtypeEntity struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	Slug       string `gorm:"uniqueIndex;not null"`
	Season     string `gorm:"index;type:varchar(10)"`
	TimePeriod string `gorm:"type:varchar(10)"` // empty when the subtype has no period
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName ensures GORM uses the expected table name.
func (SubtypeEntity) TableName() string {
	return "subtypes"
}

func toSubtypeEntity(s *taxonomy.Subtype) SubtypeEntity {
	id := s.ID
	if id == "" {
		id = s.Slug
	}
	return SubtypeEntity{
		ID:         id,
		Name:       s.Name,
		Slug:       s.Slug,
		Season:     string(s.Season),
		TimePeriod: string(s.TimePeriod),
	}
}

func (e *SubtypeEntity) toSubtype() taxonomy.Subtype {
	return taxonomy.Subtype{
		ID:         e.ID,
		Name:       e.Name,
		Slug:       e.Slug,
		Season:     taxonomy.Season(e.Season),
		TimePeriod: taxonomy.TimePeriod(e.TimePeriod),
	}
}

// SaveSubtypes upserts the catalog by slug in a single transaction.
func (ds *DataStore) SaveSubtypes(subtypes taxonomy.Catalog) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range subtypes {
			entity := toSubtypeEntity(&subtypes[i])
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entity).Error; err != nil {
				return dbError(err, "save_subtype")
			}
		}
		return nil
	})
}

// GetSubtypes retrieves the full normalized subtype catalog.
func (ds *DataStore) GetSubtypes() (taxonomy.Catalog, error) {
	var entities []SubtypeEntity
	if err := ds.DB.Order("season, time_period, name").Find(&entities).Error; err != nil {
		return nil, dbError(err, "get_subtypes")
	}
	catalog := make(taxonomy.Catalog, 0, len(entities))
	for i := range entities {
		catalog = append(catalog, entities[i].toSubtype())
	}
	return catalog.Normalize(), nil
}

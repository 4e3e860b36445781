// Package datastore persists classification records and the subtype catalog
// behind a store-agnostic interface with SQLite and MySQL backends.
package datastore

import (
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/taxonomy"
	"gorm.io/gorm"
)

// RecordFilter selects records by simple equality filters. Zero values mean
// "any". Season matches the effective label season: confirmed when present,
// otherwise predicted.
type RecordFilter struct {
	Status labeling.Status
	Season taxonomy.Season
	Source string
	Limit  int
	Offset int
}

// Interface defines the database operations used by the rest of the
// application.
type Interface interface {
	Open() error
	Close() error

	// Record operations
	Save(record *labeling.Record) error
	Get(id string) (labeling.Record, error)
	Delete(id string) error
	GetAllRecords() ([]labeling.Record, error)
	SearchRecords(filter RecordFilter) ([]labeling.Record, int64, error)
	GetConfirmedRecords() ([]labeling.Record, error)
	GetRecordsWithFeatures() ([]labeling.Record, error)
	CountByStatus() (map[labeling.Status]int64, error)

	// Subtype catalog operations
	SaveSubtypes(subtypes taxonomy.Catalog) error
	GetSubtypes() (taxonomy.Catalog, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a store instance for whichever backend the settings enable,
// or nil when no store is configured.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

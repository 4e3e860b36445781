// Package labeling defines the classification record data model and the
// review workflow that moves a record from AI prediction to human-confirmed
// ground truth.
package labeling

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/huelab/huelab-go/internal/taxonomy"
)

// Status is the single source of truth for a record's workflow stage.
type Status string

const (
	StatusUnlabeled       Status = "unlabeled"
	StatusAIPredicted     Status = "ai_predicted"
	StatusNeedsReview     Status = "needs_review"
	StatusManuallyLabeled Status = "manually_labeled"
	StatusExpertVerified  Status = "expert_verified"
	StatusNechamaVerified Status = "nechama_verified"
	StatusError           Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnlabeled, StatusAIPredicted, StatusNeedsReview,
		StatusManuallyLabeled, StatusExpertVerified, StatusNechamaVerified, StatusError:
		return true
	}
	return false
}

// Confirmed reports whether s carries a human-set label.
func (s Status) Confirmed() bool {
	switch s {
	case StatusManuallyLabeled, StatusExpertVerified, StatusNechamaVerified:
		return true
	}
	return false
}

// Record source values used for bulk query filters.
const (
	SourcePhoto    = "photo"
	SourcePainting = "painting"
	SourceFace     = "face"
)

// Record is one classifiable item: a photo, painting or face crop. It maps
// to the 'records' table.
type Record struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	Source string `gorm:"index:idx_records_source;type:varchar(20)"`

	// Opaque address of the underlying image (storage key or URL), passed
	// through to the classification service.
	ImageRef string `gorm:"type:varchar(512)"`

	// AI prediction fields, nil until a classification completes.
	PredictedName       *string  `gorm:"index:idx_records_predicted_name"`
	PredictedSeason     *string  `gorm:"index:idx_records_predicted_season;type:varchar(10)"`
	PredictedConfidence *float64 // 0-100

	// Ranked secondary guesses, cascade-deleted with the record.
	Alternatives []Alternative `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`

	// Human-set ground truth, nil until a human acts.
	ConfirmedName   *string `gorm:"index:idx_records_confirmed_name"`
	ConfirmedSeason *string `gorm:"index:idx_records_confirmed_season;type:varchar(10)"`

	Status Status `gorm:"index:idx_records_status;type:varchar(20)"`

	// Optional third taxonomy axis, set only by explicit assignment.
	TimePeriod *string `gorm:"type:varchar(10)"`

	IsDisagreement    bool
	DisagreementNotes *string `gorm:"type:text"`

	// Opaque descriptive attributes from the AI call (undertone, contrast,
	// ...). Displayed and filtered, never interpreted here.
	ExtractedFeatures datatypes.JSONMap

	Notes *string `gorm:"type:text"`

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
}

// TableName ensures GORM uses the expected table name.
func (Record) TableName() string {
	return "records"
}

// Alternative is one ranked secondary guess for a record. Maps to the
// 'record_alternatives' table.
type Alternative struct {
	ID         uint    `gorm:"primaryKey"`
	RecordID   string  `gorm:"index;not null;type:varchar(36)"`
	Name       string  `gorm:"not null"`
	Season     string  `gorm:"type:varchar(10)"`
	Confidence float64 // 0-100
	Rank       int
}

// TableName ensures GORM uses the expected table name.
func (Alternative) TableName() string {
	return "record_alternatives"
}

// NewRecord creates an empty, unlabeled record for a freshly registered image.
func NewRecord(source string) *Record {
	return &Record{
		ID:     uuid.NewString(),
		Source: source,
		Status: StatusUnlabeled,
	}
}

// PredictedLabel returns the AI's best guess, if any.
func (r *Record) PredictedLabel() (taxonomy.Label, bool) {
	if r.PredictedName == nil || r.PredictedSeason == nil {
		return taxonomy.Label{}, false
	}
	return taxonomy.Label{Name: *r.PredictedName, Season: taxonomy.Season(*r.PredictedSeason)}, true
}

// ConfirmedLabel returns the human-set ground truth, if any.
func (r *Record) ConfirmedLabel() (taxonomy.Label, bool) {
	if r.ConfirmedName == nil || r.ConfirmedSeason == nil {
		return taxonomy.Label{}, false
	}
	return taxonomy.Label{Name: *r.ConfirmedName, Season: taxonomy.Season(*r.ConfirmedSeason)}, true
}

// EffectiveLabel returns the confirmed label when present, otherwise the
// prediction. Implements taxonomy.Item together with ItemID.
func (r *Record) EffectiveLabel() (taxonomy.Label, bool) {
	if label, ok := r.ConfirmedLabel(); ok {
		return label, ok
	}
	return r.PredictedLabel()
}

// ItemID implements taxonomy.Item.
func (r *Record) ItemID() string {
	return r.ID
}

// Copy returns a deep copy of the record, including alternatives and
// extracted features.
func (r *Record) Copy() Record {
	out := *r
	if r.Alternatives != nil {
		out.Alternatives = make([]Alternative, len(r.Alternatives))
		copy(out.Alternatives, r.Alternatives)
	}
	if r.ExtractedFeatures != nil {
		out.ExtractedFeatures = make(datatypes.JSONMap, len(r.ExtractedFeatures))
		for k, v := range r.ExtractedFeatures {
			out.ExtractedFeatures[k] = v
		}
	}
	return out
}

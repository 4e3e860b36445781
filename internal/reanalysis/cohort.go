package reanalysis

import (
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/labeling"
)

// CohortPolicy names a predefined selection of records for a run.
type CohortPolicy string

const (
	// CohortAllConfirmed selects every record with a human-confirmed label.
	CohortAllConfirmed CohortPolicy = "all_confirmed"
	// CohortPreviouslyWrong selects confirmed records whose original
	// prediction disagreed with the confirmed label.
	CohortPreviouslyWrong CohortPolicy = "previously_wrong"
	// CohortWithFeatures selects every record that carries extracted features
	// from a previous classification, confirmed or not. Records without
	// ground truth still run and come back skipped.
	CohortWithFeatures CohortPolicy = "with_features"
)

// Valid reports whether p is a known policy.
func (p CohortPolicy) Valid() bool {
	switch p {
	case CohortAllConfirmed, CohortPreviouslyWrong, CohortWithFeatures:
		return true
	}
	return false
}

// SelectCohort filters records according to the policy. The confirmed
// policies require ground truth; with_features is the broadest cut and keeps
// never-confirmed records for inspection.
func SelectCohort(policy CohortPolicy, records []*labeling.Record) ([]*labeling.Record, error) {
	if !policy.Valid() {
		return nil, errors.Newf("unknown cohort policy %q", policy).
			Component("reanalysis").
			Category(errors.CategoryValidation).
			Build()
	}

	var cohort []*labeling.Record
	for _, r := range records {
		switch policy {
		case CohortAllConfirmed:
			if _, confirmed := r.ConfirmedLabel(); confirmed {
				cohort = append(cohort, r)
			}
		case CohortPreviouslyWrong:
			truth, confirmed := r.ConfirmedLabel()
			if !confirmed {
				continue
			}
			predicted, ok := r.PredictedLabel()
			if !ok || !predicted.Equal(truth) {
				cohort = append(cohort, r)
			}
		case CohortWithFeatures:
			if len(r.ExtractedFeatures) > 0 {
				cohort = append(cohort, r)
			}
		}
	}
	return cohort, nil
}

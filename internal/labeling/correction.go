package labeling

import (
	"github.com/huelab/huelab-go/internal/taxonomy"
)

// CorrectionResult describes the outcome of recording a human decision
// against the record's current prediction.
type CorrectionResult struct {
	// Disagreement is true when the human decision diverged from a present
	// prediction.
	Disagreement bool
	// Informative is false when a disagreement arrived without notes. Such
	// corrections are accepted but flagged as low-value training signal.
	Informative bool
}

// RecordCorrection applies a human correction to the record and reports
// whether it constitutes a disagreement. The mutated record plus its
// disagreement fields form the labeled dataset consumed by the (external)
// training process; nothing is retrained here.
func RecordCorrection(r *Record, label taxonomy.Label, notes string, as Status) (CorrectionResult, error) {
	if err := ConfirmWithCorrection(r, label, notes, as); err != nil {
		return CorrectionResult{}, err
	}
	result := CorrectionResult{
		Disagreement: r.IsDisagreement,
		Informative:  true,
	}
	if r.IsDisagreement && notes == "" {
		result.Informative = false
	}
	return result, nil
}

// DisagreementRate reports the percentage of confirmed records whose
// confirmed label diverged from the prediction. Zero when no records are
// confirmed.
func DisagreementRate(records []Record) float64 {
	var confirmed, disagreements int
	for i := range records {
		if !records[i].Status.Confirmed() {
			continue
		}
		confirmed++
		if records[i].IsDisagreement {
			disagreements++
		}
	}
	if confirmed == 0 {
		return 0
	}
	return 100 * float64(disagreements) / float64(confirmed)
}

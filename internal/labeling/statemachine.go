package labeling

import (
	"time"

	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

// ErrInvalidState marks transitions attempted from a status that does not
// permit them. It is a usage error, never retried.
var ErrInvalidState = errors.NewStd("invalid record state for operation")

func invalidState(op string, r *Record) error {
	return errors.Newf("%w: %s on record %s in status %s", ErrInvalidState, op, r.ID, r.Status).
		Component("labeling").
		Category(errors.CategoryState).
		Context("operation", op).
		Context("record_id", r.ID).
		Context("status", string(r.Status)).
		Build()
}

// Prediction is the outcome of one external classification call.
type Prediction struct {
	Label        taxonomy.Label
	Confidence   float64 // 0-100
	Alternatives []AlternativePrediction
	Features     map[string]any
}

// AlternativePrediction is one ranked secondary guess inside a Prediction.
type AlternativePrediction struct {
	Label      taxonomy.Label
	Confidence float64
}

// SubmitPrediction applies a fresh AI prediction to the record. Legal from
// any state; re-analysis overwrites previous prediction fields but never
// touches the confirmed label. The record moves to ai_predicted, or
// needs_review when confidence falls below reviewThreshold. The whole
// transition applies or none of it does.
func SubmitPrediction(r *Record, p Prediction, reviewThreshold float64) error {
	if !p.Label.Season.Valid() {
		return errors.Newf("prediction has unknown season %q", p.Label.Season).
			Component("labeling").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}

	next := r.Copy()
	name := p.Label.Name
	season := string(p.Label.Season)
	confidence := p.Confidence
	next.PredictedName = &name
	next.PredictedSeason = &season
	next.PredictedConfidence = &confidence

	next.Alternatives = next.Alternatives[:0]
	for i, alt := range p.Alternatives {
		next.Alternatives = append(next.Alternatives, Alternative{
			RecordID:   r.ID,
			Name:       alt.Label.Name,
			Season:     string(alt.Label.Season),
			Confidence: alt.Confidence,
			Rank:       i + 1,
		})
	}

	if p.Features != nil {
		features := make(map[string]any, len(p.Features))
		for k, v := range p.Features {
			features[k] = v
		}
		next.ExtractedFeatures = features
	}

	// A confirmed record keeps its confirmed status; the fresh prediction is
	// recorded alongside it. Unconfirmed records move to the post-AI state.
	if !next.Status.Confirmed() {
		if p.Confidence < reviewThreshold {
			next.Status = StatusNeedsReview
		} else {
			next.Status = StatusAIPredicted
		}
		// Re-compute disagreement for records confirmed in a previous cycle.
		next.IsDisagreement = false
	} else if confirmed, ok := next.ConfirmedLabel(); ok {
		next.IsDisagreement = !p.Label.Equal(confirmed)
	}

	*r = next
	return nil
}

// ConfirmAsPredicted copies the prediction into the confirmed label and moves
// the record to expert_verified. Legal only when a prediction exists.
// Idempotent: confirming twice yields the same record state.
func ConfirmAsPredicted(r *Record) error {
	predicted, ok := r.PredictedLabel()
	if !ok {
		return invalidState("confirm_as_predicted", r)
	}

	next := r.Copy()
	name := predicted.Name
	season := string(predicted.Season)
	next.ConfirmedName = &name
	next.ConfirmedSeason = &season
	next.IsDisagreement = false
	next.DisagreementNotes = nil
	next.Status = StatusExpertVerified
	if next.ConfirmedAt == nil {
		now := time.Now()
		next.ConfirmedAt = &now
	}

	*r = next
	return nil
}

// ConfirmWithCorrection sets the confirmed label from a human decision.
// Legal whenever the record exists. When the decision diverges from a present
// prediction the record is marked as a disagreement and the notes are stored.
// as selects an elevated trust status; zero value means manually_labeled.
func ConfirmWithCorrection(r *Record, label taxonomy.Label, notes string, as Status) error {
	if !label.Season.Valid() {
		return errors.Newf("correction has unknown season %q", label.Season).
			Component("labeling").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}
	if as == "" {
		as = StatusManuallyLabeled
	}
	if !as.Confirmed() {
		return errors.Newf("%w: %q is not a confirmed status", ErrInvalidState, as).
			Component("labeling").
			Category(errors.CategoryState).
			Context("record_id", r.ID).
			Build()
	}

	next := r.Copy()
	name := label.Name
	season := string(label.Season)
	next.ConfirmedName = &name
	next.ConfirmedSeason = &season
	next.Status = as
	now := time.Now()
	next.ConfirmedAt = &now

	if predicted, ok := next.PredictedLabel(); ok && !predicted.Equal(label) {
		next.IsDisagreement = true
		if notes != "" {
			next.DisagreementNotes = &notes
		} else {
			next.DisagreementNotes = nil
		}
	} else {
		next.IsDisagreement = false
		next.DisagreementNotes = nil
	}

	*r = next
	return nil
}

// Reset clears prediction and confirmation and returns the record to
// unlabeled. Administrative; always legal.
func Reset(r *Record) {
	next := r.Copy()
	next.PredictedName = nil
	next.PredictedSeason = nil
	next.PredictedConfidence = nil
	next.Alternatives = nil
	next.ConfirmedName = nil
	next.ConfirmedSeason = nil
	next.IsDisagreement = false
	next.DisagreementNotes = nil
	next.ExtractedFeatures = nil
	next.TimePeriod = nil
	next.ConfirmedAt = nil
	next.Status = StatusUnlabeled
	*r = next
}

// MarkError moves the record to the recoverable error state after a failed
// in-flight operation. Prediction and confirmation fields are left exactly as
// they were; a later SubmitPrediction recovers the record. Confirmed records
// keep their confirmed status, since a failed re-analysis does not invalidate
// ground truth.
func MarkError(r *Record) {
	if r.Status.Confirmed() {
		return
	}
	r.Status = StatusError
}

// AssignTimePeriod sets the explicit time-period axis. Periods are never
// inferred from confidence or labels.
func AssignTimePeriod(r *Record, period taxonomy.TimePeriod) error {
	if !period.Valid() {
		return errors.Newf("unknown time period %q", period).
			Component("labeling").
			Category(errors.CategoryValidation).
			Context("record_id", r.ID).
			Build()
	}
	p := string(period)
	r.TimePeriod = &p
	return nil
}

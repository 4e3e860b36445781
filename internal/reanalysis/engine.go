// Package reanalysis re-runs the classifier over already-confirmed records and
// measures whether the model got better or worse against human ground truth.
package reanalysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/logging"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

// Outcome classifies one record's re-analysis result relative to its original
// prediction and the human-confirmed label.
type Outcome string

const (
	// OutcomeImproved means the original prediction was wrong and the new one
	// matches the confirmed label.
	OutcomeImproved Outcome = "improved"
	// OutcomeRegressed means the original prediction matched the confirmed
	// label and the new one does not.
	OutcomeRegressed Outcome = "regressed"
	// OutcomeUnchanged means correctness did not flip in either direction.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeError means the classification call failed; the record is
	// excluded from accuracy math.
	OutcomeError Outcome = "error"
	// OutcomeSkipped means the record carries no confirmed label, so there is
	// no ground truth to score against.
	OutcomeSkipped Outcome = "skipped"
)

// ItemResult is the per-record outcome of one re-analysis pass.
type ItemResult struct {
	RecordID    string          `json:"recordId"`
	Outcome     Outcome         `json:"outcome"`
	GroundTruth *taxonomy.Label `json:"groundTruth,omitempty"`

	OriginalLabel      *taxonomy.Label `json:"originalLabel,omitempty"`
	OriginalConfidence *float64        `json:"originalConfidence,omitempty"`

	NewLabel      *taxonomy.Label `json:"newLabel,omitempty"`
	NewConfidence *float64        `json:"newConfidence,omitempty"`

	// Prediction holds the full classifier result so callers can apply it to
	// the record afterwards. Nil on error and skipped outcomes.
	Prediction *classifier.Result `json:"-"`

	Err error `json:"-"`
}

// Summary aggregates a finished (or cancelled) re-analysis run.
// Improved + Regressed + Unchanged always equals Evaluated.
type Summary struct {
	// Total is the cohort size; on a cancelled run it exceeds the number of
	// processed items.
	Total     int `json:"total"`
	Evaluated int `json:"evaluated"`
	Improved  int `json:"improved"`
	Regressed int `json:"regressed"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`

	// Accuracies are percentages over Evaluated, 0 when nothing was evaluated.
	OriginalAccuracy float64 `json:"originalAccuracy"`
	NewAccuracy      float64 `json:"newAccuracy"`
	AccuracyChange   float64 `json:"accuracyChange"`

	// Mean of (new - original) confidence over evaluated records that had an
	// original confidence.
	AvgConfidenceChange float64 `json:"avgConfidenceChange"`
}

// Report is the complete output of one run: every per-item result plus the
// aggregate summary.
type Report struct {
	Items     []ItemResult  `json:"items"`
	Summary   Summary       `json:"summary"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Progress is delivered to the progress callback after every processed item.
type Progress struct {
	Completed int
	Total     int
	Last      ItemResult
}

// ProgressFunc receives progress updates. It is called from the run's
// goroutine, strictly in item order.
type ProgressFunc func(Progress)

// Engine drives sequential re-analysis runs against a classifier.
type Engine struct {
	classifier classifier.Classifier
	logger     *slog.Logger
}

// NewEngine creates a re-analysis engine backed by the given classifier.
func NewEngine(c classifier.Classifier) *Engine {
	return &Engine{
		classifier: c,
		logger:     logging.ForService("reanalysis"),
	}
}

// Run re-classifies each record in order, one at a time, and scores the new
// prediction against the record's confirmed label. Records are never mutated;
// applying new predictions is the caller's decision.
//
// A failed classification is confined to its item. Cancellation is honored
// between items: on ctx done, Run returns the partial report together with a
// cancellation error.
func (e *Engine) Run(ctx context.Context, records []*labeling.Record, progress ProgressFunc) (*Report, error) {
	report := &Report{
		Items:     make([]ItemResult, 0, len(records)),
		StartedAt: time.Now(),
	}
	report.Summary.Total = len(records)

	e.logger.Info("Re-analysis run started", "records", len(records))

	for i, record := range records {
		select {
		case <-ctx.Done():
			e.finalize(report)
			e.logger.Warn("Re-analysis run cancelled",
				"completed", i, "total", len(records))
			return report, errors.New(ctx.Err()).
				Component("reanalysis").
				Category(errors.CategoryCancellation).
				Context("completed", i).
				Context("total", len(records)).
				Build()
		default:
		}

		item := e.analyzeOne(ctx, record)
		report.Items = append(report.Items, item)

		if progress != nil {
			progress(Progress{Completed: i + 1, Total: len(records), Last: item})
		}
	}

	e.finalize(report)
	e.logger.Info("Re-analysis run finished",
		"evaluated", report.Summary.Evaluated,
		"improved", report.Summary.Improved,
		"regressed", report.Summary.Regressed,
		"errors", report.Summary.Errors,
		"accuracy_change", report.Summary.AccuracyChange)
	return report, nil
}

func (e *Engine) analyzeOne(ctx context.Context, record *labeling.Record) ItemResult {
	item := ItemResult{RecordID: record.ID}

	truth, ok := record.ConfirmedLabel()
	if !ok {
		item.Outcome = OutcomeSkipped
		return item
	}
	item.GroundTruth = &truth

	if original, ok := record.PredictedLabel(); ok {
		o := original
		item.OriginalLabel = &o
	}
	if record.PredictedConfidence != nil {
		c := *record.PredictedConfidence
		item.OriginalConfidence = &c
	}

	// Cancellation only takes effect between items; a call already in flight
	// runs to completion under the client's own timeout.
	result, err := e.classifier.Classify(context.WithoutCancel(ctx), record.ImageRef)
	if err != nil {
		item.Outcome = OutcomeError
		item.Err = err
		e.logger.Error("Re-analysis classification failed",
			"record_id", record.ID, "error", err)
		return item
	}

	item.Prediction = result
	label := result.Label
	item.NewLabel = &label
	confidence := result.Confidence
	item.NewConfidence = &confidence

	originalCorrect := item.OriginalLabel != nil && item.OriginalLabel.Equal(truth)
	newCorrect := result.Label.Equal(truth)

	switch {
	case !originalCorrect && newCorrect:
		item.Outcome = OutcomeImproved
	case originalCorrect && !newCorrect:
		item.Outcome = OutcomeRegressed
	default:
		item.Outcome = OutcomeUnchanged
	}
	return item
}

// finalize computes the summary over whatever items have been processed.
func (e *Engine) finalize(report *Report) {
	s := &report.Summary

	originalCorrect := 0
	newCorrect := 0
	confidenceDelta := 0.0
	confidenceSamples := 0

	for i := range report.Items {
		item := &report.Items[i]
		switch item.Outcome {
		case OutcomeSkipped:
			s.Skipped++
			continue
		case OutcomeError:
			s.Errors++
			continue
		case OutcomeImproved:
			s.Improved++
		case OutcomeRegressed:
			s.Regressed++
		case OutcomeUnchanged:
			s.Unchanged++
		}

		s.Evaluated++
		if item.GroundTruth != nil {
			if item.OriginalLabel != nil && item.OriginalLabel.Equal(*item.GroundTruth) {
				originalCorrect++
			}
			if item.NewLabel != nil && item.NewLabel.Equal(*item.GroundTruth) {
				newCorrect++
			}
		}
		if item.OriginalConfidence != nil && item.NewConfidence != nil {
			confidenceDelta += *item.NewConfidence - *item.OriginalConfidence
			confidenceSamples++
		}
	}

	if s.Evaluated > 0 {
		s.OriginalAccuracy = float64(originalCorrect) / float64(s.Evaluated) * 100
		s.NewAccuracy = float64(newCorrect) / float64(s.Evaluated) * 100
		s.AccuracyChange = s.NewAccuracy - s.OriginalAccuracy
	}
	if confidenceSamples > 0 {
		s.AvgConfidenceChange = confidenceDelta / float64(confidenceSamples)
	}
	report.Duration = time.Since(report.StartedAt)
}

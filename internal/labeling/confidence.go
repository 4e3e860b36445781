package labeling

// ConfidenceBucket is the qualitative tier of a prediction confidence.
type ConfidenceBucket string

const (
	BucketHigh    ConfidenceBucket = "high"
	BucketMedium  ConfidenceBucket = "medium"
	BucketLow     ConfidenceBucket = "low"
	BucketUnknown ConfidenceBucket = "unknown"
)

// Shared confidence thresholds. Every consumer (filters, status dots,
// auto-confirm eligibility) must use these same constants; operators rely on
// identical tiers across screens.
const (
	HighConfidenceThreshold   = 80.0
	MediumConfidenceThreshold = 50.0

	// DefaultAutoConfirmThreshold is the fallback for the configurable
	// auto-confirm setting.
	DefaultAutoConfirmThreshold = 80.0
)

// Bucket classifies a 0-100 confidence score into its tier. A nil score is
// unknown.
func Bucket(confidence *float64) ConfidenceBucket {
	switch {
	case confidence == nil:
		return BucketUnknown
	case *confidence >= HighConfidenceThreshold:
		return BucketHigh
	case *confidence >= MediumConfidenceThreshold:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Rank orders buckets from best (3, high) to worst (0, unknown), for
// monotonicity checks and sorting.
func (b ConfidenceBucket) Rank() int {
	switch b {
	case BucketHigh:
		return 3
	case BucketMedium:
		return 2
	case BucketLow:
		return 1
	default:
		return 0
	}
}

// AutoConfirmEligible reports whether a record can be batch-confirmed without
// per-item review: it awaits review and its prediction confidence meets the
// caller-supplied threshold.
func AutoConfirmEligible(r *Record, threshold float64) bool {
	if r.Status != StatusAIPredicted && r.Status != StatusNeedsReview {
		return false
	}
	return r.PredictedConfidence != nil && *r.PredictedConfidence >= threshold
}

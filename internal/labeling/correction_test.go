package labeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCorrectionAgreement(t *testing.T) {
	t.Parallel()

	r := predictedRecord(t, 92)
	result, err := RecordCorrection(r, warmAutumn(), "", "")
	require.NoError(t, err)

	assert.False(t, result.Disagreement)
	assert.True(t, result.Informative)
	assert.False(t, r.IsDisagreement)
}

func TestRecordCorrectionDisagreementWithNotes(t *testing.T) {
	t.Parallel()

	r := predictedRecord(t, 92)
	result, err := RecordCorrection(r, softSummer(), "undertone reads cooler in person", "")
	require.NoError(t, err)

	assert.True(t, result.Disagreement)
	assert.True(t, result.Informative)
	assert.True(t, r.IsDisagreement)
}

func TestRecordCorrectionDisagreementWithoutNotes(t *testing.T) {
	t.Parallel()

	// Empty notes on a disagreement are accepted but flagged low-value.
	r := predictedRecord(t, 92)
	result, err := RecordCorrection(r, softSummer(), "", "")
	require.NoError(t, err)

	assert.True(t, result.Disagreement)
	assert.False(t, result.Informative)
	assert.True(t, r.IsDisagreement)
	assert.Nil(t, r.DisagreementNotes)
}

func TestDisagreementRate(t *testing.T) {
	t.Parallel()

	var records []Record

	// Three confirmed-as-predicted, one corrected to a different label, one
	// still awaiting review.
	for i := 0; i < 3; i++ {
		r := predictedRecord(t, 90)
		require.NoError(t, ConfirmAsPredicted(r))
		records = append(records, *r)
	}
	corrected := predictedRecord(t, 90)
	_, err := RecordCorrection(corrected, softSummer(), "n", "")
	require.NoError(t, err)
	records = append(records, *corrected)
	records = append(records, *predictedRecord(t, 90))

	assert.InDelta(t, 25.0, DisagreementRate(records), 0.001)
}

func TestDisagreementRateEmpty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, DisagreementRate(nil))
	assert.Zero(t, DisagreementRate([]Record{*NewRecord(SourcePhoto)}))
}

// Disagreement flag and labels must agree after any correction sequence.
func TestDisagreementCorrectness(t *testing.T) {
	t.Parallel()

	records := []*Record{
		predictedRecord(t, 92),
		predictedRecord(t, 40),
		NewRecord(SourcePhoto),
	}
	_, err := RecordCorrection(records[0], softSummer(), "n", "")
	require.NoError(t, err)
	_, err = RecordCorrection(records[1], warmAutumn(), "", "")
	require.NoError(t, err)
	_, err = RecordCorrection(records[2], softSummer(), "", "")
	require.NoError(t, err)

	for _, r := range records {
		predicted, okP := r.PredictedLabel()
		confirmed, okC := r.ConfirmedLabel()
		want := okP && okC && !predicted.Equal(confirmed)
		assert.Equal(t, want, r.IsDisagreement, "record %s", r.ID)
	}
}

package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huelab/huelab-go/internal/errors"
)

func TestValidateSettingsDefaults(t *testing.T) {
	settings := &Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Review.AutoConfirmThreshold = 80
	settings.Review.ReviewThreshold = 50

	assert.NoError(t, ValidateSettings(settings))
}

func TestValidateSettingsBothStoresEnabled(t *testing.T) {
	settings := &Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.MySQL.Enabled = true

	err := ValidateSettings(settings)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

func TestValidateSettingsThresholdRange(t *testing.T) {
	testCases := []struct {
		name        string
		autoConfirm float64
		review      float64
		wantErr     bool
	}{
		{name: "valid", autoConfirm: 80, review: 50, wantErr: false},
		{name: "zero thresholds", autoConfirm: 0, review: 0, wantErr: false},
		{name: "auto-confirm above range", autoConfirm: 101, review: 50, wantErr: true},
		{name: "review below range", autoConfirm: 80, review: -1, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := &Settings{}
			settings.Review.AutoConfirmThreshold = tc.autoConfirm
			settings.Review.ReviewThreshold = tc.review
			err := ValidateSettings(settings)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

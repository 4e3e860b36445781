package classifier

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

const testEndpoint = "http://classifier.test/v1/classify"

func newTestClient(t *testing.T) *HTTPClient {
	t.Helper()

	settings := &conf.Settings{}
	settings.Classifier.Endpoint = testEndpoint
	settings.Classifier.APIKey = "test-key"
	settings.Classifier.Timeout = 5

	client, err := NewHTTPClient(settings)
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestClassifySuccess(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"subtype":    "Warm Autumn",
			"season":     "autumn",
			"confidence": 92.5,
			"alternatives": []map[string]any{
				{"subtype": "Golden Autumn", "season": "autumn", "confidence": 44.0},
				{"subtype": "Broken Alt", "season": "monsoon", "confidence": 10.0},
			},
			"features": map[string]any{"undertone": "warm"},
		}))

	result, err := client.Classify(context.Background(), "photos/abc.jpg")
	require.NoError(t, err)

	assert.True(t, result.Label.Equal(taxonomy.Label{Name: "Warm Autumn", Season: taxonomy.SeasonAutumn}))
	assert.InDelta(t, 92.5, result.Confidence, 0.001)
	// Alternatives with unknown seasons are dropped, not fatal.
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "Golden Autumn", result.Alternatives[0].Label.Name)
	assert.Equal(t, "warm", result.Features["undertone"])
}

func TestClassifyServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "overloaded"))

	_, err := client.Classify(context.Background(), "photos/abc.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryClassificationService))
	assert.True(t, IsTransient(err))
}

func TestClassifyRateLimitIsTransient(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	_, err := client.Classify(context.Background(), "photos/abc.jpg")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestClassifyMalformedResponseIsParseError(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, "{not json"))

	_, err := client.Classify(context.Background(), "photos/abc.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryClassificationService))
	assert.False(t, IsTransient(err))
}

func TestClassifyUnknownSeasonIsParseError(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"subtype":    "Warm Autumn",
			"season":     "monsoon",
			"confidence": 92.5,
		}))

	_, err := client.Classify(context.Background(), "photos/abc.jpg")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestNewHTTPClientRequiresEndpoint(t *testing.T) {
	settings := &conf.Settings{}
	_, err := NewHTTPClient(settings)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

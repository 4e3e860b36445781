package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/observability"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

// fakeClassifier returns scripted results keyed by image reference.
type fakeClassifier struct {
	results map[string]*classifier.Result
	errs    map[string]error
}

func (f *fakeClassifier) Classify(_ context.Context, imageRef string) (*classifier.Result, error) {
	if err, ok := f.errs[imageRef]; ok {
		return nil, err
	}
	if result, ok := f.results[imageRef]; ok {
		return result, nil
	}
	return nil, fmt.Errorf("no scripted result for %q", imageRef)
}

type testEnv struct {
	controller *Controller
	store      datastore.Interface
	classifier *fakeClassifier
	settings   *conf.Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "api_test.db")
	settings.Review.AutoConfirmThreshold = 80
	settings.Review.ReviewThreshold = 50

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	fake := &fakeClassifier{
		results: map[string]*classifier.Result{},
		errs:    map[string]error{},
	}

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	controller, err := New(echo.New(), store, settings, fake, metrics)
	require.NoError(t, err)

	return &testEnv{
		controller: controller,
		store:      store,
		classifier: fake,
		settings:   settings,
	}
}

// request performs one request against the controller's echo instance and
// decodes the JSON response into out when out is non-nil.
func (env *testEnv) request(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.controller.Echo.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (env *testEnv) createRecord(t *testing.T, source, imageRef string) RecordResponse {
	t.Helper()
	var resp RecordResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records",
		CreateRecordRequest{Source: source, ImageRef: imageRef}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code)
	return resp
}

func (env *testEnv) analyze(t *testing.T, id string) (RecordResponse, *httptest.ResponseRecorder) {
	t.Helper()
	var resp RecordResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+id+"/analyze", nil, &resp)
	return resp, rec
}

func warmAutumnResult(confidence float64) *classifier.Result {
	return &classifier.Result{
		Label:      taxonomy.Label{Name: "Warm Autumn", Season: taxonomy.SeasonAutumn},
		Confidence: confidence,
		Alternatives: []classifier.Alternative{
			{Label: taxonomy.Label{Name: "Golden Autumn", Season: taxonomy.SeasonAutumn}, Confidence: confidence / 2},
		},
		Features: map[string]any{"undertone": "warm"},
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	var resp map[string]any
	rec := env.request(t, http.MethodGet, "/api/v1/health", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "connected", resp["database_status"])
}

func TestCreateAndGetRecord(t *testing.T) {
	env := newTestEnv(t)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	assert.Equal(t, string(labeling.StatusUnlabeled), created.Status)
	assert.Equal(t, "unknown", created.ConfidenceBucket)

	var got RecordResponse
	rec := env.request(t, http.MethodGet, "/api/v1/records/"+created.ID, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "photos/a.jpg", got.ImageRef)
}

func TestGetMissingRecord(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/records/no-such-id", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeRecord(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["photos/a.jpg"] = warmAutumnResult(92)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	resp, rec := env.analyze(t, created.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, string(labeling.StatusAIPredicted), resp.Status)
	require.NotNil(t, resp.Predicted)
	assert.Equal(t, "Warm Autumn", resp.Predicted.Subtype)
	assert.Equal(t, "high", resp.ConfidenceBucket)
	require.Len(t, resp.Alternatives, 1)
	assert.Equal(t, "warm", resp.ExtractedFeatures["undertone"])
}

func TestAnalyzeLowConfidenceNeedsReview(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["photos/a.jpg"] = warmAutumnResult(35)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	resp, rec := env.analyze(t, created.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(labeling.StatusNeedsReview), resp.Status)
	assert.Equal(t, "low", resp.ConfidenceBucket)
}

func TestAnalyzeFailureMarksError(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.errs["photos/a.jpg"] = fmt.Errorf("service down")

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	_, rec := env.analyze(t, created.ID)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var got RecordResponse
	env.request(t, http.MethodGet, "/api/v1/records/"+created.ID, nil, &got)
	assert.Equal(t, string(labeling.StatusError), got.Status)
}

func TestReviewConfirmAsPredicted(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["photos/a.jpg"] = warmAutumnResult(92)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	env.analyze(t, created.ID)

	var resp ReviewResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/review",
		ReviewRequest{ConfirmAsPredicted: true}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, string(labeling.StatusExpertVerified), resp.Record.Status)
	assert.False(t, resp.Disagreement)
	require.NotNil(t, resp.Record.Confirmed)
	assert.Equal(t, "Warm Autumn", resp.Record.Confirmed.Subtype)
}

func TestReviewConfirmWithoutPrediction(t *testing.T) {
	env := newTestEnv(t)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/review",
		ReviewRequest{ConfirmAsPredicted: true}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewCorrectionRecordsDisagreement(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["photos/a.jpg"] = warmAutumnResult(92)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	env.analyze(t, created.ID)

	var resp ReviewResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/review",
		ReviewRequest{Subtype: "Soft Summer", Season: "summer", Notes: "cooler in person"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, string(labeling.StatusManuallyLabeled), resp.Record.Status)
	assert.True(t, resp.Disagreement)
	assert.True(t, resp.Informative)
	assert.True(t, resp.Record.IsDisagreement)
}

func TestReviewCorrectionUnknownSeason(t *testing.T) {
	env := newTestEnv(t)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/review",
		ReviewRequest{Subtype: "Monsoon Magic", Season: "monsoon"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetRecord(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["photos/a.jpg"] = warmAutumnResult(92)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")
	env.analyze(t, created.ID)

	var resp RecordResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/reset", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(labeling.StatusUnlabeled), resp.Status)
	assert.Nil(t, resp.Predicted)
}

func TestAssignTimePeriod(t *testing.T) {
	env := newTestEnv(t)

	created := env.createRecord(t, labeling.SourcePhoto, "photos/a.jpg")

	var resp RecordResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/timeperiod",
		TimePeriodRequest{Period: "early"}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.TimePeriod)
	assert.Equal(t, "early", *resp.TimePeriod)

	rec = env.request(t, http.MethodPost, "/api/v1/records/"+created.ID+"/timeperiod",
		TimePeriodRequest{Period: "dusk"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoConfirm(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["high.jpg"] = warmAutumnResult(92)
	env.classifier.results["low.jpg"] = warmAutumnResult(60)

	high := env.createRecord(t, labeling.SourcePhoto, "high.jpg")
	env.analyze(t, high.ID)
	low := env.createRecord(t, labeling.SourcePhoto, "low.jpg")
	env.analyze(t, low.ID)

	var resp AutoConfirmResponse
	rec := env.request(t, http.MethodPost, "/api/v1/records/autoconfirm", AutoConfirmRequest{}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Confirmed)
	require.Len(t, resp.RecordIDs, 1)
	assert.Equal(t, high.ID, resp.RecordIDs[0])

	// The lower threshold picks up the remaining record.
	threshold := 50.0
	rec = env.request(t, http.MethodPost, "/api/v1/records/autoconfirm",
		AutoConfirmRequest{Threshold: &threshold}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, resp.Confirmed)
	assert.Equal(t, low.ID, resp.RecordIDs[0])
}

func TestListRecordsFilters(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["a.jpg"] = warmAutumnResult(92)

	analyzed := env.createRecord(t, labeling.SourcePhoto, "a.jpg")
	env.analyze(t, analyzed.ID)
	env.createRecord(t, labeling.SourcePainting, "b.jpg")

	var resp PaginatedResponse
	rec := env.request(t, http.MethodGet, "/api/v1/records?status=ai_predicted", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Total)

	rec = env.request(t, http.MethodGet, "/api/v1/records?status=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/records?season=autumn", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Total)
}

func TestCatalogImportAndGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPut, "/api/v1/catalog", ImportCatalogRequest{
		Subtypes: []taxonomy.Subtype{
			{Name: "Warm Autumn", Season: taxonomy.SeasonAutumn},
			{Name: "Early Spring", Season: taxonomy.SeasonSpring, TimePeriod: taxonomy.PeriodEarly},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Subtypes []taxonomy.Subtype `json:"subtypes"`
		Count    int                `json:"count"`
	}
	rec = env.request(t, http.MethodGet, "/api/v1/catalog", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, resp.Count)

	rec = env.request(t, http.MethodPut, "/api/v1/catalog", ImportCatalogRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHierarchyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPut, "/api/v1/catalog", ImportCatalogRequest{
		Subtypes: []taxonomy.Subtype{
			{Name: "Warm Autumn", Season: taxonomy.SeasonAutumn, TimePeriod: taxonomy.PeriodMid},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env.classifier.results["match.jpg"] = warmAutumnResult(92)
	matched := env.createRecord(t, labeling.SourcePhoto, "match.jpg")
	env.analyze(t, matched.ID)

	env.classifier.results["stray.jpg"] = &classifier.Result{
		Label:      taxonomy.Label{Name: "Deep Autumn", Season: taxonomy.SeasonAutumn},
		Confidence: 70,
	}
	stray := env.createRecord(t, labeling.SourcePhoto, "stray.jpg")
	env.analyze(t, stray.ID)

	var resp HierarchyResponse
	httpRec := env.request(t, http.MethodGet, "/api/v1/hierarchy", nil, &resp)
	require.Equal(t, http.StatusOK, httpRec.Code)
	require.Len(t, resp.Seasons, 4)

	var autumn *SeasonNode
	for i := range resp.Seasons {
		if resp.Seasons[i].Season == "autumn" {
			autumn = &resp.Seasons[i]
		}
	}
	require.NotNil(t, autumn)
	assert.Equal(t, 2, autumn.Total)
	require.Len(t, autumn.Uncategorized, 1)
	assert.Equal(t, stray.ID, autumn.Uncategorized[0].ID)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["a.jpg"] = warmAutumnResult(92)
	env.classifier.results["b.jpg"] = warmAutumnResult(90)

	a := env.createRecord(t, labeling.SourcePhoto, "a.jpg")
	env.analyze(t, a.ID)
	b := env.createRecord(t, labeling.SourcePhoto, "b.jpg")
	env.analyze(t, b.ID)

	// One confirmed as predicted, one corrected.
	env.request(t, http.MethodPost, "/api/v1/records/"+a.ID+"/review",
		ReviewRequest{ConfirmAsPredicted: true}, nil)
	env.request(t, http.MethodPost, "/api/v1/records/"+b.ID+"/review",
		ReviewRequest{Subtype: "Soft Summer", Season: "summer", Notes: "cooler"}, nil)

	var resp StatsResponse
	rec := env.request(t, http.MethodGet, "/api/v1/stats", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, resp.Total)
	assert.EqualValues(t, 2, resp.Confirmed)
	assert.InDelta(t, 50.0, resp.DisagreementRate, 0.001)
	assert.EqualValues(t, 1, resp.ByStatus[string(labeling.StatusExpertVerified)])
	assert.EqualValues(t, 1, resp.BySeason["summer"])
}

func TestReanalysisLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["a.jpg"] = warmAutumnResult(92)
	env.classifier.results["b.jpg"] = warmAutumnResult(90)

	// Two confirmed records: one correct prediction, one corrected by a human.
	a := env.createRecord(t, labeling.SourcePhoto, "a.jpg")
	env.analyze(t, a.ID)
	env.request(t, http.MethodPost, "/api/v1/records/"+a.ID+"/review",
		ReviewRequest{ConfirmAsPredicted: true}, nil)

	b := env.createRecord(t, labeling.SourcePhoto, "b.jpg")
	env.analyze(t, b.ID)
	env.request(t, http.MethodPost, "/api/v1/records/"+b.ID+"/review",
		ReviewRequest{Subtype: "Soft Summer", Season: "summer", Notes: "cooler"}, nil)

	// The new model fixes the previously wrong record.
	env.classifier.results["b.jpg"] = &classifier.Result{
		Label:      taxonomy.Label{Name: "Soft Summer", Season: taxonomy.SeasonSummer},
		Confidence: 88,
	}

	var started StartReanalysisResponse
	rec := env.request(t, http.MethodPost, "/api/v1/reanalysis",
		StartReanalysisRequest{Policy: "all_confirmed"}, &started)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, started.Total)

	require.Eventually(t, func() bool {
		var status ReanalysisStatusResponse
		r := env.request(t, http.MethodGet, "/api/v1/reanalysis/status", nil, &status)
		return r.Code == http.StatusOK && status.Done
	}, 5*time.Second, 10*time.Millisecond)

	var report struct {
		Summary struct {
			Evaluated int     `json:"evaluated"`
			Improved  int     `json:"improved"`
			Regressed int     `json:"regressed"`
			Unchanged int     `json:"unchanged"`
			NewAccuracy float64 `json:"newAccuracy"`
		} `json:"summary"`
	}
	rec = env.request(t, http.MethodGet, "/api/v1/reanalysis/result", nil, &report)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, report.Summary.Evaluated)
	assert.Equal(t, 1, report.Summary.Improved)
	assert.Equal(t, 0, report.Summary.Regressed)
	assert.Equal(t, 1, report.Summary.Unchanged)
	assert.InDelta(t, 100.0, report.Summary.NewAccuracy, 0.001)
}

func TestReanalysisWithFeaturesIncludesUnconfirmed(t *testing.T) {
	env := newTestEnv(t)
	env.classifier.results["a.jpg"] = warmAutumnResult(92)
	env.classifier.results["b.jpg"] = warmAutumnResult(85)

	// One confirmed record and one that only ever saw the AI.
	a := env.createRecord(t, labeling.SourcePhoto, "a.jpg")
	env.analyze(t, a.ID)
	env.request(t, http.MethodPost, "/api/v1/records/"+a.ID+"/review",
		ReviewRequest{ConfirmAsPredicted: true}, nil)

	b := env.createRecord(t, labeling.SourcePhoto, "b.jpg")
	env.analyze(t, b.ID)

	var started StartReanalysisResponse
	rec := env.request(t, http.MethodPost, "/api/v1/reanalysis",
		StartReanalysisRequest{Policy: "with_features"}, &started)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, started.Total)

	require.Eventually(t, func() bool {
		var status ReanalysisStatusResponse
		r := env.request(t, http.MethodGet, "/api/v1/reanalysis/status", nil, &status)
		return r.Code == http.StatusOK && status.Done
	}, 5*time.Second, 10*time.Millisecond)

	var report struct {
		Summary struct {
			Total     int `json:"total"`
			Evaluated int `json:"evaluated"`
			Skipped   int `json:"skipped"`
		} `json:"summary"`
	}
	rec = env.request(t, http.MethodGet, "/api/v1/reanalysis/result", nil, &report)
	require.Equal(t, http.StatusOK, rec.Code)

	// The unconfirmed record is listed but never counts toward accuracy.
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Evaluated)
	assert.Equal(t, 1, report.Summary.Skipped)
}

func TestReanalysisStatusWithoutRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/reanalysis/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

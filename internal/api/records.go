package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

func (c *Controller) initRecordRoutes() {
	g := c.Group.Group("/records")
	g.GET("", c.GetRecords)
	g.POST("", c.CreateRecord)
	g.POST("/autoconfirm", c.AutoConfirm)
	g.GET("/:id", c.GetRecord)
	g.DELETE("/:id", c.DeleteRecord)
	g.POST("/:id/analyze", c.AnalyzeRecord)
	g.POST("/:id/review", c.ReviewRecord)
	g.POST("/:id/reset", c.ResetRecord)
	g.POST("/:id/timeperiod", c.AssignTimePeriod)
}

// LabelView is a subtype-and-season pair in API responses.
type LabelView struct {
	Subtype string `json:"subtype"`
	Season  string `json:"season"`
}

// AlternativeView is one ranked secondary guess in API responses.
type AlternativeView struct {
	Subtype    string  `json:"subtype"`
	Season     string  `json:"season"`
	Confidence float64 `json:"confidence"`
	Rank       int     `json:"rank"`
}

// RecordResponse represents one record in API responses.
type RecordResponse struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	ImageRef string `json:"imageRef,omitempty"`
	Status   string `json:"status"`

	Predicted           *LabelView        `json:"predicted,omitempty"`
	PredictedConfidence *float64          `json:"predictedConfidence,omitempty"`
	ConfidenceBucket    string            `json:"confidenceBucket"`
	Alternatives        []AlternativeView `json:"alternatives,omitempty"`

	Confirmed *LabelView `json:"confirmed,omitempty"`

	TimePeriod        *string `json:"timePeriod,omitempty"`
	IsDisagreement    bool    `json:"isDisagreement"`
	DisagreementNotes *string `json:"disagreementNotes,omitempty"`

	ExtractedFeatures map[string]any `json:"extractedFeatures,omitempty"`
	Notes             *string        `json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data   any   `json:"data"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func toRecordResponse(r *labeling.Record) RecordResponse {
	resp := RecordResponse{
		ID:                  r.ID,
		Source:              r.Source,
		ImageRef:            r.ImageRef,
		Status:              string(r.Status),
		PredictedConfidence: r.PredictedConfidence,
		ConfidenceBucket:    string(labeling.Bucket(r.PredictedConfidence)),
		TimePeriod:          r.TimePeriod,
		IsDisagreement:      r.IsDisagreement,
		DisagreementNotes:   r.DisagreementNotes,
		ExtractedFeatures:   r.ExtractedFeatures,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		ConfirmedAt:         r.ConfirmedAt,
	}
	if label, ok := r.PredictedLabel(); ok {
		resp.Predicted = &LabelView{Subtype: label.Name, Season: string(label.Season)}
	}
	if label, ok := r.ConfirmedLabel(); ok {
		resp.Confirmed = &LabelView{Subtype: label.Name, Season: string(label.Season)}
	}
	for _, alt := range r.Alternatives {
		resp.Alternatives = append(resp.Alternatives, AlternativeView{
			Subtype:    alt.Name,
			Season:     alt.Season,
			Confidence: alt.Confidence,
			Rank:       alt.Rank,
		})
	}
	return resp
}

// GetRecords handles GET /records with status, season, source and pagination
// query parameters.
func (c *Controller) GetRecords(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("numResults"))
	if limit <= 0 {
		limit = 100
	} else if limit > 1000 {
		limit = 1000
	}
	offset, _ := strconv.Atoi(ctx.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	filter := datastore.RecordFilter{
		Status: labeling.Status(ctx.QueryParam("status")),
		Season: taxonomy.Season(ctx.QueryParam("season")),
		Source: ctx.QueryParam("source"),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return c.HandleError(ctx, nil, "unknown status filter", http.StatusBadRequest)
	}
	if filter.Season != "" && !filter.Season.Valid() {
		return c.HandleError(ctx, nil, "unknown season filter", http.StatusBadRequest)
	}

	records, total, err := c.DS.SearchRecords(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list records", http.StatusInternalServerError)
	}

	data := make([]RecordResponse, 0, len(records))
	for i := range records {
		data = append(data, toRecordResponse(&records[i]))
	}
	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Data:   data,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// CreateRecordRequest registers a new image for labeling.
type CreateRecordRequest struct {
	Source   string `json:"source"`
	ImageRef string `json:"imageRef"`
}

// CreateRecord handles POST /records.
func (c *Controller) CreateRecord(ctx echo.Context) error {
	req := &CreateRecordRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if req.Source == "" {
		req.Source = labeling.SourcePhoto
	}

	record := labeling.NewRecord(req.Source)
	record.ImageRef = req.ImageRef
	if err := c.DS.Save(record); err != nil {
		return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
	}

	c.apiLogger.Info("Record created", "record_id", record.ID, "source", record.Source)
	return ctx.JSON(http.StatusCreated, toRecordResponse(record))
}

// GetRecord handles GET /records/:id.
func (c *Controller) GetRecord(ctx echo.Context) error {
	record, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Record not found", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, toRecordResponse(&record))
}

// DeleteRecord handles DELETE /records/:id.
func (c *Controller) DeleteRecord(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.DS.Delete(id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete record", http.StatusInternalServerError)
	}
	c.apiLogger.Info("Record deleted", "record_id", id)
	return ctx.NoContent(http.StatusNoContent)
}

// AnalyzeRecord handles POST /records/:id/analyze: one classification call,
// applied to the record.
func (c *Controller) AnalyzeRecord(ctx echo.Context) error {
	record, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Record not found", http.StatusNotFound)
	}
	if c.Classifier == nil {
		return c.HandleError(ctx, nil, "Classification service is not configured", http.StatusServiceUnavailable)
	}

	start := time.Now()
	result, err := c.Classifier.Classify(ctx.Request().Context(), record.ImageRef)
	if err != nil {
		c.countClassification(classificationOutcome(err), time.Since(start))
		labeling.MarkError(&record)
		if saveErr := c.DS.Save(&record); saveErr != nil {
			c.apiLogger.Error("Failed to persist error state", "record_id", record.ID, "error", saveErr)
		}
		return c.HandleError(ctx, err, "Classification failed", http.StatusBadGateway)
	}
	c.countClassification("ok", time.Since(start))

	prediction := labeling.Prediction{
		Label:      result.Label,
		Confidence: result.Confidence,
		Features:   result.Features,
	}
	for _, alt := range result.Alternatives {
		prediction.Alternatives = append(prediction.Alternatives, labeling.AlternativePrediction{
			Label:      alt.Label,
			Confidence: alt.Confidence,
		})
	}

	if err := labeling.SubmitPrediction(&record, prediction, c.Settings.Review.ReviewThreshold); err != nil {
		return c.HandleError(ctx, err, "Failed to apply prediction", http.StatusInternalServerError)
	}
	if err := c.DS.Save(&record); err != nil {
		return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
	}

	c.apiLogger.Info("Record analyzed",
		"record_id", record.ID,
		"subtype", result.Label.Name,
		"confidence", result.Confidence,
		"status", record.Status)
	return ctx.JSON(http.StatusOK, toRecordResponse(&record))
}

func classificationOutcome(err error) string {
	if classifier.IsTransient(err) {
		return "service_error"
	}
	return "parse_error"
}

func (c *Controller) countClassification(outcome string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ClassificationsTotal.WithLabelValues(outcome).Inc()
	c.metrics.ClassificationTime.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ReviewRequest carries a human review decision. Either the prediction is
// confirmed as-is or a corrected label is supplied.
type ReviewRequest struct {
	ConfirmAsPredicted bool   `json:"confirmAsPredicted"`
	Subtype            string `json:"subtype,omitempty"`
	Season             string `json:"season,omitempty"`
	Notes              string `json:"notes,omitempty"`
	// Status optionally elevates the confirmation (expert_verified,
	// nechama_verified). Empty means manually_labeled for corrections.
	Status string `json:"status,omitempty"`
}

// ReviewResponse reports the reviewed record plus correction bookkeeping.
type ReviewResponse struct {
	Record       RecordResponse `json:"record"`
	Disagreement bool           `json:"disagreement"`
	Informative  bool           `json:"informative"`
}

// ReviewRecord handles POST /records/:id/review.
func (c *Controller) ReviewRecord(ctx echo.Context) error {
	record, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Record not found", http.StatusNotFound)
	}

	req := &ReviewRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	result := labeling.CorrectionResult{Informative: true}
	if req.ConfirmAsPredicted {
		if err := labeling.ConfirmAsPredicted(&record); err != nil {
			return c.HandleError(ctx, err, "Cannot confirm without a prediction", http.StatusConflict)
		}
	} else {
		label := taxonomy.Label{Name: req.Subtype, Season: taxonomy.Season(req.Season)}
		result, err = labeling.RecordCorrection(&record, label, req.Notes, labeling.Status(req.Status))
		if err != nil {
			return c.HandleError(ctx, err, "Invalid correction", http.StatusBadRequest)
		}
	}

	if err := c.DS.Save(&record); err != nil {
		return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
	}

	if c.metrics != nil {
		c.metrics.ConfirmationsTotal.WithLabelValues(string(record.Status)).Inc()
		if result.Disagreement {
			c.metrics.DisagreementsTotal.Inc()
		}
	}
	c.apiLogger.Info("Record reviewed",
		"record_id", record.ID,
		"status", record.Status,
		"disagreement", result.Disagreement)
	return ctx.JSON(http.StatusOK, ReviewResponse{
		Record:       toRecordResponse(&record),
		Disagreement: result.Disagreement,
		Informative:  result.Informative,
	})
}

// ResetRecord handles POST /records/:id/reset, returning the record to
// unlabeled.
func (c *Controller) ResetRecord(ctx echo.Context) error {
	record, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Record not found", http.StatusNotFound)
	}

	labeling.Reset(&record)
	if err := c.DS.Save(&record); err != nil {
		return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
	}
	c.apiLogger.Info("Record reset", "record_id", record.ID)
	return ctx.JSON(http.StatusOK, toRecordResponse(&record))
}

// TimePeriodRequest assigns the explicit time-period axis.
type TimePeriodRequest struct {
	Period string `json:"period"`
}

// AssignTimePeriod handles POST /records/:id/timeperiod.
func (c *Controller) AssignTimePeriod(ctx echo.Context) error {
	record, err := c.DS.Get(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Record not found", http.StatusNotFound)
	}

	req := &TimePeriodRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if err := labeling.AssignTimePeriod(&record, taxonomy.TimePeriod(req.Period)); err != nil {
		return c.HandleError(ctx, err, "Invalid time period", http.StatusBadRequest)
	}
	if err := c.DS.Save(&record); err != nil {
		return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toRecordResponse(&record))
}

// AutoConfirmRequest optionally overrides the configured confidence threshold.
type AutoConfirmRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

// AutoConfirmResponse lists the records confirmed by one batch call.
type AutoConfirmResponse struct {
	Confirmed int      `json:"confirmed"`
	RecordIDs []string `json:"recordIds"`
}

// AutoConfirm handles POST /records/autoconfirm: every record awaiting review
// whose confidence meets the threshold is confirmed as predicted.
func (c *Controller) AutoConfirm(ctx echo.Context) error {
	req := &AutoConfirmRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	threshold := c.Settings.Review.AutoConfirmThreshold
	if threshold == 0 {
		threshold = labeling.DefaultAutoConfirmThreshold
	}
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 100 {
		return c.HandleError(ctx, nil, "threshold must be within 0-100", http.StatusBadRequest)
	}

	records, err := c.DS.GetAllRecords()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list records", http.StatusInternalServerError)
	}

	resp := AutoConfirmResponse{RecordIDs: []string{}}
	for i := range records {
		record := &records[i]
		if !labeling.AutoConfirmEligible(record, threshold) {
			continue
		}
		if err := labeling.ConfirmAsPredicted(record); err != nil {
			c.apiLogger.Warn("Auto-confirm skipped record", "record_id", record.ID, "error", err)
			continue
		}
		if err := c.DS.Save(record); err != nil {
			return c.HandleError(ctx, err, "Failed to save record", http.StatusInternalServerError)
		}
		if c.metrics != nil {
			c.metrics.ConfirmationsTotal.WithLabelValues(string(record.Status)).Inc()
		}
		resp.Confirmed++
		resp.RecordIDs = append(resp.RecordIDs, record.ID)
	}

	c.apiLogger.Info("Auto-confirm completed", "threshold", threshold, "confirmed", resp.Confirmed)
	return ctx.JSON(http.StatusOK, resp)
}

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/reanalysis"
)

func (c *Controller) initReanalysisRoutes() {
	g := c.Group.Group("/reanalysis")
	g.POST("", c.StartReanalysis)
	g.GET("/status", c.GetReanalysisStatus)
	g.GET("/result", c.GetReanalysisResult)
	g.POST("/cancel", c.CancelReanalysis)
}

// runState tracks one asynchronous re-analysis run.
type runState struct {
	ID        string
	Policy    reanalysis.CohortPolicy
	Apply     bool
	StartedAt time.Time
	cancel    context.CancelFunc

	mu        sync.Mutex
	completed int
	total     int
	done      bool
	report    *reanalysis.Report
	err       error
}

func (s *runState) progress(p reanalysis.Progress) {
	s.mu.Lock()
	s.completed = p.Completed
	s.total = p.Total
	s.mu.Unlock()
}

func (s *runState) finish(report *reanalysis.Report, err error) {
	s.mu.Lock()
	s.done = true
	s.report = report
	s.err = err
	s.mu.Unlock()
}

// StartReanalysisRequest selects the cohort for a run. Apply controls whether
// new predictions are written back to unconfirmed prediction fields.
type StartReanalysisRequest struct {
	Policy string `json:"policy"`
	Apply  bool   `json:"apply"`
}

// StartReanalysisResponse acknowledges an accepted run.
type StartReanalysisResponse struct {
	RunID  string `json:"runId"`
	Policy string `json:"policy"`
	Total  int    `json:"total"`
}

// StartReanalysis handles POST /reanalysis. Only one run may be active at a
// time; a second start while one is running returns 409.
func (c *Controller) StartReanalysis(ctx echo.Context) error {
	if c.Classifier == nil {
		return c.HandleError(ctx, nil, "Classification service is not configured", http.StatusServiceUnavailable)
	}

	req := &StartReanalysisRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	policy := reanalysis.CohortPolicy(req.Policy)
	if req.Policy == "" {
		policy = reanalysis.CohortAllConfirmed
	}

	// with_features reaches beyond confirmed records; the other policies only
	// ever score ground truth.
	fetch := c.DS.GetConfirmedRecords
	if policy == reanalysis.CohortWithFeatures {
		fetch = c.DS.GetRecordsWithFeatures
	}
	records, err := fetch()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list records", http.StatusInternalServerError)
	}
	pointers := make([]*labeling.Record, 0, len(records))
	for i := range records {
		pointers = append(pointers, &records[i])
	}
	cohort, err := reanalysis.SelectCohort(policy, pointers)
	if err != nil {
		return c.HandleError(ctx, err, "Unknown cohort policy", http.StatusBadRequest)
	}

	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	if c.activeRun != nil {
		c.activeRun.mu.Lock()
		running := !c.activeRun.done
		c.activeRun.mu.Unlock()
		if running {
			return c.HandleError(ctx, nil, "A re-analysis run is already in progress", http.StatusConflict)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &runState{
		ID:        uuid.NewString(),
		Policy:    policy,
		Apply:     req.Apply,
		StartedAt: time.Now(),
		cancel:    cancel,
		total:     len(cohort),
	}
	c.activeRun = run

	if c.metrics != nil {
		c.metrics.ReanalysisRunsTotal.Inc()
	}
	c.apiLogger.Info("Re-analysis run accepted",
		"run_id", run.ID, "policy", policy, "cohort", len(cohort), "apply", req.Apply)

	go c.executeRun(runCtx, run, cohort)

	return ctx.JSON(http.StatusAccepted, StartReanalysisResponse{
		RunID:  run.ID,
		Policy: string(policy),
		Total:  len(cohort),
	})
}

func (c *Controller) executeRun(ctx context.Context, run *runState, cohort []*labeling.Record) {
	defer run.cancel()

	engine := reanalysis.NewEngine(c.Classifier)
	report, err := engine.Run(ctx, cohort, run.progress)

	if report != nil {
		for i := range report.Items {
			item := &report.Items[i]
			if c.metrics != nil {
				c.metrics.ReanalysisItemsTotal.WithLabelValues(string(item.Outcome)).Inc()
			}
			if run.Apply && item.Prediction != nil {
				c.applyReanalysis(cohort[i], item)
			}
		}
	}

	run.finish(report, err)
}

// applyReanalysis writes the fresh prediction back to the record. Confirmed
// labels are never touched; only the prediction side is refreshed.
func (c *Controller) applyReanalysis(record *labeling.Record, item *reanalysis.ItemResult) {
	prediction := labeling.Prediction{
		Label:      item.Prediction.Label,
		Confidence: item.Prediction.Confidence,
		Features:   item.Prediction.Features,
	}
	for _, alt := range item.Prediction.Alternatives {
		prediction.Alternatives = append(prediction.Alternatives, labeling.AlternativePrediction{
			Label:      alt.Label,
			Confidence: alt.Confidence,
		})
	}
	if err := labeling.SubmitPrediction(record, prediction, c.Settings.Review.ReviewThreshold); err != nil {
		c.apiLogger.Error("Failed to apply re-analysis prediction", "record_id", record.ID, "error", err)
		return
	}
	if err := c.DS.Save(record); err != nil {
		c.apiLogger.Error("Failed to save re-analyzed record", "record_id", record.ID, "error", err)
	}
}

// ReanalysisStatusResponse reports live progress of the current run.
type ReanalysisStatusResponse struct {
	RunID     string    `json:"runId"`
	Policy    string    `json:"policy"`
	StartedAt time.Time `json:"startedAt"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Done      bool      `json:"done"`
	Error     string    `json:"error,omitempty"`
}

// GetReanalysisStatus handles GET /reanalysis/status.
func (c *Controller) GetReanalysisStatus(ctx echo.Context) error {
	c.runMutex.Lock()
	run := c.activeRun
	c.runMutex.Unlock()
	if run == nil {
		return c.HandleError(ctx, nil, "No re-analysis run found", http.StatusNotFound)
	}

	run.mu.Lock()
	resp := ReanalysisStatusResponse{
		RunID:     run.ID,
		Policy:    string(run.Policy),
		StartedAt: run.StartedAt,
		Completed: run.completed,
		Total:     run.total,
		Done:      run.done,
	}
	if run.err != nil {
		resp.Error = run.err.Error()
	}
	run.mu.Unlock()

	return ctx.JSON(http.StatusOK, resp)
}

// GetReanalysisResult handles GET /reanalysis/result. 409 while the run is
// still in progress.
func (c *Controller) GetReanalysisResult(ctx echo.Context) error {
	c.runMutex.Lock()
	run := c.activeRun
	c.runMutex.Unlock()
	if run == nil {
		return c.HandleError(ctx, nil, "No re-analysis run found", http.StatusNotFound)
	}

	run.mu.Lock()
	done := run.done
	report := run.report
	run.mu.Unlock()
	if !done {
		return c.HandleError(ctx, nil, "Re-analysis run is still in progress", http.StatusConflict)
	}
	if report == nil {
		return c.HandleError(ctx, nil, "Re-analysis run produced no report", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, report)
}

// CancelReanalysis handles POST /reanalysis/cancel. The run stops between
// items; already-processed results are kept in the partial report.
func (c *Controller) CancelReanalysis(ctx echo.Context) error {
	c.runMutex.Lock()
	run := c.activeRun
	c.runMutex.Unlock()
	if run == nil {
		return c.HandleError(ctx, nil, "No re-analysis run found", http.StatusNotFound)
	}

	run.cancel()
	c.apiLogger.Info("Re-analysis run cancelled", "run_id", run.ID)
	return ctx.JSON(http.StatusOK, map[string]string{"runId": run.ID, "status": "cancelling"})
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/huelab/huelab-go/internal/labeling"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

func (c *Controller) initHierarchyRoutes() {
	c.Group.GET("/hierarchy", c.GetHierarchy)
	c.Group.GET("/stats", c.GetStats)
}

// HierarchyItemView is the compact record view embedded in hierarchy nodes.
type HierarchyItemView struct {
	ID      string `json:"id"`
	Subtype string `json:"subtype"`
	Season  string `json:"season"`
	Status  string `json:"status"`
}

// SubtypeNode is one catalog subtype and the records resolved to it.
type SubtypeNode struct {
	Subtype taxonomy.Subtype    `json:"subtype"`
	Items   []HierarchyItemView `json:"items"`
}

// PeriodNode is one time period's subtypes plus period-tagged records that
// matched no subtype.
type PeriodNode struct {
	Period     string              `json:"period"`
	Subtypes   []SubtypeNode       `json:"subtypes"`
	Unassigned []HierarchyItemView `json:"unassigned"`
}

// SeasonNode is one season's drill-down tree.
type SeasonNode struct {
	Season        string              `json:"season"`
	Periods       []PeriodNode        `json:"periods"`
	Uncategorized []HierarchyItemView `json:"uncategorized"`
	Total         int                 `json:"total"`
}

// HierarchyResponse is the full Season -> TimePeriod -> Subtype tree.
type HierarchyResponse struct {
	Seasons []SeasonNode `json:"seasons"`
}

// GetHierarchy handles GET /hierarchy. The tree is rebuilt from current
// records and catalog on every call.
func (c *Controller) GetHierarchy(ctx echo.Context) error {
	records, err := c.DS.GetAllRecords()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list records", http.StatusInternalServerError)
	}
	catalog, err := c.DS.GetSubtypes()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load subtype catalog", http.StatusInternalServerError)
	}

	byID := make(map[string]*labeling.Record, len(records))
	items := make([]taxonomy.Item, 0, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
		items = append(items, &records[i])
	}

	hierarchy := taxonomy.BuildHierarchy(items, catalog)

	toViews := func(items []taxonomy.Item) []HierarchyItemView {
		views := make([]HierarchyItemView, 0, len(items))
		for _, item := range items {
			view := HierarchyItemView{ID: item.ItemID()}
			if label, ok := item.EffectiveLabel(); ok {
				view.Subtype = label.Name
				view.Season = string(label.Season)
			}
			if record, ok := byID[item.ItemID()]; ok {
				view.Status = string(record.Status)
			}
			views = append(views, view)
		}
		return views
	}

	resp := HierarchyResponse{Seasons: make([]SeasonNode, 0, len(hierarchy.Seasons))}
	for i := range hierarchy.Seasons {
		sg := &hierarchy.Seasons[i]
		node := SeasonNode{
			Season:        string(sg.Season),
			Periods:       make([]PeriodNode, 0, len(sg.Periods)),
			Uncategorized: toViews(sg.Uncategorized),
		}
		for j := range sg.Periods {
			pg := &sg.Periods[j]
			pn := PeriodNode{
				Period:     string(pg.Period),
				Subtypes:   make([]SubtypeNode, 0, len(pg.Subtypes)),
				Unassigned: toViews(pg.Unassigned),
			}
			for k := range pg.Subtypes {
				pn.Subtypes = append(pn.Subtypes, SubtypeNode{
					Subtype: pg.Subtypes[k].Subtype,
					Items:   toViews(pg.Subtypes[k].Items),
				})
			}
			node.Periods = append(node.Periods, pn)
		}
		subtyped, unassigned, uncategorized := sg.Counts()
		node.Total = subtyped + unassigned + uncategorized
		resp.Seasons = append(resp.Seasons, node)
	}

	return ctx.JSON(http.StatusOK, resp)
}

// StatsResponse summarizes the labeled dataset.
type StatsResponse struct {
	Total            int64            `json:"total"`
	ByStatus         map[string]int64 `json:"byStatus"`
	ByBucket         map[string]int64 `json:"byBucket"`
	BySeason         map[string]int64 `json:"bySeason"`
	Confirmed        int64            `json:"confirmed"`
	DisagreementRate float64          `json:"disagreementRate"`
	AutoConfirmReady int64            `json:"autoConfirmReady"`
}

// GetStats handles GET /stats.
func (c *Controller) GetStats(ctx echo.Context) error {
	records, err := c.DS.GetAllRecords()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list records", http.StatusInternalServerError)
	}

	threshold := c.Settings.Review.AutoConfirmThreshold
	if threshold == 0 {
		threshold = labeling.DefaultAutoConfirmThreshold
	}

	resp := StatsResponse{
		Total:    int64(len(records)),
		ByStatus: make(map[string]int64),
		ByBucket: make(map[string]int64),
		BySeason: make(map[string]int64),
	}
	for i := range records {
		r := &records[i]
		resp.ByStatus[string(r.Status)]++
		resp.ByBucket[string(labeling.Bucket(r.PredictedConfidence))]++
		if label, ok := r.EffectiveLabel(); ok {
			resp.BySeason[string(label.Season)]++
		}
		if r.Status.Confirmed() {
			resp.Confirmed++
		}
		if labeling.AutoConfirmEligible(r, threshold) {
			resp.AutoConfirmReady++
		}
	}
	resp.DisagreementRate = labeling.DisagreementRate(records)

	return ctx.JSON(http.StatusOK, resp)
}

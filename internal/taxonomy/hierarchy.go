package taxonomy

import "strings"

// Item is anything placeable in the hierarchy. A record's effective label is
// its confirmed label when present, otherwise its prediction; items with
// neither are skipped entirely.
type Item interface {
	ItemID() string
	EffectiveLabel() (Label, bool)
}

// SubtypeGroup holds the items resolved to one catalog subtype.
type SubtypeGroup struct {
	Subtype Subtype `json:"subtype"`
	Items   []Item  `json:"items"`
}

// PeriodGroup holds one time period's subtype groups plus the items that
// matched the period tag but no subtype in it.
type PeriodGroup struct {
	Period     TimePeriod     `json:"period"`
	Subtypes   []SubtypeGroup `json:"subtypes"`
	Unassigned []Item         `json:"unassigned"`
}

// SeasonGroup holds one season's period groups plus the items that matched no
// time period at all.
type SeasonGroup struct {
	Season        Season        `json:"season"`
	Periods       []PeriodGroup `json:"periods"`
	Uncategorized []Item        `json:"uncategorized"`
}

// Hierarchy is the Season -> TimePeriod -> Subtype drill-down tree. It is a
// pure function of (items, catalog); build a fresh one after every
// confirmation rather than mutating stored state.
type Hierarchy struct {
	Seasons []SeasonGroup `json:"seasons"`
}

// BuildHierarchy groups items into the three-tier tree. Every item whose
// effective label names a season lands in exactly one bucket of that season:
// a subtype group, a period's unassigned bucket, or the season's
// uncategorized bucket. Items claimed by a subtype are claimed once; when a
// name matches several subtypes the first in catalog order wins.
func BuildHierarchy(items []Item, catalog Catalog) *Hierarchy {
	catalog = catalog.Normalize()
	h := &Hierarchy{Seasons: make([]SeasonGroup, 0, len(Seasons))}

	for _, season := range Seasons {
		seasonItems := selectSeason(items, season)
		claimed := make(map[string]bool, len(seasonItems))
		group := SeasonGroup{Season: season, Periods: make([]PeriodGroup, 0, len(TimePeriods))}

		for _, period := range TimePeriods {
			pg := PeriodGroup{Period: period}
			for _, subtype := range catalog.ForSeasonPeriod(season, period) {
				sg := SubtypeGroup{Subtype: subtype}
				for _, item := range seasonItems {
					if claimed[item.ItemID()] {
						continue
					}
					label, _ := item.EffectiveLabel()
					if subtype.Matches(label) {
						claimed[item.ItemID()] = true
						sg.Items = append(sg.Items, item)
					}
				}
				pg.Subtypes = append(pg.Subtypes, sg)
			}
			for _, item := range seasonItems {
				if claimed[item.ItemID()] {
					continue
				}
				label, _ := item.EffectiveLabel()
				if matchesPeriodTag(label, period) {
					claimed[item.ItemID()] = true
					pg.Unassigned = append(pg.Unassigned, item)
				}
			}
			group.Periods = append(group.Periods, pg)
		}

		for _, item := range seasonItems {
			if !claimed[item.ItemID()] {
				group.Uncategorized = append(group.Uncategorized, item)
			}
		}
		h.Seasons = append(h.Seasons, group)
	}
	return h
}

// selectSeason returns the items whose effective label belongs to season,
// preserving input order.
func selectSeason(items []Item, season Season) []Item {
	var out []Item
	for _, item := range items {
		if label, ok := item.EffectiveLabel(); ok && label.Season == season {
			out = append(out, item)
		}
	}
	return out
}

// matchesPeriodTag reports whether a label's name carries the period keyword
// as a whole word, e.g. "Early Spring" tags the early period. Like subtype
// matching this is a textual policy inherited from the label vocabulary.
func matchesPeriodTag(label Label, period TimePeriod) bool {
	for _, word := range strings.FieldsFunc(strings.ToLower(label.Name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}) {
		if word == string(period) {
			return true
		}
	}
	return false
}

// Season returns the group for a season, or nil if the hierarchy was built
// without it.
func (h *Hierarchy) Season(season Season) *SeasonGroup {
	for i := range h.Seasons {
		if h.Seasons[i].Season == season {
			return &h.Seasons[i]
		}
	}
	return nil
}

// Counts summarizes a season group for invariant checks and stats display.
func (g *SeasonGroup) Counts() (subtyped, unassigned, uncategorized int) {
	for i := range g.Periods {
		unassigned += len(g.Periods[i].Unassigned)
		for j := range g.Periods[i].Subtypes {
			subtyped += len(g.Periods[i].Subtypes[j].Items)
		}
	}
	return subtyped, unassigned, len(g.Uncategorized)
}

// Package taxonomy defines the three-tier season taxonomy (season, time
// period, subtype) and builds display hierarchies from labeled items.
package taxonomy

import "strings"

// Season is one of the four top-level taxonomy roots.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// Seasons lists all seasons in display order. Hierarchy building iterates
// this slice so output ordering is stable across runs.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}

// Valid reports whether s is a known season.
func (s Season) Valid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter:
		return true
	}
	return false
}

// ParseSeason normalizes a free-form season string.
func ParseSeason(value string) (Season, bool) {
	s := Season(strings.ToLower(strings.TrimSpace(value)))
	return s, s.Valid()
}

// TimePeriod is the optional second-level grouping within a season.
type TimePeriod string

const (
	PeriodEarly TimePeriod = "early"
	PeriodMid   TimePeriod = "mid"
	PeriodLate  TimePeriod = "late"
)

// TimePeriods lists all time periods in display order.
var TimePeriods = []TimePeriod{PeriodEarly, PeriodMid, PeriodLate}

// Valid reports whether p is a known time period.
func (p TimePeriod) Valid() bool {
	switch p {
	case PeriodEarly, PeriodMid, PeriodLate:
		return true
	}
	return false
}

// Label is a subtype name paired with its season. The name references a
// catalog subtype by case-insensitive name or slug equality.
type Label struct {
	Name   string `json:"name"`
	Season Season `json:"season"`
}

// Equal compares two labels, ignoring name case.
func (l Label) Equal(other Label) bool {
	return l.Season == other.Season && strings.EqualFold(l.Name, other.Name)
}

// String implements fmt.Stringer.
func (l Label) String() string {
	return l.Name + " (" + string(l.Season) + ")"
}

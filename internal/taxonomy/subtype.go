package taxonomy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huelab/huelab-go/internal/errors"
)

// Subtype is a named taxonomy leaf belonging to exactly one season and
// optionally one time period.
type Subtype struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Slug       string     `json:"slug" yaml:"slug"`
	Season     Season     `json:"season" yaml:"season"`
	TimePeriod TimePeriod `json:"timePeriod,omitempty" yaml:"timePeriod,omitempty"` // empty when the subtype has no period
}

// Matches reports whether a label refers to this subtype. Matching is by
// case-insensitive name or slug equality within the same season. This is the
// single place the textual pseudo-foreign-key policy lives; replace this
// function if records ever carry real subtype IDs.
func (s *Subtype) Matches(label Label) bool {
	if label.Season != s.Season {
		return false
	}
	return strings.EqualFold(label.Name, s.Name) || strings.EqualFold(Slugify(label.Name), s.Slug)
}

// Slugify converts a subtype name to its canonical slug form.
func Slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// Catalog is the read-only subtype reference data supplied to each hierarchy
// build.
type Catalog []Subtype

// periodRank orders time periods for deterministic catalog iteration;
// periodless subtypes sort last.
func periodRank(p TimePeriod) int {
	for i, tp := range TimePeriods {
		if tp == p {
			return i
		}
	}
	return len(TimePeriods)
}

// Normalize fills in missing slugs, lowercases seasons and periods, and sorts
// the catalog by (season, time period, name) so that first-match-wins
// subtype resolution is stable across runs.
func (c Catalog) Normalize() Catalog {
	out := make(Catalog, 0, len(c))
	for _, s := range c {
		s.Season = Season(strings.ToLower(string(s.Season)))
		s.TimePeriod = TimePeriod(strings.ToLower(string(s.TimePeriod)))
		if s.Slug == "" {
			s.Slug = Slugify(s.Name)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		if pi, pj := periodRank(out[i].TimePeriod), periodRank(out[j].TimePeriod); pi != pj {
			return pi < pj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ForSeasonPeriod returns the catalog subtypes tagged with the given season
// and time period, in catalog order.
func (c Catalog) ForSeasonPeriod(season Season, period TimePeriod) []Subtype {
	var out []Subtype
	for _, s := range c {
		if s.Season == season && s.TimePeriod == period {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks catalog entries for unknown seasons or periods.
func (c Catalog) Validate() error {
	for i := range c {
		s := &c[i]
		if !s.Season.Valid() {
			return errors.Newf("subtype %q has unknown season %q", s.Name, s.Season).
				Component("taxonomy").
				Category(errors.CategoryCatalog).
				Build()
		}
		if s.TimePeriod != "" && !s.TimePeriod.Valid() {
			return errors.Newf("subtype %q has unknown time period %q", s.Name, s.TimePeriod).
				Component("taxonomy").
				Category(errors.CategoryCatalog).
				Build()
		}
	}
	return nil
}

// catalogFile is the on-disk YAML layout for subtype imports.
type catalogFile struct {
	Subtypes []Subtype `yaml:"subtypes"`
}

// LoadCatalog reads a subtype catalog from a YAML file, normalizing and
// validating its contents.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading catalog file: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(fmt.Errorf("parsing catalog file: %w", err)).
			Component("taxonomy").
			Category(errors.CategoryFileParsing).
			FileContext(path, int64(len(data))).
			Build()
	}
	catalog := Catalog(file.Subtypes).Normalize()
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

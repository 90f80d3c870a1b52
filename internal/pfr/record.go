// Package pfr defines the domain model for Pro-Football-Reference
// quarterback data: stat records, the field schema they conform to, team
// code handling, and page URL construction.
package pfr

import (
	"fmt"
	"sort"
	"strings"
)

// StatRecord is one normalized row of quarterback statistics, either a
// season-total line or a single situational split. Stats holds named numeric
// fields keyed by the schema in Fields; a missing key means the source cell
// was empty or a dash, which is distinct from zero.
type StatRecord struct {
	PlayerRef  string
	PlayerName string
	Season     int
	Team       string
	Position   string
	SplitType  string
	SplitValue string
	Stats      map[string]float64
}

// IsSeasonTotal reports whether the record is a season-total line rather
// than a split.
func (r *StatRecord) IsSeasonTotal() bool {
	return r.SplitType == "" && r.SplitValue == ""
}

// Get returns the named stat and whether it is present.
func (r *StatRecord) Get(field string) (float64, bool) {
	v, ok := r.Stats[field]
	return v, ok
}

// GetInt returns the named stat truncated to int, and whether it is present.
func (r *StatRecord) GetInt(field string) (int, bool) {
	v, ok := r.Stats[field]
	return int(v), ok
}

// Set stores a stat value, allocating the map on first use.
func (r *StatRecord) Set(field string, v float64) {
	if r.Stats == nil {
		r.Stats = make(map[string]float64)
	}
	r.Stats[field] = v
}

// Key identifies the (player, season) a record belongs to.
func (r *StatRecord) Key() string {
	return fmt.Sprintf("%s/%d", r.PlayerRef, r.Season)
}

// FieldNames returns the present stat fields in sorted order. Parsing the
// same page twice must yield identical records, so anything that walks the
// stat map goes through this.
func (r *StatRecord) FieldNames() []string {
	names := make([]string, 0, len(r.Stats))
	for name := range r.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders a compact log-friendly representation.
func (r *StatRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %s", r.PlayerRef, r.Season, r.Team)
	if !r.IsSeasonTotal() {
		fmt.Fprintf(&b, " [%s=%s]", r.SplitType, r.SplitValue)
	}
	fmt.Fprintf(&b, " fields=%d", len(r.Stats))
	return b.String()
}

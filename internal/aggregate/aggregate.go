// Package aggregate reconciles per-team stat lines for players who changed
// teams mid-season into a single canonical season record.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/albapepper/pfr-ingest/internal/pfr"
)

// Warning flags an ambiguous multi-team resolution that was settled by a
// deterministic tie-break rather than failing the item.
type Warning struct {
	PlayerRef string
	Season    int
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s/%d: %s", w.PlayerRef, w.Season, w.Message)
}

// Resolve collapses all season-total records for one player and season into
// the canonical record.
//
// A record carrying the combined multi-team sentinel is authoritative and
// discards the per-team rows; two sentinels (which the site should never
// publish) tie-break on higher attempts with a warning. With only per-team
// rows, a combined record is synthesized: counting fields sum, maximum
// fields take the max, and rate fields are recomputed from the summed
// counts the same way the site derives its own combined lines.
func Resolve(records []pfr.StatRecord) (pfr.StatRecord, []Warning, error) {
	if len(records) == 0 {
		return pfr.StatRecord{}, nil, fmt.Errorf("aggregate: no records")
	}
	ref, season := records[0].PlayerRef, records[0].Season
	for _, r := range records[1:] {
		if r.PlayerRef != ref || r.Season != season {
			return pfr.StatRecord{}, nil, fmt.Errorf(
				"aggregate: mixed records (%s/%d and %s/%d)", ref, season, r.PlayerRef, r.Season)
		}
	}

	var combined []pfr.StatRecord
	var perTeam []pfr.StatRecord
	for _, r := range records {
		if pfr.IsMultiTeam(r.Team) {
			combined = append(combined, r)
		} else {
			perTeam = append(perTeam, r)
		}
	}

	var warnings []Warning

	switch {
	case len(combined) == 1:
		return combined[0], nil, nil

	case len(combined) > 1:
		sort.SliceStable(combined, func(i, j int) bool {
			ai, _ := combined[i].Get("att")
			aj, _ := combined[j].Get("att")
			return ai > aj
		})
		warnings = append(warnings, Warning{
			PlayerRef: ref,
			Season:    season,
			Message: fmt.Sprintf("%d combined records present, kept the one with most attempts (%s)",
				len(combined), combined[0].Team),
		})
		return combined[0], warnings, nil
	}

	// No combined record published.
	teams := partitionTeams(perTeam)
	if len(teams) == 1 {
		return perTeam[0], nil, nil
	}

	return synthesize(perTeam, len(teams)), warnings, nil
}

func partitionTeams(records []pfr.StatRecord) map[string]struct{} {
	teams := make(map[string]struct{})
	for _, r := range records {
		teams[r.Team] = struct{}{}
	}
	return teams
}

// synthesize builds the combined record from per-team partial seasons.
func synthesize(records []pfr.StatRecord, teamCount int) pfr.StatRecord {
	// The stint with the most attempts supplies name and position.
	primary := records[0]
	for _, r := range records[1:] {
		ap, _ := primary.Get("att")
		ar, _ := r.Get("att")
		if ar > ap {
			primary = r
		}
	}

	out := pfr.StatRecord{
		PlayerRef:  primary.PlayerRef,
		PlayerName: primary.PlayerName,
		Season:     primary.Season,
		Team:       pfr.MultiTeamCode(teamCount),
		Position:   primary.Position,
		Stats:      make(map[string]float64),
	}

	for _, r := range records {
		for _, name := range r.FieldNames() {
			field, known := pfr.Fields[name]
			if !known {
				continue
			}
			v := r.Stats[name]
			switch field.Kind {
			case pfr.KindCount:
				out.Stats[name] += v
			case pfr.KindMax:
				if cur, ok := out.Stats[name]; !ok || v > cur {
					out.Stats[name] = v
				}
			case pfr.KindRate:
				// Recomputed below from the summed counts.
			}
		}
	}

	recomputeRates(&out)
	return out
}

// recomputeRates derives every rate field from the summed counting fields.
// Rates that cannot be derived from counts (qbr, succ_pct) stay absent on
// a synthesized record.
func recomputeRates(rec *pfr.StatRecord) {
	get := func(name string) (float64, bool) { return rec.Get(name) }

	att, hasAtt := get("att")
	cmp, hasCmp := get("cmp")
	yds, hasYds := get("yds")
	td, hasTD := get("td")
	ints, hasInt := get("int")
	g, hasG := get("g")
	sk, hasSk := get("sk")
	skYds, hasSkYds := get("sk_yds")

	set := func(name string, v float64) { rec.Set(name, round1(v)) }

	if hasAtt && att > 0 {
		if hasCmp {
			set("cmp_pct", cmp/att*100)
		}
		if hasTD {
			set("td_pct", td/att*100)
		}
		if hasInt {
			set("int_pct", ints/att*100)
		}
		if hasYds {
			set("y_a", yds/att)
		}
		if hasYds && hasTD && hasInt {
			set("ay_a", (yds+20*td-45*ints)/att)
		}
	}
	if hasCmp && cmp > 0 && hasYds {
		set("y_c", yds/cmp)
	}
	if hasG && g > 0 {
		if hasYds {
			set("y_g", yds/g)
		}
		if hasAtt {
			set("a_g", att/g)
		}
	}
	if hasAtt && hasSk && att+sk > 0 {
		set("sk_pct", sk/(att+sk)*100)
		if hasYds && hasSkYds {
			set("ny_a", (yds-skYds)/(att+sk))
			if hasTD && hasInt {
				set("any_a", (yds-skYds+20*td-45*ints)/(att+sk))
			}
		}
	}
	if hasAtt && hasCmp && hasYds && hasTD && hasInt {
		set("rate", pfr.PasserRating(cmp, att, yds, td, ints))
	}

	if rushAtt, ok := get("rush_att"); ok && rushAtt > 0 {
		if rushYds, ok := get("rush_yds"); ok {
			set("rush_y_a", rushYds/rushAtt)
		}
	}
	if hasG && g > 0 {
		if rushAtt, ok := get("rush_att"); ok {
			set("rush_a_g", rushAtt/g)
		}
		if rushYds, ok := get("rush_yds"); ok {
			set("rush_y_g", rushYds/g)
		}
	}
}

// round1 matches the site's one-decimal presentation of derived rates.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

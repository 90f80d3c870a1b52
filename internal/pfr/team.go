package pfr

import (
	"fmt"
	"regexp"
	"strings"
)

var multiTeamRe = regexp.MustCompile(`^\d+TM$`)

// teamAliases maps the short codes PFR occasionally emits to its canonical
// three-letter codes.
var teamAliases = map[string]string{
	"SF":  "SFO",
	"GB":  "GNB",
	"KC":  "KAN",
	"LV":  "LVR",
	"NE":  "NWE",
	"NO":  "NOR",
	"TB":  "TAM",
	"TBB": "TAM",
	"JAC": "JAX",
}

// validTeamCodes is the set of canonical PFR franchise codes.
var validTeamCodes = map[string]struct{}{
	"ARI": {}, "ATL": {}, "BAL": {}, "BUF": {}, "CAR": {}, "CHI": {},
	"CIN": {}, "CLE": {}, "DAL": {}, "DEN": {}, "DET": {}, "GNB": {},
	"HOU": {}, "IND": {}, "JAX": {}, "KAN": {}, "LAC": {}, "LAR": {},
	"LVR": {}, "MIA": {}, "MIN": {}, "NWE": {}, "NOR": {}, "NYG": {},
	"NYJ": {}, "PHI": {}, "PIT": {}, "SEA": {}, "SFO": {}, "TAM": {},
	"TEN": {}, "WAS": {},
}

// NormalizeTeam canonicalizes a raw team code. Multi-team sentinels
// (2TM, 3TM, ...) pass through unchanged.
func NormalizeTeam(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || multiTeamRe.MatchString(code) {
		return code
	}
	if mapped, ok := teamAliases[code]; ok {
		return mapped
	}
	return code
}

// IsMultiTeam reports whether code is a combined multi-team sentinel.
func IsMultiTeam(code string) bool {
	return multiTeamRe.MatchString(code)
}

// IsValidTeam reports whether code is a known franchise code or a
// multi-team sentinel.
func IsValidTeam(code string) bool {
	if IsMultiTeam(code) {
		return true
	}
	_, ok := validTeamCodes[code]
	return ok
}

// MultiTeamCode builds the sentinel for a season spent with n teams.
func MultiTeamCode(n int) string {
	return fmt.Sprintf("%dTM", n)
}

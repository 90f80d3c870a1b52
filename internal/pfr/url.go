package pfr

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBaseURL is the production site root; overridable in config for
// tests against a local server.
const DefaultBaseURL = "https://www.pro-football-reference.com"

// Profile hrefs look like /players/B/BurrJo01.htm; the last path segment
// before the .htm suffix is the player ref.
var playerHrefRe = regexp.MustCompile(`/players/[A-Z]/([A-Za-z0-9]+)\.htm`)

// ExtractPlayerRef pulls the player ref out of a profile href, lowercased.
// Returns "" when the href does not match the profile pattern.
func ExtractPlayerRef(href string) string {
	m := playerHrefRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// SeasonIndexURL is the league-wide passing table for one season.
func SeasonIndexURL(base string, season int) string {
	return fmt.Sprintf("%s/years/%d/passing.htm", base, season)
}

// PlayerURL is a player's profile page, which carries their per-season
// passing table. PFR buckets players by the capitalized first letter of
// the ref.
func PlayerURL(base, playerRef string) string {
	return fmt.Sprintf("%s/players/%s/%s.htm", base, refBucket(playerRef), refSegment(playerRef))
}

// SplitsURL is a player's situational splits page for one season.
func SplitsURL(base, playerRef string, season int) string {
	return fmt.Sprintf("%s/players/%s/%s/splits/%d/", base, refBucket(playerRef), refSegment(playerRef), season)
}

func refBucket(playerRef string) string {
	if playerRef == "" {
		return ""
	}
	return strings.ToUpper(playerRef[:1])
}

// refSegment restores the mixed-case form PFR uses in paths: the site
// accepts the capitalized variant for all refs (BurrJo01 and burrjo01
// resolve identically), so we capitalize the first letter only.
func refSegment(playerRef string) string {
	if playerRef == "" {
		return ""
	}
	return strings.ToUpper(playerRef[:1]) + playerRef[1:]
}

package pfr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTeam(t *testing.T) {
	cases := map[string]string{
		"CIN":  "CIN",
		"gb":   "GNB",
		" KC ": "KAN",
		"TBB":  "TAM",
		"2TM":  "2TM",
		"":     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTeam(in), "input %q", in)
	}
}

func TestMultiTeamSentinels(t *testing.T) {
	assert.True(t, IsMultiTeam("2TM"))
	assert.True(t, IsMultiTeam("4TM"))
	assert.False(t, IsMultiTeam("TEN"))
	assert.False(t, IsMultiTeam("TM"))
	assert.Equal(t, "3TM", MultiTeamCode(3))

	assert.True(t, IsValidTeam("2TM"))
	assert.True(t, IsValidTeam("SFO"))
	assert.False(t, IsValidTeam("XYZ"))
}

func TestExtractPlayerRef(t *testing.T) {
	assert.Equal(t, "burrjo01", ExtractPlayerRef("/players/B/BurrJo01.htm"))
	assert.Equal(t, "burrjo01", ExtractPlayerRef("https://www.pro-football-reference.com/players/B/BurrJo01.htm"))
	assert.Empty(t, ExtractPlayerRef("/teams/cin/2024.htm"))
	assert.Empty(t, ExtractPlayerRef(""))
}

func TestURLBuilders(t *testing.T) {
	assert.Equal(t,
		"https://www.pro-football-reference.com/years/2024/passing.htm",
		SeasonIndexURL(DefaultBaseURL, 2024))
	assert.Equal(t,
		"https://www.pro-football-reference.com/players/B/Burrjo01.htm",
		PlayerURL(DefaultBaseURL, "burrjo01"))
	assert.Equal(t,
		"https://www.pro-football-reference.com/players/B/Burrjo01/splits/2024/",
		SplitsURL(DefaultBaseURL, "burrjo01", 2024))
}

func TestPasserRating(t *testing.T) {
	// Perfect game: every component caps at 2.375.
	assert.InDelta(t, 158.3, PasserRating(20, 20, 400, 5, 0), 0.05)

	// Zero attempts cannot divide.
	assert.Zero(t, PasserRating(0, 0, 0, 0, 0))

	// Burrow 2024: 460/652, 4918 yds, 43 td, 9 int → 108.5 official.
	got := PasserRating(460, 652, 4918, 43, 9)
	assert.InDelta(t, 108.5, got, 0.1)

	// Never outside the scale.
	worst := PasserRating(0, 30, -50, 0, 10)
	assert.GreaterOrEqual(t, worst, RatingMin)
	assert.LessOrEqual(t, worst, RatingMax)
}

func TestStatRecordAbsenceVsZero(t *testing.T) {
	rec := StatRecord{Stats: map[string]float64{"int": 0}}

	v, ok := rec.Get("int")
	assert.True(t, ok, "an explicit zero is present")
	assert.Zero(t, v)

	_, ok = rec.Get("qbr")
	assert.False(t, ok, "a missing key is absent, not zero")
}

func TestStatRecordGetInt(t *testing.T) {
	rec := StatRecord{Stats: map[string]float64{"att": 652}}
	n, ok := rec.GetInt("att")
	assert.True(t, ok)
	assert.Equal(t, 652, n)
	assert.True(t, math.Abs(float64(n)-652) < 1e-9)
}

func TestFieldNamesAreSorted(t *testing.T) {
	rec := StatRecord{Stats: map[string]float64{"yds": 1, "att": 2, "cmp": 3}}
	assert.Equal(t, []string{"att", "cmp", "yds"}, rec.FieldNames())
}

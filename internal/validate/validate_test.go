package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/pfr-ingest/internal/pfr"
)

func record(stats map[string]float64) *pfr.StatRecord {
	return &pfr.StatRecord{
		PlayerRef: "burrjo01",
		Season:    2024,
		Team:      "CIN",
		Stats:     stats,
	}
}

func issueFor(issues []Issue, field string, sev Severity) *Issue {
	for _, i := range issues {
		if i.Field == field && i.Severity == sev {
			return &i
		}
	}
	return nil
}

func TestCompletionsExceedAttemptsIsError(t *testing.T) {
	rec := record(map[string]float64{
		"g": 10, "cmp": 25, "att": 20, "yds": 300, "td": 2, "int": 1, "rate": 90.0,
	})
	issues := Check(rec)
	found := issueFor(issues, "cmp", SeverityError)
	require.NotNil(t, found, "cmp > att must be an Error-severity issue")
	assert.Contains(t, found.Message, "completions exceed attempts")
}

func TestGamesStartedExceedGamesPlayed(t *testing.T) {
	rec := record(map[string]float64{
		"g": 5, "gs": 8, "cmp": 10, "att": 20, "yds": 100, "td": 1, "int": 0, "rate": 80,
	})
	issues := Check(rec)
	assert.NotNil(t, issueFor(issues, "gs", SeverityError))
}

func TestRatingOutsideScale(t *testing.T) {
	rec := record(map[string]float64{
		"g": 10, "cmp": 10, "att": 20, "yds": 100, "td": 1, "int": 0, "rate": 200,
	})
	issues := Check(rec)
	found := issueFor(issues, "rate", SeverityError)
	require.NotNil(t, found)
	assert.Contains(t, found.Message, "outside range")
}

func TestFumbleRelationships(t *testing.T) {
	rec := record(map[string]float64{
		"g": 10, "cmp": 10, "att": 20, "yds": 100, "td": 1, "int": 0, "rate": 80,
		"fmb": 3, "fl": 5, "fr": 4,
	})
	issues := Check(rec)
	assert.NotNil(t, issueFor(issues, "fl", SeverityError))
	assert.NotNil(t, issueFor(issues, "fr", SeverityError))
}

func TestTouchdownSubcategoriesExceedTotal(t *testing.T) {
	rec := record(map[string]float64{
		"g": 10, "cmp": 10, "att": 20, "yds": 100, "int": 0, "rate": 80,
		"td": 20, "rush_td": 5, "total_td": 22,
	})
	issues := Check(rec)
	assert.NotNil(t, issueFor(issues, "total_td", SeverityError))
}

func TestMissingOptionalFieldIsWarningNotError(t *testing.T) {
	rec := record(map[string]float64{
		"g": 10, "cmp": 10, "att": 20, "yds": 100, "td": 1, "rate": 80,
		// "int" missing
	})
	issues := Check(rec)
	assert.Nil(t, issueFor(issues, "int", SeverityError))
	assert.NotNil(t, issueFor(issues, "int", SeverityWarning))
}

func TestCleanRecordHasNoErrors(t *testing.T) {
	rec := record(map[string]float64{
		"g": 17, "gs": 17, "cmp": 460, "att": 652, "yds": 4918,
		"td": 43, "int": 9, "rate": 108.5,
	})
	issues := Check(rec)
	assert.False(t, HasErrors(issues), "issues: %v", issues)
}

func TestCheckNeverMutates(t *testing.T) {
	stats := map[string]float64{"g": 10, "cmp": 25, "att": 20}
	rec := record(stats)
	_ = Check(rec)
	assert.Equal(t, map[string]float64{"g": 10, "cmp": 25, "att": 20}, rec.Stats)
}

package batch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/pfr-ingest/internal/fetch"
	"github.com/albapepper/pfr-ingest/internal/parse"
	"github.com/albapepper/pfr-ingest/internal/pfr"
)

// fakeFetcher serves canned pages keyed by URL and counts hits. A URL in
// fail errors on every hit, unless failFor bounds how many hits fail before
// the page comes back.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string][]byte
	fail    map[string]error
	failFor map[string]int
	hits    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:   make(map[string][]byte),
		fail:    make(map[string]error),
		failFor: make(map[string]int),
		hits:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[url]++
	if err, ok := f.fail[url]; ok {
		if n, bounded := f.failFor[url]; !bounded || f.hits[url] <= n {
			return nil, err
		}
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &fetch.FetchError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetch.Page{URL: url, Body: body, StatusCode: http.StatusOK}, nil
}

func (f *fakeFetcher) hitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[url]
}

// fakeStatStore collects saved records in memory.
type fakeStatStore struct {
	mu       sync.Mutex
	saved    []pfr.StatRecord
	existing map[string]bool
	saveErr  error
}

func newFakeStatStore() *fakeStatStore {
	return &fakeStatStore{existing: make(map[string]bool)}
}

func (s *fakeStatStore) Save(_ context.Context, records []pfr.StatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, records...)
	return nil
}

func (s *fakeStatStore) Exists(_ context.Context, playerRef string, season int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[fmt.Sprintf("%s/%d", playerRef, season)], nil
}

func playerPage(team string, season int) []byte {
	return []byte(fmt.Sprintf(`<html><body><table id="passing">
<thead><tr><th data-stat="year_id">Year</th><th data-stat="pass_cmp">Cmp</th><th data-stat="pass_att">Att</th></tr></thead>
<tbody><tr>
<th data-stat="year_id">%d</th>
<td data-stat="team">%s</td><td data-stat="pos">QB</td>
<td data-stat="pass_cmp">300</td><td data-stat="pass_att">500</td>
<td data-stat="pass_yds">3500</td><td data-stat="pass_td">25</td>
<td data-stat="pass_int">10</td><td data-stat="pass_rating">95.0</td>
<td data-stat="g">17</td>
</tr></tbody></table></body></html>`, season, team))
}

func splitsPage() []byte {
	return []byte(`<html><body><table id="stats">
<thead><tr><th data-stat="split_id">Split</th><th data-stat="split_value">Value</th><th data-stat="pass_att">Att</th></tr></thead>
<tbody><tr>
<td data-stat="split_id">Place</td><td data-stat="split_value">Home</td>
<td data-stat="g">8</td><td data-stat="pass_cmp">150</td><td data-stat="pass_att">250</td>
</tr></tbody></table></body></html>`)
}

const testBase = "http://test.local"

func registerPlayer(f *fakeFetcher, ref string, season int) {
	f.pages[pfr.PlayerURL(testBase, ref)] = playerPage("CIN", season)
	f.pages[pfr.SplitsURL(testBase, ref, season)] = splitsPage()
}

func newTestRunner(f *fakeFetcher, stats StatStore, sessions SessionStore, cfg Config) *Runner {
	cfg.BaseURL = testBase
	return NewRunner(f, parse.New(nil), stats, sessions, cfg, nil)
}

func TestRunCompletesSession(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)
	registerPlayer(f, "bbbbqb01", 2024)

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01", "bbbbqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 2})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, result.State)
	assert.Equal(t, 2, result.Completed)
	assert.Zero(t, result.Failed)

	// Each item persists one season-total plus its splits.
	assert.Len(t, stats.saved, 4)

	persisted, err := sessions.LoadSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, persisted.State)
	for _, it := range persisted.Items {
		assert.Equal(t, ItemDone, it.State)
	}
}

func TestFailedItemDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)
	// bbbbqb01 has no pages: 404 on the player page, terminal.
	registerPlayer(f, "ccccqb01", 2024)

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01", "bbbbqb01", "ccccqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, ItemRetries: 2})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, result.State, "one failure under the threshold still completes")
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.FailedItems, 1)
	assert.Equal(t, "bbbbqb01", result.FailedItems[0].PlayerRef)
	assert.NotEmpty(t, result.FailedItems[0].LastError)

	assert.Equal(t, 1, f.hitCount(pfr.PlayerURL(testBase, "bbbbqb01")),
		"terminal fetch errors must not consume the retry budget")
}

func TestExhaustedTransientFetchUsesItemRetryBudget(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	url := pfr.PlayerURL(testBase, "aaaaqb01")
	f.fail[url] = &fetch.RetryExhaustedError{
		URL:      url,
		Attempts: 3,
		Err:      &fetch.FetchError{URL: url, StatusCode: http.StatusInternalServerError},
	}

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, ItemRetries: 2})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.FailedItems, 1)
	assert.Equal(t, 3, result.FailedItems[0].Attempts,
		"exhausted transient fetches consume the full per-item retry budget")
	assert.Equal(t, 3, f.hitCount(url))
}

func TestItemRecoversWithinRetryBudget(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)
	url := pfr.PlayerURL(testBase, "aaaaqb01")
	f.fail[url] = &fetch.RetryExhaustedError{
		URL:      url,
		Attempts: 3,
		Err:      &fetch.FetchError{URL: url, StatusCode: http.StatusServiceUnavailable},
	}
	f.failFor[url] = 1 // only the first hit fails

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, ItemRetries: 2})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, result.State)
	assert.Equal(t, 1, result.Completed)
	assert.Zero(t, result.Failed)
	assert.NotEmpty(t, stats.saved)
}

func TestResumeReprocessesOnlyUnfinishedItems(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)
	registerPlayer(f, "ccccqb01", 2024)

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01", "bbbbqb01", "ccccqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1})
	_, err := r.Run(ctx, session)
	require.NoError(t, err)

	p1URL := pfr.PlayerURL(testBase, "aaaaqb01")
	p3URL := pfr.PlayerURL(testBase, "ccccqb01")
	p1Hits := f.hitCount(p1URL)
	p3Hits := f.hitCount(p3URL)

	// The missing player shows up before the second run.
	registerPlayer(f, "bbbbqb01", 2024)

	r2 := newTestRunner(f, stats, sessions, Config{Workers: 1})
	resumed, err := r2.Resume(ctx, session.ID)
	require.NoError(t, err)
	result, err := r2.Run(ctx, resumed)
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, result.State)
	assert.Zero(t, result.Failed)
	assert.Equal(t, p1Hits, f.hitCount(p1URL), "Done items are never reprocessed on resume")
	assert.Equal(t, p3Hits, f.hitCount(p3URL))
	assert.Equal(t, 1, f.hitCount(pfr.PlayerURL(testBase, "bbbbqb01")))
}

func TestSkipExisting(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)

	stats := newFakeStatStore()
	stats.existing["aaaaqb01/2024"] = true
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, SkipExisting: true})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, f.hitCount(pfr.PlayerURL(testBase, "aaaaqb01")),
		"skipped items must not spend the rate budget")
}

func TestFailureThresholdFailsSession(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	registerPlayer(f, "aaaaqb01", 2024)
	// Two of three players missing.

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01", "bbbbqb01", "ccccqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, FailureThreshold: 0.5})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, SessionFailed, result.State)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Completed)
}

func TestStopPausesBetweenItems(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	for _, ref := range []string{"aaaaqb01", "bbbbqb01", "ccccqb01"} {
		registerPlayer(f, ref, 2024)
	}

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01", "bbbbqb01", "ccccqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1})
	r.Stop() // requested before the run: every item stays pending
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, SessionPaused, result.State)
	assert.Zero(t, result.Completed)

	persisted, err := sessions.LoadSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionPaused, persisted.State)
}

func TestStrictModeBlocksPersistenceOnValidationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	// cmp > att: an Error-severity validation issue.
	f.pages[pfr.PlayerURL(testBase, "aaaaqb01")] = []byte(`<html><body><table id="passing">
<thead><tr><th data-stat="year_id">Year</th><th data-stat="pass_att">Att</th></tr></thead>
<tbody><tr>
<th data-stat="year_id">2024</th>
<td data-stat="team">CIN</td><td data-stat="pos">QB</td>
<td data-stat="pass_cmp">25</td><td data-stat="pass_att">20</td>
</tr></tbody></table></body></html>`)
	f.pages[pfr.SplitsURL(testBase, "aaaaqb01", 2024)] = splitsPage()

	stats := newFakeStatStore()
	sessions := NewMemoryStore()
	session := NewSession(2024, []string{"aaaaqb01"})
	require.NoError(t, sessions.CreateSession(ctx, session))

	r := newTestRunner(f, stats, sessions, Config{Workers: 1, Strict: true})
	result, err := r.Run(ctx, session)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, stats.saved, "strict mode must not persist invalid records")
}

package fetch

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// userAgents are realistic desktop browser strings rotated across requests.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.9,es;q=0.8",
	"en-US,en;q=0.9,fr;q=0.8",
	"en-US,en;q=0.9,de;q=0.8",
}

// identity is one outbound browser persona: a user agent plus the header
// set that goes with it. Rotated as a unit so headers stay consistent
// within a persona.
type identity struct {
	mu        sync.Mutex
	rng       *rand.Rand
	uaIndex   int
	userAgent string
	language  string
	referer   string
}

func newIdentity() *identity {
	id := &identity{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	id.rotate()
	return id
}

// rotate advances to the next user agent and picks a fresh language.
func (id *identity) rotate() {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.userAgent = userAgents[id.uaIndex%len(userAgents)]
	id.uaIndex++
	id.language = acceptLanguages[id.rng.Intn(len(acceptLanguages))]
	id.referer = ""
}

// apply sets the persona headers on an outbound request and remembers the
// URL as the referer for the next one, simulating sequential browsing.
func (id *identity) apply(req *http.Request) {
	id.mu.Lock()
	defer id.mu.Unlock()
	req.Header.Set("User-Agent", id.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", id.language)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if id.referer != "" {
		req.Header.Set("Referer", id.referer)
	}
	id.referer = req.URL.String()
}

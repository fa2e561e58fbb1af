// Package ingest implements the pipeline that keeps the projection store
// fresh: HTTPFetcher, ResponseCache, RateGovernor, and the IngestionEngine
// loop that ties them together.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"stormlightlabs.org/propline/internal/core"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	referer   = "https://app.prizepicks.com/"
)

// challengeMarkers are substrings that identify a Cloudflare/anti-bot
// challenge page served with a 200 or 403 status instead of JSON.
var challengeMarkers = []string{
	"Just a moment...",
	"cf-browser-verification",
	"cf_chl_opt",
	"Attention Required! | Cloudflare",
}

// FetchOutcome is the tagged-union result of one HTTPFetcher.Get call.
type FetchOutcome struct {
	Kind       FetchKind
	Body       json.RawMessage
	Status     int
	Headers    http.Header
	RetryAfter int // seconds; only meaningful when Kind == FetchRateLimited
	Err        error
}

type FetchKind string

const (
	FetchOk          FetchKind = "ok"
	FetchRateLimited FetchKind = "rate_limited"
	FetchBlocked     FetchKind = "blocked"
	FetchTransport   FetchKind = "transport"
	FetchParse       FetchKind = "parse"
)

// HTTPFetcher performs one authenticated-by-UA GET against an upstream URL
// and classifies the result per the contract in §4.1.
type HTTPFetcher struct {
	client *http.Client
	logger *log.Logger
}

// NewHTTPFetcher builds a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration, logger *log.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Get performs one GET to url with the given query params and returns a
// classified FetchOutcome. It never returns a bare Go error; transport,
// parse, rate-limit, and block conditions are all encoded in the outcome.
func (f *HTTPFetcher) Get(ctx context.Context, url string, query map[string]string) FetchOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchOutcome{Kind: FetchTransport, Err: err}
	}

	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchOutcome{Kind: FetchTransport, Err: fmt.Errorf("transport error: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchOutcome{Kind: FetchTransport, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return FetchOutcome{Kind: FetchTransport, Status: resp.StatusCode, Err: fmt.Errorf("upstream %d", resp.StatusCode)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return FetchOutcome{Kind: FetchRateLimited, Status: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), Headers: resp.Header}
	}

	if looksLikeChallenge(resp.Header.Get("Content-Type"), body) {
		if resp.StatusCode == http.StatusForbidden {
			return FetchOutcome{Kind: FetchBlocked, Status: resp.StatusCode, Headers: resp.Header}
		}
		return FetchOutcome{Kind: FetchRateLimited, Status: resp.StatusCode, Headers: resp.Header}
	}

	if resp.StatusCode == http.StatusForbidden {
		return FetchOutcome{Kind: FetchBlocked, Status: resp.StatusCode, Headers: resp.Header}
	}

	if !json.Valid(body) {
		return FetchOutcome{Kind: FetchParse, Status: resp.StatusCode, Err: fmt.Errorf("response body is not valid JSON")}
	}

	return FetchOutcome{Kind: FetchOk, Body: json.RawMessage(body), Status: resp.StatusCode, Headers: resp.Header}
}

func looksLikeChallenge(contentType string, body []byte) bool {
	if !strings.Contains(contentType, "text/html") {
		return false
	}
	s := string(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(v, "%d", &seconds); err != nil {
		return 0
	}
	return seconds
}

// ToUpstreamError converts a non-Ok FetchOutcome into a core.UpstreamError
// for logging/propagation.
func (o FetchOutcome) ToUpstreamError() error {
	switch o.Kind {
	case FetchRateLimited:
		return core.NewUpstreamError(core.UpstreamRateLimited, o.Err)
	case FetchBlocked:
		return core.NewUpstreamError(core.UpstreamBlocked, o.Err)
	case FetchTransport:
		return core.NewUpstreamError(core.UpstreamTransport, o.Err)
	case FetchParse:
		return core.NewUpstreamError(core.UpstreamParse, o.Err)
	default:
		return nil
	}
}

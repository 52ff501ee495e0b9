package extractors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/withobsrvr/medallion-foundry/curate"
	"github.com/withobsrvr/medallion-foundry/pagination"
	"github.com/withobsrvr/medallion-foundry/pipelineerr"
	"github.com/withobsrvr/medallion-foundry/resilience"
)

type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
	AuthBasic  AuthType = "basic"
)

// APIConfig is the resolved configuration for one api_rest source,
// per spec.md 4.5.1.
type APIConfig struct {
	BaseURL      string
	Endpoint     string
	AuthType     AuthType
	AuthTokenEnv string
	AuthUserEnv  string
	AuthPassEnv  string
	Headers      map[string]string
	Params       map[string]any
	DataPath     string
	CursorField  string

	Async          bool
	MaxConcurrency int
}

// APIExtractor implements spec.md 4.5.1's API extractor.
type APIExtractor struct {
	BaseExtractor
	Config    APIConfig
	Client    *http.Client
	Pager     pagination.State
	Envelope  resilience.Envelope
	Watermark *WatermarkConfig
}

func (e *APIExtractor) GetWatermarkConfig() *WatermarkConfig { return e.Watermark }

func (e *APIExtractor) FetchRecords(ctx context.Context, runDate string) (FetchResult, error) {
	headers, basicUser, basicPass, err := e.buildAuth()
	if err != nil {
		return FetchResult{}, err
	}

	base := map[string]any{}
	for k, v := range e.Config.Params {
		base[k] = v
	}
	base["run_date"] = runDate

	windowPager, canWindow := e.Pager.(pagination.WindowPager)
	var allRecords []curate.Row
	if e.Config.Async && canWindow {
		allRecords, err = e.fetchWindowed(ctx, windowPager, headers, basicUser, basicPass, base)
	} else {
		allRecords, err = e.fetchSequential(ctx, headers, basicUser, basicPass, base)
	}
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Records: allRecords}
	if e.Config.CursorField != "" {
		cursor, ok := maxCursor(allRecords, e.Config.CursorField)
		if ok {
			result.NewCursor = cursor
			result.HasCursor = true
		}
	}
	return result, nil
}

// fetchSequential implements spec.md 4.5.1 step 4 directly: build params,
// issue one GET under retry+breaker+rate-limit, extract, fold into the
// pager, repeat until the pager's terminator fires.
func (e *APIExtractor) fetchSequential(ctx context.Context, headers map[string]string, basicUser, basicPass string, base map[string]any) ([]curate.Row, error) {
	var allRecords []curate.Row
	for e.Pager.ShouldFetchMore() {
		params := e.Pager.BuildParams(base)

		body, err := e.issueGetResilient(ctx, headers, basicUser, basicPass, params)
		if err != nil {
			return nil, err
		}

		records := extractRecords(body, e.Config.DataPath)
		allRecords = append(allRecords, records...)

		if !e.Pager.OnRecords(rowMaps(records), body) {
			break
		}
	}
	return allRecords, nil
}

// fetchWindowed implements the async path spec.md 4.5.1/5 describes for
// offset/page pagination: a bounded window of upcoming pages (whose
// params are arithmetic, not response-dependent) is fetched concurrently
// via a bounded worker pool, then replayed through the pager's OnRecords
// strictly in order so termination and max_records semantics match the
// sequential path exactly; only network I/O is parallelized. Cursor and
// none pagination never reach this path (their next params depend on the
// prior response), so they always run sequentially regardless of
// Config.Async.
func (e *APIExtractor) fetchWindowed(ctx context.Context, pager pagination.WindowPager, headers map[string]string, basicUser, basicPass string, base map[string]any) ([]curate.Row, error) {
	limit := e.Config.MaxConcurrency
	if limit <= 0 {
		limit = 4
	}

	var allRecords []curate.Row
	for pager.ShouldFetchMore() {
		window := pager.PeekWindow(base, limit)
		if len(window) == 0 {
			break
		}

		bodies := make([]map[string]any, len(window))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, params := range window {
			i, params := i, params
			g.Go(func() error {
				body, err := e.issueGetResilient(gctx, headers, basicUser, basicPass, params)
				if err != nil {
					return err
				}
				bodies[i] = body
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, body := range bodies {
			records := extractRecords(body, e.Config.DataPath)
			allRecords = append(allRecords, records...)
			if !pager.OnRecords(rowMaps(records), body) {
				return allRecords, nil
			}
			if !pager.ShouldFetchMore() {
				break
			}
		}
	}
	return allRecords, nil
}

// rowMaps converts extracted rows to the plain map slice the pagination
// states accept.
func rowMaps(records []curate.Row) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// issueGetResilient wraps one GET in the envelope's retry/breaker/rate
// limit stack, translating the terminal error into a structured Bronze
// extraction error exactly as the old inline Execute call did.
func (e *APIExtractor) issueGetResilient(ctx context.Context, headers map[string]string, basicUser, basicPass string, params map[string]any) (map[string]any, error) {
	var body map[string]any
	opErr := e.Envelope.Execute(ctx, "api_fetch", func(ctx context.Context) error {
		resp, err := e.issueGet(ctx, headers, basicUser, basicPass, params)
		if err != nil {
			return err
		}
		body = resp
		return nil
	})
	if opErr != nil {
		return nil, pipelineerr.BronzeExtractionError("api_rest", e.Config.BaseURL+e.Config.Endpoint, "", opErr)
	}
	return body, nil
}

func (e *APIExtractor) buildAuth() (headers map[string]string, basicUser, basicPass string, err error) {
	headers = make(map[string]string, len(e.Config.Headers)+1)
	for k, v := range e.Config.Headers {
		headers[k] = v
	}

	switch e.Config.AuthType {
	case AuthBearer:
		token := os.Getenv(e.Config.AuthTokenEnv)
		if token == "" {
			return nil, "", "", pipelineerr.AuthenticationError("missing bearer token env var " + e.Config.AuthTokenEnv)
		}
		headers["Authorization"] = "Bearer " + token
	case AuthAPIKey:
		key := os.Getenv(e.Config.AuthTokenEnv)
		if key == "" {
			return nil, "", "", pipelineerr.AuthenticationError("missing api key env var " + e.Config.AuthTokenEnv)
		}
		headers["X-API-Key"] = key
	case AuthBasic:
		basicUser = os.Getenv(e.Config.AuthUserEnv)
		basicPass = os.Getenv(e.Config.AuthPassEnv)
		if basicUser == "" || basicPass == "" {
			return nil, "", "", pipelineerr.AuthenticationError("missing basic auth env vars")
		}
	case AuthNone, "":
	}
	return headers, basicUser, basicPass, nil
}

func (e *APIExtractor) issueGet(ctx context.Context, headers map[string]string, basicUser, basicPass string, params map[string]any) (map[string]any, error) {
	url := e.Config.BaseURL + e.Config.Endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	req.URL.RawQuery = q.Encode()

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &retryableStatusError{
			status:        resp.StatusCode,
			url:           url,
			retryAfter:    parseRetryAfter(resp.Header.Get("Retry-After")),
			hasRetryAfter: resp.Header.Get("Retry-After") != "",
		}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api: status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("api: invalid json response: %w", err)
	}
	if m, ok := parsed.(map[string]any); ok {
		return m, nil
	}
	// A bare JSON array response; wrap it so dotted-path lookup still works.
	return map[string]any{"__root__": parsed}, nil
}

// extractRecords implements spec.md 4.5.1 step 4: extract via data_path,
// falling back to common keys, wrapping a lone object as a single-row list.
func extractRecords(body map[string]any, dataPath string) []curate.Row {
	var raw any
	if dataPath != "" {
		raw = dottedPath(body, dataPath)
	}
	if raw == nil {
		if root, ok := body["__root__"]; ok {
			raw = root
		} else {
			for _, key := range []string{"items", "data", "results", "records"} {
				if v, ok := body[key]; ok {
					raw = v
					break
				}
			}
		}
	}
	if raw == nil {
		return nil
	}

	switch t := raw.(type) {
	case []any:
		out := make([]curate.Row, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, curate.Row(m))
			}
		}
		return out
	case map[string]any:
		return []curate.Row{curate.Row(t)}
	default:
		return nil
	}
}

func dottedPath(m map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = asMap[p]
		if !ok {
			return nil
		}
	}
	return cur
}

// retryableStatusError carries a 429/5xx response's Retry-After header
// (if present) so a resilience.RetryPolicy.DelayFromException hook can
// preempt the computed backoff with the server-advertised delay, per
// spec.md 4.5.1's retry predicate.
type retryableStatusError struct {
	status        int
	url           string
	retryAfter    time.Duration
	hasRetryAfter bool
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("api: retryable status %d from %s", e.status, e.url)
}

// parseRetryAfter accepts Retry-After's numeric-seconds form (spec.md
// 4.5.1's supported form; the HTTP-date form is not in scope).
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// RetryAfterDelay is a resilience.RetryPolicy.DelayFromException hook:
// when the failing op's error is a retryableStatusError carrying a
// Retry-After header, its value preempts the computed exponential-backoff
// delay, per spec.md 4.5.1.
func RetryAfterDelay(err error, attempt int, computed time.Duration) (time.Duration, bool) {
	var statusErr *retryableStatusError
	if rse, ok := err.(*retryableStatusError); ok {
		statusErr = rse
	}
	if statusErr == nil || !statusErr.hasRetryAfter {
		return 0, false
	}
	return statusErr.retryAfter, true
}

// maxCursor computes the lexicographic maximum of record[field] across
// all returned records, per spec.md 4.5.1 step 5.
func maxCursor(records []curate.Row, field string) (string, bool) {
	var max string
	found := false
	for _, r := range records {
		v, ok := r[field]
		if !ok {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if !found || s > max {
			max = s
			found = true
		}
	}
	return max, found
}


// Package google translates text through the Google Translate web
// endpoint. The client keeps a fixed ring of HTTP sessions, one per
// configured proxy route or a single direct one, each guarded by its
// own concurrency semaphore; calls take sessions round-robin so load
// spreads evenly across routes regardless of per-route latency. Rate
// limiting is handled with a bounded retry loop and a fixed wait.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// BaseURL is the public translate endpoint.
const BaseURL = "https://translate.google.com/translate_a/single"

// MaxTextLength is the provider's per-request character limit.
const MaxTextLength = 5000

// Defaults applied by New for zero Config fields.
const (
	DefaultLimit      = 4
	DefaultRetryCount = 3
	DefaultRetryWait  = 5 * time.Second
	DefaultTimeout    = 30 * time.Second
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// InvalidInputError reports text outside the provider's accepted
// bounds. Never retried.
type InvalidInputError struct {
	// Length is the offending text length in characters.
	Length int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("text length %d outside provider bounds [1, %d]", e.Length, MaxTextLength)
}

// RateLimitExceededError reports that the provider kept answering 429
// until the retry budget ran out.
type RateLimitExceededError struct {
	// Retries is the number of retries that were attempted.
	Retries int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limited after %d retries", e.Retries)
}

// ProviderError reports a non-retryable upstream failure.
type ProviderError struct {
	// Status is the HTTP status code.
	Status int
	// Body is the raw response body.
	Body string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, truncate(e.Body, 200))
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Config controls a Translator. The zero value gets sensible defaults
// from New.
type Config struct {
	// SourceLocale is the default source language. Default: "auto".
	SourceLocale string
	// Limit caps concurrent requests per session. Default: 4.
	Limit int
	// RetryCount is the retry budget for 429 responses. Default: 3.
	RetryCount int
	// RetryWait is the fixed pause between rate-limit retries. Default: 5s.
	RetryWait time.Duration
	// Proxies lists proxy URLs, one session each. Empty means a single
	// direct session honoring HTTP_PROXY/HTTPS_PROXY.
	Proxies []string
	// Timeout bounds each HTTP request. Default: 30s.
	Timeout time.Duration
	// Endpoint overrides BaseURL, mainly for tests.
	Endpoint string
	// Verbose enables debug logging of retries and translations.
	Verbose bool
}

// session is one upstream route: its own connection pool and its own
// in-flight cap.
type session struct {
	slots  chan struct{}
	client *http.Client
}

// Translator is a rate-limited Google Translate client. Safe for
// concurrent use.
type Translator struct {
	endpoint   string
	source     string
	retryCount int
	retryWait  time.Duration
	verbose    bool

	mu       sync.Mutex
	cursor   int
	sessions []*session
}

// New builds a Translator from cfg. One session is created per proxy
// URL; a malformed proxy URL is a configuration error.
func New(cfg Config) (*Translator, error) {
	t := &Translator{
		endpoint:   cfg.Endpoint,
		source:     cfg.SourceLocale,
		retryCount: cfg.RetryCount,
		retryWait:  cfg.RetryWait,
		verbose:    cfg.Verbose,
	}
	if t.endpoint == "" {
		t.endpoint = BaseURL
	}
	if t.source == "" {
		t.source = "auto"
	}
	if t.retryCount == 0 {
		t.retryCount = DefaultRetryCount
	}
	if t.retryWait == 0 {
		t.retryWait = DefaultRetryWait
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if len(cfg.Proxies) == 0 {
		t.sessions = []*session{{
			slots:  make(chan struct{}, limit),
			client: makeHTTPClient("", timeout),
		}}
		return t, nil
	}
	for _, proxy := range cfg.Proxies {
		if _, err := url.Parse(proxy); err != nil {
			return nil, fmt.Errorf("proxy %q: %w", proxy, err)
		}
		t.sessions = append(t.sessions, &session{
			slots:  make(chan struct{}, limit),
			client: makeHTTPClient(proxy, timeout),
		})
	}
	return t, nil
}

// makeHTTPClient builds a client routed through proxyURL, or through
// the HTTP_PROXY/HTTPS_PROXY environment when proxyURL is empty.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// nextSession advances the ring cursor and returns the session under it.
func (t *Translator) nextSession() *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sessions[t.cursor]
	t.cursor = (t.cursor + 1) % len(t.sessions)
	return s
}

// Translate translates text from sourceLocale (or the configured
// default when empty) to targetLocale. 429 responses are retried up to
// the configured budget with a fixed wait between attempts; every
// retry moves to the next session in the ring. Other upstream failures
// return immediately as ProviderError.
func (t *Translator) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	if n := utf8.RuneCountInString(text); n < 1 || n > MaxTextLength {
		return "", &InvalidInputError{Length: n}
	}
	if sourceLocale == "" {
		sourceLocale = t.source
	}

	for attempt := 0; ; attempt++ {
		sess := t.nextSession()

		select {
		case sess.slots <- struct{}{}:
		case <-ctx.Done():
			return "", ctx.Err()
		}

		req, err := t.newRequest(ctx, text, sourceLocale, targetLocale)
		if err != nil {
			<-sess.slots
			return "", err
		}
		resp, err := sess.client.Do(req)
		if err != nil {
			<-sess.slots
			return "", fmt.Errorf("translate request: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		<-sess.slots

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= t.retryCount {
				return "", &RateLimitExceededError{Retries: t.retryCount}
			}
			if t.verbose {
				log.Printf("[WARN] rate limited, waiting %v before retry (%d/%d)",
					t.retryWait, attempt+1, t.retryCount)
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(t.retryWait):
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", &ProviderError{Status: resp.StatusCode, Body: string(body)}
		}

		translated, err := parseTranslation(body)
		if err != nil {
			return "", err
		}
		if t.verbose {
			log.Printf("[DEBUG] [%s -> %s] translated %d chars", sourceLocale, targetLocale, len(text))
		}
		return translated, nil
	}
}

// TranslateMany translates texts concurrently and returns results in
// input order. Concurrency is bounded only by the session semaphores;
// the first error cancels nothing but wins the return.
func (t *Translator) TranslateMany(ctx context.Context, texts []string, sourceLocale, targetLocale string) ([]string, error) {
	results := make([]string, len(texts))
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()

			translated, err := t.Translate(ctx, text, sourceLocale, targetLocale)
			if err != nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("text %d: %w", i, err)
				})
				return
			}
			results[i] = translated
		}(i, text)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// newRequest builds the GET request the web endpoint expects.
func (t *Translator) newRequest(ctx context.Context, text, source, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("dt", "t")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("q", strings.TrimSpace(text))
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// parseTranslation decodes the endpoint's nested-list payload:
// [[["fragment", "original", ...], ...], ...]. The translation is the
// first element of every fragment tuple, concatenated in order.
func parseTranslation(body []byte) (string, error) {
	var result []json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding translate response: %w", err)
	}
	if len(result) == 0 {
		return "", fmt.Errorf("translation not found in response: %s", truncate(string(body), 200))
	}

	var fragments [][]json.RawMessage
	if err := json.Unmarshal(result[0], &fragments); err != nil {
		return "", fmt.Errorf("decoding translate fragments: %w", err)
	}
	if len(fragments) == 0 {
		return "", fmt.Errorf("translation not found in response: %s", truncate(string(body), 200))
	}

	var b strings.Builder
	for _, frag := range fragments {
		if len(frag) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(frag[0], &piece); err != nil {
			// Null or non-string fragment heads carry no text.
			continue
		}
		b.WriteString(piece)
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

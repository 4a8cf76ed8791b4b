// backend/src/services/price_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/username/dinartools/backend/src/logger"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps what is read from a market data response.
const maxResponseBytes = 4 << 20

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// httpFetcher is the outbound GET path shared by both market data clients.
// The limiter paces requests across every instrument and retry.
type httpFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPFetcher(timeout time.Duration, limiter *rate.Limiter) *httpFetcher {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &httpFetcher{
		client:  &http.Client{Jar: jar, Timeout: timeout},
		limiter: limiter,
	}
}

// get returns the body of a 2xx response. Anything else is wrapped in ErrTransport.
func (f *httpFetcher) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if len(body) > maxResponseBytes {
		return nil, resp.StatusCode, fmt.Errorf("response from %s exceeds %d bytes", req.URL.Host, maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d from %s", ErrTransport, resp.StatusCode, req.URL.Host)
	}
	return body, resp.StatusCode, nil
}

// QuoteClient reads last traded prices from the TWSE quote endpoint.
type QuoteClient struct {
	baseURL string
	fetcher *httpFetcher
}

func NewQuoteClient(baseURL string, timeout time.Duration, limiter *rate.Limiter) *QuoteClient {
	return &QuoteClient{baseURL: baseURL, fetcher: newHTTPFetcher(timeout, limiter)}
}

// FetchPrice returns the msgArray[0].z field. A body that is not JSON, an
// empty msgArray, or a non-numeric z ("-" before the first trade) all count
// as not found rather than as an error.
func (c *QuoteClient) FetchPrice(ctx context.Context, code string) (float64, bool, error) {
	u := fmt.Sprintf("%s?ex_ch=%s", c.baseURL, url.QueryEscape("tse_"+code+".tw"))
	body, _, err := c.fetcher.get(ctx, u)
	if err != nil {
		return 0, false, err
	}
	if !gjson.ValidBytes(body) {
		logger.FromContext(ctx).Debug("Quote response is not valid JSON", "code", code)
		return 0, false, nil
	}
	z := gjson.GetBytes(body, "msgArray.0.z")
	if !z.Exists() {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(z.String()), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false, nil
	}
	return price, true, nil
}

// DividendClientConfig configures the Yahoo dividend history client.
// SessionURLs are visited once to collect cookies and CrumbURL yields the
// crumb appended to download requests. Both are optional.
type DividendClientConfig struct {
	BaseURL     string
	SessionURLs []string
	CrumbURL    string
	Timeout     time.Duration
	Limiter     *rate.Limiter
}

// DividendClient reads per-event dividend history as CSV.
type DividendClient struct {
	cfg     DividendClientConfig
	fetcher *httpFetcher

	mu            sync.Mutex
	isInitialized bool
	crumb         string
}

func NewDividendClient(cfg DividendClientConfig) *DividendClient {
	return &DividendClient{cfg: cfg, fetcher: newHTTPFetcher(cfg.Timeout, cfg.Limiter)}
}

func (c *DividendClient) ensureSession(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isInitialized {
		return c.crumb
	}
	for _, u := range c.cfg.SessionURLs {
		// Only the cookies matter here.
		if _, _, err := c.fetcher.get(ctx, u); err != nil {
			logger.FromContext(ctx).Debug("Session warm-up request failed", "url", u, "error", err)
		}
	}
	if c.cfg.CrumbURL != "" {
		body, _, err := c.fetcher.get(ctx, c.cfg.CrumbURL)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to fetch crumb", "error", err)
			return ""
		}
		c.crumb = strings.TrimSpace(string(body))
	}
	c.isInitialized = true
	return c.crumb
}

func (c *DividendClient) resetSession() {
	c.mu.Lock()
	c.isInitialized = false
	c.crumb = ""
	c.mu.Unlock()
}

// FetchDividends returns dividend amounts between from and to, oldest first.
func (c *DividendClient) FetchDividends(ctx context.Context, code string, from, to time.Time) ([]float64, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div")
	q.Set("includeAdjustedClose", "true")
	if crumb := c.ensureSession(ctx); crumb != "" {
		q.Set("crumb", crumb)
	}
	u := fmt.Sprintf("%s/%s.TW?%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(code), q.Encode())

	body, status, err := c.fetcher.get(ctx, u)
	if err != nil {
		if status == http.StatusUnauthorized {
			c.resetSession()
		}
		return nil, err
	}
	return parseDividendCSV(body), nil
}

type dividendEvent struct {
	date   string
	amount float64
}

// parseDividendCSV skips the header line, ignores rows whose second column
// is not a finite number, and orders events by their ISO date column.
func parseDividendCSV(body []byte) []float64 {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var events []dividendEvent
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 2 {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
			continue
		}
		events = append(events, dividendEvent{date: strings.TrimSpace(rec[0]), amount: amount})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].date < events[j].date })
	out := make([]float64, 0, len(events))
	for _, e := range events {
		out = append(out, e.amount)
	}
	return out
}

// backend/src/services/market_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/utils"
)

// Row-level messages. Only MsgFetchFailed accompanies the errored state; the
// others are informational and leave the row fresh.
const (
	MsgPriceNotFound        = "price not found"
	MsgDividendNotFound     = "dividend not found"
	MsgDividendLookupFailed = "dividend lookup failed"
	MsgFetchFailed          = "market data fetch failed"
)

// DividendWindow is how far back dividend history is requested.
const DividendWindow = 2 * 365 * 24 * time.Hour

// StoreOptions tunes the market data store. Zero values fall back to defaults.
type StoreOptions struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration

	// Now and Wait exist so tests can drive time.
	Now  func() time.Time
	Wait func(ctx context.Context, d time.Duration) error
}

type fetchResult struct {
	price         float64
	lastDividend  float64
	frequency     float64
	priceError    string
	dividendError string
}

// MarketDataStore owns the stock position rows and keeps their market fields
// in sync with the quote and dividend sources.
type MarketDataStore struct {
	mu        sync.Mutex
	positions []models.StockPosition
	inflight  map[string]struct{}
	closed    bool

	armMu    sync.Mutex
	armedKey string

	cache     *MarketCache
	quotes    QuoteSource
	dividends DividendSource
	poller    *Poller
	opts      StoreOptions

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewMarketDataStore(cache *MarketCache, quotes QuoteSource, dividends DividendSource, opts StoreOptions) *MarketDataStore {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Wait == nil {
		opts.Wait = sleepContext
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MarketDataStore{
		inflight:  make(map[string]struct{}),
		cache:     cache,
		quotes:    quotes,
		dividends: dividends,
		poller:    NewPoller(),
		opts:      opts,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newPosition(code string) models.StockPosition {
	return models.StockPosition{
		ID:         uuid.NewString(),
		StockCode:  code,
		PledgeRate: models.DefaultPledgeRate,
		Frequency:  models.DefaultFrequency,
		State:      models.StateIdle,
	}
}

// Positions returns a copy of the current rows.
func (s *MarketDataStore) Positions() []models.StockPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StockPosition, len(s.positions))
	copy(out, s.positions)
	return out
}

// Add appends a row with default values. A non-empty code starts a fetch.
func (s *MarketDataStore) Add(code string) models.StockPosition {
	code = strings.TrimSpace(code)
	s.mu.Lock()
	p := newPosition(code)
	s.positions = append(s.positions, p)
	s.mu.Unlock()

	if code != "" {
		s.Trigger(code)
	}
	s.rearm()
	return p
}

// Remove deletes the row at index. Removing the last row is allowed and
// stops polling.
func (s *MarketDataStore) Remove(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.positions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.positions = append(s.positions[:index:index], s.positions[index+1:]...)
	s.mu.Unlock()

	s.rearm()
	return nil
}

// Update sets one field of the row at index. Changing stockCode to a
// non-empty value triggers a sync for the new code.
func (s *MarketDataStore) Update(index int, field, value string) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.positions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	p := &s.positions[index]
	var syncCode string
	switch field {
	case "stockCode":
		code := strings.TrimSpace(value)
		p.StockCode = code
		if code == "" {
			p.State = models.StateIdle
			p.Loading, p.PriceLoading = false, false
			p.PriceError, p.Error = "", ""
		} else {
			syncCode = code
		}
	case "shares":
		p.Shares = utils.ParseNumber(value)
	case "pledgedShares":
		p.PledgedShares = utils.ParseNumber(value)
	case "pledgeRate":
		p.PledgeRate = utils.ParseNumber(value)
	case "price":
		p.Price = utils.ParseNumber(value)
	case "lastDividend":
		p.LastDividend = utils.ParseNumber(value)
	case "frequency":
		p.Frequency = utils.ParseNumber(value)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", models.ErrUnknownField, field)
	}
	s.mu.Unlock()

	if syncCode != "" {
		s.Trigger(syncCode)
	}
	if field == "stockCode" {
		s.rearm()
	}
	return nil
}

// Trigger runs Sync for code in the background. It is a no-op after Close.
func (s *MarketDataStore) Trigger(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.Sync(s.baseCtx, code); err != nil && !errors.Is(err, ErrStoreClosed) {
			logger.L.Warn("Market data sync failed", "code", code, "error", err)
		}
	}()
}

// RefreshAll triggers a sync for every distinct non-empty code.
func (s *MarketDataStore) RefreshAll() {
	for _, code := range s.codes() {
		s.Trigger(code)
	}
}

// Sync brings every row holding code up to date, from the cache when the
// entry is younger than the TTL and from the network otherwise. A call for a
// code that is already being fetched returns immediately. After Close it
// returns ErrStoreClosed without touching the sources or the rows.
func (s *MarketDataStore) Sync(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	acquired, err := s.acquire(code)
	if err != nil {
		return err
	}
	if !acquired {
		logger.FromContext(ctx).Debug("Fetch already in flight, skipping", "code", code)
		return nil
	}
	defer s.release(code)

	if entry, ok := s.cache.Lookup(ctx, code, s.opts.Now()); ok {
		s.applyCached(code, entry)
		return nil
	}

	s.markFetching(code)
	res, err := s.fetchWithRetry(ctx, code)
	if err != nil {
		s.markErrored(code)
		return fmt.Errorf("sync %s: %w", code, err)
	}

	entry := models.CacheEntry{
		Price:        res.price,
		LastDividend: res.lastDividend,
		Timestamp:    s.opts.Now().UnixMilli(),
	}
	if err := s.cache.Store(ctx, code, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to cache market data", "code", code, "error", err)
	}
	s.applyFetched(code, res)
	return nil
}

func (s *MarketDataStore) acquire(code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if _, busy := s.inflight[code]; busy {
		return false, nil
	}
	s.inflight[code] = struct{}{}
	return true, nil
}

func (s *MarketDataStore) release(code string) {
	s.mu.Lock()
	delete(s.inflight, code)
	s.mu.Unlock()
}

// fetchWithRetry repeats a full attempt while the failure is a transport
// error, at most MaxRetries extra times with a fixed delay in between.
func (s *MarketDataStore) fetchWithRetry(ctx context.Context, code string) (fetchResult, error) {
	attempt := 0
	for {
		res, err := s.fetchOnce(ctx, code)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrTransport) || attempt >= s.opts.MaxRetries {
			return fetchResult{}, err
		}
		attempt++
		logger.FromContext(ctx).Info("Retrying market data fetch", "code", code, "attempt", attempt, "error", err)
		if werr := s.opts.Wait(ctx, s.opts.RetryDelay); werr != nil {
			return fetchResult{}, werr
		}
	}
}

func (s *MarketDataStore) fetchOnce(ctx context.Context, code string) (fetchResult, error) {
	res := fetchResult{frequency: models.DefaultFrequency}

	price, found, err := s.quotes.FetchPrice(ctx, code)
	if err != nil {
		return res, err
	}
	if found {
		res.price = price
	} else {
		res.priceError = MsgPriceNotFound
	}

	now := s.opts.Now()
	divs, err := s.dividends.FetchDividends(ctx, code, now.Add(-DividendWindow), now)
	switch {
	case err != nil:
		logger.FromContext(ctx).Warn("Dividend lookup failed", "code", code, "error", err)
		res.dividendError = MsgDividendLookupFailed
	case len(divs) == 0:
		res.dividendError = MsgDividendNotFound
	default:
		res.lastDividend = divs[len(divs)-1]
		res.frequency = math.Round(float64(len(divs)) / 2)
	}
	return res, nil
}

// The apply helpers bind by code at completion time, so rows added or
// re-coded while a fetch was running still receive its result.

func (s *MarketDataStore) applyCached(code string, e models.CacheEntry) {
	s.forEachRow(code, func(p *models.StockPosition) {
		p.Price = e.Price
		p.LastDividend = e.LastDividend
		p.State = models.StateFresh
		p.Loading, p.PriceLoading = false, false
		p.PriceError, p.Error = "", ""
	})
}

func (s *MarketDataStore) markFetching(code string) {
	s.forEachRow(code, func(p *models.StockPosition) {
		p.State = models.StateFetching
		p.Loading, p.PriceLoading = true, true
		p.PriceError, p.Error = "", ""
	})
}

func (s *MarketDataStore) markErrored(code string) {
	s.forEachRow(code, func(p *models.StockPosition) {
		p.Price = 0
		p.LastDividend = 0
		p.Frequency = models.DefaultFrequency
		p.State = models.StateErrored
		p.Loading, p.PriceLoading = false, false
		p.PriceError = ""
		p.Error = MsgFetchFailed
	})
}

func (s *MarketDataStore) applyFetched(code string, r fetchResult) {
	s.forEachRow(code, func(p *models.StockPosition) {
		p.Price = r.price
		p.LastDividend = r.lastDividend
		p.Frequency = r.frequency
		p.State = models.StateFresh
		p.Loading, p.PriceLoading = false, false
		p.PriceError = r.priceError
		p.Error = r.dividendError
	})
}

func (s *MarketDataStore) forEachRow(code string, fn func(p *models.StockPosition)) {
	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.positions {
		if s.positions[i].StockCode == code {
			fn(&s.positions[i])
			s.positions[i].UpdatedAt = now
		}
	}
}

// codes returns the sorted distinct non-empty codes.
func (s *MarketDataStore) codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.positions))
	var out []string
	for _, p := range s.positions {
		if p.StockCode == "" {
			continue
		}
		if _, ok := seen[p.StockCode]; ok {
			continue
		}
		seen[p.StockCode] = struct{}{}
		out = append(out, p.StockCode)
	}
	sort.Strings(out)
	return out
}

// rearm restarts the poller only when the set of tracked codes changed.
func (s *MarketDataStore) rearm() {
	s.armMu.Lock()
	defer s.armMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	key := strings.Join(s.codes(), ",")
	if key == s.armedKey {
		return
	}
	s.armedKey = key
	if key == "" {
		s.poller.Stop()
		return
	}
	s.poller.Start(s.opts.PollInterval, s.RefreshAll)
}

// Polling reports whether the periodic refresh is scheduled.
func (s *MarketDataStore) Polling() bool {
	return s.poller.Running()
}

// PollStarts counts how many times the periodic refresh was (re)scheduled.
func (s *MarketDataStore) PollStarts() int {
	return s.poller.Starts()
}

// Close stops polling, cancels outstanding retries and waits for in-flight
// syncs to finish. It is safe to call more than once.
func (s *MarketDataStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.armMu.Lock()
	s.poller.Stop()
	s.armMu.Unlock()

	s.cancel()
	s.wg.Wait()
}

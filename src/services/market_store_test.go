package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/dinartools/backend/src/models"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeQuotes struct {
	mu        sync.Mutex
	calls     map[string]int
	price     float64
	found     bool
	err       error
	failTimes int // fail only the first n calls when > 0
	block     chan struct{}
}

func newFakeQuotes(price float64) *fakeQuotes {
	return &fakeQuotes{calls: map[string]int{}, price: price, found: true}
}

func (f *fakeQuotes) FetchPrice(_ context.Context, code string) (float64, bool, error) {
	f.mu.Lock()
	f.calls[code]++
	n := f.calls[code]
	block, err, failTimes := f.block, f.err, f.failTimes
	price, found := f.price, f.found
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil && (failTimes == 0 || n <= failTimes) {
		return 0, false, err
	}
	return price, found, nil
}

func (f *fakeQuotes) CodesSeen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeQuotes) Calls(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[code]
}

type fakeDividends struct {
	mu    sync.Mutex
	divs  []float64
	err   error
	calls int
	from  time.Time
	to    time.Time
}

func (f *fakeDividends) FetchDividends(_ context.Context, _ string, from, to time.Time) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return append([]float64(nil), f.divs...), nil
}

type storeFixture struct {
	store     *MarketDataStore
	kv        *MemoryKVStore
	clock     *testClock
	quotes    *fakeQuotes
	dividends *fakeDividends
	waits     atomic.Int32
}

func newStoreFixture(t *testing.T, ttl time.Duration, poll time.Duration) *storeFixture {
	t.Helper()
	f := &storeFixture{
		kv:        NewMemoryKVStore(),
		clock:     newTestClock(),
		quotes:    newFakeQuotes(585),
		dividends: &fakeDividends{divs: []float64{2.75, 3, 3.5, 3.5}},
	}
	f.store = NewMarketDataStore(NewMarketCache(f.kv, ttl), f.quotes, f.dividends, StoreOptions{
		PollInterval: poll,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		Now:          f.clock.Now,
		Wait: func(ctx context.Context, d time.Duration) error {
			f.waits.Add(1)
			return ctx.Err()
		},
	})
	t.Cleanup(f.store.Close)
	return f
}

// seed installs rows directly so no background sync races the test.
func (f *storeFixture) seed(codes ...string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, c := range codes {
		f.store.positions = append(f.store.positions, newPosition(c))
	}
}

func TestSync_FetchesAndCaches(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.seed("2330")

	require.NoError(t, f.store.Sync(context.Background(), "2330"))

	rows := f.store.Positions()
	require.Len(t, rows, 1)
	assert.Equal(t, 585.0, rows[0].Price)
	assert.Equal(t, 3.5, rows[0].LastDividend)
	assert.Equal(t, 2.0, rows[0].Frequency)
	assert.Equal(t, models.StateFresh, rows[0].State)
	assert.False(t, rows[0].Loading)
	assert.Empty(t, rows[0].PriceError)
	assert.Empty(t, rows[0].Error)

	raw, found, err := f.kv.Get(context.Background(), "stock_2330")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, fmt.Sprintf(`{"price":585,"lastDividend":3.5,"timestamp":%d}`, f.clock.Now().UnixMilli()), raw)

	assert.Equal(t, f.clock.Now().Add(-DividendWindow), f.dividends.from)
	assert.Equal(t, f.clock.Now(), f.dividends.to)
}

func TestSync_CacheHitSkipsNetwork(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.seed("2330")
	ctx := context.Background()

	require.NoError(t, f.store.Sync(ctx, "2330"))
	require.NoError(t, f.store.Update(0, "frequency", "4"))

	f.clock.Advance(59 * time.Second)
	require.NoError(t, f.store.Sync(ctx, "2330"))
	assert.Equal(t, 1, f.quotes.Calls("2330"))
	assert.Equal(t, 4.0, f.store.Positions()[0].Frequency, "cache hits leave frequency alone")

	f.clock.Advance(time.Second)
	require.NoError(t, f.store.Sync(ctx, "2330"))
	assert.Equal(t, 2, f.quotes.Calls("2330"), "an entry exactly TTL old is stale")
}

func TestSync_ExhaustedRetriesResetRow(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.quotes.err = fmt.Errorf("%w: connection refused", ErrTransport)
	f.seed("2330")
	require.NoError(t, f.store.Update(0, "price", "100"))
	require.NoError(t, f.store.Update(0, "lastDividend", "5"))
	require.NoError(t, f.store.Update(0, "frequency", "4"))

	err := f.store.Sync(context.Background(), "2330")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	assert.Equal(t, 4, f.quotes.Calls("2330"), "one attempt plus three retries")
	assert.Equal(t, int32(3), f.waits.Load())

	row := f.store.Positions()[0]
	assert.Equal(t, models.StateErrored, row.State)
	assert.Equal(t, 0.0, row.Price)
	assert.Equal(t, 0.0, row.LastDividend)
	assert.Equal(t, 1.0, row.Frequency)
	assert.Equal(t, MsgFetchFailed, row.Error)
	assert.False(t, row.Loading)

	_, found, _ := f.kv.Get(context.Background(), "stock_2330")
	assert.False(t, found, "failures are not cached")
}

func TestSync_RecoversAfterTransientFailure(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.quotes.err = fmt.Errorf("%w: timeout", ErrTransport)
	f.quotes.failTimes = 2
	f.seed("2330")

	require.NoError(t, f.store.Sync(context.Background(), "2330"))
	assert.Equal(t, 3, f.quotes.Calls("2330"))
	assert.Equal(t, models.StateFresh, f.store.Positions()[0].State)
	assert.Equal(t, 585.0, f.store.Positions()[0].Price)
}

func TestSync_NonTransportErrorIsNotRetried(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.quotes.err = errors.New("invalid request")
	f.seed("2330")

	require.Error(t, f.store.Sync(context.Background(), "2330"))
	assert.Equal(t, 1, f.quotes.Calls("2330"))
	assert.Equal(t, models.StateErrored, f.store.Positions()[0].State)
}

func TestSync_MissingDataIsNotFatal(t *testing.T) {
	t.Run("no price and no dividends", func(t *testing.T) {
		f := newStoreFixture(t, time.Minute, time.Hour)
		f.quotes.found = false
		f.dividends.divs = nil
		f.seed("9999")

		require.NoError(t, f.store.Sync(context.Background(), "9999"))
		row := f.store.Positions()[0]
		assert.Equal(t, models.StateFresh, row.State)
		assert.Equal(t, 0.0, row.Price)
		assert.Equal(t, 1.0, row.Frequency)
		assert.Equal(t, MsgPriceNotFound, row.PriceError)
		assert.Equal(t, MsgDividendNotFound, row.Error)
		assert.Equal(t, 1, f.quotes.Calls("9999"))
	})

	t.Run("dividend lookup fails", func(t *testing.T) {
		f := newStoreFixture(t, time.Minute, time.Hour)
		f.dividends.err = fmt.Errorf("%w: status 404", ErrTransport)
		f.seed("2330")

		require.NoError(t, f.store.Sync(context.Background(), "2330"))
		row := f.store.Positions()[0]
		assert.Equal(t, models.StateFresh, row.State)
		assert.Equal(t, 585.0, row.Price)
		assert.Equal(t, 0.0, row.LastDividend)
		assert.Equal(t, MsgDividendLookupFailed, row.Error)
		assert.Equal(t, 1, f.quotes.Calls("2330"))
	})

	t.Run("single dividend rounds frequency up", func(t *testing.T) {
		f := newStoreFixture(t, time.Minute, time.Hour)
		f.dividends.divs = []float64{4}
		f.seed("2330")

		require.NoError(t, f.store.Sync(context.Background(), "2330"))
		assert.Equal(t, 1.0, f.store.Positions()[0].Frequency)
	})
}

func TestSync_CoalescesConcurrentFetches(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.quotes.block = make(chan struct{})
	f.seed("2330")

	done := make(chan error, 1)
	go func() { done <- f.store.Sync(context.Background(), "2330") }()

	require.Eventually(t, func() bool { return f.quotes.Calls("2330") == 1 }, time.Second, 5*time.Millisecond)
	row := f.store.Positions()[0]
	assert.Equal(t, models.StateFetching, row.State)
	assert.True(t, row.Loading)
	assert.True(t, row.PriceLoading)

	require.NoError(t, f.store.Sync(context.Background(), "2330"))
	assert.Equal(t, 1, f.quotes.Calls("2330"))

	close(f.quotes.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.quotes.Calls("2330"))
	assert.Equal(t, models.StateFresh, f.store.Positions()[0].State)
}

func TestSync_AppliesToEveryRowWithCode(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.seed("2330", "0050", "2330")

	require.NoError(t, f.store.Sync(context.Background(), "2330"))

	rows := f.store.Positions()
	assert.Equal(t, 585.0, rows[0].Price)
	assert.Equal(t, 0.0, rows[1].Price)
	assert.Equal(t, models.StateIdle, rows[1].State)
	assert.Equal(t, 585.0, rows[2].Price)
	assert.Equal(t, 1, f.quotes.Calls("2330"))
}

func TestSync_EmptyCodeIsNoop(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	require.NoError(t, f.store.Sync(context.Background(), "  "))
	assert.Zero(t, f.quotes.CodesSeen())
}

func TestStore_AddUpdateRemove(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)

	p := f.store.Add("2330")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.DefaultPledgeRate, p.PledgeRate)
	assert.Equal(t, 1.0, p.Frequency)

	require.Eventually(t, func() bool {
		return f.store.Positions()[0].State == models.StateFresh
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.store.Update(0, "shares", "3000"))
	require.NoError(t, f.store.Update(0, "pledgedShares", "abc"))
	row := f.store.Positions()[0]
	assert.Equal(t, 3000.0, row.Shares)
	assert.Equal(t, 0.0, row.PledgedShares)

	assert.ErrorIs(t, f.store.Update(0, "colour", "red"), models.ErrUnknownField)
	assert.ErrorIs(t, f.store.Update(5, "shares", "1"), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.store.Remove(-1), ErrIndexOutOfRange)

	require.NoError(t, f.store.Update(0, "stockCode", " "))
	row = f.store.Positions()[0]
	assert.Equal(t, "", row.StockCode)
	assert.Equal(t, models.StateIdle, row.State)

	require.NoError(t, f.store.Remove(0))
	assert.Empty(t, f.store.Positions())
	assert.False(t, f.store.Polling())
}

func TestStore_PollerRearmsOnlyWhenCodeSetChanges(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)

	f.store.Add("")
	assert.False(t, f.store.Polling())
	assert.Equal(t, 0, f.store.PollStarts())

	require.NoError(t, f.store.Update(0, "stockCode", "2330"))
	assert.True(t, f.store.Polling())
	assert.Equal(t, 1, f.store.PollStarts())

	require.NoError(t, f.store.Update(0, "shares", "10"))
	f.store.Add("2330")
	assert.Equal(t, 1, f.store.PollStarts(), "same code set keeps the schedule")

	f.store.Add("0050")
	assert.Equal(t, 2, f.store.PollStarts())

	require.NoError(t, f.store.Remove(2))
	assert.Equal(t, 3, f.store.PollStarts())

	require.NoError(t, f.store.Remove(0))
	assert.Equal(t, 3, f.store.PollStarts())
	require.NoError(t, f.store.Remove(0))
	assert.False(t, f.store.Polling())
}

func TestStore_PollingRefreshesTrackedCodes(t *testing.T) {
	f := newStoreFixture(t, 0, 10*time.Millisecond)
	f.store.Add("2330")
	f.store.Add("")

	require.Eventually(t, func() bool { return f.quotes.Calls("2330") >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.quotes.CodesSeen(), "empty codes are never fetched")
}

func TestStore_CloseStopsWork(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.store.Add("2330")
	f.store.Close()
	f.store.Close()

	assert.False(t, f.store.Polling())
	calls := f.quotes.Calls("2330")
	f.store.Trigger("2330")
	f.store.RefreshAll()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, f.quotes.Calls("2330"))
}

func TestSync_AfterCloseReturnsErrStoreClosed(t *testing.T) {
	f := newStoreFixture(t, time.Minute, time.Hour)
	f.seed("2330")
	f.store.Close()

	err := f.store.Sync(context.Background(), "2330")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Zero(t, f.quotes.Calls("2330"))
	assert.Equal(t, models.StateIdle, f.store.Positions()[0].State)

	_, found, _ := f.kv.Get(context.Background(), "stock_2330")
	assert.False(t, found)
}

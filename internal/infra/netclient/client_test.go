package netclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResp struct {
	status int
	body   string
	err    error
}

// fakeDoer replays seq in order and repeats the last entry once it runs out.
type fakeDoer struct {
	mu    sync.Mutex
	calls int
	seq   []fakeResp
	reqs  []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.seq) {
		idx = len(f.seq) - 1
	}
	f.calls++
	f.reqs = append(f.reqs, req)
	r := f.seq[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     http.Header{},
	}, nil
}

func (f *fakeDoer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

type quote struct {
	ID    string `json:"id"`
	Price int    `json:"price"`
}

func newTestClient(t *testing.T, cfg Config, doer Doer, sleeps *sleepRecorder) *Client {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.example.test/v1"
	}
	c, err := New(cfg, WithHTTPClient(doer), WithSleeper(sleeps.Sleep))
	require.NoError(t, err)
	return c
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:443: connect: connection refused")

func TestFetchExhaustsAttemptsAndReturnsFallback(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{err: errConnRefused}}}
	sleeps := &sleepRecorder{}
	c := newTestClient(t, Config{}, doer, sleeps)

	fallback := &quote{ID: "cached"}
	out := Fetch(context.Background(), c, Request{URL: "/quotes/1", MaxAttempts: 3}, fallback)

	assert.Equal(t, 3, doer.Calls())
	assert.True(t, out.Offline)
	assert.False(t, out.OK())
	assert.Same(t, fallback, out.Data)
	assert.Equal(t, 3, out.Attempts)
	require.Error(t, out.Err)
	assert.True(t, IsNetworkUnreachable(out.Err))
	assert.ErrorIs(t, out.Err, errConnRefused)
}

func TestFetchWithoutFallbackLeavesDataNil(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusBadGateway}}}
	c := newTestClient(t, Config{}, doer, &sleepRecorder{})

	out := Fetch[quote](context.Background(), c, Request{URL: "/quotes/1"}, nil)
	assert.True(t, out.Offline)
	assert.Nil(t, out.Data)
	assert.Equal(t, DefaultMaxAttempts, doer.Calls())
	assert.Equal(t, http.StatusBadGateway, StatusCode(out.Err))
}

func TestFetchSucceedsAfterOneFailure(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{
		{err: errConnRefused},
		{status: http.StatusOK, body: `{"id":"q1","price":42}`},
	}}
	c := newTestClient(t, Config{}, doer, &sleepRecorder{})

	out := Fetch(context.Background(), c, Request{URL: "/quotes/1", MaxAttempts: 3}, &quote{ID: "cached"})

	assert.Equal(t, 2, doer.Calls())
	assert.False(t, out.Offline)
	assert.NoError(t, out.Err)
	require.NotNil(t, out.Data)
	assert.Equal(t, quote{ID: "q1", Price: 42}, *out.Data)
	assert.Equal(t, 2, out.Attempts)
}

func TestLinearBackoffBetweenAttempts(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusServiceUnavailable}}}
	sleeps := &sleepRecorder{}
	c := newTestClient(t, Config{BaseDelay: 250 * time.Millisecond}, doer, sleeps)

	Fetch[quote](context.Background(), c, Request{URL: "/quotes", MaxAttempts: 4}, nil)

	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond}, sleeps.waits)

	backoff := LinearBackoff(time.Second)
	for k := 1; k < 10; k++ {
		assert.Equal(t, time.Duration(k)*time.Second, backoff(k))
		assert.Greater(t, backoff(k+1), backoff(k))
	}
}

func TestAlternativeBackoffPolicies(t *testing.T) {
	exp := ExponentialBackoff(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, exp(1))
	assert.Equal(t, 200*time.Millisecond, exp(2))
	assert.Equal(t, 800*time.Millisecond, exp(4))
	assert.Equal(t, time.Second, exp(5))
	assert.Equal(t, time.Second, exp(30))

	unbounded := ExponentialBackoff(time.Second, 0)
	assert.Equal(t, 64*time.Second, unbounded(7))
	for _, n := range []int{40, 64, 200, 10000} {
		assert.Equal(t, time.Duration(math.MaxInt64), unbounded(n), "n=%d", n)
	}

	sched := ScheduleBackoff([]time.Duration{time.Second, 5 * time.Second, 30 * time.Second})
	assert.Equal(t, time.Second, sched(1))
	assert.Equal(t, 30*time.Second, sched(3))
	assert.Equal(t, 30*time.Second, sched(7))
	assert.Zero(t, ScheduleBackoff(nil)(1))
}

func TestClientErrorIsNotRetriedByDefault(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusUnprocessableEntity, body: `{"error":"year out of range"}`}}}
	sleeps := &sleepRecorder{}
	c := newTestClient(t, Config{}, doer, sleeps)

	out := Fetch[quote](context.Background(), c, Request{Method: http.MethodPost, URL: "/listings"}, nil)

	assert.Equal(t, 1, doer.Calls())
	assert.Empty(t, sleeps.waits)
	assert.True(t, out.Offline)
	assert.True(t, IsHTTPError(out.Err))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(out.Err))
	assert.Contains(t, out.Err.Error(), "year out of range")
}

func TestClientErrorRetriedWhenConfigured(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusNotFound}}}
	c := newTestClient(t, Config{RetryClientErrors: true}, doer, &sleepRecorder{})

	out := Fetch[quote](context.Background(), c, Request{URL: "/quotes/404"}, nil)
	assert.Equal(t, 3, doer.Calls())
	assert.True(t, out.Offline)
}

func TestTooManyRequestsIsRetried(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK, body: `{"id":"q2"}`},
	}}
	c := newTestClient(t, Config{}, doer, &sleepRecorder{})

	out := Fetch[quote](context.Background(), c, Request{URL: "/quotes/2"}, nil)
	assert.False(t, out.Offline)
	assert.Equal(t, 2, doer.Calls())
}

func TestParseErrorConsumesAttempts(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusOK, body: `<html>maintenance</html>`}}}
	c := newTestClient(t, Config{MaxAttempts: 2}, doer, &sleepRecorder{})

	out := Fetch[quote](context.Background(), c, Request{URL: "/quotes/1"}, nil)
	assert.Equal(t, 2, doer.Calls())
	assert.True(t, out.Offline)
	assert.True(t, IsParseError(out.Err))
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{err: errConnRefused}}}
	ctx, cancel := context.WithCancel(context.Background())
	c, err := New(Config{BaseURL: "https://api.example.test"}, WithHTTPClient(doer), WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	out := Fetch[quote](ctx, c, Request{URL: "/quotes", MaxAttempts: 5}, nil)
	assert.Equal(t, 1, doer.Calls())
	assert.True(t, out.Offline)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.True(t, IsNetworkUnreachable(out.Err))
}

func TestRealSleeperHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestInvalidAttemptBound(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusOK, body: `{}`}}}
	c := newTestClient(t, Config{}, doer, &sleepRecorder{})

	out := Fetch(context.Background(), c, Request{URL: "/quotes", MaxAttempts: -1}, &quote{ID: "fb"})
	assert.ErrorIs(t, out.Err, ErrInvalidAttempts)
	assert.True(t, out.Offline)
	assert.Equal(t, "fb", out.Data.ID)
	assert.Zero(t, doer.Calls())

	_, err := New(Config{MaxAttempts: -2})
	assert.ErrorIs(t, err, ErrInvalidAttempts)
}

func TestRelativeURLWithoutBaseIsRejected(t *testing.T) {
	doer := &fakeDoer{seq: []fakeResp{{status: http.StatusOK, body: `{}`}}}
	c, err := New(Config{}, WithHTTPClient(doer))
	require.NoError(t, err)

	out := Fetch[quote](context.Background(), c, Request{URL: "/quotes"}, nil)
	assert.ErrorIs(t, out.Err, ErrInvalidRequest)
	assert.Zero(t, doer.Calls())

	_, err = New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetchAgainstServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1/listings", r.URL.Path)
		assert.Equal(t, "draft=1", r.URL.RawQuery)
		assert.Equal(t, "mobile-bff", r.Header.Get("X-Client"))
		assert.Equal(t, "Bearer override", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Yaris", payload["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"lst-1","price":100}`))
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL: srv.URL + "/api/v1/",
		DefaultHeaders: http.Header{
			"X-Client":      []string{"mobile-bff"},
			"Authorization": []string{"Bearer default"},
		},
	})
	require.NoError(t, err)

	req, err := JSONRequest(http.MethodPost, "listings?draft=1", map[string]string{"model": "Yaris"})
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer override")

	out := Fetch[quote](context.Background(), c, req, nil)
	require.NoError(t, out.Err)
	assert.Equal(t, "lst-1", out.Data.ID)
	assert.EqualValues(t, 1, hits.Load())
}

func TestAbsoluteURLBypassesBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"abs"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: "https://unused.example.test"})
	require.NoError(t, err)
	out := Fetch[quote](context.Background(), c, Request{URL: srv.URL + "/anything"}, nil)
	require.NoError(t, out.Err)
	assert.Equal(t, "abs", out.Data.ID)
}

func TestIsConnected(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer healthy.Close()

	c, err := New(Config{BaseURL: healthy.URL})
	require.NoError(t, err)
	assert.True(t, c.IsConnected(context.Background()))

	down := &fakeDoer{seq: []fakeResp{{err: errConnRefused}}}
	c, err = New(Config{BaseURL: "https://api.example.test"}, WithHTTPClient(down))
	require.NoError(t, err)
	assert.False(t, c.IsConnected(context.Background()))
	assert.Equal(t, 1, down.Calls(), "health check never retries")

	failing := &fakeDoer{seq: []fakeResp{{status: http.StatusInternalServerError}}}
	c, err = New(Config{BaseURL: "https://api.example.test", HealthPath: "/status"}, WithHTTPClient(failing))
	require.NoError(t, err)
	assert.False(t, c.IsConnected(context.Background()))
	assert.Equal(t, "/status", failing.reqs[0].URL.Path)
}

func TestIsConnectedTimesOut(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	c, err := New(Config{BaseURL: slow.URL, HealthTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, c.IsConnected(context.Background()))
}

type blockingDoer struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"id":"shared"}`))}, nil
}

func TestDedupeInFlightSharesRoundTrip(t *testing.T) {
	doer := &blockingDoer{entered: make(chan struct{}), release: make(chan struct{})}
	c, err := New(Config{BaseURL: "https://api.example.test", DedupeInFlight: true}, WithHTTPClient(doer))
	require.NoError(t, err)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Outcome[quote], callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Fetch[quote](context.Background(), c, Request{URL: "/quotes/1"}, nil)
		}(i)
	}
	<-doer.entered
	time.Sleep(50 * time.Millisecond)
	close(doer.release)
	wg.Wait()

	assert.EqualValues(t, 1, doer.calls.Load())
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "shared", r.Data.ID)
	}
}

func TestDedupeFollowerSurvivesLeaderCancellation(t *testing.T) {
	doer := &blockingDoer{entered: make(chan struct{}), release: make(chan struct{})}
	c, err := New(Config{BaseURL: "https://api.example.test", DedupeInFlight: true}, WithHTTPClient(doer), WithSleeper(func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}))
	require.NoError(t, err)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan Outcome[quote], 1)
	go func() {
		leaderDone <- Fetch[quote](leaderCtx, c, Request{URL: "/quotes/1"}, nil)
	}()
	<-doer.entered

	followerDone := make(chan Outcome[quote], 1)
	go func() {
		followerDone <- Fetch[quote](context.Background(), c, Request{URL: "/quotes/1"}, nil)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	leader := <-leaderDone
	assert.True(t, leader.Offline)
	assert.ErrorIs(t, leader.Err, context.Canceled)

	close(doer.release)
	follower := <-followerDone
	require.NoError(t, follower.Err)
	assert.False(t, follower.Offline)
	assert.Equal(t, "shared", follower.Data.ID)
	assert.EqualValues(t, 1, doer.calls.Load())
}

func TestConcurrentHealthChecksShareOneRequest(t *testing.T) {
	doer := &blockingDoer{entered: make(chan struct{}), release: make(chan struct{})}
	c, err := New(Config{BaseURL: "https://api.example.test", DedupeInFlight: true}, WithHTTPClient(doer))
	require.NoError(t, err)

	const checks = 3
	results := make(chan bool, checks)
	for i := 0; i < checks; i++ {
		go func() { results <- c.IsConnected(context.Background()) }()
	}
	<-doer.entered
	time.Sleep(50 * time.Millisecond)
	close(doer.release)

	for i := 0; i < checks; i++ {
		assert.True(t, <-results)
	}
	assert.EqualValues(t, 1, doer.calls.Load())
}

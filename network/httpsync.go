package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwallet-go/wallet"
)

// HTTPSyncConfig configures an HTTPSyncClient.
type HTTPSyncConfig struct {
	BaseURL      string        // service root; requests go to BaseURL + "/multiaddr"
	Timeout      time.Duration // per HTTP attempt, default 30s
	RateLimit    int           // requests per second, 0 means unlimited
	BatchSize    int           // addresses per request, default 100
	MaxRetries   int           // extra attempts on transient failures, default 2, negative disables
	RetryBackoff time.Duration // delay before the first retry, doubled each time
	HTTPClient   *http.Client
	Logger       log.FieldLogger
}

// Circuit breaker trip thresholds.
var (
	BreakerMinRequests  uint32 = 10
	BreakerFailureRatio        = 0.6
)

// HTTPSyncClient queries a multiaddr-style HTTP endpoint.
// Address lists larger than BatchSize are fetched concurrently and merged.
type HTTPSyncClient struct {
	base       *url.URL
	client     *http.Client
	limiter    ratelimit.Limiter
	cb         *gobreaker.CircuitBreaker
	batchSize  int
	maxRetries int
	backoff    time.Duration
	log        log.FieldLogger
}

var _ SyncClient = (*HTTPSyncClient)(nil)

// NewHTTPSyncClient builds a client for cfg.BaseURL.
func NewHTTPSyncClient(cfg HTTPSyncConfig) (*HTTPSyncClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("network: invalid sync url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	limiter := ratelimit.NewUnlimited()
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	}

	c := &HTTPSyncClient{
		base:       base,
		client:     cfg.HTTPClient,
		limiter:    limiter,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		log:        cfg.Logger.WithField("component", "httpsync"),
	}
	c.cb = c.newCircuitBreaker()
	return c, nil
}

func (c *HTTPSyncClient) newCircuitBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "multiaddr",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= BreakerMinRequests && ratio >= BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.log.Warn("sync endpoint seems down, stop allowing requests")
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				c.log.Info("checking sync endpoint status")
			}
		},
	})
}

// multiaddrResponse is the wire shape of a multiaddr reply.
type multiaddrResponse struct {
	Wallet struct {
		FinalBalance  uint64 `json:"final_balance"`
		TotalReceived uint64 `json:"total_received"`
		TotalSent     uint64 `json:"total_sent"`
		NTx           uint64 `json:"n_tx"`
	} `json:"wallet"`
	Addresses []wallet.AddressSummary `json:"addresses"`
	Txs       []wallet.TxSummary      `json:"txs"`
}

// FetchMultiAddress implements SyncClient. Every error wraps
// ErrSyncUnavailable.
func (c *HTTPSyncClient) FetchMultiAddress(ctx context.Context, addrs []string, limit, offset int) (*wallet.MultiAddressState, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, syncError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, syncError(err)
	}

	batches := chunk(addrs, c.batchSize)
	if len(batches) == 0 {
		return &wallet.MultiAddressState{
			Addresses: []wallet.AddressSummary{},
			Txs:       []wallet.TxSummary{},
			Limit:     limit,
			Offset:    offset,
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	// Each batch requests the first offset+limit transactions so the merged
	// page can be cut correctly.
	perBatch, perOffset := limit, offset
	if len(batches) > 1 {
		perBatch, perOffset = offset+limit, 0
	}

	results := make([]*multiaddrResponse, len(batches))
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range batches {
		eg.Go(func() error {
			resp, err := c.fetchWithRetry(egCtx, batches[i], perBatch, perOffset)
			if err != nil {
				return err
			}
			results[i] = resp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, syncError(err)
	}

	return merge(results, limit, offset, len(batches) > 1), nil
}

func (c *HTTPSyncClient) fetchWithRetry(ctx context.Context, addrs []string, limit, offset int) (*multiaddrResponse, error) {
	delay := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.WithError(lastErr).WithField("attempt", attempt).Debug("retrying multiaddr request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		c.limiter.Take()
		out, err := c.cb.Execute(func() (interface{}, error) {
			return c.fetch(ctx, addrs, limit, offset)
		})
		if err == nil {
			return out.(*multiaddrResponse), nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return errors.Is(err, ErrConnectionFailed)
}

func (c *HTTPSyncClient) fetch(ctx context.Context, addrs []string, limit, offset int) (*multiaddrResponse, error) {
	q := url.Values{}
	q.Set("active", strings.Join(addrs, "|"))
	q.Set("n", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	u := *c.base
	u.Path += "/multiaddr"
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var out multiaddrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode multiaddr: %w", ErrInvalidResponse, err)
	}
	return &out, nil
}

func chunk(addrs []string, size int) [][]string {
	var out [][]string
	for len(addrs) > 0 {
		n := size
		if n > len(addrs) {
			n = len(addrs)
		}
		out = append(out, addrs[:n])
		addrs = addrs[n:]
	}
	return out
}

// merge combines batch replies. Transactions are merged by hash with their
// results summed. When the request was split the list is ordered newest first and cut to [offset, offset+limit).
func merge(results []*multiaddrResponse, limit, offset int, split bool) *wallet.MultiAddressState {
	state := &wallet.MultiAddressState{
		Addresses: []wallet.AddressSummary{},
		Txs:       []wallet.TxSummary{},
		Limit:     limit,
		Offset:    offset,
		FetchedAt: time.Now().UTC(),
	}

	// A transaction touching addresses in several batches appears in each
	// of them with that batch's share of the net change.
	seen := make(map[string]int)
	for _, r := range results {
		state.FinalBalance += r.Wallet.FinalBalance
		state.TotalReceived += r.Wallet.TotalReceived
		state.TotalSent += r.Wallet.TotalSent
		state.NTx += r.Wallet.NTx
		state.Addresses = append(state.Addresses, r.Addresses...)
		for _, tx := range r.Txs {
			if i, ok := seen[tx.Hash]; ok {
				state.Txs[i].Result += tx.Result
				continue
			}
			seen[tx.Hash] = len(state.Txs)
			state.Txs = append(state.Txs, tx)
		}
	}

	if split {
		sort.SliceStable(state.Txs, func(i, j int) bool { return state.Txs[i].Time > state.Txs[j].Time })
		state.Txs = page(state.Txs, limit, offset)
	}
	return state
}

func page(txs []wallet.TxSummary, limit, offset int) []wallet.TxSummary {
	if offset >= len(txs) {
		return []wallet.TxSummary{}
	}
	end := offset + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[offset:end]
}

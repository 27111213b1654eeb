package unified

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/internal/circuitbreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// errorDecoder inspects a response and returns the exchange error it
// carries, or nil when the response is a success.
type errorDecoder func(status int, body []byte) *Error

type request struct {
	method   string
	path     string
	query    url.Values
	rawQuery string // used verbatim when set (signed queries)
	body     []byte
	header   http.Header
}

// base is the transport and market cache shared by every driver.
type base struct {
	id       string
	baseURL  string
	creds    Credentials
	features map[Feature]bool

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	markets Markets
}

func newBase(spec driverSpec, opts Options) *base {
	baseURL := spec.baseURL
	if opts.Sandbox {
		baseURL = spec.sandboxURL
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	features := make(map[Feature]bool, len(spec.features))
	for _, f := range spec.features {
		features[f] = true
	}
	if spec.sandboxURL != "" {
		features[FeatureSandbox] = true
	}

	return &base{
		id:         spec.id,
		baseURL:    baseURL,
		creds:      opts.Credentials,
		features:   features,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(spec.requestsPerSec), spec.burst),
		breaker:    opts.Breaker,
		logger:     logger.With(zap.String("exchange", spec.id)),
		now:        time.Now,
		markets:    opts.Markets,
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Has(feature Feature) bool {
	return b.features[feature]
}

func (b *base) SetMarkets(markets Markets) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markets = markets
}

func (b *base) loadMarkets(ctx context.Context, reload bool, fetch func(ctx context.Context) (Markets, error)) (Markets, error) {
	if !reload {
		b.mu.RLock()
		cached := b.markets
		b.mu.RUnlock()
		if len(cached) > 0 {
			return cached, nil
		}
	}

	markets, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	b.SetMarkets(markets)
	return markets, nil
}

// market resolves a unified symbol, loading markets on first use.
func (b *base) market(ctx context.Context, ex Exchange, symbol string) (Market, error) {
	markets, err := ex.LoadMarkets(ctx, false)
	if err != nil {
		return Market{}, err
	}

	m, ok := markets[symbol]
	if !ok {
		return Market{}, newError(b.id, KindBadSymbol, 0, "%s does not have market symbol %s", b.id, symbol)
	}
	return m, nil
}

// marketByID maps an exchange-native id back to its market.
func (b *base) marketByID(id string) (Market, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.markets {
		if m.ID == id {
			return m, true
		}
	}
	return Market{}, false
}

func (b *base) requireKeys() error {
	if b.creds.APIKey == "" || b.creds.Secret == "" {
		return newError(b.id, KindAuthentication, 0, "requires apiKey and secret credentials")
	}
	return nil
}

func (b *base) nowMillis() int64 {
	return b.now().UnixMilli()
}

// send rate-limits, runs the call through the breaker and decodes out.
func (b *base) send(ctx context.Context, req request, decode errorDecoder, out interface{}) error {
	err := b.limiter.Wait(ctx)
	if err != nil {
		return b.contextError(ctx, err)
	}

	if b.breaker == nil {
		return b.do(ctx, req, decode, out)
	}

	err = b.breaker.Execute(func() error {
		return b.do(ctx, req, decode, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return newError(b.id, KindExchangeNotAvailable, 0, "%v", err)
	}
	return err
}

func (b *base) do(ctx context.Context, req request, decode errorDecoder, out interface{}) (err error) {
	start := time.Now()
	endpoint := req.method + " " + req.path
	defer func() {
		RequestDuration.WithLabelValues(b.id, endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			RequestErrorsTotal.WithLabelValues(b.id, string(KindOf(err))).Inc()
		}
	}()

	requestURL := b.baseURL + req.path
	query := req.rawQuery
	if query == "" && len(req.query) > 0 {
		query = req.query.Encode()
	}
	if query != "" {
		requestURL += "?" + query
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, requestURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "mm-oracle/1.0")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return b.transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return b.transportError(ctx, err)
	}

	b.logger.Debug("exchange-request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if decode != nil {
		if exErr := decode(resp.StatusCode, respBody); exErr != nil {
			exErr.Exchange = b.id
			exErr.Status = resp.StatusCode
			return exErr
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newError(b.id, statusKind(resp.StatusCode), resp.StatusCode, "%d %s", resp.StatusCode, truncate(respBody))
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return newError(b.id, KindExchangeError, resp.StatusCode, "malformed response: %v", err)
	}
	return nil
}

func (b *base) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return b.contextError(ctx, ctxErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(b.id, KindRequestTimeout, 0, "request timed out: %v", err)
	}
	return newError(b.id, KindNetwork, 0, "%v", err)
}

func (b *base) contextError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(b.id, KindRequestTimeout, 0, "%v", err)
	}
	return newError(b.id, KindNetwork, 0, "%v", err)
}

func truncate(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}

func hmacHex(newHash func() hash.Hash, secret, payload string) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256(secret, payload string) string {
	return hmacHex(sha256.New, secret, payload)
}

func hmacSHA512(secret, payload string) string {
	return hmacHex(sha512.New, secret, payload)
}

func sha512Hex(payload []byte) string {
	sum := sha512.Sum512(payload)
	return hex.EncodeToString(sum[:])
}

// Package bigone implements exchanges.Client for BigONE on top of its
// viewer REST API.
package bigone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the BigONE v3 API root.
	DefaultBaseURL = "https://big.one/api/v3"

	// MaxLookback bounds trade windows; BigONE keeps 90 days of fills.
	MaxLookback = 90 * 24 * time.Hour

	// DepositNetwork is the chain deposit addresses are read for.
	DepositNetwork = "Ethereum"

	pageLimit      = 200
	defaultTimeout = 30 * time.Second
	requestFailed  = "Failed to make API request"
)

// Config holds the inputs of one per-user client.
type Config struct {
	UserID string
	APIKey string
	Secret string

	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client

	LogPermissionErrors bool
	Logger              *zap.Logger
}

// Client is a per-user BigONE client.
type Client struct {
	userID string
	apiKey string
	secret string

	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	guard      exchanges.AccessGuard
	logger     *zap.Logger
	now        func() time.Time
}

// statusError is a non-2xx response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bigone: unexpected status code %d: %s", e.status, e.body)
}

func isAuthFailure(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.status == http.StatusUnauthorized || se.status == http.StatusForbidden
}

// New creates a client. It fails with *types.ArgumentError when the user id
// is empty.
func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, &types.ArgumentError{Argument: "userId", Message: "userId is missing"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("exchange", exchanges.BigONE),
		zap.String("user-id", cfg.UserID),
		zap.String("api-key-hash", exchanges.KeyFingerprint(cfg.APIKey)))

	return &Client{
		userID:     cfg.UserID,
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		logger:     logger,
		now:        time.Now,
		guard: exchanges.AccessGuard{
			Exchange:            exchanges.BigONE,
			Classify:            isAuthFailure,
			Logger:              logger,
			LogPermissionErrors: cfg.LogPermissionErrors,
		},
	}, nil
}

// ExchangeName implements exchanges.Client.
func (c *Client) ExchangeName() string {
	return exchanges.BigONE
}

// CheckRequiredCredentials implements exchanges.Client.
func (c *Client) CheckRequiredCredentials() bool {
	return c.apiKey != "" && c.secret != ""
}

// CheckRequiredAccess implements exchanges.Client.
func (c *Client) CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error) {
	probes := map[types.Permission]exchanges.Probe{
		types.PermissionViewAccountBalance: func(ctx context.Context) error {
			_, err := c.FetchBalance(ctx)
			return err
		},
		types.PermissionViewDepositAddress: func(ctx context.Context) error {
			_, err := c.FetchDepositAddress(ctx, "ETH")
			return err
		},
		types.PermissionViewSpotTradingHistory: func(ctx context.Context) error {
			now := c.now().UnixMilli()
			it, err := c.FetchMyTrades(ctx, "ETH/USDT", now-1, now)
			if err != nil {
				return err
			}
			_, err = exchanges.FirstBatch(ctx, it)
			return err
		},
	}
	return exchanges.CheckRequiredAccess(ctx, exchanges.BigONE, permissions, probes)
}

// authToken signs a fresh bearer token. The nonce is in nanoseconds.
func (c *Client) authToken() (string, error) {
	nonce := strconv.FormatInt(c.now().UnixMilli()*1_000_000, 10)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"type":  "OpenAPIV2",
		"sub":   c.apiKey,
		"nonce": nonce,
	})
	return token.SignedString([]byte(c.secret))
}

// get performs an authenticated GET and decodes the body into out.
// 401 and 403 come back as *statusError for the access guard; every other
// failure is a *types.ClientError.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return &types.ClientError{Exchange: exchanges.BigONE, Message: requestFailed, Err: err}
	}

	token, err := c.authToken()
	if err != nil {
		return &types.ClientError{Exchange: exchanges.BigONE, Message: "sign auth token", Err: err}
	}

	requestURL := c.baseURL + "/" + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return &types.ClientError{Exchange: exchanges.BigONE, Message: requestFailed, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("exchange-request-failed", zap.String("path", path), zap.Error(err))
		return &types.ClientError{Exchange: exchanges.BigONE, Message: requestFailed, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.ClientError{Exchange: exchanges.BigONE, Message: requestFailed, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{status: resp.StatusCode, body: string(body)}
		c.logger.Error("exchange-request-failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(se))
		if isAuthFailure(se) {
			return se
		}
		return &types.ClientError{Exchange: exchanges.BigONE, Message: requestFailed, Err: se}
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return &types.ClientError{Exchange: exchanges.BigONE, Message: "decode response", Err: err}
	}
	return nil
}

type apiTrade struct {
	ID            json.Number `json:"id"`
	AssetPairName string      `json:"asset_pair_name"`
	Price         string      `json:"price"`
	Amount        string      `json:"amount"`
	TakerFee      *string     `json:"taker_fee"`
	Side          string      `json:"side"`
	CreatedAt     string      `json:"created_at"`
}

type tradesResponse struct {
	Data      []apiTrade `json:"data"`
	PageToken string     `json:"page_token"`
}

// FetchMyTrades implements exchanges.Client. BigONE pages newest first, so
// the scan stops once a page reaches back past since. Each batch is sorted
// ascending but later batches hold older trades.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since, until int64) (exchanges.TradeIterator, error) {
	err := exchanges.ValidateWindow(since, until, MaxLookback)
	if err != nil {
		return nil, err
	}

	base, quote, err := exchanges.SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}
	pair := base + "-" + quote

	var pageToken string
	fetch := func(ctx context.Context) ([]types.Trade, bool, error) {
		query := url.Values{}
		query.Set("asset_pair_name", pair)
		query.Set("limit", strconv.Itoa(pageLimit))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		resp, err := exchanges.CatchAccessErrors(c.guard, "fetchMyTrades", types.PermissionViewSpotTradingHistory,
			func() (tradesResponse, error) {
				var r tradesResponse
				return r, c.get(ctx, "viewer/trades", query, &r)
			})
		if err != nil {
			return nil, true, err
		}

		trades := make([]types.Trade, 0, len(resp.Data))
		oldest := int64(-1)
		for _, raw := range resp.Data {
			trade, err := mapTrade(raw)
			if err != nil {
				return nil, true, &types.ClientError{Exchange: exchanges.BigONE, Message: "malformed trade", Err: err}
			}
			if oldest < 0 || trade.Timestamp < oldest {
				oldest = trade.Timestamp
			}
			if trade.Timestamp >= since && trade.Timestamp < until {
				trades = append(trades, trade)
			}
		}
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Timestamp < trades[j].Timestamp
		})

		pageToken = resp.PageToken
		done := pageToken == "" || len(resp.Data) == 0 || oldest < since
		return trades, done, nil
	}

	return exchanges.NewPageIterator(exchanges.BigONE, fetch), nil
}

func mapTrade(raw apiTrade) (types.Trade, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil {
		return types.Trade{}, fmt.Errorf("parse created_at: %w", err)
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		return types.Trade{}, fmt.Errorf("parse price: %w", err)
	}
	amount, err := strconv.ParseFloat(raw.Amount, 64)
	if err != nil {
		return types.Trade{}, fmt.Errorf("parse amount: %w", err)
	}

	side := types.SideSell
	if raw.Side == "BID" {
		side = types.SideBuy
	}
	takerOrMaker := types.Taker
	if raw.TakerFee == nil {
		takerOrMaker = types.Maker
	}

	return types.Trade{
		ID:           raw.ID.String(),
		Timestamp:    createdAt.UnixMilli(),
		Symbol:       strings.ReplaceAll(raw.AssetPairName, "-", "/"),
		Side:         side,
		TakerOrMaker: takerOrMaker,
		Price:        price,
		Amount:       amount,
		Cost:         price * amount,
	}, nil
}

type apiAccount struct {
	AssetSymbol   string `json:"asset_symbol"`
	Balance       string `json:"balance"`
	LockedBalance string `json:"locked_balance"`
}

// FetchBalance implements exchanges.Client.
func (c *Client) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	return exchanges.CatchAccessErrors(c.guard, "fetchBalance", types.PermissionViewAccountBalance,
		func() (types.AccountBalance, error) {
			var resp struct {
				Data []apiAccount `json:"data"`
			}
			err := c.get(ctx, "viewer/accounts", nil, &resp)
			if err != nil {
				return nil, err
			}

			balance := make(types.AccountBalance, len(resp.Data))
			for _, account := range resp.Data {
				total, err := strconv.ParseFloat(account.Balance, 64)
				if err != nil {
					return nil, &types.ClientError{Exchange: exchanges.BigONE, Message: "malformed balance", Err: err}
				}
				used, err := strconv.ParseFloat(account.LockedBalance, 64)
				if err != nil {
					return nil, &types.ClientError{Exchange: exchanges.BigONE, Message: "malformed balance", Err: err}
				}
				balance[account.AssetSymbol] = types.AssetBalance{Free: total - used, Used: used, Total: total}
			}
			return balance, nil
		})
}

// FetchDepositAddress implements exchanges.Client. An asset without an
// address on DepositNetwork is an access error.
func (c *Client) FetchDepositAddress(ctx context.Context, symbol string) (string, error) {
	return exchanges.CatchAccessErrors(c.guard, "fetchDepositAddress", types.PermissionViewDepositAddress,
		func() (string, error) {
			var resp struct {
				Data []struct {
					Chain string `json:"chain"`
					Value string `json:"value"`
				} `json:"data"`
			}
			err := c.get(ctx, "viewer/assets/"+url.PathEscape(symbol)+"/address", nil, &resp)
			if err != nil {
				return "", err
			}

			for _, address := range resp.Data {
				if address.Chain == DepositNetwork && address.Value != "" {
					return address.Value, nil
				}
			}
			return "", &types.AccessError{
				Exchange:   exchanges.BigONE,
				Permission: types.PermissionViewDepositAddress,
				Message:    fmt.Sprintf("No deposit address for %s on %s", symbol, DepositNetwork),
			}
		})
}

var _ exchanges.Client = (*Client)(nil)

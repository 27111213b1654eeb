package unified

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
)

// binance speaks the Binance spot v3 API. MEXC serves the same shapes
// under its own host, header name and error codes.
type binance struct {
	*base
	keyHeader       string
	depositPath     string
	currenciesPath  string
	codeKinds       map[int]Kind
	depositMultiple bool // deposit address endpoint returns a list
}

func init() {
	register(driverSpec{
		id:             "binance",
		baseURL:        "https://api.binance.com",
		sandboxURL:     "https://testnet.binance.vision",
		requestsPerSec: 20,
		burst:          5,
		features:       []Feature{FeatureFetchCurrencies, FeatureDepositAddress},
		build: func(b *base) Exchange {
			return &binance{
				base:           b,
				keyHeader:      "X-MBX-APIKEY",
				depositPath:    "/sapi/v1/capital/deposit/address",
				currenciesPath: "/sapi/v1/capital/config/getall",
				codeKinds: map[int]Kind{
					-1002: KindAuthentication,
					-1003: KindRateLimitExceeded,
					-1021: KindExchangeError,
					-1022: KindAuthentication,
					-1121: KindBadSymbol,
					-2008: KindAuthentication,
					-2014: KindAuthentication,
					-2015: KindAuthentication,
					-1016: KindExchangeNotAvailable,
				},
			}
		},
	})

	register(driverSpec{
		id:             "mexc",
		baseURL:        "https://api.mexc.com",
		requestsPerSec: 20,
		burst:          5,
		features:       []Feature{FeatureFetchCurrencies, FeatureDepositAddress},
		build: func(b *base) Exchange {
			return &binance{
				base:            b,
				keyHeader:       "X-MEXC-APIKEY",
				depositPath:     "/api/v3/capital/deposit/address",
				currenciesPath:  "/api/v3/capital/config/getall",
				depositMultiple: true,
				codeKinds: map[int]Kind{
					400:   KindBadRequest,
					401:   KindAuthentication,
					602:   KindAuthentication,
					429:   KindRateLimitExceeded,
					10001: KindBadSymbol,
					30020: KindBadSymbol,
				},
			}
		},
	})
}

type binanceErrorBody struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

func (x *binance) decodeError(status int, body []byte) *Error {
	if status < http.StatusBadRequest {
		return nil
	}

	var e binanceErrorBody
	if json.Unmarshal(body, &e) != nil || e.Code == nil {
		return nil
	}

	kind, ok := x.codeKinds[*e.Code]
	if !ok {
		kind = statusKind(status)
		if kind == KindBadRequest {
			kind = KindExchangeError
		}
	}
	return &Error{Kind: kind, Message: strconv.Itoa(*e.Code) + " " + e.Msg}
}

func (x *binance) signed(ctx context.Context, path string, params url.Values, out interface{}) error {
	err := x.requireKeys()
	if err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(x.nowMillis(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	query += "&signature=" + hmacSHA256(x.creds.Secret, query)

	return x.send(ctx, request{
		method:   http.MethodGet,
		path:     path,
		rawQuery: query,
		header:   http.Header{x.keyHeader: []string{x.creds.APIKey}},
	}, x.decodeError, out)
}

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

func (x *binance) LoadMarkets(ctx context.Context, reload bool) (Markets, error) {
	return x.loadMarkets(ctx, reload, func(ctx context.Context) (Markets, error) {
		var info binanceExchangeInfo
		err := x.send(ctx, request{method: http.MethodGet, path: "/api/v3/exchangeInfo"}, x.decodeError, &info)
		if err != nil {
			return nil, err
		}

		markets := make(Markets, len(info.Symbols))
		for _, s := range info.Symbols {
			symbol := s.BaseAsset + "/" + s.QuoteAsset
			markets[symbol] = Market{
				Symbol: symbol,
				ID:     s.Symbol,
				Base:   s.BaseAsset,
				Quote:  s.QuoteAsset,
				Active: s.Status == "TRADING" || s.Status == "1" || s.Status == "ENABLED",
			}
		}
		return markets, nil
	})
}

type binanceTrade struct {
	ID       json.Number `json:"id"`
	Price    string      `json:"price"`
	Qty      string      `json:"qty"`
	QuoteQty string      `json:"quoteQty"`
	Time     int64       `json:"time"`
	IsBuyer  bool        `json:"isBuyer"`
	IsMaker  bool        `json:"isMaker"`
}

func (x *binance) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int, params TradeParams) (TradePage, error) {
	m, err := x.market(ctx, x, symbol)
	if err != nil {
		return TradePage{}, err
	}

	q := url.Values{}
	q.Set("symbol", m.ID)
	if since > 0 {
		q.Set("startTime", strconv.FormatInt(since, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var raw []binanceTrade
	err = x.signed(ctx, "/api/v3/myTrades", q, &raw)
	if err != nil {
		return TradePage{}, err
	}

	trades := make([]types.Trade, 0, len(raw))
	for _, t := range raw {
		price := parseFloat(t.Price)
		amount := parseFloat(t.Qty)
		cost := parseFloat(t.QuoteQty)
		if cost == 0 {
			cost = price * amount
		}

		side := types.SideSell
		if t.IsBuyer {
			side = types.SideBuy
		}
		role := types.Taker
		if t.IsMaker {
			role = types.Maker
		}

		trades = append(trades, types.Trade{
			ID:           t.ID.String(),
			Timestamp:    t.Time,
			Symbol:       m.Symbol,
			Side:         side,
			TakerOrMaker: role,
			Price:        price,
			Amount:       amount,
			Cost:         cost,
		})
	}

	return TradePage{Trades: trades}, nil
}

type binanceAccount struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (x *binance) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	var account binanceAccount
	err := x.signed(ctx, "/api/v3/account", nil, &account)
	if err != nil {
		return nil, err
	}

	balance := make(types.AccountBalance, len(account.Balances))
	for _, b := range account.Balances {
		free := parseFloat(b.Free)
		used := parseFloat(b.Locked)
		balance[b.Asset] = types.AssetBalance{Free: free, Used: used, Total: free + used}
	}
	return balance, nil
}

type binanceDepositAddress struct {
	Coin    string `json:"coin"`
	Network string `json:"network"`
	Address string `json:"address"`
}

func (x *binance) FetchDepositAddress(ctx context.Context, code string, network string) (string, error) {
	q := url.Values{}
	q.Set("coin", code)
	if network != "" {
		q.Set("network", network)
	}

	var addresses []binanceDepositAddress
	if x.depositMultiple {
		err := x.signed(ctx, x.depositPath, q, &addresses)
		if err != nil {
			return "", err
		}
	} else {
		var single binanceDepositAddress
		err := x.signed(ctx, x.depositPath, q, &single)
		if err != nil {
			return "", err
		}
		addresses = append(addresses, single)
	}

	for _, a := range addresses {
		if a.Address == "" {
			continue
		}
		if network == "" || a.Network == "" || a.Network == network {
			return a.Address, nil
		}
	}

	return "", newError(x.id, KindInvalidAddress, 0,
		"%s fetchDepositAddress() cannot find a deposit address for %s", x.id, code)
}

type binanceCoinConfig struct {
	Coin        string `json:"coin"`
	NetworkList []struct {
		Network       string `json:"network"`
		DepositEnable bool   `json:"depositEnable"`
	} `json:"networkList"`
}

func (x *binance) FetchCurrencies(ctx context.Context) (map[string]Currency, error) {
	var coins []binanceCoinConfig
	err := x.signed(ctx, x.currenciesPath, nil, &coins)
	if err != nil {
		return nil, err
	}

	currencies := make(map[string]Currency, len(coins))
	for _, c := range coins {
		currency := Currency{Code: c.Coin}
		for _, n := range c.NetworkList {
			currency.Networks = append(currency.Networks, Network{ID: n.Network, Deposit: n.DepositEnable})
		}
		currencies[c.Coin] = currency
	}
	return currencies, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

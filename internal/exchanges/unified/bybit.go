package unified

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
)

const bybitRecvWindow = "5000"

type bybit struct {
	*base
}

func init() {
	register(driverSpec{
		id:             "bybit",
		baseURL:        "https://api.bybit.com",
		sandboxURL:     "https://api-testnet.bybit.com",
		requestsPerSec: 10,
		burst:          5,
		features:       []Feature{FeatureFetchCurrencies, FeatureDepositAddress},
		build: func(b *base) Exchange {
			return &bybit{base: b}
		},
	})
}

//nolint:gochecknoglobals // static table
var bybitCodeKinds = map[int]Kind{
	10003:  KindAuthentication,
	10004:  KindAuthentication,
	10005:  KindPermissionDenied,
	10006:  KindRateLimitExceeded,
	10007:  KindAuthentication,
	10008:  KindAccountSuspended,
	10009:  KindAccountSuspended,
	10010:  KindPermissionDenied,
	10016:  KindExchangeNotAvailable,
	10024:  KindAccountNotEnabled,
	10027:  KindPermissionDenied,
	33004:  KindAuthentication,
	170121: KindBadSymbol,
	131001: KindAccountNotEnabled,
}

// bybitEnvelope is the v5 response wrapper. Errors arrive with HTTP 200.
type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (x *bybit) decodeError(status int, body []byte) *Error {
	var env bybitEnvelope
	if json.Unmarshal(body, &env) != nil || env.RetCode == 0 {
		return nil
	}

	kind, ok := bybitCodeKinds[env.RetCode]
	if !ok {
		kind = statusKind(status)
		if kind == KindBadRequest || status < http.StatusBadRequest {
			kind = KindExchangeError
		}
	}
	return &Error{Kind: kind, Message: strconv.Itoa(env.RetCode) + " " + env.RetMsg}
}

func (x *bybit) call(ctx context.Context, path string, params url.Values, private bool, result interface{}) error {
	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}

	req := request{method: http.MethodGet, path: path, rawQuery: query}

	if private {
		err := x.requireKeys()
		if err != nil {
			return err
		}
		timestamp := strconv.FormatInt(x.nowMillis(), 10)
		req.header = http.Header{
			"X-BAPI-API-KEY":     []string{x.creds.APIKey},
			"X-BAPI-TIMESTAMP":   []string{timestamp},
			"X-BAPI-RECV-WINDOW": []string{bybitRecvWindow},
			"X-BAPI-SIGN":        []string{hmacSHA256(x.creds.Secret, timestamp+x.creds.APIKey+bybitRecvWindow+query)},
		}
	}

	var env bybitEnvelope
	err := x.send(ctx, req, x.decodeError, &env)
	if err != nil {
		return err
	}

	err = json.Unmarshal(env.Result, result)
	if err != nil {
		return newError(x.id, KindExchangeError, 0, "malformed result: %v", err)
	}
	return nil
}

type bybitInstruments struct {
	List []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

func (x *bybit) LoadMarkets(ctx context.Context, reload bool) (Markets, error) {
	return x.loadMarkets(ctx, reload, func(ctx context.Context) (Markets, error) {
		markets := Markets{}
		cursor := ""
		for {
			q := url.Values{}
			q.Set("category", "spot")
			q.Set("limit", "1000")
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var res bybitInstruments
			err := x.call(ctx, "/v5/market/instruments-info", q, false, &res)
			if err != nil {
				return nil, err
			}

			for _, s := range res.List {
				symbol := s.BaseCoin + "/" + s.QuoteCoin
				markets[symbol] = Market{
					Symbol: symbol,
					ID:     s.Symbol,
					Base:   s.BaseCoin,
					Quote:  s.QuoteCoin,
					Active: s.Status == "Trading",
				}
			}

			if res.NextPageCursor == "" || len(res.List) == 0 {
				return markets, nil
			}
			cursor = res.NextPageCursor
		}
	})
}

type bybitExecutions struct {
	List []struct {
		ExecID    string `json:"execId"`
		Side      string `json:"side"`
		ExecPrice string `json:"execPrice"`
		ExecQty   string `json:"execQty"`
		ExecValue string `json:"execValue"`
		ExecTime  string `json:"execTime"`
		IsMaker   bool   `json:"isMaker"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

// FetchMyTrades reads /v5/execution/list. since is only sent when no cursor
// is given; params.Until is sent as endTime on every page.
func (x *bybit) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int, params TradeParams) (TradePage, error) {
	m, err := x.market(ctx, x, symbol)
	if err != nil {
		return TradePage{}, err
	}

	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", m.ID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	} else if since > 0 {
		q.Set("startTime", strconv.FormatInt(since, 10))
	}
	if params.Until > 0 {
		q.Set("endTime", strconv.FormatInt(params.Until, 10))
	}

	var res bybitExecutions
	err = x.call(ctx, "/v5/execution/list", q, true, &res)
	if err != nil {
		return TradePage{}, err
	}

	trades := make([]types.Trade, 0, len(res.List))
	for _, e := range res.List {
		ts, _ := strconv.ParseInt(e.ExecTime, 10, 64)
		price := parseFloat(e.ExecPrice)
		amount := parseFloat(e.ExecQty)
		cost := parseFloat(e.ExecValue)
		if cost == 0 {
			cost = price * amount
		}

		side := types.SideSell
		if e.Side == "Buy" {
			side = types.SideBuy
		}
		role := types.Taker
		if e.IsMaker {
			role = types.Maker
		}

		trades = append(trades, types.Trade{
			ID:           e.ExecID,
			Timestamp:    ts,
			Symbol:       m.Symbol,
			Side:         side,
			TakerOrMaker: role,
			Price:        price,
			Amount:       amount,
			Cost:         cost,
		})
	}

	return TradePage{Trades: trades, NextCursor: res.NextPageCursor}, nil
}

type bybitWallet struct {
	List []struct {
		Coin []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
			Locked        string `json:"locked"`
		} `json:"coin"`
	} `json:"list"`
}

func (x *bybit) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")

	var res bybitWallet
	err := x.call(ctx, "/v5/account/wallet-balance", q, true, &res)
	if err != nil {
		return nil, err
	}

	balance := types.AccountBalance{}
	for _, account := range res.List {
		for _, c := range account.Coin {
			total := parseFloat(c.WalletBalance)
			used := parseFloat(c.Locked)
			balance[c.Coin] = types.AssetBalance{Free: total - used, Used: used, Total: total}
		}
	}
	return balance, nil
}

type bybitDepositAddress struct {
	Coin   string `json:"coin"`
	Chains []struct {
		ChainType      string `json:"chainType"`
		Chain          string `json:"chain"`
		AddressDeposit string `json:"addressDeposit"`
	} `json:"chains"`
}

func (x *bybit) FetchDepositAddress(ctx context.Context, code string, network string) (string, error) {
	q := url.Values{}
	q.Set("coin", code)
	if network != "" {
		q.Set("chainType", network)
	}

	var res bybitDepositAddress
	err := x.call(ctx, "/v5/asset/deposit/query-address", q, true, &res)
	if err != nil {
		return "", err
	}

	for _, c := range res.Chains {
		if c.AddressDeposit == "" {
			continue
		}
		if network == "" || c.Chain == network || c.ChainType == network {
			return c.AddressDeposit, nil
		}
	}

	return "", newError(x.id, KindInvalidAddress, 0,
		"%s fetchDepositAddress() cannot find a deposit address for %s", x.id, code)
}

type bybitCoinInfo struct {
	Rows []struct {
		Coin   string `json:"coin"`
		Chains []struct {
			Chain        string `json:"chain"`
			ChainDeposit string `json:"chainDeposit"`
		} `json:"chains"`
	} `json:"rows"`
}

func (x *bybit) FetchCurrencies(ctx context.Context) (map[string]Currency, error) {
	var res bybitCoinInfo
	err := x.call(ctx, "/v5/asset/coin/query-info", nil, true, &res)
	if err != nil {
		return nil, err
	}

	currencies := make(map[string]Currency, len(res.Rows))
	for _, row := range res.Rows {
		currency := Currency{Code: row.Coin}
		for _, ch := range row.Chains {
			currency.Networks = append(currency.Networks, Network{ID: ch.Chain, Deposit: ch.ChainDeposit == "1"})
		}
		currencies[row.Coin] = currency
	}
	return currencies, nil
}

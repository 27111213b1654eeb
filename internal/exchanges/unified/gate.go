package unified

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
)

const gatePathPrefix = "/api/v4"

// gateNetworks maps unified network codes to Gate chain names.
//
//nolint:gochecknoglobals // static table
var gateNetworks = map[string]string{
	"ERC20": "ETH",
	"TRC20": "TRX",
	"BEP20": "BSC",
}

type gate struct {
	*base
}

func init() {
	register(driverSpec{
		id:             "gate",
		baseURL:        "https://api.gateio.ws",
		requestsPerSec: 10,
		burst:          5,
		features:       []Feature{FeatureFetchCurrencies, FeatureDepositAddress},
		build: func(b *base) Exchange {
			return &gate{base: b}
		},
	})
}

//nolint:gochecknoglobals // static table
var gateLabelKinds = map[string]Kind{
	"INVALID_KEY":             KindAuthentication,
	"INVALID_SIGNATURE":       KindAuthentication,
	"MISSING_REQUIRED_HEADER": KindAuthentication,
	"REQUEST_EXPIRED":         KindAuthentication,
	"FORBIDDEN":               KindPermissionDenied,
	"READ_ONLY":               KindPermissionDenied,
	"ACCOUNT_LOCKED":          KindAccountSuspended,
	"ACCOUNT_NOT_EXISTS":      KindAccountNotEnabled,
	"INVALID_CURRENCY_PAIR":   KindBadSymbol,
	"INVALID_CURRENCY":        KindBadSymbol,
	"TOO_MANY_REQUESTS":       KindRateLimitExceeded,
	"SERVER_ERROR":            KindExchangeNotAvailable,
	"TOO_BUSY":                KindExchangeNotAvailable,
}

type gateErrorBody struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

func (x *gate) decodeError(status int, body []byte) *Error {
	if status < http.StatusBadRequest {
		return nil
	}

	var e gateErrorBody
	if json.Unmarshal(body, &e) != nil || e.Label == "" {
		return nil
	}

	kind, ok := gateLabelKinds[e.Label]
	if !ok {
		kind = KindExchangeError
	}
	return &Error{Kind: kind, Message: e.Label + " " + e.Message}
}

// private signs with the APIv4 scheme:
// HMAC-SHA512(method\npath\nquery\nsha512(body)\ntimestamp).
func (x *gate) private(ctx context.Context, path string, params url.Values, out interface{}) error {
	err := x.requireKeys()
	if err != nil {
		return err
	}

	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}
	timestamp := strconv.FormatInt(x.now().Unix(), 10)
	payload := strings.Join([]string{
		http.MethodGet,
		gatePathPrefix + path,
		query,
		sha512Hex(nil),
		timestamp,
	}, "\n")

	return x.send(ctx, request{
		method:   http.MethodGet,
		path:     gatePathPrefix + path,
		rawQuery: query,
		header: http.Header{
			"KEY":       []string{x.creds.APIKey},
			"Timestamp": []string{timestamp},
			"SIGN":      []string{hmacSHA512(x.creds.Secret, payload)},
		},
	}, x.decodeError, out)
}

type gateCurrencyPair struct {
	ID          string `json:"id"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	TradeStatus string `json:"trade_status"`
}

func (x *gate) LoadMarkets(ctx context.Context, reload bool) (Markets, error) {
	return x.loadMarkets(ctx, reload, func(ctx context.Context) (Markets, error) {
		var pairs []gateCurrencyPair
		err := x.send(ctx, request{method: http.MethodGet, path: gatePathPrefix + "/spot/currency_pairs"}, x.decodeError, &pairs)
		if err != nil {
			return nil, err
		}

		markets := make(Markets, len(pairs))
		for _, p := range pairs {
			symbol := p.Base + "/" + p.Quote
			markets[symbol] = Market{
				Symbol: symbol,
				ID:     p.ID,
				Base:   p.Base,
				Quote:  p.Quote,
				Active: p.TradeStatus == "tradable",
			}
		}
		return markets, nil
	})
}

type gateTrade struct {
	ID           string `json:"id"`
	CreateTimeMs string `json:"create_time_ms"`
	Side         string `json:"side"`
	Role         string `json:"role"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
}

// FetchMyTrades uses params.Page (1-based). since and params.Until are
// sent as the from/to window in seconds.
func (x *gate) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int, params TradeParams) (TradePage, error) {
	m, err := x.market(ctx, x, symbol)
	if err != nil {
		return TradePage{}, err
	}

	q := url.Values{}
	q.Set("currency_pair", m.ID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	if since > 0 {
		q.Set("from", strconv.FormatInt(since/1000, 10))
	}
	if params.Until > 0 {
		// to is inclusive in seconds; the caller filters the exclusive bound
		q.Set("to", strconv.FormatInt((params.Until+999)/1000, 10))
	}

	var raw []gateTrade
	err = x.private(ctx, "/spot/my_trades", q, &raw)
	if err != nil {
		return TradePage{}, err
	}

	trades := make([]types.Trade, 0, len(raw))
	for _, t := range raw {
		ts, _ := strconv.ParseFloat(t.CreateTimeMs, 64)
		price := parseFloat(t.Price)
		amount := parseFloat(t.Amount)

		side := types.SideSell
		if t.Side == "buy" {
			side = types.SideBuy
		}
		role := types.Taker
		if t.Role == "maker" {
			role = types.Maker
		}

		trades = append(trades, types.Trade{
			ID:           t.ID,
			Timestamp:    int64(ts),
			Symbol:       m.Symbol,
			Side:         side,
			TakerOrMaker: role,
			Price:        price,
			Amount:       amount,
			Cost:         price * amount,
		})
	}

	return TradePage{Trades: trades}, nil
}

type gateAccount struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

func (x *gate) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	var accounts []gateAccount
	err := x.private(ctx, "/spot/accounts", nil, &accounts)
	if err != nil {
		return nil, err
	}

	balance := make(types.AccountBalance, len(accounts))
	for _, a := range accounts {
		free := parseFloat(a.Available)
		used := parseFloat(a.Locked)
		balance[a.Currency] = types.AssetBalance{Free: free, Used: used, Total: free + used}
	}
	return balance, nil
}

type gateDepositAddress struct {
	Currency            string `json:"currency"`
	Address             string `json:"address"`
	MultichainAddresses []struct {
		Chain        string `json:"chain"`
		Address      string `json:"address"`
		ObtainFailed int    `json:"obtain_failed"`
	} `json:"multichain_addresses"`
}

func (x *gate) FetchDepositAddress(ctx context.Context, code string, network string) (string, error) {
	q := url.Values{}
	q.Set("currency", code)

	var raw gateDepositAddress
	err := x.private(ctx, "/wallet/deposit_address", q, &raw)
	if err != nil {
		return "", err
	}

	chain := network
	if alias, ok := gateNetworks[network]; ok {
		chain = alias
	}

	for _, a := range raw.MultichainAddresses {
		if a.ObtainFailed != 0 || a.Address == "" {
			continue
		}
		if chain == "" || a.Chain == chain {
			return a.Address, nil
		}
	}

	if network == "" && raw.Address != "" && !strings.HasPrefix(raw.Address, "New address is being generated") {
		return raw.Address, nil
	}

	return "", newError(x.id, KindInvalidAddress, 0,
		"%s fetchDepositAddress() %s address is undefined", x.id, code)
}

type gateCurrencyChains struct {
	Chain             string `json:"chain"`
	IsDepositDisabled int    `json:"is_deposit_disabled"`
}

func (x *gate) FetchCurrencies(ctx context.Context) (map[string]Currency, error) {
	var raw []struct {
		Currency string               `json:"currency"`
		Chains   []gateCurrencyChains `json:"chains"`
	}
	err := x.send(ctx, request{method: http.MethodGet, path: gatePathPrefix + "/spot/currencies"}, x.decodeError, &raw)
	if err != nil {
		return nil, err
	}

	currencies := make(map[string]Currency, len(raw))
	for _, c := range raw {
		currency := Currency{Code: c.Currency}
		for _, ch := range c.Chains {
			currency.Networks = append(currency.Networks, Network{ID: ch.Chain, Deposit: ch.IsDepositDisabled == 0})
		}
		currencies[c.Currency] = currency
	}
	return currencies, nil
}

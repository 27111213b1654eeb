package unified

import (
	"context"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
)

// hyperliquid reads the public /info endpoint. Accounts are addressed by
// wallet, so no request is signed.
type hyperliquid struct {
	*base
}

func init() {
	register(driverSpec{
		id:             "hyperliquid",
		baseURL:        "https://api.hyperliquid.xyz",
		sandboxURL:     "https://api.hyperliquid-testnet.xyz",
		requestsPerSec: 10,
		burst:          5,
		build: func(b *base) Exchange {
			return &hyperliquid{base: b}
		},
	})
}

func (x *hyperliquid) info(ctx context.Context, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return newError(x.id, KindExchangeError, 0, "marshal request: %v", err)
	}
	return x.send(ctx, request{method: http.MethodPost, path: "/info", body: body}, nil, out)
}

type hyperliquidSpotMeta struct {
	Universe []struct {
		Name   string `json:"name"`
		Tokens []int  `json:"tokens"`
	} `json:"universe"`
	Tokens []struct {
		Name  string `json:"name"`
		Index int    `json:"index"`
	} `json:"tokens"`
}

func (x *hyperliquid) LoadMarkets(ctx context.Context, reload bool) (Markets, error) {
	return x.loadMarkets(ctx, reload, func(ctx context.Context) (Markets, error) {
		var meta hyperliquidSpotMeta
		err := x.info(ctx, map[string]string{"type": "spotMeta"}, &meta)
		if err != nil {
			return nil, err
		}

		tokenNames := make(map[int]string, len(meta.Tokens))
		for _, t := range meta.Tokens {
			tokenNames[t.Index] = t.Name
		}

		markets := make(Markets, len(meta.Universe))
		for _, u := range meta.Universe {
			if len(u.Tokens) != 2 {
				continue
			}
			baseName, okBase := tokenNames[u.Tokens[0]]
			quoteName, okQuote := tokenNames[u.Tokens[1]]
			if !okBase || !okQuote {
				continue
			}
			symbol := baseName + "/" + quoteName
			markets[symbol] = Market{
				Symbol: symbol,
				ID:     u.Name,
				Base:   baseName,
				Quote:  quoteName,
				Active: true,
			}
		}
		return markets, nil
	})
}

type hyperliquidFill struct {
	Coin    string      `json:"coin"`
	Px      string      `json:"px"`
	Sz      string      `json:"sz"`
	Side    string      `json:"side"`
	Time    int64       `json:"time"`
	Hash    string      `json:"hash"`
	Tid     json.Number `json:"tid"`
	Crossed bool        `json:"crossed"`
}

type userFillsByTimeRequest struct {
	Type            string `json:"type"`
	User            string `json:"user"`
	StartTime       int64  `json:"startTime"`
	EndTime         int64  `json:"endTime,omitempty"`
	AggregateByTime bool   `json:"aggregateByTime"`
}

// FetchMyTrades returns fills of params.User (or the configured wallet)
// for symbol from since. At most limit fills are returned. NextCursor is the
// timestamp of the last fill read, whatever its coin.
func (x *hyperliquid) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int, params TradeParams) (TradePage, error) {
	user := params.User
	if user == "" {
		user = x.creds.WalletAddress
	}
	if user == "" {
		return TradePage{}, newError(x.id, KindAuthentication, 0, "requires a wallet address")
	}

	m, err := x.market(ctx, x, symbol)
	if err != nil {
		return TradePage{}, err
	}

	var fills []hyperliquidFill
	err = x.info(ctx, userFillsByTimeRequest{
		Type:      "userFillsByTime",
		User:      user,
		StartTime: since,
		EndTime:   params.Until,
	}, &fills)
	if err != nil {
		return TradePage{}, err
	}

	var lastSeen int64
	trades := make([]types.Trade, 0, len(fills))
	for _, f := range fills {
		lastSeen = f.Time
		if f.Coin != m.ID {
			continue
		}

		price := parseFloat(f.Px)
		amount := parseFloat(f.Sz)

		side := types.SideSell
		if f.Side == "B" {
			side = types.SideBuy
		}
		role := types.Maker
		if f.Crossed {
			role = types.Taker
		}

		id := f.Tid.String()
		if id == "" {
			id = f.Hash
		}

		trades = append(trades, types.Trade{
			ID:           id,
			Timestamp:    f.Time,
			Symbol:       m.Symbol,
			Side:         side,
			TakerOrMaker: role,
			Price:        price,
			Amount:       amount,
			Cost:         price * amount,
		})

		if limit > 0 && len(trades) == limit {
			break
		}
	}

	// The cursor covers fills of other coins too, so callers can move past
	// a response that held none of symbol's fills.
	page := TradePage{Trades: trades}
	if len(fills) > 0 {
		page.NextCursor = strconv.FormatInt(lastSeen, 10)
	}
	return page, nil
}

type hyperliquidSpotState struct {
	Balances []struct {
		Coin  string `json:"coin"`
		Hold  string `json:"hold"`
		Total string `json:"total"`
	} `json:"balances"`
}

func (x *hyperliquid) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	if x.creds.WalletAddress == "" {
		return nil, newError(x.id, KindAuthentication, 0, "requires a wallet address")
	}

	var state hyperliquidSpotState
	err := x.info(ctx, map[string]string{
		"type": "spotClearinghouseState",
		"user": x.creds.WalletAddress,
	}, &state)
	if err != nil {
		return nil, err
	}

	balance := make(types.AccountBalance, len(state.Balances))
	for _, b := range state.Balances {
		total := parseFloat(b.Total)
		used := parseFloat(b.Hold)
		balance[b.Coin] = types.AssetBalance{Free: total - used, Used: used, Total: total}
	}
	return balance, nil
}

func (x *hyperliquid) FetchDepositAddress(ctx context.Context, code string, network string) (string, error) {
	return "", newError(x.id, KindNotSupported, 0, "fetchDepositAddress() is not supported")
}

func (x *hyperliquid) FetchCurrencies(ctx context.Context) (map[string]Currency, error) {
	return nil, newError(x.id, KindNotSupported, 0, "fetchCurrencies() is not supported")
}

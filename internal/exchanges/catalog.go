package exchanges

import (
	"sort"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// Exchange names known to the catalogue.
const (
	Binance     = "binance"
	BigONE      = "bigone"
	Bybit       = "bybit"
	Gate        = "gate"
	Hyperliquid = "hyperliquid"
	MEXC        = "mexc"
	PancakeSwap = "pancakeswap"
	XT          = "xt"
)

//nolint:gochecknoglobals // static catalogue
var catalog = map[string]types.ExchangeInfo{
	Binance:     {Name: Binance, DisplayName: "Binance", Type: types.ExchangeTypeCEX, URL: "https://www.binance.com"},
	BigONE:      {Name: BigONE, DisplayName: "BigONE", Type: types.ExchangeTypeCEX, URL: "https://big.one"},
	Bybit:       {Name: Bybit, DisplayName: "Bybit", Type: types.ExchangeTypeCEX, URL: "https://www.bybit.com"},
	Gate:        {Name: Gate, DisplayName: "Gate", Type: types.ExchangeTypeCEX, URL: "https://www.gate.io"},
	Hyperliquid: {Name: Hyperliquid, DisplayName: "Hyperliquid", Type: types.ExchangeTypeDEX, URL: "https://app.hyperliquid.xyz"},
	MEXC:        {Name: MEXC, DisplayName: "MEXC", Type: types.ExchangeTypeCEX, URL: "https://www.mexc.com"},
	PancakeSwap: {Name: PancakeSwap, DisplayName: "PancakeSwap", Type: types.ExchangeTypeDEX, URL: "https://pancakeswap.finance"},
}

// Lookup returns the catalogue entry for name.
func Lookup(name string) (types.ExchangeInfo, bool) {
	info, ok := catalog[name]
	return info, ok
}

// Catalog returns every known exchange sorted by name.
func Catalog() []types.ExchangeInfo {
	infos := make([]types.ExchangeInfo, 0, len(catalog))
	for _, info := range catalog {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

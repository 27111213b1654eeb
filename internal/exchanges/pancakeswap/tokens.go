package pancakeswap

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/mm-oracle/pkg/wallet"
)

//nolint:gochecknoglobals // BSC token table
var bscTokens = map[string]wallet.Token{
	"USDT": {Symbol: "USDT", Address: common.HexToAddress("0x55d398326f99059fF775485246999027B3197955"), Decimals: 18},
	"WBNB": {Symbol: "WBNB", Address: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"), Decimals: 18},
	"USDC": {Symbol: "USDC", Address: common.HexToAddress("0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"), Decimals: 18},
	"CAKE": {Symbol: "CAKE", Address: common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"), Decimals: 18},
	"ETH":  {Symbol: "ETH", Address: common.HexToAddress("0x2170Ed0880ac9A755fd29B2688956BD959F933F8"), Decimals: 18},
	"BTCB": {Symbol: "BTCB", Address: common.HexToAddress("0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c"), Decimals: 18},
}

// TokenFor returns the BSC token for symbol.
func TokenFor(symbol string) (wallet.Token, bool) {
	token, ok := bscTokens[symbol]
	return token, ok
}

// Tokens lists the token table by symbol.
func Tokens() []wallet.Token {
	tokens := make([]wallet.Token, 0, len(bscTokens))
	for _, token := range bscTokens {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Symbol < tokens[j].Symbol
	})
	return tokens
}

// subgraphID is how the subgraph spells an address: lower-case hex.
func subgraphID(address common.Address) string {
	return strings.ToLower(address.Hex())
}

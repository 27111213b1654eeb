package types

// Side is the direction of a trade from the account owner's point of view.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TakerOrMaker tells whether a fill removed or added liquidity.
type TakerOrMaker string

const (
	Taker TakerOrMaker = "taker"
	Maker TakerOrMaker = "maker"
)

// Trade represents a single executed fill on an exchange.
// Trades are produced by exchange clients and never mutated afterwards.
type Trade struct {
	ID           string       `json:"id"`
	Timestamp    int64        `json:"timestamp"` // ms since epoch
	Symbol       string       `json:"symbol"`    // BASE/QUOTE
	Side         Side         `json:"side"`
	TakerOrMaker TakerOrMaker `json:"takerOrMaker"`
	Price        float64      `json:"price"`
	Amount       float64      `json:"amount"`
	Cost         float64      `json:"cost"`
}

// AssetBalance holds balance figures for a single asset.
type AssetBalance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// AccountBalance maps asset symbol to its balance snapshot.
type AccountBalance map[string]AssetBalance

package types

// ExchangeType distinguishes centralized from decentralized venues.
type ExchangeType string

const (
	ExchangeTypeCEX ExchangeType = "cex"
	ExchangeTypeDEX ExchangeType = "dex"
)

// ExchangeInfo describes a supported exchange.
type ExchangeInfo struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Type        ExchangeType `json:"type"`
	URL         string       `json:"url"`
}

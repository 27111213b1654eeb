// Package campaign validates campaign documents and computes rewards.
package campaign

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Type is the campaign kind.
type Type string

const (
	TypeMarketMaking Type = "MARKET_MAKING"
	TypeHolding      Type = "HOLDING"
)

const day = 24 * time.Hour

// symbolPattern matches a token (HOLDING) or a BASE/QUOTE pair.
var symbolPattern = regexp.MustCompile(`^[A-Z]{3,10}(/[A-Z]{3,10})?$`)

var pairPattern = regexp.MustCompile(`^[A-Z]{3,10}/[A-Z]{3,10}$`)

// Manifest describes one campaign. Unknown fields are dropped on parse.
type Manifest struct {
	Type     Type   `json:"type"`
	Exchange string `json:"exchange"`

	// Pair is set for MARKET_MAKING campaigns.
	Pair              string              `json:"pair,omitempty"`
	DailyVolumeTarget decimal.NullDecimal `json:"daily_volume_target"`

	// Symbol is set for HOLDING campaigns.
	Symbol             string              `json:"symbol,omitempty"`
	DailyBalanceTarget decimal.NullDecimal `json:"daily_balance_target"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ParseManifest decodes and validates raw manifest JSON. Failures are
// *types.ValidationError.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	err := json.Unmarshal(raw, &m)
	if err != nil {
		return nil, decodeError(err)
	}

	err = m.Validate()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks field presence and shape.
func (m *Manifest) Validate() error {
	marketMaking := m.Type == TypeMarketMaking
	holding := m.Type == TypeHolding

	return toValidationError(validation.ValidateStruct(m,
		validation.Field(&m.Type, validation.Required, validation.In(TypeMarketMaking, TypeHolding)),
		validation.Field(&m.Exchange, validation.Required),
		validation.Field(&m.Pair,
			validation.When(marketMaking, validation.Required),
			validation.Match(symbolPattern),
			validation.When(marketMaking, validation.Match(pairPattern)),
		),
		validation.Field(&m.DailyVolumeTarget,
			validation.When(marketMaking, requiredDecimal),
			boundedDecimal(decimal.Zero, true),
		),
		validation.Field(&m.Symbol,
			validation.When(holding, validation.Required),
			validation.Match(symbolPattern),
		),
		validation.Field(&m.DailyBalanceTarget,
			validation.When(holding, requiredDecimal),
			boundedDecimal(decimal.Zero, true),
		),
		validation.Field(&m.StartDate, validation.Required),
		validation.Field(&m.EndDate, validation.Required, validation.By(m.afterStart)),
	))
}

func (m *Manifest) afterStart(value interface{}) error {
	end, _ := value.(time.Time)
	if !end.After(m.StartDate) {
		return errors.New("must be after start_date")
	}
	return nil
}

// Market returns the pair of a MARKET_MAKING campaign or the symbol of a
// HOLDING campaign.
func (m *Manifest) Market() string {
	if m.Type == TypeHolding {
		return m.Symbol
	}
	return m.Pair
}

// DailyTarget returns the per-period target of the campaign type.
func (m *Manifest) DailyTarget() decimal.Decimal {
	if m.Type == TypeHolding {
		return m.DailyBalanceTarget.Decimal
	}
	return m.DailyVolumeTarget.Decimal
}

// DurationDays returns the campaign length in days, rounded up.
func (m *Manifest) DurationDays() int64 {
	return DurationDays(m.StartDate, m.EndDate)
}

// DurationDays returns ceil((end - start) / 24h), or 0 when end is not
// after start.
func DurationDays(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

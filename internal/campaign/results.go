package campaign

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ParticipantOutcome is one participant's measured contribution in a period.
type ParticipantOutcome struct {
	Address     string              `json:"address"`
	Score       decimal.NullDecimal `json:"score"`
	TotalVolume decimal.NullDecimal `json:"total_volume"`
}

// Validate implements validation.Validatable.
func (o ParticipantOutcome) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Address, validation.Required),
		validation.Field(&o.Score, requiredDecimal, boundedDecimal(decimal.Zero, false)),
		validation.Field(&o.TotalVolume, boundedDecimal(decimal.Zero, false)),
	)
}

// OutcomesBatch groups outcomes paid out together.
type OutcomesBatch struct {
	ID      string               `json:"id"`
	Results []ParticipantOutcome `json:"results"`
}

// Validate implements validation.Validatable.
func (b OutcomesBatch) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.ID, validation.Required, is.UUIDv4),
		validation.Field(&b.Results, validation.NotNil),
	)
}

// IntermediateResult is one reporting period.
type IntermediateResult struct {
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	TotalVolume   decimal.NullDecimal `json:"total_volume"`
	ReservedFunds decimal.NullDecimal `json:"reserved_funds"`
	Batches       []OutcomesBatch     `json:"participants_outcomes_batches"`
}

// Validate implements validation.Validatable.
func (r IntermediateResult) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required, validation.By(func(value interface{}) error {
			to, _ := value.(time.Time)
			if !to.After(r.From) {
				return errors.New("must be after from")
			}
			return nil
		})),
		validation.Field(&r.TotalVolume, requiredDecimal, boundedDecimal(decimal.Zero, false)),
		validation.Field(&r.ReservedFunds, requiredDecimal, boundedDecimal(decimal.Zero, false)),
		validation.Field(&r.Batches, validation.NotNil),
	)
}

// ResultsDocument is the intermediate results of one campaign.
type ResultsDocument struct {
	ChainID  int64                `json:"chain_id"`
	Address  string               `json:"address"`
	Exchange string               `json:"exchange"`
	Results  []IntermediateResult `json:"results"`
}

// Validate implements validation.Validatable.
func (d *ResultsDocument) Validate() error {
	return toValidationError(validation.ValidateStruct(d,
		validation.Field(&d.ChainID, validation.Required, validation.Min(int64(1))),
		validation.Field(&d.Address, validation.Required),
		validation.Field(&d.Exchange, validation.Required),
		validation.Field(&d.Results, validation.NotNil),
	))
}

// ParseResults decodes and validates a results document. Failures are
// *types.ValidationError.
func ParseResults(raw []byte) (*ResultsDocument, error) {
	var doc ResultsDocument
	err := json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, decodeError(err)
	}

	err = doc.Validate()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

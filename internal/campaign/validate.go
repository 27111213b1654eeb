package campaign

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/shopspring/decimal"
)

// maxMagnitude bounds every numeric document field.
var maxMagnitude = decimal.New(1, 30)

// requiredDecimal fails when the field was absent or null.
var requiredDecimal = validation.By(func(value interface{}) error {
	d, ok := value.(decimal.NullDecimal)
	if !ok || !d.Valid {
		return errors.New("cannot be blank")
	}
	return nil
})

// boundedDecimal checks a present value against min (strict when
// exclusive) and maxMagnitude.
func boundedDecimal(min decimal.Decimal, exclusive bool) validation.Rule {
	return validation.By(func(value interface{}) error {
		d, ok := value.(decimal.NullDecimal)
		if !ok || !d.Valid {
			return nil
		}
		if d.Decimal.Abs().GreaterThan(maxMagnitude) {
			return errors.New("is out of range")
		}
		if exclusive && !d.Decimal.GreaterThan(min) {
			return fmt.Errorf("must be greater than %s", min)
		}
		if !exclusive && d.Decimal.LessThan(min) {
			return fmt.Errorf("must be no less than %s", min)
		}
		return nil
	})
}

// toValidationError converts an ozzo error tree into a ValidationError
// naming the first offending field as a dotted path.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	path, message := firstFieldError("", err)
	return &types.ValidationError{Field: path, Message: message}
}

func firstFieldError(prefix string, err error) (string, string) {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return prefix, err.Error()
	}

	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := keys[0]
	path := key
	if prefix != "" {
		path = prefix + "." + key
	}
	return firstFieldError(path, errs[key])
}

// decodeError converts a JSON decoding failure into a ValidationError.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = typeErr.Struct
		}
		return &types.ValidationError{
			Field:   strings.TrimPrefix(field, "."),
			Message: "must be of type " + typeErr.Type.String(),
		}
	}
	return &types.ValidationError{Message: "malformed JSON: " + err.Error()}
}

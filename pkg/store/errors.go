package store

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput is returned, wrapped with detail, when a caller supplies input the
// repository refuses to send to the store.
var ErrInvalidInput = errors.New("store: invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateKey(key EnvelopeKey) error {
	if err := validate.Struct(key); err != nil {
		return fmt.Errorf("%w: id and receivedAt are both required", ErrInvalidInput)
	}
	return nil
}

type bulkKeys struct {
	Keys []EnvelopeKey `validate:"required,min=1,dive"`
}

func validateKeys(keys []EnvelopeKey) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: key list cannot be empty", ErrInvalidInput)
	}
	if err := validate.Struct(bulkKeys{Keys: keys}); err != nil {
		return fmt.Errorf("%w: every key needs an id and a receivedAt", ErrInvalidInput)
	}
	return nil
}

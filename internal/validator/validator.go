// Package validator checks records before they are routed to an output file.
package validator

import (
	"fmt"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/internal/writer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// RecordValidator rejects records that cannot be routed.
type RecordValidator struct {
	keyHeader      string
	maxRecordBytes int
}

// NewRecordValidator creates a validator. maxRecordBytes <= 0 disables the size check.
func NewRecordValidator(keyHeader string, maxRecordBytes int) *RecordValidator {
	return &RecordValidator{
		keyHeader:      keyHeader,
		maxRecordBytes: maxRecordBytes,
	}
}

// Validate returns a ValidationError when the record has no usable routing key
// or its body is larger than allowed.
func (v *RecordValidator) Validate(r event.Record) error {
	if !r.HasKey {
		return &errors.ValidationError{
			Field:  "key",
			Reason: fmt.Sprintf("header %q is missing", v.keyHeader),
			Err:    errors.ErrMissingKey,
		}
	}

	if _, err := writer.NormalizeKey(r.Key); err != nil {
		return &errors.ValidationError{
			Field:  "key",
			Reason: fmt.Sprintf("header %q does not name a file: %q", v.keyHeader, r.Key),
			Err:    err,
		}
	}

	if v.maxRecordBytes > 0 && len(r.Body) > v.maxRecordBytes {
		return &errors.ValidationError{
			Field:  "body",
			Reason: fmt.Sprintf("%d bytes exceeds limit of %d", len(r.Body), v.maxRecordBytes),
			Err:    errors.ErrRecordTooLarge,
		}
	}

	return nil
}

package query

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/streamdash/internal/model"
)

// ErrSchema is matched by every error caused by a column the dataset cannot serve.
var ErrSchema = errors.New("schema mismatch")

// SchemaError reports a missing or unsuitable column.
type SchemaError struct {
	Op     string
	Column model.Column
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: column %q %s", e.Op, e.Column, e.Reason)
}

// Unwrap lets errors.Is match ErrSchema.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

func missingColumn(op string, c model.Column) error {
	return &SchemaError{Op: op, Column: c, Reason: "is not in the dataset schema"}
}

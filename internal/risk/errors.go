package risk

import (
	"errors"
	"fmt"
)

// ErrInputsIncomplete means one of the three source tables was not supplied.
// Nothing is computed when it is returned.
var ErrInputsIncomplete = errors.New("inputs incomplete")

// SchemaError reports a source table that is missing a required column.
type SchemaError struct {
	Source string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table: missing %s column", e.Source, e.Column)
}

func incomplete(missing []string) error {
	return fmt.Errorf("%w: missing %v", ErrInputsIncomplete, missing)
}

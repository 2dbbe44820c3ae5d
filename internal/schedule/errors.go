package schedule

import "fmt"

// SchemaError reports a record with a missing or malformed field.
type SchemaError struct {
	Table  string
	Row    int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s row %d, field %s: %s", e.Table, e.Row, e.Field, e.Reason)
}

// ReferentialError reports a record pointing at an id that was never loaded.
type ReferentialError struct {
	Table string
	Row   int
	Field string
	Value string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("referential error in %s row %d: %s %q does not exist", e.Table, e.Row, e.Field, e.Value)
}

// NotFoundError is returned for lookups of unknown stops or trips.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

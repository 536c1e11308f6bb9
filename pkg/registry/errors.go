package registry

import "fmt"

// MissingRequiredFieldError marks an upload whose mandatory dereference
// is unset, e.g. a custom field without its group.
type MissingRequiredFieldError struct {
	Entity string
	Field  string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s is missing required field %q", e.Entity, e.Field)
}

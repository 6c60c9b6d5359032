package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// objectNameRegexp matches the object names accepted by the composite endpoint.
// Names end up as a path segment, so separators are rejected.
var objectNameRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

const maxFieldLength = 255

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
	Value   string
}

func (e *FieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateCredentials checks the tenant token and organization id passed to
// Initialize. Both are opaque to the SDK; only presence is enforced.
func ValidateCredentials(token, organizationID string) error {
	if strings.TrimSpace(token) == "" {
		return &FieldError{Field: "token", Message: "must not be empty"}
	}
	if strings.TrimSpace(organizationID) == "" {
		return &FieldError{Field: "organization_id", Message: "must not be empty"}
	}
	return nil
}

// ValidateEventName validates a tracking event name.
// Names are free text ("open app", "submit form"), so only length is checked.
func ValidateEventName(name string) error {
	if name == "" {
		return &FieldError{Field: "cx_event", Message: "is required"}
	}
	if len(name) > maxFieldLength {
		return &FieldError{
			Field:   "cx_event",
			Message: fmt.Sprintf("must be %d characters or less", maxFieldLength),
			Value:   truncateForDisplay(name),
		}
	}
	return nil
}

// ValidateKey validates the merge key of an identify or ticket payload.
func ValidateKey(key string) error {
	if key == "" {
		return &FieldError{Field: "key", Message: "is required"}
	}
	if len(key) > maxFieldLength {
		return &FieldError{
			Field:   "key",
			Message: fmt.Sprintf("must be %d characters or less", maxFieldLength),
			Value:   truncateForDisplay(key),
		}
	}
	return nil
}

// ValidateObjectName validates the object name of a record batch.
func ValidateObjectName(name string) error {
	if name == "" {
		return &FieldError{Field: "object_name", Message: "is required"}
	}
	if len(name) > maxFieldLength {
		return &FieldError{
			Field:   "object_name",
			Message: fmt.Sprintf("must be %d characters or less", maxFieldLength),
			Value:   truncateForDisplay(name),
		}
	}
	if !objectNameRegexp.MatchString(name) {
		return &FieldError{
			Field:   "object_name",
			Message: "must start with a letter and contain only letters, digits or underscores",
			Value:   truncateForDisplay(name),
		}
	}
	return nil
}

// ValidateAttributes checks that an attribute map can be encoded as JSON.
func ValidateAttributes(field string, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	if _, err := json.Marshal(attrs); err != nil {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be JSON encodable: %v", err),
		}
	}
	return nil
}

// truncateForDisplay truncates a string to 50 chars for error display.
func truncateForDisplay(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50] + "..."
}

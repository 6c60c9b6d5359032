package validation

// TicketValidator exposes the ticket fields that must be present before a
// ticket is submitted.
type TicketValidator interface {
	GetKey() string
	GetSubject() string
	GetChannel() string
}

// ValidateTicket validates an open-ticket payload.
//
// Returns nil if valid, or a FieldError describing the first validation failure.
func ValidateTicket(t TicketValidator) error {
	if err := ValidateKey(t.GetKey()); err != nil {
		return err
	}
	if t.GetChannel() == "" {
		return &FieldError{Field: "cx_channel", Message: "is required"}
	}
	if t.GetSubject() == "" {
		return &FieldError{Field: "cx_subject", Message: "is required"}
	}
	return nil
}

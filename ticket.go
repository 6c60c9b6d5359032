package connectx

import (
	"github.com/mintelligence/connectx-go/internal/validation"
)

const openTicketPath = "/webtracking/dropformOpenTicket"

// EmailContent is the body of an email-channel ticket.
type EmailContent struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Ticket describes the support ticket to open.
type Ticket struct {
	// Channel is the routing channel, e.g. "email". Required.
	Channel string
	// Subject is the ticket subject. Required.
	Subject string
	// SocialAccountName is the connector address the ticket is routed to.
	SocialAccountName string
	// SocialContact is the customer's contact address on the channel.
	SocialContact string
	// Email is the message body for email tickets.
	Email *EmailContent
	// Extra holds any additional ticket fields.
	Extra map[string]any
}

// TicketRequest is the payload of an open-ticket call.
type TicketRequest struct {
	// Key names the customer attribute used as merge key. Required.
	Key string
	// Customer holds the customer attributes.
	Customer map[string]any
	// Ticket is the ticket to open.
	Ticket Ticket
	// Lead holds fallback contact attributes.
	Lead map[string]any
	// Customs are custom objects referenced from the ticket.
	Customs []CustomObject
}

// GetKey returns the merge key.
func (r TicketRequest) GetKey() string { return r.Key }

// GetSubject returns the ticket subject.
func (r TicketRequest) GetSubject() string { return r.Ticket.Subject }

// GetChannel returns the ticket channel.
func (r TicketRequest) GetChannel() string { return r.Ticket.Channel }

// fields renders the ticket as the wire map, including organizeId.
func (t Ticket) fields(organizationID string) map[string]any {
	out := make(map[string]any, len(t.Extra)+7)
	for k, v := range t.Extra {
		out[k] = v
	}
	out["cx_channel"] = t.Channel
	out["cx_subject"] = t.Subject
	if t.SocialAccountName != "" {
		out["cx_socialAccountName"] = t.SocialAccountName
	}
	if t.SocialContact != "" {
		out["cx_socialContact"] = t.SocialContact
	}
	if t.Email != nil {
		out["email"] = *t.Email
	}
	out["organizeId"] = organizationID
	return out
}

// OpenTicket validates the request and queues it for delivery.
//
// A request missing its key, subject or channel is rejected with a
// *ValidationError and nothing is queued. Delivery failures are logged,
// never returned.
func (c *Client) OpenTicket(req TicketRequest) error {
	if err := validation.ValidateTicket(req); err != nil {
		return toValidationError(err)
	}
	for field, attrs := range map[string]map[string]any{
		"customers": req.Customer,
		"lead":      req.Lead,
		"ticket":    req.Ticket.Extra,
	} {
		if err := validation.ValidateAttributes(field, attrs); err != nil {
			return toValidationError(err)
		}
	}
	if c.isClosed() {
		return ErrClosed
	}
	creds, anonymousID, err := c.session.snapshot()
	if err != nil {
		return err
	}

	tracking := c.clientData()
	tracking["organizeId"] = creds.OrganizationID
	tracking["cx_cookie"] = anonymousID

	payload := map[string]any{
		"key":       req.Key,
		"customers": copyAttributes(req.Customer),
		"ticket":    req.Ticket.fields(creds.OrganizationID),
		"tracking":  tracking,
		"lead":      copyAttributes(req.Lead),
	}
	if len(req.Customs) > 0 {
		payload["customs"] = append([]CustomObject(nil), req.Customs...)
	}

	return c.dispatcher.enqueue(job{
		op:      "open_ticket",
		path:    openTicketPath,
		token:   creds.Token,
		payload: payload,
	})
}

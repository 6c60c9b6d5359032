// Package devserver implements a local ConnectX-compatible backend. It serves
// the endpoints the SDK talks to, applies the customer merge rules and keeps
// everything in a Store, so the SDK can be exercised end to end without the
// hosted service.
package devserver

import (
	"encoding/json"
	"time"
)

// Event is a stored tracking event.
type Event struct {
	ID         string         `json:"id"`
	OrganizeID string         `json:"organizeId"`
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// CustomRef is a custom object referenced from a customer or ticket.
type CustomRef struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

// Customer is a stored customer record.
type Customer struct {
	ID         string                      `json:"id"`
	Attributes map[string]any              `json:"attributes"`
	Customs    map[string][]map[string]any `json:"customs,omitempty"`
	Cookies    []string                    `json:"cookies,omitempty"`
	CreatedAt  time.Time                   `json:"createdAt"`
	UpdatedAt  time.Time                   `json:"updatedAt"`
}

// IdentifyOptions controls the merge of an identify call.
type IdentifyOptions struct {
	UpdateCustomer   bool
	UpdateSomeFields map[string]any
	Customs          []CustomRef
}

// IdentifyInput is a decoded identify call.
type IdentifyInput struct {
	// Key names the attribute used to find the customer.
	Key string
	// Customer holds the submitted attributes.
	Customer map[string]any
	// Cookie is the anonymous id the call was made under.
	Cookie  string
	Options IdentifyOptions
}

// Ticket is a stored support ticket.
type Ticket struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customerId"`
	Fields     map[string]any `json:"fields"`
	Lead       map[string]any `json:"lead,omitempty"`
	Customs    []CustomRef    `json:"customs,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TicketInput is a decoded open-ticket call.
type TicketInput struct {
	Identify IdentifyInput
	Fields   map[string]any
	Lead     map[string]any
	Customs  []CustomRef
}

// CreatedRecord is returned for each record of a composite create.
type CreatedRecord struct {
	ID          string `json:"id"`
	ReferenceID string `json:"referenceId,omitempty"`
}

// StoredRecord is a stored custom object record.
type StoredRecord struct {
	ID          string         `json:"id"`
	ObjectName  string         `json:"objectName"`
	ReferenceID string         `json:"referenceId,omitempty"`
	Fields      map[string]any `json:"fields"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// clone returns a deep copy of c so callers can't mutate stored state.
func (c *Customer) clone() Customer {
	var out Customer
	data, _ := json.Marshal(c)
	_ = json.Unmarshal(data, &out)
	out.CreatedAt = c.CreatedAt
	out.UpdatedAt = c.UpdatedAt
	return out
}

package connectx

import (
	"encoding/json"
	"fmt"

	"github.com/mintelligence/connectx-go/internal/validation"
)

const identifyPath = "/webtracking/dropform"

// CustomObject is a named attribute bundle referenced from a customer or a
// ticket. It is encoded as {"<Name>": {<Attributes>}}.
type CustomObject struct {
	Name       string
	Attributes map[string]any
}

// MarshalJSON implements json.Marshaler.
func (o CustomObject) MarshalJSON() ([]byte, error) {
	attrs := o.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return json.Marshal(map[string]map[string]any{o.Name: attrs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *CustomObject) UnmarshalJSON(data []byte) error {
	var m map[string]map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("custom object must have exactly one name, got %d", len(m))
	}
	for name, attrs := range m {
		o.Name = name
		o.Attributes = attrs
	}
	return nil
}

// IdentifyOptions controls how the backend merges an identify call into an
// existing customer.
type IdentifyOptions struct {
	// UpdateCustomer allows existing customer fields to be overwritten.
	// When false only missing fields are created.
	UpdateCustomer bool `json:"updateCustomer"`
	// UpdateSomeFields are written over the customer when UpdateCustomer is true.
	UpdateSomeFields map[string]any `json:"updateSomeFields,omitempty"`
	// Customs are custom objects referenced from the customer.
	Customs []CustomObject `json:"customs,omitempty"`
}

// CustomerIdentity is the payload of an identify call.
type CustomerIdentity struct {
	// Key names the customer attribute used as merge key (e.g. "cx_Name"). Required.
	Key string
	// Customer holds the customer attributes. May be partially empty.
	Customer map[string]any
	// Tracking is merged over the device context. Optional.
	Tracking map[string]any
	// Form holds submitted form fields. Optional.
	Form map[string]any
	// Options controls merge behavior. Optional.
	Options *IdentifyOptions
}

// Identify queues an identify call and returns immediately.
//
// Like Track, the returned error only reports why the call was not queued.
// When Customer[Key] is a non-empty string and the backend accepts the call,
// it becomes the known id stamped on events sent after it.
func (c *Client) Identify(identity CustomerIdentity) error {
	if err := validation.ValidateKey(identity.Key); err != nil {
		return toValidationError(err)
	}
	for field, attrs := range map[string]map[string]any{
		"customers": identity.Customer,
		"tracking":  identity.Tracking,
		"form":      identity.Form,
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
	for k, v := range identity.Tracking {
		tracking[k] = v
	}
	tracking["organizeId"] = creds.OrganizationID
	tracking["cx_cookie"] = anonymousID

	payload := map[string]any{
		"key":       identity.Key,
		"customers": copyAttributes(identity.Customer),
		"tracking":  tracking,
		"form":      nil,
		"options":   nil,
	}
	if identity.Form != nil {
		payload["form"] = copyAttributes(identity.Form)
	}
	if identity.Options != nil {
		payload["options"] = *identity.Options
	}

	j := job{
		op:      "identify",
		path:    identifyPath,
		token:   creds.Token,
		payload: payload,
	}
	if known, ok := identity.Customer[identity.Key].(string); ok && known != "" {
		j.delivered = func() { c.knownID.Store(&known) }
	}
	return c.dispatcher.enqueue(j)
}

// copyAttributes returns a shallow copy so later caller mutations do not
// race with delivery. A nil map becomes an empty one.
func copyAttributes(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// keyValue returns the merge key value of attrs as a string, or "" when the
// key is missing or empty.
func keyValue(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || isEmpty(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// selectCustomer finds the customer an identify call refers to.
//
// A non-empty key value matches the customer holding the same value. Failing
// that, the anonymous id links the call to a customer seen under the same
// cookie, provided that customer has no conflicting key value.
func selectCustomer(customers []*Customer, in IdentifyInput) *Customer {
	value := keyValue(in.Customer, in.Key)
	if value != "" {
		for _, c := range customers {
			if keyValue(c.Attributes, in.Key) == value {
				return c
			}
		}
	}
	if in.Cookie == "" {
		return nil
	}
	for _, c := range customers {
		if !slices.Contains(c.Cookies, in.Cookie) {
			continue
		}
		if value == "" || keyValue(c.Attributes, in.Key) == "" {
			return c
		}
	}
	return nil
}

// applyIdentify merges an identify call into c.
//
// Without UpdateCustomer only missing or empty fields are written, so
// repeating a call never changes a field that already has a value. With
// UpdateCustomer submitted fields and UpdateSomeFields overwrite. Empty
// submitted values are ignored either way. Custom objects are appended once
// and the cookie is linked to the customer.
func applyIdentify(c *Customer, in IdentifyInput, now time.Time) {
	if c.Attributes == nil {
		c.Attributes = map[string]any{}
	}
	for k, v := range in.Customer {
		if isEmpty(v) {
			continue
		}
		if cur, exists := c.Attributes[k]; exists && !isEmpty(cur) && !in.Options.UpdateCustomer {
			continue
		}
		c.Attributes[k] = v
	}
	if in.Options.UpdateCustomer {
		for k, v := range in.Options.UpdateSomeFields {
			c.Attributes[k] = v
		}
	}
	for _, ref := range in.Options.Customs {
		appendCustom(c, ref)
	}
	if in.Cookie != "" && !slices.Contains(c.Cookies, in.Cookie) {
		c.Cookies = append(c.Cookies, in.Cookie)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// appendCustom adds ref to c's custom objects unless an equal bundle is
// already referenced under the same name.
func appendCustom(c *Customer, ref CustomRef) {
	if ref.Name == "" {
		return
	}
	if c.Customs == nil {
		c.Customs = map[string][]map[string]any{}
	}
	attrs := ref.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	for _, existing := range c.Customs[ref.Name] {
		if sameJSON(existing, attrs) {
			return
		}
	}
	c.Customs[ref.Name] = append(c.Customs[ref.Name], attrs)
}

// sameJSON compares two bundles by their JSON encoding, which ignores the
// int/float64 difference introduced by a storage round trip.
func sameJSON(a, b map[string]any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// decodeCustoms converts the wire form [{"<name>": {...}}, ...] to refs.
func decodeCustoms(raw []map[string]map[string]any) []CustomRef {
	var out []CustomRef
	for _, entry := range raw {
		for name, attrs := range entry {
			out = append(out, CustomRef{Name: name, Attributes: attrs})
		}
	}
	return out
}

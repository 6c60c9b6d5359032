package connectx

import (
	"github.com/mintelligence/connectx-go/internal/validation"
)

const trackPath = "/webtracking"

// TrackingEvent is a named event with free-form attributes.
type TrackingEvent struct {
	// Name is sent as cx_event. Required.
	Name string
	// Attributes are merged over the device context. Optional.
	Attributes map[string]any
}

// Tracker is implemented by anything that accepts tracking events.
type Tracker interface {
	Track(event TrackingEvent) error
}

// Track queues an event for delivery and returns immediately.
//
// The returned error only reports why the event was not queued
// (ErrNotInitialized, ErrClosed, ErrQueueFull or a *ValidationError).
// Delivery failures are logged and never returned.
func (c *Client) Track(event TrackingEvent) error {
	if err := validation.ValidateEventName(event.Name); err != nil {
		return toValidationError(err)
	}
	if err := validation.ValidateAttributes("attributes", event.Attributes); err != nil {
		return toValidationError(err)
	}
	if c.isClosed() {
		return ErrClosed
	}
	creds, anonymousID, err := c.session.snapshot()
	if err != nil {
		return err
	}

	payload := c.clientData()
	for k, v := range event.Attributes {
		payload[k] = v
	}
	payload["cx_event"] = event.Name
	payload["organizeId"] = creds.OrganizationID
	payload["cx_cookie"] = anonymousID

	return c.dispatcher.enqueue(job{
		op:      "track",
		path:    trackPath,
		token:   creds.Token,
		payload: payload,
		stamp:   true,
	})
}

// TrackAttributes tracks an event given as a flat attribute map whose
// cx_event entry names the event.
func (c *Client) TrackAttributes(attrs map[string]string) error {
	event := TrackingEvent{Attributes: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		if k == "cx_event" {
			event.Name = v
			continue
		}
		event.Attributes[k] = v
	}
	return c.Track(event)
}

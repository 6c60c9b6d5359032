package connectx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mintelligence/connectx-go/internal/transport"
	"github.com/mintelligence/connectx-go/internal/validation"
)

// Record is one object record. It is encoded as a flat object whose
// "attributes" key holds Attributes and whose other keys are Fields.
type Record struct {
	// Attributes carry record metadata such as the caller-defined referenceId.
	Attributes map[string]any
	// Fields are the record's field values.
	Fields map[string]any
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	attrs := r.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	out["attributes"] = attrs
	return json.Marshal(out)
}

// RecordBatch is a batch of records to create under one object.
type RecordBatch struct {
	// ObjectName is the custom object the records belong to. Required.
	ObjectName string
	// Records are created in order.
	Records []Record
}

// RecordResponse is the backend's answer to a record batch.
type RecordResponse struct {
	StatusCode int
	// Body is the raw response body, suitable for display.
	Body string
}

// CreateRecord creates the records of batch and returns the backend's response.
//
// An empty batch succeeds without contacting the backend and returns "[]".
// Failures are returned as a *SubmitError.
func (c *Client) CreateRecord(ctx context.Context, batch RecordBatch) (*RecordResponse, error) {
	if err := validation.ValidateObjectName(batch.ObjectName); err != nil {
		return nil, &SubmitError{Op: "create_record", Err: toValidationError(err)}
	}
	for _, r := range batch.Records {
		if err := validation.ValidateAttributes("attributes", r.Attributes); err != nil {
			return nil, &SubmitError{Op: "create_record", Err: toValidationError(err)}
		}
		if err := validation.ValidateAttributes("fields", r.Fields); err != nil {
			return nil, &SubmitError{Op: "create_record", Err: toValidationError(err)}
		}
	}
	if c.isClosed() {
		return nil, &SubmitError{Op: "create_record", Err: ErrClosed}
	}
	creds, _, err := c.session.snapshot()
	if err != nil {
		return nil, &SubmitError{Op: "create_record", Err: err}
	}

	if len(batch.Records) == 0 {
		return &RecordResponse{StatusCode: http.StatusOK, Body: "[]"}, nil
	}

	resp, err := c.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   transport.JoinPath("object", batch.ObjectName, "composite"),
		Body:   batch.Records,
		Token:  creds.Token,
	})
	if err != nil {
		c.metrics.observe("create_record", outcomeFailed)
		return nil, &SubmitError{Op: "create_record", Err: &NetworkError{Op: "request", Err: err}}
	}
	if !resp.OK() {
		c.metrics.observe("create_record", outcomeFailed)
		return nil, &SubmitError{Op: "create_record", Err: c.parseError(resp)}
	}

	c.metrics.observe("create_record", outcomeDelivered)
	c.log.Debug().
		Str("op", "create_record").
		Str("object", batch.ObjectName).
		Int("records", len(batch.Records)).
		Msg("records created")

	return &RecordResponse{StatusCode: resp.StatusCode, Body: string(resp.Body)}, nil
}

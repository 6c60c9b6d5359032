package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	connectx "github.com/mintelligence/connectx-go"
)

// parsePairs turns ["k=v", ...] into a map. Values stay strings.
func parsePairs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", arg)
		}
		out[key] = value
	}
	return out, nil
}

// parseCustom parses "Name:k=v,k=v" into a custom object.
func parseCustom(arg string) (connectx.CustomObject, error) {
	name, rest, _ := strings.Cut(arg, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return connectx.CustomObject{}, fmt.Errorf("invalid custom object %q, want Name:key=value,...", arg)
	}

	var pairs []string
	if rest != "" {
		pairs = strings.Split(rest, ",")
	}
	attrs, err := parsePairs(pairs)
	if err != nil {
		return connectx.CustomObject{}, fmt.Errorf("custom object %s: %w", name, err)
	}
	return connectx.CustomObject{Name: name, Attributes: attrs}, nil
}

// parseRecord decodes one JSON object into a record. A top-level
// "attributes" object becomes the record attributes.
func parseRecord(arg string) (connectx.Record, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(arg), &fields); err != nil {
		return connectx.Record{}, fmt.Errorf("invalid record %q: %w", arg, err)
	}
	if fields == nil {
		return connectx.Record{}, fmt.Errorf("invalid record %q: want a JSON object", arg)
	}

	var rec connectx.Record
	if raw, ok := fields["attributes"]; ok {
		attrs, ok := raw.(map[string]any)
		if !ok {
			return connectx.Record{}, fmt.Errorf("invalid record %q: attributes must be an object", arg)
		}
		rec.Attributes = attrs
		delete(fields, "attributes")
	}
	rec.Fields = fields
	return rec, nil
}

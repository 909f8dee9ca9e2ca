package router

import (
	"fmt"
	"strings"
)

// OutputDevice renders a sensor's polled data into the shape an API
// response should carry. Grounded on
// original_source/src/backend/output.py's OutputDevice/DefaultOutput.
type OutputDevice interface {
	// Set writes a field a Sensor polled, the Go equivalent of writing
	// directly into output.py's OutputDevice.data.
	Set(key string, value any)
	// APIResp returns the fields to merge into the response body.
	APIResp() map[string]any
	// APIHeaders returns extra response headers to merge in, if any.
	APIHeaders() map[string]string
	// APICode lets an output override the response status code/message
	// (origCode/origMessage pass through unchanged by default).
	APICode(origCode int, origMessage string) (int, string)
}

// NewOutput constructs an OutputDevice of the named type, seeded with
// data (the request body).
type NewOutput func(data map[string]any) OutputDevice

var outputs = map[string]NewOutput{
	"default": func(data map[string]any) OutputDevice { return DefaultOutput{data: data} },
}

// RegisterOutput adds a named output constructor, for built-in and
// dynamically-loaded output plugins alike.
func RegisterOutput(name string, ctor NewOutput) {
	outputs[strings.ToLower(name)] = ctor
}

// LookupOutput resolves name to its constructor, case-insensitively.
func LookupOutput(name string) (NewOutput, bool) {
	ctor, ok := outputs[strings.ToLower(name)]
	return ctor, ok
}

// DefaultOutput renders every polled field as its string form, the Go
// equivalent of output.py's DefaultOutput.
type DefaultOutput struct {
	data map[string]any
}

func (d DefaultOutput) Set(key string, value any) {
	d.data[key] = value
}

func (d DefaultOutput) APIResp() map[string]any {
	out := make(map[string]any, len(d.data))
	for k, v := range d.data {
		out[k] = toDisplayString(v)
	}
	return out
}

func (DefaultOutput) APIHeaders() map[string]string { return nil }

func (DefaultOutput) APICode(origCode int, origMessage string) (int, string) {
	return origCode, origMessage
}

func toDisplayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
